package domain

import "context"

// Llm abstracts any chat/LLM provider.
type Llm interface {
	// Ready reports whether the provider has the credentials it needs.
	// A non-nil result means no request can succeed.
	Ready() error

	// Complete issues one non-streaming generation call.
	Complete(ctx context.Context, req GenerationRequest) (string, error)

	// Stream issues one streaming generation call, invoking onDelta for each
	// text delta as it arrives, and returns the accumulated text.
	Stream(ctx context.Context, req GenerationRequest, onDelta func(delta string) error) (string, error)
}

// Candidate is an opaque provider+model identifier, e.g.
// "google/gemini-2.0-flash-exp:free" or "gemini:gemini-2.0-flash".
type Candidate string

// AutoCandidate asks the classifier to pick the first candidate.
const AutoCandidate Candidate = "auto"

type GenerationRequest struct {
	Model        Candidate
	SystemPrompt string
	Messages     []ChatMessage
	Temperature  float64
	MaxTokens    int
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Image is an inline data URL attached to the message.
	Image string `json:"image,omitempty"`
}

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case UserRole, AssistantRole, SystemRole:
		return true
	}
	return false
}
