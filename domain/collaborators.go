package domain

import "golang.org/x/text/language"

// RateLimiter decides whether a client may issue another request.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	Allow(clientID string) bool
}

type Sanitizer interface {
	Sanitize(text string) string
	ValidateImage(data string) bool
}

type FocusMode string

const (
	FocusGeneral  FocusMode = "general"
	FocusAcademic FocusMode = "academic"
	FocusWriting  FocusMode = "writing"
	FocusCode     FocusMode = "code"
)

func (f FocusMode) Valid() bool {
	switch f {
	case FocusGeneral, FocusAcademic, FocusWriting, FocusCode:
		return true
	}
	return false
}

type PromptOptions struct {
	VoiceMode        bool
	DeepThinking     bool
	EnhancedAnalysis bool
	Locale           language.Tag
	Focus            FocusMode
}

// PromptBuilder produces the system prompt for one request.
type PromptBuilder interface {
	Build(opts PromptOptions) string
}
