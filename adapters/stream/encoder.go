// Package stream implements the gateway's line-delimited frame protocol:
// outbound "data: <json>\n\n" frames terminated by "data: [DONE]\n\n", and
// decoding of an upstream provider's OpenAI-compatible token stream.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

const (
	// ModelMarker prefixes a legacy chunk that names the answering model
	// instead of carrying user-visible text.
	ModelMarker = "__MODEL__:"

	DoneSentinel = "[DONE]"
	dataPrefix   = "data: "
)

var (
	ErrOutOfOrder = errors.New("sources event after text event")
	ErrClosed     = errors.New("stream already terminated")
)

type Format int

const (
	// FormatLegacy renders text as {"chunk": ...}.
	FormatLegacy Format = iota
	// FormatTyped renders text as {"type":"text","content":...}.
	FormatTyped
)

type legacyFrame struct {
	Chunk string `json:"chunk"`
}

type typedFrame struct {
	Type    string                `json:"type"`
	Content string                `json:"content,omitempty"`
	Sources []domain.SearchResult `json:"sources,omitempty"`
}

// framer enforces event ordering for one response and renders payloads.
type framer struct {
	format      Format
	sentText    bool
	sentSources bool
	done        bool
}

// next renders e. A nil payload with a nil error means nothing is written.
func (f *framer) next(e domain.Event) ([]byte, error) {
	if f.done {
		if e.Type == domain.EventDone {
			return nil, nil
		}
		return nil, ErrClosed
	}

	switch e.Type {
	case domain.EventDone:
		f.done = true
		return []byte(DoneSentinel), nil
	case domain.EventSources:
		if f.sentText || f.sentSources {
			return nil, ErrOutOfOrder
		}
		f.sentSources = true
		return json.Marshal(typedFrame{Type: string(domain.EventSources), Sources: e.Sources})
	case domain.EventText:
		f.sentText = true
		if f.format == FormatLegacy {
			return json.Marshal(legacyFrame{Chunk: e.Text})
		}
		return json.Marshal(typedFrame{Type: string(domain.EventText), Content: e.Text})
	case domain.EventError:
		return json.Marshal(typedFrame{Type: string(domain.EventError), Content: e.Text})
	case domain.EventModel:
		if f.format != FormatLegacy {
			return nil, nil
		}
		return json.Marshal(legacyFrame{Chunk: ModelMarker + e.Text})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

type payloadSink struct {
	mu     sync.Mutex
	framer framer
	write  func(payload []byte) error
}

// NewSink returns a domain.Sink handing each rendered frame payload (the
// part after "data: ") to write.
func NewSink(format Format, write func(payload []byte) error) domain.Sink {
	return &payloadSink{framer: framer{format: format}, write: write}
}

func (s *payloadSink) Emit(e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := s.framer.next(e)
	if err != nil || payload == nil {
		return err
	}
	return s.write(payload)
}

type flusher interface {
	Flush()
}

// Encoder writes frames to w, flushing after each one when w supports it.
type Encoder struct {
	domain.Sink
}

func NewEncoder(w io.Writer, format Format) *Encoder {
	f, _ := w.(flusher)
	return &Encoder{
		Sink: NewSink(format, func(payload []byte) error {
			frame := make([]byte, 0, len(dataPrefix)+len(payload)+2)
			frame = append(frame, dataPrefix...)
			frame = append(frame, payload...)
			frame = append(frame, '\n', '\n')
			if _, err := w.Write(frame); err != nil {
				return fmt.Errorf("writing frame: %w", err)
			}
			if f != nil {
				f.Flush()
			}
			return nil
		}),
	}
}
