package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

type anyFrame struct {
	Chunk   *string               `json:"chunk"`
	Type    string                `json:"type"`
	Content string                `json:"content"`
	Sources []domain.SearchResult `json:"sources"`
}

// ParsePayload decodes one outbound frame payload back into an event.
func ParsePayload(payload []byte) (domain.Event, error) {
	data := strings.TrimSpace(string(payload))
	if data == DoneSentinel {
		return domain.DoneEvent(), nil
	}

	var f anyFrame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return domain.Event{}, fmt.Errorf("parsing frame: %w", err)
	}

	if f.Chunk != nil {
		if model, ok := strings.CutPrefix(*f.Chunk, ModelMarker); ok {
			return domain.ModelEvent(domain.Candidate(model)), nil
		}
		return domain.TextEvent(*f.Chunk), nil
	}

	switch domain.EventType(f.Type) {
	case domain.EventText:
		return domain.TextEvent(f.Content), nil
	case domain.EventSources:
		return domain.SourcesEvent(f.Sources), nil
	case domain.EventError:
		return domain.ErrorEvent(f.Content), nil
	}
	return domain.Event{}, fmt.Errorf("unknown frame type %q", f.Type)
}

// Reader decodes a gateway event stream as a caller sees it.
type Reader struct {
	r     *bufio.Reader
	text  strings.Builder
	model domain.Candidate
	done  bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next event. After the done event it returns io.EOF.
func (r *Reader) Next() (domain.Event, error) {
	for !r.done {
		line, err := r.r.ReadString('\n')
		if data, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), dataPrefix); ok {
			e, perr := ParsePayload([]byte(data))
			if perr != nil {
				return domain.Event{}, perr
			}
			r.observe(e)
			return e, nil
		}
		if err != nil {
			if err == io.EOF {
				return domain.Event{}, io.ErrUnexpectedEOF
			}
			return domain.Event{}, err
		}
	}
	return domain.Event{}, io.EOF
}

func (r *Reader) observe(e domain.Event) {
	switch e.Type {
	case domain.EventText:
		r.text.WriteString(e.Text)
	case domain.EventModel:
		r.model = domain.Candidate(e.Text)
	case domain.EventDone:
		r.done = true
	}
}

// Text is the visible text accumulated so far; model frames are excluded.
func (r *Reader) Text() string { return r.text.String() }

// Model is the model named by the sideband frame, if one was seen.
func (r *Reader) Model() domain.Candidate { return r.model }
