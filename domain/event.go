package domain

type EventType string

const (
	EventText    EventType = "text"
	EventSources EventType = "sources"
	EventError   EventType = "error"
	// EventModel is a sideband event naming the model that produced the
	// answer. It is never user-visible text.
	EventModel EventType = "model"
	EventDone  EventType = "done"
)

// Event is one element of a request's outbound stream.
type Event struct {
	Type    EventType
	Text    string
	Sources []SearchResult
}

func TextEvent(s string) Event { return Event{Type: EventText, Text: s} }
func SourcesEvent(rs []SearchResult) Event { return Event{Type: EventSources, Sources: rs} }
func ErrorEvent(msg string) Event { return Event{Type: EventError, Text: msg} }
func ModelEvent(model Candidate) Event { return Event{Type: EventModel, Text: string(model)} }
func DoneEvent() Event { return Event{Type: EventDone} }

// Sink receives the events of one streamed response.
type Sink interface {
	Emit(Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Emit(e Event) error { return f(e) }
