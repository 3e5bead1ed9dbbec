package events

import (
	"encoding/json"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Event is a single realtime protocol message, client or server originated.
// The concrete type is selected by the "type" discriminant.
type Event interface {
	ID() string
	EventType() string
}

type BaseEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

func (e BaseEvent) ID() string        { return e.EventID }
func (e BaseEvent) EventType() string { return e.Type }

func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID: NewID("evt_"),
		Type:    eventType,
	}
}

// NewID returns a random identifier with the given prefix.
func NewID(prefix string) string {
	id, err := nanoid.New()
	if err != nil {
		panic(err)
	}
	return prefix + id
}

func Parse[T any](data []byte) (*T, error) {
	var x T
	if err := json.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	return &x, nil
}

// Opaque holds an event whose type is not known to this package. The raw
// payload is kept so it can be logged and inspected unchanged.
type Opaque struct {
	BaseEvent
	Raw json.RawMessage `json:"-"`
}

func (o *Opaque) MarshalJSON() ([]byte, error) {
	if len(o.Raw) > 0 {
		return o.Raw, nil
	}
	return json.Marshal(o.BaseEvent)
}
