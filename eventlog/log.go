// Package eventlog keeps the ordered protocol event history of a session,
// folding runs of same-type events into a single counted entry.
package eventlog

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	openairt "github.com/codewandler/openairt-console"
	"github.com/codewandler/openairt-console/events"
)

// Entry is a logged event. Count is the number of repeats folded into it;
// zero means the event occurred once.
type Entry struct {
	openairt.RealtimeEvent
	Count int
}

func (e Entry) Type() string {
	if e.Event == nil {
		return ""
	}
	return e.Event.EventType()
}

type Log struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Log {
	return &Log{}
}

// Record appends e, or folds it into the last entry when both have the same
// type. Only the last entry is considered.
func (l *Log) Record(e openairt.RealtimeEvent) {
	if e.Event == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries); n > 0 && l.entries[n-1].Type() == e.Event.EventType() {
		last := &l.entries[n-1]
		last.RealtimeEvent = e
		last.Count++
		return
	}
	l.entries = append(l.entries, Entry{RealtimeEvent: e})
}

// Entries returns a copy of the log in arrival order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// trimmedFields lists the payload fields holding audio, per event type.
var trimmedFields = map[string]string{
	events.TypeInputAudioBufferAppend: "audio",
	events.TypeResponseAudioDelta:     "delta",
}

// Inspect renders the entry's event as a JSON object safe for display:
// audio payloads are replaced by a size marker. The stored event is not
// modified.
func Inspect(e Entry) (map[string]any, error) {
	data, err := json.Marshal(e.Event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type(), err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Type(), err)
	}
	if field, ok := trimmedFields[e.Type()]; ok {
		if s, ok := m[field].(string); ok {
			m[field] = fmt.Sprintf("[trimmed: %d bytes]", len(s))
		}
	}
	return m, nil
}

// IsError reports whether the entry is a protocol error reported by the
// server.
func IsError(e Entry) bool {
	return e.Source == openairt.SourceServer && e.Type() == events.TypeError
}

// FormatElapsed renders t relative to start as mm:ss.hh.
func FormatElapsed(start, t time.Time) string {
	d := t.Sub(start)
	if d < 0 {
		d = 0
	}
	hundredths := int64(d / (10 * time.Millisecond))
	return fmt.Sprintf("%02d:%02d.%02d", hundredths/6000, hundredths/100%60, hundredths%100)
}
