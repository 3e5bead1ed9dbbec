package console

import (
	"context"
	"fmt"
	"slices"
	"sync"

	openairt "github.com/codewandler/openairt-console"
	"github.com/codewandler/openairt-console/audio"
	"github.com/codewandler/openairt-console/events"
	"github.com/codewandler/openairt-console/tool"
)

// callLog records calls across all fakes so tests can assert ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.all() {
		if c == call {
			n++
		}
	}
	return n
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

type fakeSession struct {
	log        *callLog
	connectErr error

	mu            sync.Mutex
	tools         []string
	turnDetection *events.TurnDetection
	items         []openairt.Item
	appended      int
	messages      []string
	files         map[string]string

	onEvent       func(openairt.RealtimeEvent)
	onUpdated     func(openairt.Item, *openairt.Delta)
	onInterrupted func()
	onClose       func(error)
}

func (s *fakeSession) Connect(context.Context) error {
	s.log.add("session.connect")
	return s.connectErr
}

func (s *fakeSession) Disconnect() error {
	s.log.add("session.disconnect")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = nil
	s.items = nil
	return nil
}

func (s *fakeSession) AddTool(t tool.Tool, _ tool.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.tools, t.Name) {
		return tool.ErrDuplicateTool
	}
	s.tools = append(s.tools, t.Name)
	return nil
}

func (s *fakeSession) SetTurnDetection(td *events.TurnDetection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnDetection = td
	return nil
}

func (s *fakeSession) AppendInputAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended++
	return nil
}

func (s *fakeSession) CreateResponse() error {
	s.log.add("session.create_response")
	return nil
}

func (s *fakeSession) CancelResponse(itemID string, sampleCount int) error {
	s.log.add("session.cancel %s %d", itemID, sampleCount)
	return nil
}

func (s *fakeSession) DeleteItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.DeleteFunc(s.items, func(it openairt.Item) bool { return it.ID == id })
	return nil
}

func (s *fakeSession) SendUserMessageContent(content ...events.ConversationItemContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, part := range content {
		s.messages = append(s.messages, part.Text)
	}
	return nil
}

func (s *fakeSession) Items() []openairt.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *fakeSession) SetItemFile(id, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string]string{}
	}
	s.files[id] = path
	return nil
}

func (s *fakeSession) OnRealtimeEvent(h func(openairt.RealtimeEvent)) { s.onEvent = h }
func (s *fakeSession) OnConversationUpdated(h func(openairt.Item, *openairt.Delta)) {
	s.onUpdated = h
}
func (s *fakeSession) OnConversationInterrupted(h func()) { s.onInterrupted = h }
func (s *fakeSession) OnClose(h func(error))              { s.onClose = h }

func (s *fakeSession) setItems(items ...openairt.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

type fakeCapture struct {
	log       *callLog
	beginErr  error
	recordErr error

	mu      sync.Mutex
	onFrame func(audio.Frame)
}

func (c *fakeCapture) Begin(context.Context) error {
	c.log.add("capture.begin")
	return c.beginErr
}

func (c *fakeCapture) Record(onFrame func(audio.Frame)) error {
	c.log.add("capture.record")
	if c.recordErr != nil {
		return c.recordErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = onFrame
	return nil
}

func (c *fakeCapture) Pause() error {
	c.log.add("capture.pause")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = nil
	return nil
}

func (c *fakeCapture) End() error {
	c.log.add("capture.end")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = nil
	return nil
}

func (c *fakeCapture) Frequencies(audio.Band) []float64 { return []float64{0.1} }

func (c *fakeCapture) emit(f audio.Frame) bool {
	c.mu.Lock()
	fn := c.onFrame
	c.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(f)
	return true
}

type fakePlayback struct {
	log        *callLog
	connectErr error

	mu      sync.Mutex
	playing *audio.TrackOffset
	added   map[string]int
}

func (p *fakePlayback) Connect(context.Context) error {
	p.log.add("playback.connect")
	return p.connectErr
}

func (p *fakePlayback) Add16BitPCM(pcm []byte, trackID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.added == nil {
		p.added = map[string]int{}
	}
	p.added[trackID] += len(pcm)
}

func (p *fakePlayback) Interrupt() *audio.TrackOffset {
	p.log.add("playback.interrupt")
	p.mu.Lock()
	defer p.mu.Unlock()
	off := p.playing
	p.playing = nil
	return off
}

func (p *fakePlayback) Close() error {
	p.log.add("playback.close")
	return nil
}

func (p *fakePlayback) Frequencies(audio.Band) []float64 { return []float64{0.2} }

func (p *fakePlayback) play(trackID string, offset int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = &audio.TrackOffset{TrackID: trackID, Offset: offset}
}
