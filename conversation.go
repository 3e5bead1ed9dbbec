package openairt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/codewandler/openairt-console/audio"
	"github.com/codewandler/openairt-console/events"
)

var ErrItemNotFound = errors.New("item not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusIncomplete Status = "incomplete"
	StatusTruncated  Status = "truncated"
)

// ToolCall is the formatted view of a function_call item.
type ToolCall struct {
	Type      string
	Name      string
	CallID    string
	Arguments string
}

// Formatted holds the accumulated, render-ready payload of an item.
type Formatted struct {
	Text       string
	Transcript string
	// Audio is raw PCM16 mono at audio.SampleRate.
	Audio  []byte
	File   string
	Tool   *ToolCall
	Output string
}

type Item struct {
	ID        string
	Type      string
	Role      Role
	Status    Status
	Content   []events.ConversationItemContent
	Formatted Formatted
}

func (it *Item) clone() Item {
	cp := *it
	cp.Content = slices.Clone(it.Content)
	if it.Formatted.Tool != nil {
		t := *it.Formatted.Tool
		cp.Formatted.Tool = &t
	}
	return cp
}

// Delta is the incremental change carried by a streaming event.
type Delta struct {
	Text       string
	Transcript string
	Arguments  string
	Audio      []byte
}

// Update describes the item touched by a processed event.
type Update struct {
	Item  Item
	Delta *Delta
	// Completed is set when the server finalised the item.
	Completed bool
}

type queuedSpeech struct {
	startMs int
	endMs   int
	audio   []byte
}

// Conversation is the ordered item store built from server events.
type Conversation struct {
	mu    sync.Mutex
	items []*Item
	byID  map[string]*Item

	speech      map[string]*queuedSpeech
	transcripts map[string]string

	inputAudio       []byte
	inputBase        int
	queuedInputAudio []byte
}

func NewConversation() *Conversation {
	c := &Conversation{}
	c.reset()
	return c
}

func (c *Conversation) reset() {
	c.items = nil
	c.byID = map[string]*Item{}
	c.speech = map[string]*queuedSpeech{}
	c.transcripts = map[string]string{}
	c.inputAudio = nil
	c.inputBase = 0
	c.queuedInputAudio = nil
}

func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Items returns a copy of all items in conversation order.
func (c *Conversation) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it.clone())
	}
	return out
}

func (c *Conversation) Item(id string) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return it.clone(), true
}

// Remove deletes the item with id and reports whether it existed.
func (c *Conversation) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(id)
}

func (c *Conversation) remove(id string) bool {
	if _, ok := c.byID[id]; !ok {
		return false
	}
	delete(c.byID, id)
	c.items = slices.DeleteFunc(c.items, func(it *Item) bool { return it.ID == id })
	return true
}

// SetFile records the path of the decoded audio file for an item.
func (c *Conversation) SetFile(id, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	it.Formatted.File = path
	return nil
}

// AppendInputAudio buffers microphone audio that has been sent to the server
// so speech segments can be attached to the user items they produce.
func (c *Conversation) AppendInputAudio(pcm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputAudio = append(c.inputAudio, pcm...)
}

func (c *Conversation) HasInputAudio() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inputAudio) > 0
}

// CommitInputAudio moves the buffered input into the queue consumed by the
// next user audio item.
func (c *Conversation) CommitInputAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queuedInputAudio = c.inputAudio
	c.inputBase += len(c.inputAudio)
	c.inputAudio = nil
}

func msToByteOffset(ms int) int {
	return ms * audio.SampleRate / 1000 * audio.BytesPerSample
}

// Process applies a server event. It returns nil when the event does not
// touch an item.
func (c *Conversation) Process(evt events.Event) (*Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := evt.(type) {
	case *events.ConversationItemCreatedEvent:
		it, ok := c.byID[e.Item.ID]
		if !ok {
			it = c.newItem(e.Item)
			c.items = append(c.items, it)
			c.byID[it.ID] = it
		}
		return &Update{Item: it.clone()}, nil

	case *events.ConversationItemTruncatedEvent:
		it, err := c.find(e.ItemID)
		if err != nil {
			return nil, err
		}
		end := min(msToByteOffset(e.AudioEndMs), len(it.Formatted.Audio))
		it.Formatted.Audio = slices.Clone(it.Formatted.Audio[:end])
		it.Formatted.Transcript = ""
		it.Status = StatusTruncated
		return &Update{Item: it.clone()}, nil

	case *events.ConversationItemDeletedEvent:
		it, ok := c.byID[e.ItemID]
		if !ok {
			return nil, nil
		}
		removed := it.clone()
		c.remove(e.ItemID)
		return &Update{Item: removed}, nil

	case *events.InputAudioTranscriptionCompletedEvent:
		transcript := e.Transcript
		if transcript == "" {
			// non-empty marks the transcript as received
			transcript = " "
		}
		it, ok := c.byID[e.ItemID]
		if !ok {
			c.transcripts[e.ItemID] = transcript
			return nil, nil
		}
		if e.ContentIndex < len(it.Content) {
			it.Content[e.ContentIndex].Transcript = e.Transcript
		}
		it.Formatted.Transcript = transcript
		return &Update{Item: it.clone(), Delta: &Delta{Transcript: e.Transcript}}, nil

	case *events.SpeechStartedEvent:
		c.speech[e.ItemID] = &queuedSpeech{startMs: e.AudioStartMs}
		return nil, nil

	case *events.SpeechStoppedEvent:
		s, ok := c.speech[e.ItemID]
		if !ok {
			s = &queuedSpeech{}
			c.speech[e.ItemID] = s
		}
		s.endMs = e.AudioEndMs
		start := clamp(msToByteOffset(s.startMs)-c.inputBase, 0, len(c.inputAudio))
		end := clamp(msToByteOffset(s.endMs)-c.inputBase, start, len(c.inputAudio))
		s.audio = slices.Clone(c.inputAudio[start:end])
		c.inputAudio = slices.Clone(c.inputAudio[end:])
		c.inputBase += end
		return nil, nil

	case *events.ResponseOutputItemDoneEvent:
		it, err := c.find(e.Item.ID)
		if err != nil {
			return nil, err
		}
		it.Status = Status(e.Item.Status)
		if it.Formatted.Tool != nil && e.Item.Arguments != "" {
			it.Formatted.Tool.Arguments = e.Item.Arguments
		}
		return &Update{Item: it.clone(), Completed: it.Status == StatusCompleted}, nil

	case *events.ResponseContentPartAddedEvent:
		it, err := c.find(e.ItemID)
		if err != nil {
			return nil, err
		}
		it.Content = append(it.Content, e.Part)
		return &Update{Item: it.clone()}, nil

	case *events.ResponseTextDeltaEvent:
		it, err := c.find(e.ItemID)
		if err != nil {
			return nil, err
		}
		if e.ContentIndex < len(it.Content) {
			it.Content[e.ContentIndex].Text += e.Delta
		}
		it.Formatted.Text += e.Delta
		return &Update{Item: it.clone(), Delta: &Delta{Text: e.Delta}}, nil

	case *events.ResponseAudioTranscriptDeltaEvent:
		it, err := c.find(e.ItemID)
		if err != nil {
			return nil, err
		}
		if e.ContentIndex < len(it.Content) {
			it.Content[e.ContentIndex].Transcript += e.Delta
		}
		it.Formatted.Transcript += e.Delta
		return &Update{Item: it.clone(), Delta: &Delta{Transcript: e.Delta}}, nil

	case *events.ResponseAudioDeltaEvent:
		it, err := c.find(e.ItemID)
		if err != nil {
			return nil, err
		}
		pcm, err := base64.StdEncoding.DecodeString(e.Delta)
		if err != nil {
			return nil, fmt.Errorf("decode audio delta for %s: %w", e.ItemID, err)
		}
		it.Formatted.Audio = append(it.Formatted.Audio, pcm...)
		return &Update{Item: it.clone(), Delta: &Delta{Audio: pcm}}, nil

	case *events.ResponseFunctionCallArgumentsDeltaEvent:
		it, err := c.find(e.ItemID)
		if err != nil {
			return nil, err
		}
		if it.Formatted.Tool == nil {
			it.Formatted.Tool = &ToolCall{Type: "function", CallID: e.CallID}
		}
		it.Formatted.Tool.Arguments += e.Delta
		return &Update{Item: it.clone(), Delta: &Delta{Arguments: e.Delta}}, nil
	}

	return nil, nil
}

func (c *Conversation) find(id string) (*Item, error) {
	it, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return it, nil
}

func (c *Conversation) newItem(src events.ConversationItem) *Item {
	it := &Item{
		ID:      src.ID,
		Type:    src.Type,
		Role:    Role(src.Role),
		Status:  Status(src.Status),
		Content: slices.Clone(src.Content),
	}

	hasInputAudio := false
	for _, part := range src.Content {
		switch part.Type {
		case events.ContentTypeText, events.ContentTypeInputText:
			it.Formatted.Text += part.Text
		case events.ContentTypeInputAudio:
			hasInputAudio = true
		}
		it.Formatted.Transcript += part.Transcript
	}

	switch src.Type {
	case events.ItemTypeFunctionCall:
		it.Role = RoleTool
		it.Formatted.Tool = &ToolCall{
			Type:      "function",
			Name:      src.Name,
			CallID:    src.CallID,
			Arguments: src.Arguments,
		}
	case events.ItemTypeFunctionCallOutput:
		it.Role = RoleTool
		it.Formatted.Output = src.Output
		it.Status = StatusCompleted
	}

	if s, ok := c.speech[it.ID]; ok {
		if s.audio != nil {
			it.Formatted.Audio = s.audio
		}
		delete(c.speech, it.ID)
	}
	if hasInputAudio && it.Formatted.Audio == nil && c.queuedInputAudio != nil {
		it.Formatted.Audio = c.queuedInputAudio
		c.queuedInputAudio = nil
	}
	if t, ok := c.transcripts[it.ID]; ok {
		it.Formatted.Transcript = t
		delete(c.transcripts, it.ID)
	}
	if it.Role == RoleUser && it.Status == "" {
		it.Status = StatusCompleted
	}

	return it
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
