package openairt

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/openairt-console/events"
)

func created(item events.ConversationItem) *events.ConversationItemCreatedEvent {
	return &events.ConversationItemCreatedEvent{
		BaseEvent: events.BaseEvent{Type: events.TypeConversationItemCreated},
		Item:      item,
	}
}

func mustProcess(t *testing.T, c *Conversation, evt events.Event) *Update {
	t.Helper()
	upd, err := c.Process(evt)
	require.NoError(t, err)
	return upd
}

func TestConversation_StreamingAssistantItem(t *testing.T) {
	c := NewConversation()

	upd := mustProcess(t, c, created(events.ConversationItem{ID: "a", Type: "message", Role: "assistant", Status: "in_progress"}))
	require.NotNil(t, upd)
	assert.Nil(t, upd.Delta)

	mustProcess(t, c, &events.ResponseContentPartAddedEvent{ItemID: "a", Part: events.ConversationItemContent{Type: "audio"}})

	upd = mustProcess(t, c, &events.ResponseAudioTranscriptDeltaEvent{ItemID: "a", Delta: "Hi "})
	assert.Equal(t, "Hi ", upd.Delta.Transcript)
	mustProcess(t, c, &events.ResponseAudioTranscriptDeltaEvent{ItemID: "a", Delta: "there"})

	upd = mustProcess(t, c, &events.ResponseAudioDeltaEvent{ItemID: "a", Delta: base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})})
	assert.Equal(t, []byte{1, 2, 3, 4}, upd.Delta.Audio)

	upd = mustProcess(t, c, &events.ResponseOutputItemDoneEvent{Item: events.ConversationItem{ID: "a", Status: "completed"}})
	assert.True(t, upd.Completed)

	item, ok := c.Item("a")
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, item.Role)
	assert.Equal(t, StatusCompleted, item.Status)
	assert.Equal(t, "Hi there", item.Formatted.Transcript)
	assert.Equal(t, "Hi there", item.Content[0].Transcript)
	assert.Equal(t, []byte{1, 2, 3, 4}, item.Formatted.Audio)
}

func TestConversation_UnknownItemDelta(t *testing.T) {
	c := NewConversation()
	_, err := c.Process(&events.ResponseTextDeltaEvent{ItemID: "nope", Delta: "x"})
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = c.Process(&events.ResponseAudioDeltaEvent{ItemID: "nope", Delta: "AA=="})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestConversation_FunctionItems(t *testing.T) {
	c := NewConversation()
	mustProcess(t, c, created(events.ConversationItem{ID: "f", Type: "function_call", CallID: "call_1", Name: "calculate_sum"}))
	mustProcess(t, c, &events.ResponseFunctionCallArgumentsDeltaEvent{ItemID: "f", Delta: `{"values":`})
	upd := mustProcess(t, c, &events.ResponseFunctionCallArgumentsDeltaEvent{ItemID: "f", Delta: `[1]}`})
	assert.Equal(t, `[1]}`, upd.Delta.Arguments)

	item, _ := c.Item("f")
	assert.Equal(t, RoleTool, item.Role)
	require.NotNil(t, item.Formatted.Tool)
	assert.Equal(t, ToolCall{Type: "function", Name: "calculate_sum", CallID: "call_1", Arguments: `{"values":[1]}`}, *item.Formatted.Tool)

	mustProcess(t, c, created(events.ConversationItem{ID: "o", Type: "function_call_output", CallID: "call_1", Output: `{"result":1}`}))
	out, _ := c.Item("o")
	assert.Equal(t, RoleTool, out.Role)
	assert.Equal(t, `{"result":1}`, out.Formatted.Output)

	assert.Equal(t, []string{"f", "o"}, ids(c.Items()))
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestConversation_Truncation(t *testing.T) {
	c := NewConversation()
	mustProcess(t, c, created(events.ConversationItem{ID: "a", Type: "message", Role: "assistant"}))
	mustProcess(t, c, &events.ResponseAudioDeltaEvent{ItemID: "a", Delta: base64.StdEncoding.EncodeToString(make([]byte, 4800))})
	mustProcess(t, c, &events.ResponseAudioTranscriptDeltaEvent{ItemID: "a", Delta: "long answer"})

	mustProcess(t, c, &events.ConversationItemTruncatedEvent{ItemID: "a", AudioEndMs: 50})

	item, _ := c.Item("a")
	assert.Equal(t, StatusTruncated, item.Status)
	assert.Len(t, item.Formatted.Audio, 2400)
	assert.Empty(t, item.Formatted.Transcript)
}

func TestConversation_TranscriptBeforeItem(t *testing.T) {
	c := NewConversation()
	upd := mustProcess(t, c, &events.InputAudioTranscriptionCompletedEvent{ItemID: "u", Transcript: "what is two plus two"})
	assert.Nil(t, upd)

	mustProcess(t, c, created(events.ConversationItem{
		ID: "u", Type: "message", Role: "user",
		Content: []events.ConversationItemContent{{Type: "input_audio"}},
	}))
	item, _ := c.Item("u")
	assert.Equal(t, "what is two plus two", item.Formatted.Transcript)
	assert.Equal(t, StatusCompleted, item.Status)

	upd = mustProcess(t, c, &events.InputAudioTranscriptionCompletedEvent{ItemID: "u", Transcript: ""})
	assert.Equal(t, " ", upd.Item.Formatted.Transcript)
}

func TestConversation_SpeechSegments(t *testing.T) {
	c := NewConversation()
	// 100ms of silence then 100ms of speech, 4800 bytes each
	c.AppendInputAudio(make([]byte, 4800))
	speech := make([]byte, 4800)
	for i := range speech {
		speech[i] = 7
	}
	c.AppendInputAudio(speech)

	mustProcess(t, c, &events.SpeechStartedEvent{ItemID: "u", AudioStartMs: 100})
	mustProcess(t, c, &events.SpeechStoppedEvent{ItemID: "u", AudioEndMs: 200})
	assert.False(t, c.HasInputAudio())

	mustProcess(t, c, created(events.ConversationItem{ID: "u", Type: "message", Role: "user", Content: []events.ConversationItemContent{{Type: "input_audio"}}}))
	item, _ := c.Item("u")
	assert.Equal(t, speech, item.Formatted.Audio)

	// offsets keep counting from the start of the session
	c.AppendInputAudio(speech)
	mustProcess(t, c, &events.SpeechStartedEvent{ItemID: "v", AudioStartMs: 200})
	mustProcess(t, c, &events.SpeechStoppedEvent{ItemID: "v", AudioEndMs: 300})
	mustProcess(t, c, created(events.ConversationItem{ID: "v", Type: "message", Role: "user", Content: []events.ConversationItemContent{{Type: "input_audio"}}}))
	item, _ = c.Item("v")
	assert.Equal(t, speech, item.Formatted.Audio)
}

func TestConversation_CommittedInputAudio(t *testing.T) {
	c := NewConversation()
	c.AppendInputAudio([]byte{1, 2})
	assert.True(t, c.HasInputAudio())
	c.CommitInputAudio()
	assert.False(t, c.HasInputAudio())

	mustProcess(t, c, created(events.ConversationItem{ID: "u", Type: "message", Role: "user", Content: []events.ConversationItemContent{{Type: "input_audio"}}}))
	item, _ := c.Item("u")
	assert.Equal(t, []byte{1, 2}, item.Formatted.Audio)
}

func TestConversation_DeleteAndClear(t *testing.T) {
	c := NewConversation()
	mustProcess(t, c, created(events.ConversationItem{ID: "a", Type: "message", Role: "user"}))
	mustProcess(t, c, created(events.ConversationItem{ID: "b", Type: "message", Role: "assistant"}))
	mustProcess(t, c, created(events.ConversationItem{ID: "a", Type: "message", Role: "user"}))
	assert.Equal(t, []string{"a", "b"}, ids(c.Items()))

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))

	upd := mustProcess(t, c, &events.ConversationItemDeletedEvent{ItemID: "a"})
	assert.Nil(t, upd)
	upd = mustProcess(t, c, &events.ConversationItemDeletedEvent{ItemID: "b"})
	require.NotNil(t, upd)
	assert.Equal(t, "b", upd.Item.ID)
	assert.Empty(t, c.Items())

	assert.ErrorIs(t, c.SetFile("missing", "x.wav"), ErrItemNotFound)
	c.Clear()
	assert.Empty(t, c.Items())
}
