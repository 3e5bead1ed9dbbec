package openairt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/openairt-console/events"
	"github.com/codewandler/openairt-console/tool"
)

func connectClient(t *testing.T, f *fakeRealtime, opts ...ClientOption) *Client {
	t.Helper()
	c := New(append([]ClientOption{WithURL(f.url()), WithKey("sk-test")}, opts...)...)
	for _, def := range tool.Arithmetic() {
		require.NoError(t, c.AddTool(def.Tool, def.Handler))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

func TestClient_ConnectHandshake(t *testing.T) {
	f := newFakeRealtime(t)
	c := connectClient(t, f, WithInstruction("be brief"), WithTranscription("whisper-1"))

	h := <-f.header
	assert.Equal(t, "Bearer sk-test", h.Get("Authorization"))
	assert.Equal(t, "realtime=v1", h.Get("OpenAI-Beta"))

	update := f.next("session.update")
	session := update["session"].(map[string]any)
	v, ok := session["turn_detection"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, "auto", session["tool_choice"])
	assert.Len(t, session["tools"], 4)
	assert.Equal(t, "be brief", session["instructions"])
	assert.Equal(t, map[string]any{"model": "whisper-1"}, session["input_audio_transcription"])

	assert.True(t, c.IsConnected())
	require.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)

	require.NoError(t, c.Disconnect())
	assert.False(t, c.IsConnected())
	assert.Empty(t, c.Tools())
	assert.ErrorIs(t, c.CreateResponse(), ErrNotConnected)
	require.NoError(t, c.Disconnect())
}

func TestClient_MissingKey(t *testing.T) {
	t.Setenv(ApiKeyEnvVarNameLong, "")
	t.Setenv(ApiKeyEnvVarNameShort, "")

	c := New()
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing api key")
}

func TestClient_RelaySkipsCredentials(t *testing.T) {
	t.Setenv(ApiKeyEnvVarNameLong, "")
	t.Setenv(ApiKeyEnvVarNameShort, "")
	f := newFakeRealtime(t)

	c := New(WithRelayURL(f.url()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	h := <-f.header
	assert.Empty(t, h.Get("Authorization"))
}

func TestClient_CreateResponseCommitsManualAudio(t *testing.T) {
	f := newFakeRealtime(t)
	c := connectClient(t, f)
	f.next("session.update")

	pcm := []byte{1, 0, 2, 0}
	require.NoError(t, c.AppendInputAudio(pcm))
	require.NoError(t, c.AppendInputAudio(nil))
	appended := f.nextAny()
	assert.Equal(t, "input_audio_buffer.append", appended["type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(pcm), appended["audio"])

	require.NoError(t, c.CreateResponse())
	assert.Equal(t, "input_audio_buffer.commit", f.nextAny()["type"])
	assert.Equal(t, "response.create", f.nextAny()["type"])

	// nothing buffered: no second commit
	require.NoError(t, c.CreateResponse())
	assert.Equal(t, "response.create", f.nextAny()["type"])

	require.NoError(t, c.SetTurnDetection(&events.TurnDetection{Type: events.TurnDetectionServerVAD}))
	update := f.nextAny()
	assert.Equal(t, "session.update", update["type"])
	assert.Equal(t, map[string]any{"type": "server_vad"}, update["session"].(map[string]any)["turn_detection"])

	require.NoError(t, c.AppendInputAudio(pcm))
	assert.Equal(t, "input_audio_buffer.append", f.nextAny()["type"])
	require.NoError(t, c.CreateResponse())
	assert.Equal(t, "response.create", f.nextAny()["type"])
}

func TestClient_ToolCallDispatch(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		args   string
		output string
	}{
		{"sum", tool.NameSum, `{"values":[1,2]}`, `{"result":3}`},
		{"division by zero", tool.NameQuotient, `{"dividend":1,"divisor":0}`, `{"error":"Division by zero is not allowed"}`},
		{"empty difference", tool.NameDifference, `{"values":[]}`, `{"error":"` + tool.ErrEmptyValues.Error() + `"}`},
		{"unknown tool", "calculate_power", `{}`, `{"error":"tool \"calculate_power\" is not registered"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeRealtime(t)
			connectClient(t, f)
			f.next("session.update")

			f.send(map[string]any{
				"type": "conversation.item.created",
				"item": map[string]any{"id": "item_fn", "type": "function_call", "call_id": "call_1", "name": tt.tool, "arguments": ""},
			})
			f.send(map[string]any{
				"type":    "response.function_call_arguments.delta",
				"item_id": "item_fn",
				"call_id": "call_1",
				"delta":   tt.args,
			})
			f.send(map[string]any{
				"type": "response.output_item.done",
				"item": map[string]any{"id": "item_fn", "type": "function_call", "status": "completed", "call_id": "call_1", "name": tt.tool, "arguments": tt.args},
			})

			created := f.next("conversation.item.create")
			item := created["item"].(map[string]any)
			assert.Equal(t, "function_call_output", item["type"])
			assert.Equal(t, "call_1", item["call_id"])
			assert.JSONEq(t, tt.output, item["output"].(string))
			assert.Equal(t, "response.create", f.nextAny()["type"])
		})
	}
}

func assistantAudioItem(f *fakeRealtime, id string) {
	f.send(map[string]any{
		"type": "conversation.item.created",
		"item": map[string]any{
			"id":      id,
			"type":    "message",
			"role":    "assistant",
			"status":  "in_progress",
			"content": []map[string]any{{"type": "audio"}},
		},
	})
}

func TestClient_CancelResponseTruncates(t *testing.T) {
	f := newFakeRealtime(t)
	c := connectClient(t, f)
	f.next("session.update")

	assistantAudioItem(f, "item_a")
	require.Eventually(t, func() bool { _, ok := c.Item("item_a"); return ok }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.CancelResponse("item_a", 48_000))
	assert.Equal(t, "response.cancel", f.nextAny()["type"])
	truncate := f.nextAny()
	assert.Equal(t, "conversation.item.truncate", truncate["type"])
	assert.Equal(t, "item_a", truncate["item_id"])
	assert.EqualValues(t, 0, truncate["content_index"])
	assert.EqualValues(t, 2000, truncate["audio_end_ms"])

	assert.ErrorIs(t, c.CancelResponse("missing", 10), ErrItemNotFound)

	require.NoError(t, c.CancelResponse("", 0))
	assert.Equal(t, "response.cancel", f.nextAny()["type"])
}

func TestClient_ConversationCallbacks(t *testing.T) {
	f := newFakeRealtime(t)
	c := New(WithURL(f.url()), WithKey("sk-test"))

	var (
		mu          sync.Mutex
		seen        []RealtimeEvent
		audio       []byte
		interrupted int
		errs        []*events.ErrorEvent
	)
	c.OnRealtimeEvent(func(e RealtimeEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
	})
	c.OnConversationUpdated(func(item Item, delta *Delta) {
		mu.Lock()
		defer mu.Unlock()
		if delta != nil {
			audio = append(audio, delta.Audio...)
		}
	})
	c.OnConversationInterrupted(func() {
		mu.Lock()
		defer mu.Unlock()
		interrupted++
	})
	c.OnError(func(e *events.ErrorEvent) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, e)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	assistantAudioItem(f, "item_a")
	f.send(map[string]any{"type": "response.audio.delta", "item_id": "item_a", "delta": base64.StdEncoding.EncodeToString([]byte{9, 8, 7, 6})})
	f.send(map[string]any{"type": "input_audio_buffer.speech_started", "item_id": "item_u", "audio_start_ms": 0})
	f.send(map[string]any{"type": "error", "error": map[string]any{"type": "invalid_request_error", "message": "nope"}})
	f.send(map[string]any{"type": "something.new", "event_id": "srv_x"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1 && len(seen) >= 8
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte{9, 8, 7, 6}, audio)
	assert.Equal(t, 1, interrupted)
	assert.Equal(t, "nope", errs[0].ErrorDetail.Message)

	assert.Equal(t, SourceServer, seen[0].Source)
	assert.Equal(t, events.TypeSessionCreated, seen[0].Event.EventType())
	assert.Equal(t, SourceClient, seen[1].Source)
	assert.Equal(t, events.TypeSessionUpdate, seen[1].Event.EventType())

	last := seen[len(seen)-1]
	opaque, ok := last.Event.(*events.Opaque)
	require.True(t, ok)
	assert.Equal(t, "srv_x", opaque.ID())

	item, ok := c.Item("item_a")
	require.True(t, ok)
	assert.Equal(t, []byte{9, 8, 7, 6}, item.Formatted.Audio)
}

func TestClient_DeleteItem(t *testing.T) {
	f := newFakeRealtime(t)
	c := connectClient(t, f)
	f.next("session.update")

	require.NoError(t, c.DeleteItem("missing"))

	assistantAudioItem(f, "item_a")
	require.Eventually(t, func() bool { return len(c.Items()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.DeleteItem("item_a"))
	del := f.nextAny()
	assert.Equal(t, "conversation.item.delete", del["type"])
	assert.Equal(t, "item_a", del["item_id"])
	assert.Empty(t, c.Items())
}

func TestClient_SendUserMessageContent(t *testing.T) {
	f := newFakeRealtime(t)
	c := connectClient(t, f)
	f.next("session.update")

	require.NoError(t, c.SendUserMessageContent(events.ConversationItemContent{Type: events.ContentTypeInputText, Text: "Hello!"}))
	created := f.nextAny()
	assert.Equal(t, "conversation.item.create", created["type"])

	raw, err := json.Marshal(created["item"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","role":"user","content":[{"type":"input_text","text":"Hello!"}]}`, string(raw))
	assert.Equal(t, "response.create", f.nextAny()["type"])

	require.NoError(t, c.UserInput("quiet", false))
	assert.Equal(t, "conversation.item.create", f.nextAny()["type"])
}

func TestClient_OnCloseWhenServerDrops(t *testing.T) {
	f := newFakeRealtime(t)
	c := connectClient(t, f)

	closed := make(chan struct{})
	c.OnClose(func(error) { close(closed) })

	f.mu.Lock()
	_ = f.conn.Close()
	f.mu.Unlock()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called")
	}
	assert.False(t, c.IsConnected())
}
