package openairt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/codewandler/openairt-console/audio"
	"github.com/codewandler/openairt-console/events"
	"github.com/codewandler/openairt-console/internal/websocket"
	"github.com/codewandler/openairt-console/tool"
)

var (
	ErrNotConnected     = errors.New("realtime client not connected")
	ErrAlreadyConnected = errors.New("realtime client already connected")
)

type Source string

const (
	SourceClient Source = "client"
	SourceServer Source = "server"
)

// RealtimeEvent is a protocol event observed on the session, in either
// direction.
type RealtimeEvent struct {
	Time   time.Time
	Source Source
	Event  events.Event
}

type handshake struct {
	created chan struct{}
	updated chan struct{}
	failed  chan error
}

// Client is a duplex realtime session. It keeps the session configuration,
// the conversation built from server events and the tools the model may call.
type Client struct {
	config       *clientConfig
	logger       *slog.Logger
	tools        *tool.Registry
	conversation *Conversation

	mu        sync.Mutex
	ws        *websocket.Client
	gen       int
	connected bool
	session   events.SessionUpdate
	hs        *handshake
	runCtx    context.Context
	runCancel context.CancelFunc

	hmu           sync.RWMutex
	onEvent       func(RealtimeEvent)
	onUpdated     func(Item, *Delta)
	onInterrupted func()
	onError       func(*events.ErrorEvent)
	onClose       func(error)
}

func New(opts ...ClientOption) *Client {
	config := &clientConfig{}
	withDefaults()(config)
	WithOptions(opts...)(config)

	return &Client{
		config:       config,
		logger:       config.logger,
		tools:        tool.NewRegistry(),
		conversation: NewConversation(),
		session:      config.session(),
	}
}

// OnRealtimeEvent is called for every event sent or received.
func (c *Client) OnRealtimeEvent(h func(RealtimeEvent)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onEvent = h
}

// OnConversationUpdated is called whenever a server event changes an item.
func (c *Client) OnConversationUpdated(h func(item Item, delta *Delta)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onUpdated = h
}

// OnConversationInterrupted is called when the server detects the user
// starting to speak.
func (c *Client) OnConversationInterrupted(h func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onInterrupted = h
}

func (c *Client) OnError(h func(e *events.ErrorEvent)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onError = h
}

// OnClose is called when the connection drops without Disconnect.
func (c *Client) OnClose(h func(err error)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onClose = h
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect dials the realtime endpoint and completes the session handshake:
// it waits for session.created, sends the session configuration and waits
// for the server to acknowledge it.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.config.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	endpoint, err := c.config.endpoint()
	if err != nil {
		return err
	}

	hs := &handshake{
		created: make(chan struct{}, 1),
		updated: make(chan struct{}, 1),
		failed:  make(chan error, 1),
	}

	c.mu.Lock()
	if c.ws != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.gen++
	gen := c.gen
	c.hs = hs
	c.mu.Unlock()

	headers := http.Header{}
	if c.config.relayURL == "" {
		headers.Add("Authorization", fmt.Sprintf("Bearer %s", c.config.apiKey))
		headers.Add("OpenAI-Beta", "realtime=v1")
	}

	ws, err := websocket.Connect(ctx, websocket.ClientConfig{
		URL:         endpoint,
		DialTimeout: c.config.dialTimeout,
		Headers:     headers,
		Logger:      c.logger,
		OnText:      c.handleMessage,
		OnClose:     func(err error) { c.connectionClosed(gen, err) },
	})
	if err != nil {
		c.mu.Lock()
		c.hs = nil
		c.mu.Unlock()
		return fmt.Errorf("connect realtime: %w", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.ws = ws
	c.runCtx, c.runCancel = runCtx, runCancel
	c.mu.Unlock()

	if err := c.awaitHandshake(ctx, ws, hs); err != nil {
		_ = c.Disconnect()
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.hs = nil
	c.mu.Unlock()

	c.logger.Info("realtime session ready", slog.String("url", endpoint))
	return nil
}

func (c *Client) awaitHandshake(ctx context.Context, ws *websocket.Client, hs *handshake) error {
	wait := func(ch <-chan struct{}, stage string) error {
		select {
		case <-ch:
			return nil
		case err := <-hs.failed:
			return fmt.Errorf("%s: %w", stage, err)
		case <-ws.Done():
			return fmt.Errorf("%s: %w", stage, websocket.ErrClosed)
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", stage, ctx.Err())
		}
	}

	if err := wait(hs.created, "waiting for session.created"); err != nil {
		return err
	}
	if err := c.sendSessionUpdate(); err != nil {
		return err
	}
	return wait(hs.updated, "waiting for session.updated")
}

// Disconnect closes the connection and clears the conversation and the
// registered tools. It is a no-op when not connected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	ws := c.ws
	cancel := c.runCancel
	c.ws = nil
	c.connected = false
	c.hs = nil
	c.runCancel = nil
	c.gen++
	c.mu.Unlock()

	c.conversation.Clear()
	c.tools.Clear()

	if ws == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), c.config.closeTimeout)
	defer done()
	return ws.Close(ctx)
}

// Reset disconnects and restores the session configuration given to New.
func (c *Client) Reset() error {
	err := c.Disconnect()
	c.mu.Lock()
	c.session = c.config.session()
	c.mu.Unlock()
	return err
}

func (c *Client) connectionClosed(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.connected = false
	if c.runCancel != nil {
		c.runCancel()
		c.runCancel = nil
	}
	c.mu.Unlock()

	c.logger.Warn("realtime connection closed", slog.Any("err", err))

	c.hmu.RLock()
	h := c.onClose
	c.hmu.RUnlock()
	if h != nil {
		h(err)
	}
}

// Send writes evt to the server and reports it as a client event.
func (c *Client) Send(evt events.Event) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.EventType(), err)
	}
	if err := ws.WriteText(data); err != nil {
		return fmt.Errorf("send %s: %w", evt.EventType(), err)
	}

	c.emit(RealtimeEvent{Time: time.Now(), Source: SourceClient, Event: evt})
	return nil
}

func (c *Client) emit(e RealtimeEvent) {
	c.hmu.RLock()
	h := c.onEvent
	c.hmu.RUnlock()
	if h != nil {
		h(e)
	}
}

func (c *Client) sessionConfig() events.SessionUpdate {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if defs := c.tools.Definitions(); len(defs) > 0 {
		s.Tools = defs
		s.ToolChoice = tool.ChoiceAuto
	}
	return s
}

func (c *Client) sendSessionUpdate() error {
	return c.Send(events.SessionUpdateEvent{
		BaseEvent: events.NewBaseEvent(events.TypeSessionUpdate),
		Session:   c.sessionConfig(),
	})
}

// UpdateSession applies fn to the session configuration. The new
// configuration is sent right away when connected and on the next Connect
// otherwise.
func (c *Client) UpdateSession(fn func(s *events.SessionUpdate)) error {
	c.mu.Lock()
	fn(&c.session)
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.sendSessionUpdate()
}

// SetTurnDetection switches between server voice activity detection and
// manual turns (nil).
func (c *Client) SetTurnDetection(td *events.TurnDetection) error {
	return c.UpdateSession(func(s *events.SessionUpdate) {
		s.TurnDetection = td
	})
}

func (c *Client) TurnDetection() *events.TurnDetection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.TurnDetection
}

// Session returns the current session configuration including tools.
func (c *Client) Session() events.SessionUpdate {
	return c.sessionConfig()
}

// AddTool registers a tool the model may call. Tools live until Disconnect.
func (c *Client) AddTool(t tool.Tool, h tool.Handler) error {
	if err := c.tools.Register(t, h); err != nil {
		return err
	}
	if c.IsConnected() {
		return c.sendSessionUpdate()
	}
	return nil
}

func (c *Client) Tools() []tool.Tool {
	return c.tools.Definitions()
}

// AppendInputAudio streams PCM16 mono audio at audio.SampleRate to the
// server's input buffer.
func (c *Client) AppendInputAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := c.Send(events.InputAudioBufferAppendEvent{
		BaseEvent: events.NewBaseEvent(events.TypeInputAudioBufferAppend),
		Audio:     base64.StdEncoding.EncodeToString(pcm),
	}); err != nil {
		return err
	}
	c.conversation.AppendInputAudio(pcm)
	return nil
}

// CreateResponse asks the model to respond. With manual turns any buffered
// input audio is committed first.
func (c *Client) CreateResponse() error {
	if c.TurnDetection() == nil && c.conversation.HasInputAudio() {
		if err := c.Send(events.InputAudioBufferCommitEvent{
			BaseEvent: events.NewBaseEvent(events.TypeInputAudioBufferCommit),
		}); err != nil {
			return err
		}
		c.conversation.CommitInputAudio()
	}

	return c.Send(events.ResponseCreateEvent{
		BaseEvent: events.NewBaseEvent(events.TypeResponseCreate),
	})
}

// CancelResponse cancels the in-flight response. When itemID is set the
// assistant item is also truncated to the audio the user actually heard,
// sampleCount samples at audio.SampleRate.
func (c *Client) CancelResponse(itemID string, sampleCount int) error {
	if itemID == "" {
		return c.Send(events.ResponseCancelEvent{
			BaseEvent: events.NewBaseEvent(events.TypeResponseCancel),
		})
	}

	item, ok := c.conversation.Item(itemID)
	if !ok {
		return fmt.Errorf("cancel response: %w: %s", ErrItemNotFound, itemID)
	}
	if item.Type != events.ItemTypeMessage || item.Role != RoleAssistant {
		return fmt.Errorf("cancel response: item %s is not an assistant message", itemID)
	}

	if err := c.Send(events.ResponseCancelEvent{
		BaseEvent: events.NewBaseEvent(events.TypeResponseCancel),
	}); err != nil {
		return err
	}

	contentIndex := -1
	for i, part := range item.Content {
		if part.Type == events.ContentTypeAudio {
			contentIndex = i
			break
		}
	}
	if contentIndex < 0 {
		return fmt.Errorf("cancel response: item %s has no audio", itemID)
	}

	return c.Send(events.ConversationItemTruncateEvent{
		BaseEvent:    events.NewBaseEvent(events.TypeConversationItemTruncate),
		ItemID:       itemID,
		ContentIndex: contentIndex,
		AudioEndMs:   sampleCount * 1000 / audio.SampleRate,
	})
}

// DeleteItem removes an item from the server conversation and the local
// store. Unknown ids are ignored.
func (c *Client) DeleteItem(id string) error {
	if _, ok := c.conversation.Item(id); !ok {
		return nil
	}
	if err := c.Send(events.ConversationItemDeleteEvent{
		BaseEvent: events.NewBaseEvent(events.TypeConversationItemDelete),
		ItemID:    id,
	}); err != nil {
		return err
	}
	c.conversation.Remove(id)
	return nil
}

// SendUserMessageContent adds a user message and requests a response.
func (c *Client) SendUserMessageContent(content ...events.ConversationItemContent) error {
	if len(content) > 0 {
		if err := c.Send(events.ConversationItemCreateEvent{
			BaseEvent: events.NewBaseEvent(events.TypeConversationItemCreate),
			Item: events.ConversationItem{
				Type:    events.ItemTypeMessage,
				Role:    string(RoleUser),
				Content: content,
			},
		}); err != nil {
			return err
		}
	}
	return c.CreateResponse()
}

// UserInput sends a text message, optionally asking for a response.
func (c *Client) UserInput(text string, respond bool) error {
	part := events.ConversationItemContent{Type: events.ContentTypeInputText, Text: text}
	if respond {
		return c.SendUserMessageContent(part)
	}
	return c.Send(events.ConversationItemCreateEvent{
		BaseEvent: events.NewBaseEvent(events.TypeConversationItemCreate),
		Item: events.ConversationItem{
			Type:    events.ItemTypeMessage,
			Role:    string(RoleUser),
			Content: []events.ConversationItemContent{part},
		},
	})
}

func (c *Client) Items() []Item {
	return c.conversation.Items()
}

func (c *Client) Item(id string) (Item, bool) {
	return c.conversation.Item(id)
}

// SetItemFile records where the decoded audio of an item was written.
func (c *Client) SetItemFile(id, path string) error {
	return c.conversation.SetFile(id, path)
}

func (c *Client) handleMessage(data []byte) error {
	evt, err := events.ParseServer(data)
	if err != nil {
		c.logger.Error("failed to parse server event", slog.Any("err", err))
		return nil
	}

	c.emit(RealtimeEvent{Time: time.Now(), Source: SourceServer, Event: evt})

	switch e := evt.(type) {
	case *events.SessionCreatedEvent:
		c.signal(func(hs *handshake) { notify(hs.created) })
	case *events.SessionUpdatedEvent:
		c.signal(func(hs *handshake) { notify(hs.updated) })
	case *events.ErrorEvent:
		c.logger.Warn("realtime error", slog.String("type", e.ErrorDetail.Type), slog.String("message", e.ErrorDetail.Message))
		c.signal(func(hs *handshake) {
			select {
			case hs.failed <- e:
			default:
			}
		})
		c.hmu.RLock()
		h := c.onError
		c.hmu.RUnlock()
		if h != nil {
			h(e)
		}
	}

	upd, err := c.conversation.Process(evt)
	if err != nil {
		c.logger.Warn("conversation update failed", slog.String("event", evt.EventType()), slog.Any("err", err))
	}

	if _, ok := evt.(*events.SpeechStartedEvent); ok {
		c.hmu.RLock()
		h := c.onInterrupted
		c.hmu.RUnlock()
		if h != nil {
			h()
		}
	}

	if upd == nil {
		return nil
	}

	c.hmu.RLock()
	h := c.onUpdated
	c.hmu.RUnlock()
	if h != nil {
		h(upd.Item, upd.Delta)
	}

	if upd.Completed && upd.Item.Type == events.ItemTypeFunctionCall && upd.Item.Formatted.Tool != nil {
		c.callTool(*upd.Item.Formatted.Tool)
	}
	return nil
}

func (c *Client) signal(fn func(hs *handshake)) {
	c.mu.Lock()
	hs := c.hs
	c.mu.Unlock()
	if hs != nil {
		fn(hs)
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (c *Client) callTool(call ToolCall) {
	c.mu.Lock()
	ctx := c.runCtx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	output := c.runTool(ctx, call)
	c.logger.Debug("tool call", slog.String("name", call.Name), slog.String("args", call.Arguments), slog.String("output", output))

	if err := c.Send(events.ConversationItemCreateEvent{
		BaseEvent: events.NewBaseEvent(events.TypeConversationItemCreate),
		Item: events.ConversationItem{
			Type:   events.ItemTypeFunctionCallOutput,
			CallID: call.CallID,
			Output: output,
		},
	}); err != nil {
		c.logger.Error("failed to send tool output", slog.Any("err", err))
		return
	}
	if err := c.CreateResponse(); err != nil {
		c.logger.Error("failed to request response after tool call", slog.Any("err", err))
	}
}

func (c *Client) runTool(ctx context.Context, call ToolCall) string {
	toolError := func(err error) string {
		d, _ := json.Marshal(map[string]any{"error": err.Error()})
		return string(d)
	}

	res, err := c.tools.Call(ctx, call.Name, json.RawMessage(call.Arguments))
	if err != nil {
		return toolError(err)
	}
	if res == nil {
		d, _ := json.Marshal(map[string]any{"success": true})
		return string(d)
	}
	d, err := json.Marshal(res)
	if err != nil {
		return toolError(err)
	}
	return string(d)
}
