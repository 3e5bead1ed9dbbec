package console

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	openairt "github.com/codewandler/openairt-console"
	"github.com/codewandler/openairt-console/audio"
	"github.com/codewandler/openairt-console/eventlog"
	"github.com/codewandler/openairt-console/events"
	"github.com/codewandler/openairt-console/internal/metrics"
	"github.com/codewandler/openairt-console/tool"
)

// Snapshot is the observable state of the controller.
type Snapshot struct {
	State         State
	Mode          TurnMode
	Recording     bool
	CanPushToTalk bool
	StartedAt     time.Time
	Items         []openairt.Item
	Events        []eventlog.Entry
}

// Controller owns a realtime session together with the capture and playback
// devices. UI operations are serialized; session events and capture frames
// arrive on their own goroutines.
type Controller struct {
	session  Session
	capture  Capture
	playback Playback
	log      *eventlog.Log

	logger   *slog.Logger
	metrics  *metrics.Metrics
	audioDir string
	greeting string
	tools    []tool.Definition
	onChange func()

	// op serializes UI operations
	op sync.Mutex

	mu        sync.Mutex
	state     State
	mode      TurnMode
	recording bool
	capturing bool
	startedAt time.Time
	items     []openairt.Item
}

func New(session Session, capture Capture, playback Playback, opts ...Option) *Controller {
	c := &Controller{
		session:  session,
		capture:  capture,
		playback: playback,
		log:      eventlog.New(),
		state:    StateDisconnected,
	}
	for _, opt := range append(defaults(), opts...) {
		opt(c)
	}

	session.OnRealtimeEvent(c.handleEvent)
	session.OnConversationUpdated(c.handleUpdate)
	session.OnConversationInterrupted(c.handleInterrupted)
	session.OnClose(c.handleClose)

	return c
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.notify()
}

// Connect opens capture, playback and the session, in that order. When any
// of them fails the others are closed again and a *SessionError is returned.
func (c *Controller) Connect(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.state = StateConnecting
	c.startedAt = time.Now()
	c.items = nil
	mode := c.mode
	c.mu.Unlock()
	c.log.Clear()
	c.notify()

	started := time.Now()
	if err := c.open(ctx, mode); err != nil {
		c.metrics.Connects.WithLabelValues("failed").Inc()
		c.logger.Error("connect failed", slog.Any("err", err))
		c.setState(StateDisconnected)
		return err
	}
	c.metrics.Connects.WithLabelValues("ok").Inc()
	c.metrics.ConnectDuration.Observe(time.Since(started).Seconds())
	c.metrics.SessionsActive.Inc()

	c.setState(StateConnected)
	c.logger.Info("connected", slog.String("mode", string(mode)))

	if c.greeting != "" {
		if err := c.session.SendUserMessageContent(events.ConversationItemContent{
			Type: events.ContentTypeInputText,
			Text: c.greeting,
		}); err != nil {
			c.logger.Warn("failed to send greeting", slog.Any("err", err))
		}
	}

	if mode == ModeVoiceActivity {
		if err := c.startForwarding(); err != nil {
			c.logger.Error("failed to start capture", slog.Any("err", err))
		}
	}

	c.refreshItems()
	c.notify()
	return nil
}

func (c *Controller) open(ctx context.Context, mode TurnMode) error {
	for _, def := range c.tools {
		if err := c.session.AddTool(def.Tool, def.Handler); err != nil {
			_ = c.session.Disconnect()
			return &SessionError{Stage: StageTools, Err: err}
		}
	}
	if err := c.session.SetTurnDetection(mode.turnDetection()); err != nil {
		_ = c.session.Disconnect()
		return &SessionError{Stage: StageSession, Err: err}
	}

	if err := c.capture.Begin(ctx); err != nil {
		_ = c.session.Disconnect()
		return &SessionError{Stage: StageCapture, Err: err}
	}
	if err := c.playback.Connect(ctx); err != nil {
		c.logIfErr("end capture", c.capture.End())
		_ = c.session.Disconnect()
		return &SessionError{Stage: StagePlayback, Err: err}
	}
	if err := c.session.Connect(ctx); err != nil {
		c.logIfErr("close playback", c.playback.Close())
		c.logIfErr("end capture", c.capture.End())
		_ = c.session.Disconnect()
		return &SessionError{Stage: StageSession, Err: err}
	}
	return nil
}

func (c *Controller) logIfErr(msg string, err error) {
	if err != nil {
		c.logger.Warn(msg, slog.Any("err", err))
	}
}

// Disconnect tears the session and devices down. It never fails; teardown
// errors are logged. The turn mode is kept for the next Connect.
func (c *Controller) Disconnect() error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	wasConnected := c.state == StateConnected
	if c.state == StateDisconnected {
		c.items = nil
		c.mu.Unlock()
		c.log.Clear()
		c.notify()
		return nil
	}
	c.state = StateDisconnecting
	c.recording = false
	c.capturing = false
	c.mu.Unlock()
	c.notify()

	c.logIfErr("disconnect session", c.session.Disconnect())
	c.logIfErr("end capture", c.capture.End())
	c.playback.Interrupt()
	c.logIfErr("close playback", c.playback.Close())

	if wasConnected {
		c.metrics.SessionsActive.Dec()
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.items = nil
	c.mu.Unlock()
	c.log.Clear()
	c.notify()

	c.logger.Info("disconnected")
	return nil
}

// SetTurnDetectionMode switches between manual and voice activity turns.
// Active capture is paused first; in voice activity mode it restarts right
// away when connected.
func (c *Controller) SetTurnDetectionMode(ctx context.Context, mode TurnMode) error {
	if mode != ModeManual && mode != ModeVoiceActivity {
		return ErrInvalidState
	}

	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	capturing := c.capturing
	connected := c.state == StateConnected
	c.mode = mode
	c.mu.Unlock()

	if capturing {
		c.logIfErr("pause capture", c.capture.Pause())
		c.mu.Lock()
		c.capturing = false
		c.recording = false
		c.mu.Unlock()
	}

	if err := c.session.SetTurnDetection(mode.turnDetection()); err != nil {
		c.notify()
		return err
	}

	if mode == ModeVoiceActivity && connected {
		if err := c.startForwarding(); err != nil {
			c.logger.Error("failed to start capture", slog.Any("err", err))
		}
	}

	c.notify()
	return nil
}

func (c *Controller) startForwarding() error {
	if err := c.capture.Record(c.forwardFrame); err != nil {
		return err
	}
	c.mu.Lock()
	c.capturing = true
	c.mu.Unlock()
	return nil
}

// forwardFrame runs on the capture goroutine and must not take c.mu.
func (c *Controller) forwardFrame(f audio.Frame) {
	if err := c.session.AppendInputAudio(f.PCM); err != nil {
		c.logger.Debug("dropping audio frame", slog.Any("err", err))
		return
	}
	c.metrics.AudioFramesSent.Inc()
	c.metrics.AudioBytesSent.Add(float64(len(f.PCM)))
}

// StartPushToTalk interrupts the agent and starts streaming the microphone.
// Failures to start capture are logged and leave Recording false.
func (c *Controller) StartPushToTalk(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.mode != ModeManual {
		c.mu.Unlock()
		return ErrPushToTalkUnavailable
	}
	if c.state != StateConnected {
		c.mu.Unlock()
		c.logger.Warn("push-to-talk ignored, not connected")
		return ErrNotConnected
	}
	if c.recording {
		c.mu.Unlock()
		return nil
	}
	c.recording = true
	c.mu.Unlock()
	c.notify()

	c.metrics.PushToTalkPresses.Inc()
	c.interrupt("push_to_talk")

	if err := c.startForwarding(); err != nil {
		c.logger.Error("failed to start capture", slog.Any("err", err))
		c.mu.Lock()
		c.recording = false
		c.mu.Unlock()
	}
	c.notify()
	return nil
}

// StopPushToTalk stops streaming and asks the agent to respond.
func (c *Controller) StopPushToTalk(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.mode != ModeManual {
		c.mu.Unlock()
		return ErrPushToTalkUnavailable
	}
	capturing := c.capturing
	connected := c.state == StateConnected
	c.recording = false
	c.capturing = false
	c.mu.Unlock()

	if capturing {
		c.logIfErr("pause capture", c.capture.Pause())
	}
	c.notify()

	if !connected {
		c.logger.Warn("not connected, skipping response request")
		return nil
	}
	return c.session.CreateResponse()
}

// interrupt stops playback and truncates the interrupted item at the sample
// offset that was actually played.
func (c *Controller) interrupt(trigger string) {
	off := c.playback.Interrupt()
	if off == nil {
		return
	}
	c.metrics.Interruptions.WithLabelValues(trigger).Inc()
	c.logger.Debug("playback interrupted",
		slog.String("trigger", trigger),
		slog.String("track_id", off.TrackID),
		slog.Int("offset", off.Offset),
	)
	if err := c.session.CancelResponse(off.TrackID, off.Offset); err != nil {
		c.logger.Warn("cancel response failed", slog.Any("err", err))
	}
}

// DeleteItem removes an item from the session and the local mirror. Unknown
// ids are ignored.
func (c *Controller) DeleteItem(id string) error {
	c.op.Lock()
	defer c.op.Unlock()

	if err := c.session.DeleteItem(id); err != nil {
		return err
	}
	c.refreshItems()
	c.notify()
	return nil
}

// SendText sends a typed user message and asks for a response.
func (c *Controller) SendText(text string) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return c.session.SendUserMessageContent(events.ConversationItemContent{
		Type: events.ContentTypeInputText,
		Text: text,
	})
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		State:         c.state,
		Mode:          c.mode,
		Recording:     c.recording,
		CanPushToTalk: c.mode == ModeManual,
		StartedAt:     c.startedAt,
		Items:         append([]openairt.Item(nil), c.items...),
	}
	c.mu.Unlock()
	s.Events = c.log.Entries()
	return s
}

func (c *Controller) InputFrequencies(band audio.Band) []float64 {
	return c.capture.Frequencies(band)
}

func (c *Controller) OutputFrequencies(band audio.Band) []float64 {
	return c.playback.Frequencies(band)
}

func (c *Controller) refreshItems() {
	items := c.session.Items()
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.items = items
	}
	c.mu.Unlock()
}

func (c *Controller) handleEvent(e openairt.RealtimeEvent) {
	c.log.Record(e)
	c.metrics.Events.WithLabelValues(string(e.Source), e.Event.EventType()).Inc()
	if e.Source == openairt.SourceServer && e.Event.EventType() == events.TypeError {
		c.metrics.ProtocolErrors.Inc()
	}
	c.notify()
}

func (c *Controller) handleUpdate(item openairt.Item, delta *openairt.Delta) {
	if delta != nil && len(delta.Audio) > 0 {
		c.playback.Add16BitPCM(delta.Audio, item.ID)
		c.metrics.AudioBytesQueued.Add(float64(len(delta.Audio)))
	}

	if c.audioDir != "" && item.Status == openairt.StatusCompleted &&
		len(item.Formatted.Audio) > 0 && item.Formatted.File == "" {
		path := filepath.Join(c.audioDir, item.ID+".wav")
		if err := audio.WriteWAVFile(path, item.Formatted.Audio); err != nil {
			c.logger.Warn("failed to write item audio", slog.String("item_id", item.ID), slog.Any("err", err))
		} else {
			c.logIfErr("set item file", c.session.SetItemFile(item.ID, path))
		}
	}

	c.refreshItems()
	c.notify()
}

func (c *Controller) handleInterrupted() {
	c.interrupt("server_vad")
}

func (c *Controller) handleClose(err error) {
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		return
	}
	c.logger.Warn("session closed by server", slog.Any("err", err))
	go func() { _ = c.Disconnect() }()
}
