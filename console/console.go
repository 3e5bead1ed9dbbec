// Package console implements the session controller behind the realtime
// console: it owns the duplex session and the audio devices for the life of
// a connection and coordinates turn taking between the user and the agent.
package console

import (
	"context"
	"errors"
	"fmt"

	openairt "github.com/codewandler/openairt-console"
	"github.com/codewandler/openairt-console/audio"
	"github.com/codewandler/openairt-console/events"
	"github.com/codewandler/openairt-console/tool"
)

type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateDisconnecting State = "disconnecting"
)

// TurnMode decides who ends the user's turn: the user (manual push-to-talk)
// or the server's voice activity detection.
type TurnMode string

const (
	ModeManual        TurnMode = "manual"
	ModeVoiceActivity TurnMode = "voice_activity"
)

func ParseTurnMode(s string) (TurnMode, error) {
	switch TurnMode(s) {
	case ModeManual, "none":
		return ModeManual, nil
	case ModeVoiceActivity, "vad", "server_vad":
		return ModeVoiceActivity, nil
	}
	return "", fmt.Errorf("unknown turn mode %q", s)
}

func (m TurnMode) turnDetection() *events.TurnDetection {
	if m == ModeVoiceActivity {
		return &events.TurnDetection{Type: events.TurnDetectionServerVAD}
	}
	return nil
}

var (
	ErrInvalidState          = errors.New("invalid controller state")
	ErrNotConnected          = errors.New("not connected")
	ErrPushToTalkUnavailable = errors.New("push-to-talk is only available in manual mode")
)

const (
	StageTools    = "tools"
	StageCapture  = "capture"
	StagePlayback = "playback"
	StageSession  = "session"
)

// SessionError reports which part of a connect failed.
type SessionError struct {
	Stage string
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Stage, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Session is the duplex realtime session used by the controller.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect() error
	AddTool(t tool.Tool, h tool.Handler) error
	SetTurnDetection(td *events.TurnDetection) error
	AppendInputAudio(pcm []byte) error
	CreateResponse() error
	CancelResponse(itemID string, sampleCount int) error
	DeleteItem(id string) error
	SendUserMessageContent(content ...events.ConversationItemContent) error
	Items() []openairt.Item
	SetItemFile(id, path string) error

	OnRealtimeEvent(h func(openairt.RealtimeEvent))
	OnConversationUpdated(h func(item openairt.Item, delta *openairt.Delta))
	OnConversationInterrupted(h func())
	OnClose(h func(err error))
}

// Capture is the microphone pipeline.
type Capture interface {
	Begin(ctx context.Context) error
	Record(onFrame func(audio.Frame)) error
	Pause() error
	End() error
	Frequencies(band audio.Band) []float64
}

// Playback is the speaker pipeline.
type Playback interface {
	Connect(ctx context.Context) error
	Add16BitPCM(pcm []byte, trackID string)
	Interrupt() *audio.TrackOffset
	Close() error
	Frequencies(band audio.Band) []float64
}

var (
	_ Session  = (*openairt.Client)(nil)
	_ Capture  = (*audio.Recorder)(nil)
	_ Playback = (*audio.Player)(nil)
)
