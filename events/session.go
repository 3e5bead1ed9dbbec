package events

import "github.com/codewandler/openairt-console/tool"

type AudioFormat string

const (
	AudioFormatPCM16 AudioFormat = "pcm16"
)

const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

type Session struct {
	ID                      string         `json:"id,omitempty"`
	Object                  string         `json:"object,omitempty"`
	ExpiresAt               int64          `json:"expires_at,omitempty"`
	TurnDetection           *TurnDetection `json:"turn_detection,omitempty"`
	InputAudioFormat        AudioFormat    `json:"input_audio_format,omitempty"`
	InputAudioTranscription *Transcription `json:"input_audio_transcription,omitempty"`
	Model                   string         `json:"model,omitempty"`
	Modalities              []string       `json:"modalities,omitempty"`
	Instructions            string         `json:"instructions,omitempty"`
	Voice                   string         `json:"voice,omitempty"`
	OutputAudioFormat       AudioFormat    `json:"output_audio_format,omitempty"`
	ToolChoice              tool.Choice    `json:"tool_choice,omitempty"`
	Temperature             float64        `json:"temperature,omitempty"`
	MaxResponseOutputTokens any            `json:"max_response_output_tokens,omitempty"`
	Speed                   float64        `json:"speed,omitempty"`
	Tools                   []tool.Tool    `json:"tools,omitempty"`
}

// SessionUpdate is the full session configuration sent with session.update.
// TurnDetection is always serialized: null disables server side voice
// activity detection and leaves turn boundaries to the client.
type SessionUpdate struct {
	TurnDetection           *TurnDetection `json:"turn_detection"`
	InputAudioFormat        AudioFormat    `json:"input_audio_format,omitempty"`
	InputAudioTranscription *Transcription `json:"input_audio_transcription,omitempty"`
	Modalities              []string       `json:"modalities,omitempty"`
	Instructions            string         `json:"instructions,omitempty"`
	Voice                   string         `json:"voice,omitempty"`
	OutputAudioFormat       AudioFormat    `json:"output_audio_format,omitempty"`
	Temperature             float64        `json:"temperature,omitempty"`
	MaxResponseOutputTokens string         `json:"max_response_output_tokens,omitempty"`
	Speed                   float64        `json:"speed,omitempty"`
	Tools                   []tool.Tool    `json:"tools,omitempty"`
	ToolChoice              tool.Choice    `json:"tool_choice,omitempty"`
}

const TurnDetectionServerVAD = "server_vad"

// TurnDetection holds the VAD configuration.
type TurnDetection struct {
	Type              string  `json:"type,omitempty"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    bool    `json:"create_response,omitempty"`
	InterruptResponse bool    `json:"interrupt_response,omitempty"`
}

type Transcription struct {
	Model string `json:"model"`
}
