package openairt

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/codewandler/openairt-console/events"
)

const (
	ApiKeyEnvVarNameShort = "OPENAI_KEY"
	ApiKeyEnvVarNameLong  = "OPENAI_API_KEY"

	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-4o-realtime-preview-2024-10-01"
)

type clientConfig struct {
	url           string
	relayURL      string
	model         string
	apiKey        string
	instruction   string
	voice         string
	transcription string
	temperature   float64
	speed         float64
	dialTimeout   time.Duration
	closeTimeout  time.Duration
	turnDetection *events.TurnDetection
	logger        *slog.Logger
}

func (c *clientConfig) validate() error {
	if c.relayURL == "" && c.apiKey == "" {
		return fmt.Errorf("missing api key")
	}
	return nil
}

// endpoint returns the websocket URL to dial. A relay holds the credentials
// itself, so no key is required for it.
func (c *clientConfig) endpoint() (string, error) {
	raw := c.url
	if c.relayURL != "" {
		raw = c.relayURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if c.model != "" {
		q := u.Query()
		q.Set("model", c.model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *clientConfig) session() events.SessionUpdate {
	s := events.SessionUpdate{
		TurnDetection:     c.turnDetection,
		InputAudioFormat:  events.AudioFormatPCM16,
		OutputAudioFormat: events.AudioFormatPCM16,
		Modalities:        []string{events.ModalityText, events.ModalityAudio},
		Instructions:      c.instruction,
		Voice:             c.voice,
		Temperature:       c.temperature,
		Speed:             c.speed,
	}
	if c.transcription != "" {
		s.InputAudioTranscription = &events.Transcription{Model: c.transcription}
	}
	return s
}

type ClientOption func(*clientConfig)

func WithVoice(voice string) ClientOption {
	return func(config *clientConfig) {
		config.voice = voice
	}
}

func WithSpeed(speed float64) ClientOption {
	return func(config *clientConfig) {
		config.speed = speed
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientConfig) {
		o.logger = logger
	}
}

func WithDefaultLogger() ClientOption {
	return WithLogger(slog.Default())
}

func WithTemperature(temperature float64) ClientOption {
	return func(o *clientConfig) {
		o.temperature = temperature
	}
}

func WithModel(model string) ClientOption {
	return func(o *clientConfig) {
		o.model = model
	}
}

func WithKey(apiKey string) ClientOption {
	return func(o *clientConfig) {
		o.apiKey = apiKey
	}
}

func WithEnvKey(vars ...string) ClientOption {
	return func(o *clientConfig) {
		for _, envVarName := range vars {
			if k := os.Getenv(envVarName); k != "" {
				o.apiKey = k
				return
			}
		}
	}
}

// WithURL overrides the realtime endpoint.
func WithURL(u string) ClientOption {
	return func(o *clientConfig) {
		o.url = u
	}
}

// WithRelayURL routes the session through a relay server that adds the
// credentials upstream. An empty url keeps the direct connection.
func WithRelayURL(u string) ClientOption {
	return func(o *clientConfig) {
		o.relayURL = u
	}
}

func WithInstruction(instruction string) ClientOption {
	return func(o *clientConfig) {
		o.instruction = instruction
	}
}

// WithTranscription enables input audio transcription with the given model.
func WithTranscription(model string) ClientOption {
	return func(o *clientConfig) {
		o.transcription = model
	}
}

// WithTurnDetection sets the initial turn detection. nil means manual turns.
func WithTurnDetection(td *events.TurnDetection) ClientOption {
	return func(o *clientConfig) {
		o.turnDetection = td
	}
}

func WithDialTimeout(d time.Duration) ClientOption {
	return func(o *clientConfig) {
		o.dialTimeout = d
	}
}

func WithOptions(opts ...ClientOption) ClientOption {
	return func(o *clientConfig) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

func withDefaults() ClientOption {
	return WithOptions(
		WithLogger(slog.New(slog.DiscardHandler)),
		WithURL(DefaultURL),
		WithVoice("alloy"),
		WithTemperature(0.8),
		WithModel(DefaultModel),
		WithDialTimeout(10*time.Second),
		WithEnvKey(ApiKeyEnvVarNameShort, ApiKeyEnvVarNameLong),
		func(o *clientConfig) { o.closeTimeout = 2 * time.Second },
	)
}
