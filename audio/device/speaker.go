package device

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/codewandler/openairt-console/audio"
)

const defaultLatency = 200 * time.Millisecond

type SpeakerOption func(*Speaker)

// WithSpeakerSampleRate runs the device at rate. Player output is resampled
// from audio.SampleRate when the rates differ.
func WithSpeakerSampleRate(rate int) SpeakerOption {
	return func(s *Speaker) { s.sampleRate = rate }
}

// WithLatency sets the device buffer size.
func WithLatency(d time.Duration) SpeakerOption {
	return func(s *Speaker) { s.latency = d }
}

func WithSpeakerLogger(logger *slog.Logger) SpeakerOption {
	return func(s *Speaker) { s.logger = logger }
}

// Speaker plays a Streamer on the default output device. beep's speaker is
// process-global, so only one Speaker may be started at a time.
type Speaker struct {
	sampleRate int
	latency    time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
}

var _ audio.Output = (*Speaker)(nil)

func NewSpeaker(opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		sampleRate: audio.SampleRate,
		latency:    defaultLatency,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Latency is the size of the device buffer.
func (s *Speaker) Latency() time.Duration {
	return s.latency
}

func (s *Speaker) Start(src audio.Streamer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	sr := beep.SampleRate(s.sampleRate)
	if err := speaker.Init(sr, sr.N(s.latency)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	var stream beep.Streamer = src
	if s.sampleRate != audio.SampleRate {
		stream = beep.Resample(3, beep.SampleRate(audio.SampleRate), sr, stream)
	}
	speaker.Play(stream)
	s.started = true

	s.logger.Debug("speaker started",
		slog.Int("sample_rate", s.sampleRate),
		slog.Duration("latency", s.latency),
	)
	return nil
}

func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	s.started = false
	return nil
}
