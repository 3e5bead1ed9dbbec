package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/MarkKremer/microphone/v2"
	"github.com/gopxl/beep/v2"

	"github.com/codewandler/openairt-console/audio"
)

const captureFrames = 1024

type MicrophoneOption func(*Microphone)

// WithMicrophoneSampleRate opens the device at rate instead of
// audio.SampleRate. The recorder resamples frames to the session rate.
func WithMicrophoneSampleRate(rate int) MicrophoneOption {
	return func(m *Microphone) { m.sampleRate = rate }
}

func WithMicrophoneLogger(logger *slog.Logger) MicrophoneOption {
	return func(m *Microphone) { m.logger = logger }
}

// Microphone captures the default input device.
type Microphone struct {
	sampleRate int
	logger     *slog.Logger
}

var _ audio.Input = (*Microphone)(nil)

func NewMicrophone(opts ...MicrophoneOption) *Microphone {
	m := &Microphone{
		sampleRate: audio.SampleRate,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}

// Open starts the default input stream. The returned reader yields 16-bit
// mono PCM until it is closed.
func (m *Microphone) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mic, _, err := microphone.OpenDefaultStream(beep.SampleRate(m.sampleRate), 1)
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	mic.Start()

	pr, pw := io.Pipe()
	s := &micStream{
		pr:   pr,
		pw:   pw,
		mic:  mic,
		done: make(chan struct{}),
	}
	go s.capture(m.logger)

	m.logger.Debug("microphone opened", slog.Int("sample_rate", m.sampleRate))
	return s, nil
}

// micStream pumps samples from the device into a pipe. Only the capture
// goroutine touches the device; Close unblocks readers immediately and the
// device is released once the pending device read returns.
type micStream struct {
	pr   *io.PipeReader
	pw   *io.PipeWriter
	mic  *microphone.Streamer
	once sync.Once
	done chan struct{}
}

func (s *micStream) capture(logger *slog.Logger) {
	defer func() {
		s.mic.Stop()
		s.mic.Close()
	}()

	frames := make([][2]float64, captureFrames)
	buf := make([]byte, captureFrames*2)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, ok := s.mic.Stream(frames)
		if !ok {
			err := s.mic.Err()
			if err != nil {
				logger.Error("microphone stream failed", slog.Any("err", err))
			}
			_ = s.pw.CloseWithError(err)
			return
		}
		if n == 0 {
			continue
		}
		if _, err := s.pw.Write(samplesToPCM16(buf, frames[:n])); err != nil {
			if !errors.Is(err, io.ErrClosedPipe) {
				logger.Error("microphone write failed", slog.Any("err", err))
			}
			return
		}
	}
}

func (s *micStream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

func (s *micStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.pr.Close()
	})
	return nil
}
