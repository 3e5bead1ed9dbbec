package audio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

type RecorderStatus string

const (
	StatusEnded     RecorderStatus = "ended"
	StatusPaused    RecorderStatus = "paused"
	StatusRecording RecorderStatus = "recording"
)

type RecorderOption func(*Recorder)

// WithFrameDuration sets the amount of audio delivered per frame.
func WithFrameDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.frameDuration = d }
}

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// Recorder captures microphone audio. Begin opens the device, Record starts
// delivering frames, Pause stops delivering them and End releases the device.
// Frames captured while paused only feed the analyser.
type Recorder struct {
	in            Input
	frameDuration time.Duration
	logger        *slog.Logger
	analyser      *Analyser

	mu         sync.Mutex
	src        io.ReadCloser
	readerDone chan struct{}

	fmu         sync.Mutex
	frames      chan Frame
	forwardDone chan struct{}
}

func NewRecorder(in Input, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		in:            in,
		frameDuration: 100 * time.Millisecond,
		logger:        slog.Default(),
		analyser:      NewAnalyser(SampleRate),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "recorder"))
	return r
}

// Begin acquires the input device.
func (r *Recorder) Begin(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.src != nil {
		return ErrAlreadyBegun
	}
	src, err := r.in.Open(ctx)
	if err != nil {
		return err
	}

	r.src = src
	r.readerDone = make(chan struct{})
	go r.readLoop(src, r.readerDone)

	r.logger.Debug("recorder begun", slog.Int("device_rate", r.in.SampleRate()))
	return nil
}

func (r *Recorder) readLoop(src io.Reader, done chan<- struct{}) {
	defer close(done)

	rate := r.in.SampleRate()
	reader := NewFrameReader(src, rate, r.frameDuration)
	buf := make([]byte, reader.ChunkSize())

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			pcm := make([]byte, n-n%BytesPerSample)
			copy(pcm, buf)
			pcm = ResamplePCM(pcm, rate, SampleRate)
			r.analyser.WritePCM(pcm)
			r.deliver(Frame{PCM: pcm})
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.logger.Debug("capture stopped", slog.Any("err", err))
			}
			return
		}
	}
}

func (r *Recorder) deliver(f Frame) {
	r.fmu.Lock()
	defer r.fmu.Unlock()
	if r.frames != nil {
		r.frames <- f
	}
}

// Record starts delivering frames to onFrame from a dedicated goroutine.
// onFrame must not call back into the Recorder.
func (r *Recorder) Record(onFrame func(Frame)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.src == nil {
		return ErrNotBegun
	}

	r.fmu.Lock()
	defer r.fmu.Unlock()
	if r.frames != nil {
		return ErrAlreadyRecording
	}

	frames := make(chan Frame, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for f := range frames {
			onFrame(f)
		}
	}()
	r.frames, r.forwardDone = frames, done
	return nil
}

// Pause stops frame delivery. Every frame captured before Pause has been
// handed to the callback when it returns, and none is delivered afterwards.
func (r *Recorder) Pause() error {
	r.fmu.Lock()
	frames, done := r.frames, r.forwardDone
	r.frames, r.forwardDone = nil, nil
	r.fmu.Unlock()

	if frames == nil {
		return nil
	}
	close(frames)
	<-done
	return nil
}

// End pauses and releases the input device.
func (r *Recorder) End() error {
	if err := r.Pause(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.src == nil {
		return nil
	}
	err := r.src.Close()
	<-r.readerDone
	r.src, r.readerDone = nil, nil
	r.logger.Debug("recorder ended")
	return err
}

func (r *Recorder) Status() RecorderStatus {
	r.mu.Lock()
	begun := r.src != nil
	r.mu.Unlock()
	if !begun {
		return StatusEnded
	}

	r.fmu.Lock()
	defer r.fmu.Unlock()
	if r.frames != nil {
		return StatusRecording
	}
	return StatusPaused
}

func (r *Recorder) Frequencies(band Band) []float64 {
	return r.analyser.Frequencies(band)
}
