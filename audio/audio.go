// Package audio implements the capture and playback pipelines around a
// realtime session. All PCM exchanged with the session is 16-bit little
// endian mono at SampleRate.
package audio

import (
	"context"
	"errors"
	"io"
)

const (
	SampleRate     = 24_000
	BytesPerSample = 2
	Channels       = 1
)

var (
	ErrNotBegun         = errors.New("audio: recorder not begun")
	ErrAlreadyBegun     = errors.New("audio: recorder already begun")
	ErrAlreadyRecording = errors.New("audio: recorder already recording")
)

// Frame is one fixed-size chunk of captured audio, resampled to SampleRate.
type Frame struct {
	PCM []byte
}

// Samples returns the number of samples in the frame.
func (f Frame) Samples() int {
	return len(f.PCM) / BytesPerSample
}

// TrackOffset identifies how far playback of a track had progressed when it
// was interrupted. Offset is a sample count at SampleRate.
type TrackOffset struct {
	TrackID string
	Offset  int
}

// Streamer pulls stereo float samples in [-1, 1]. It has the same method set
// as beep.Streamer, so a Player can be handed to a beep speaker directly.
type Streamer interface {
	Stream(samples [][2]float64) (n int, ok bool)
	Err() error
}

// Input is a capture device. Open returns a stream of 16-bit mono PCM at
// SampleRate(); closing the stream releases the device and unblocks Read.
type Input interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	SampleRate() int
}

// Output is a playback device pulling samples from a Streamer.
type Output interface {
	Start(s Streamer) error
	Stop() error
}
