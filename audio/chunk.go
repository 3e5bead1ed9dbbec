package audio

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// FixedChunkReader re-slices an arbitrary reader into chunks of exactly
// chunkSize bytes. Only the last chunk before EOF may be shorter.
type FixedChunkReader struct {
	r         io.Reader
	chunkSize int
	eof       bool
}

func NewFixedChunkReader(r io.Reader, chunkSize int) *FixedChunkReader {
	return &FixedChunkReader{r: r, chunkSize: chunkSize}
}

// NewFrameReader reads frames of d worth of 16-bit mono PCM at sampleRate.
func NewFrameReader(r io.Reader, sampleRate int, d time.Duration) *FixedChunkReader {
	return NewFixedChunkReader(r, ChunkSize(sampleRate, d, BytesPerSample, Channels))
}

// ChunkSize is the number of bytes holding d of audio.
func ChunkSize(sampleRate int, d time.Duration, bytesPerSample int, channels int) int {
	frames := int(float64(sampleRate) * d.Seconds())
	return frames * bytesPerSample * channels
}

func (f *FixedChunkReader) ChunkSize() int {
	return f.chunkSize
}

func (f *FixedChunkReader) Read(p []byte) (int, error) {
	if len(p) < f.chunkSize {
		return 0, fmt.Errorf("buffer passed to Read must be at least %d bytes", f.chunkSize)
	}
	if f.eof {
		return 0, io.EOF
	}

	n, err := io.ReadFull(f.r, p[:f.chunkSize])
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		f.eof = true
		return n, nil
	default:
		return n, err
	}
}
