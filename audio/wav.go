package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

var wavFormat = beep.Format{
	SampleRate:  beep.SampleRate(SampleRate),
	NumChannels: Channels,
	Precision:   BytesPerSample,
}

// EncodeWAV writes pcm as a mono 16-bit WAV file at SampleRate.
func EncodeWAV(w io.WriteSeeker, pcm []byte) error {
	return wav.Encode(w, NewPCMStreamer(pcm), wavFormat)
}

// WriteWAVFile encodes pcm into path, creating parent directories.
func WriteWAVFile(path string, pcm []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, pcm); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode wav %s: %w", path, err)
	}
	return f.Close()
}
