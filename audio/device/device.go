// Package device binds the audio pipelines to the host sound card through
// PortAudio.
package device

import (
	"encoding/binary"

	"github.com/gordonklaus/portaudio"
)

// Init must be called once before any Microphone or Speaker is used.
func Init() error {
	return portaudio.Initialize()
}

func Terminate() error {
	return portaudio.Terminate()
}

// samplesToPCM16 takes the left channel of s and encodes it as 16-bit little
// endian mono PCM into dst, which must hold len(s)*2 bytes.
func samplesToPCM16(dst []byte, s [][2]float64) []byte {
	dst = dst[:len(s)*2]
	for i, v := range s {
		m := int16(clamp(v[0]) * 32767)
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(m))
	}
	return dst
}

func clamp(f float64) float64 {
	switch {
	case f > 1:
		return 1
	case f < -1:
		return -1
	default:
		return f
	}
}
