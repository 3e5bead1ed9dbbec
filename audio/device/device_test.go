package device

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/openairt-console/audio"
)

func TestSamplesToPCM16(t *testing.T) {
	in := [][2]float64{{0, 1}, {1, 0}, {-1, 0}, {2, 0}, {-3, 0}, {0.5, 0.5}}
	out := samplesToPCM16(make([]byte, len(in)*2), in)
	require.Len(t, out, len(in)*2)

	got := make([]int16, len(in))
	for i := range got {
		got[i] = int16(binary.LittleEndian.Uint16(out[i*2:]))
	}
	assert.Equal(t, []int16{0, 32767, -32767, 32767, -32767, 16383}, got)
}

func TestDefaults(t *testing.T) {
	m := NewMicrophone()
	assert.Equal(t, audio.SampleRate, m.SampleRate())
	assert.Equal(t, 48_000, NewMicrophone(WithMicrophoneSampleRate(48_000)).SampleRate())

	s := NewSpeaker()
	assert.Equal(t, audio.SampleRate, s.sampleRate)
	assert.Equal(t, defaultLatency, s.Latency())
	assert.Equal(t, 50*time.Millisecond, NewSpeaker(WithLatency(50*time.Millisecond)).Latency())
	require.NoError(t, s.Stop())
}
