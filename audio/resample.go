package audio

import (
	"encoding/binary"

	"github.com/faiface/beep"
)

// PCMStreamer exposes 16-bit mono PCM as a beep.Streamer, duplicating the
// channel to stereo.
type PCMStreamer struct {
	data []int16
	pos  int
}

func NewPCMStreamer(b []byte) *PCMStreamer {
	samples := make([]int16, len(b)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return &PCMStreamer{data: samples}
}

func (s *PCMStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	for i := range samples {
		if s.pos >= len(s.data) {
			return i, true
		}
		val := float64(s.data[s.pos]) / 32768.0
		samples[i][0] = val
		samples[i][1] = val
		s.pos++
	}
	return len(samples), true
}

func (s *PCMStreamer) Err() error { return nil }

func (s *PCMStreamer) Len() int { return len(s.data) }

func (s *PCMStreamer) Position() int { return s.pos }

var _ beep.Streamer = (*PCMStreamer)(nil)

// ResamplePCM converts 16-bit mono PCM between sample rates.
func ResamplePCM(pcmData []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || len(pcmData) < BytesPerSample {
		return pcmData
	}

	streamer := NewPCMStreamer(pcmData)
	resampler := beep.Resample(3, beep.SampleRate(fromRate), beep.SampleRate(toRate), streamer)

	expected := int(float64(streamer.Len())*float64(toRate)/float64(fromRate)) + 1
	out := make([]byte, 0, expected*BytesPerSample)
	sample := make([][2]float64, 1024)

	for {
		n, ok := resampler.Stream(sample)
		for i := 0; i < n; i++ {
			out = binary.LittleEndian.AppendUint16(out, uint16(toInt16((sample[i][0]+sample[i][1])/2)))
		}
		if !ok {
			break
		}
	}

	return out
}

func toInt16(v float64) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	}
	return int16(v * 32767)
}
