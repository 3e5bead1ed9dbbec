package audio

import (
	"encoding/binary"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Band selects the frequency range returned by Analyser.Frequencies.
type Band string

const (
	BandFrequency Band = "frequency"
	BandMusic Band     = "music"
	BandVoice Band     = "voice"
)

const (
	fftSize     = 1024
	minDecibels = -100.0
	maxDecibels = -30.0
)

var bandRanges = map[Band][2]float64{
	BandMusic: {32, 4186},
	BandVoice: {32, 2000},
}

// Analyser keeps the most recent fftSize samples of a signal and reports
// their spectrum as magnitudes normalised to [0, 1].
type Analyser struct {
	mu         sync.Mutex
	sampleRate int
	window     [fftSize]float64
	pos        int
	fft        *fourier.FFT
	seq        []float64
	coeffs     []complex128
}

func NewAnalyser(sampleRate int) *Analyser {
	return &Analyser{
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(fftSize),
		seq:        make([]float64, fftSize),
		coeffs:     make([]complex128, fftSize/2+1),
	}
}

// WritePCM feeds 16-bit little endian mono samples.
func (a *Analyser) WritePCM(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+1 < len(pcm); i += 2 {
		a.push(float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768)
	}
}

func (a *Analyser) WriteSamples(samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.push(s)
	}
}

func (a *Analyser) push(v float64) {
	a.window[a.pos] = v
	a.pos = (a.pos + 1) % fftSize
}

// BinWidth is the width of one spectrum bin in Hz.
func (a *Analyser) BinWidth() float64 {
	return float64(a.sampleRate) / fftSize
}

// Frequencies returns the normalised spectrum for band. BandFrequency covers
// every bin from DC to Nyquist; the other bands are restricted to their
// range. Unknown bands behave like BandFrequency.
func (a *Analyser) Frequencies(band Band) []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < fftSize; i++ {
		v := a.window[(a.pos+i)%fftSize]
		hann := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/(fftSize-1)))
		a.seq[i] = v * hann
	}
	// coeffs holds bins 0..fftSize/2
	coeffs := a.fft.Coefficients(a.coeffs, a.seq)

	lo, hi := 0, fftSize/2
	if r, ok := bandRanges[band]; ok {
		width := a.BinWidth()
		lo = int(math.Ceil(r[0] / width))
		hi = min(int(math.Floor(r[1]/width)), fftSize/2)
	}

	out := make([]float64, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, normalise(cmplx.Abs(coeffs[i])*2/fftSize))
	}
	return out
}

func normalise(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := (db - minDecibels) / (maxDecibels - minDecibels)
	return math.Max(0, math.Min(1, v))
}
