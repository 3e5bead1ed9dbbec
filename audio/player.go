package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"
)

var ErrNoOutput = errors.New("audio: player has no output")

type PlayerOption func(*Player)

// WithBufferDuration bounds how much queued audio the player holds. Chunks
// that do not fit are dropped.
func WithBufferDuration(d time.Duration) PlayerOption {
	return func(p *Player) { p.bufferSize = ChunkSize(SampleRate, d, BytesPerSample, Channels) }
}

// WithOutputLatency is the amount of audio the output device buffers ahead
// of what is audible. Interrupt subtracts it from the reported offset.
func WithOutputLatency(d time.Duration) PlayerOption {
	return func(p *Player) { p.latency = int(float64(SampleRate) * d.Seconds()) }
}

func WithPlayerLogger(logger *slog.Logger) PlayerOption {
	return func(p *Player) { p.logger = logger }
}

type segment struct {
	trackID string
	samples int
}

// Player queues assistant audio per track and streams it to an Output. It
// tracks how many samples of each track have been played so playback can be
// interrupted at a known offset.
type Player struct {
	out        Output
	logger     *slog.Logger
	analyser   *Analyser
	bufferSize int
	// latency in samples
	latency int

	mu          sync.Mutex
	buf         *ringbuffer.RingBuffer
	segments    []segment
	current     string
	offsets     map[string]int
	interrupted map[string]bool
	scratch     []byte
	played      []float64
	connected   bool
}

func NewPlayer(out Output, opts ...PlayerOption) *Player {
	p := &Player{
		out:         out,
		logger:      slog.Default(),
		analyser:    NewAnalyser(SampleRate),
		bufferSize:  ChunkSize(SampleRate, 60*time.Second, BytesPerSample, Channels),
		offsets:     map[string]int{},
		interrupted: map[string]bool{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "player"))
	p.buf = ringbuffer.New(p.bufferSize)
	return p
}

// Connect starts the output device. Calling it again is a no-op.
func (p *Player) Connect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil
	}
	if p.out == nil {
		return ErrNoOutput
	}
	if err := p.out.Start(p); err != nil {
		return err
	}
	p.connected = true
	return nil
}

// Add16BitPCM queues pcm for trackID. Chunks for a track that has been
// interrupted are discarded.
func (p *Player) Add16BitPCM(pcm []byte, trackID string) {
	pcm = pcm[:len(pcm)-len(pcm)%BytesPerSample]
	if len(pcm) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interrupted[trackID] {
		return
	}

	n, err := p.buf.Write(pcm)
	if err != nil {
		p.logger.Warn("playback buffer full, dropping audio",
			slog.String("track_id", trackID),
			slog.Int("dropped", len(pcm)-n),
		)
	}
	n -= n % BytesPerSample
	if n == 0 {
		return
	}

	samples := n / BytesPerSample
	if last := len(p.segments) - 1; last >= 0 && p.segments[last].trackID == trackID {
		p.segments[last].samples += samples
		return
	}
	p.segments = append(p.segments, segment{trackID: trackID, samples: samples})
}

// Interrupt stops playback and drops everything queued. It returns the track
// that was playing, or nil when nothing is queued and the output has pulled
// silence since the last track ran out. The returned track and any queued
// ones stay muted.
//
// Offsets count samples handed to the output. With WithOutputLatency the
// reported offset is reduced by the output's buffer so it approximates what
// was heard.
func (p *Player) Interrupt() *TrackOffset {
	p.mu.Lock()
	defer p.mu.Unlock()

	track := p.current
	if track == "" && len(p.segments) > 0 {
		track = p.segments[0].trackID
	}
	for _, seg := range p.segments {
		p.interrupted[seg.trackID] = true
	}

	p.buf.Reset()
	p.segments = nil
	p.current = ""

	if track == "" {
		return nil
	}
	p.interrupted[track] = true
	return &TrackOffset{TrackID: track, Offset: max(0, p.offsets[track]-p.latency)}
}

// Queued returns the number of samples waiting to be played.
func (p *Player) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Length() / BytesPerSample
}

// Stream implements Streamer. Silence is emitted while nothing is queued.
func (p *Player) Stream(samples [][2]float64) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	need := len(samples) * BytesPerSample
	if cap(p.scratch) < need {
		p.scratch = make([]byte, need)
	}
	b := p.scratch[:need]

	n, _ := p.buf.Read(b)
	count := n / BytesPerSample
	p.advance(count)
	if count == 0 && len(samples) > 0 {
		// the last track has run out
		p.current = ""
	}

	if cap(p.played) < count {
		p.played = make([]float64, count)
	}
	played := p.played[:count]
	for i := 0; i < count; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(b[i*2:]))) / 32768
		samples[i] = [2]float64{v, v}
		played[i] = v
	}
	for i := count; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	if count > 0 {
		p.analyser.WriteSamples(played)
	}
	return len(samples), true
}

func (p *Player) advance(count int) {
	for count > 0 && len(p.segments) > 0 {
		seg := &p.segments[0]
		take := min(count, seg.samples)
		p.current = seg.trackID
		p.offsets[seg.trackID] += take
		seg.samples -= take
		count -= take
		if seg.samples == 0 {
			p.segments = p.segments[1:]
		}
	}
}

func (p *Player) Err() error { return nil }

func (p *Player) Frequencies(band Band) []float64 {
	return p.analyser.Frequencies(band)
}

// Close interrupts playback and stops the output device.
func (p *Player) Close() error {
	p.Interrupt()

	p.mu.Lock()
	connected := p.connected
	p.connected = false
	p.mu.Unlock()

	if !connected {
		return nil
	}
	return p.out.Stop()
}
