package audio

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmOf(samples int, value int16) []byte {
	b := make([]byte, 0, samples*BytesPerSample)
	for i := 0; i < samples; i++ {
		b = binary.LittleEndian.AppendUint16(b, uint16(value))
	}
	return b
}

func pull(p *Player, n int) [][2]float64 {
	out := make([][2]float64, n)
	p.Stream(out)
	return out
}

type fakeOutput struct {
	streamer Streamer
	stopped  bool
}

func (f *fakeOutput) Start(s Streamer) error { f.streamer = s; return nil }
func (f *fakeOutput) Stop() error            { f.stopped = true; return nil }

func TestPlayer_InterruptNothingPlaying(t *testing.T) {
	p := NewPlayer(nil)
	assert.Nil(t, p.Interrupt())
}

func TestPlayer_InterruptReportsOffset(t *testing.T) {
	p := NewPlayer(nil)
	p.Add16BitPCM(pcmOf(480, 100), "item_a")
	pull(p, 100)

	off := p.Interrupt()
	require.NotNil(t, off)
	assert.Equal(t, TrackOffset{TrackID: "item_a", Offset: 100}, *off)
	assert.Equal(t, 0, p.Queued())

	p.Add16BitPCM(pcmOf(480, 100), "item_a")
	assert.Equal(t, 0, p.Queued())
	assert.Nil(t, p.Interrupt())

	p.Add16BitPCM(pcmOf(10, 100), "item_b")
	assert.Equal(t, 10, p.Queued())
}

func TestPlayer_QueuedButNotStarted(t *testing.T) {
	p := NewPlayer(nil)
	p.Add16BitPCM(pcmOf(50, 1), "item_a")

	off := p.Interrupt()
	require.NotNil(t, off)
	assert.Equal(t, TrackOffset{TrackID: "item_a", Offset: 0}, *off)
}

func TestPlayer_TracksOffsetsAcrossTracks(t *testing.T) {
	p := NewPlayer(nil)
	p.Add16BitPCM(pcmOf(60, 1), "item_a")
	p.Add16BitPCM(pcmOf(40, 1), "item_a")
	p.Add16BitPCM(pcmOf(100, 1), "item_b")
	assert.Equal(t, 200, p.Queued())

	pull(p, 150)

	off := p.Interrupt()
	require.NotNil(t, off)
	assert.Equal(t, TrackOffset{TrackID: "item_b", Offset: 50}, *off)
}

func TestPlayer_StreamConvertsAndPadsWithSilence(t *testing.T) {
	p := NewPlayer(nil)
	p.Add16BitPCM(pcmOf(4, 16384), "item_a")
	p.Add16BitPCM([]byte{1}, "item_a")

	out := pull(p, 8)
	for i := 0; i < 4; i++ {
		assert.Equal(t, [2]float64{0.5, 0.5}, out[i])
	}
	for i := 4; i < 8; i++ {
		assert.Equal(t, [2]float64{}, out[i])
	}
	assert.Nil(t, p.Err())
}

func TestPlayer_DropsWhenFull(t *testing.T) {
	p := NewPlayer(nil, WithBufferDuration(time.Millisecond))
	p.Add16BitPCM(pcmOf(40, 1), "item_a")
	assert.LessOrEqual(t, p.Queued(), 24)

	pull(p, 10)
	off := p.Interrupt()
	require.NotNil(t, off)
	assert.Equal(t, TrackOffset{TrackID: "item_a", Offset: 10}, *off)
}

func TestPlayer_InterruptAfterTrackDrained(t *testing.T) {
	p := NewPlayer(nil)
	p.Add16BitPCM(pcmOf(100, 1), "item_a")

	// the last samples were just handed to the output
	pull(p, 100)
	assert.Equal(t, 0, p.Queued())

	// the output then pulls silence
	pull(p, 100)
	assert.Nil(t, p.Interrupt())

	// the track was not muted, later chunks still play
	p.Add16BitPCM(pcmOf(20, 1), "item_a")
	assert.Equal(t, 20, p.Queued())
	pull(p, 5)
	off := p.Interrupt()
	require.NotNil(t, off)
	assert.Equal(t, TrackOffset{TrackID: "item_a", Offset: 105}, *off)
}

func TestPlayer_InterruptJustAfterLastChunk(t *testing.T) {
	p := NewPlayer(nil)
	p.Add16BitPCM(pcmOf(100, 1), "item_a")
	pull(p, 150)

	off := p.Interrupt()
	require.NotNil(t, off)
	assert.Equal(t, TrackOffset{TrackID: "item_a", Offset: 100}, *off)
}

func TestPlayer_OutputLatency(t *testing.T) {
	p := NewPlayer(nil, WithOutputLatency(10*time.Millisecond))
	p.Add16BitPCM(pcmOf(1000, 1), "item_a")

	pull(p, 100)
	off := p.Interrupt()
	require.NotNil(t, off)
	assert.Equal(t, TrackOffset{TrackID: "item_a", Offset: 0}, *off)

	p.Add16BitPCM(pcmOf(1000, 1), "item_b")
	pull(p, 500)
	off = p.Interrupt()
	require.NotNil(t, off)
	assert.Equal(t, TrackOffset{TrackID: "item_b", Offset: 260}, *off)
}

func TestPlayer_ConnectAndClose(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)

	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Connect(context.Background()))
	assert.Same(t, p, out.streamer)

	p.Add16BitPCM(pcmOf(10, 1), "item_a")
	require.NoError(t, p.Close())
	assert.True(t, out.stopped)
	assert.Equal(t, 0, p.Queued())

	assert.ErrorIs(t, NewPlayer(nil).Connect(context.Background()), ErrNoOutput)
}
