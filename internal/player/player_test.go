package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestPlayRequiresSource(t *testing.T) {
	p := New()
	err := p.Play(SourceNone, time.Second)
	require.Error(t, err)
}

func TestPlayStopState(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	p := New()
	p.clk = fc

	require.NoError(t, p.Play(SourceMaster, 10*time.Second))
	assert.True(t, p.IsPlaying())

	fc.t = fc.t.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, p.Position())

	p.Stop()
	assert.False(t, p.IsPlaying())
	assert.Equal(t, 3*time.Second, p.Position())

	// Position holds after stop even as wall time advances.
	fc.t = fc.t.Add(5 * time.Second)
	assert.Equal(t, 3*time.Second, p.Position())
}

func TestPositionClampsToDurationAndStops(t *testing.T) {
	fc := &fakeClock{t: time.Unix(0, 0)}
	p := New()
	p.clk = fc

	require.NoError(t, p.Play(SourceRecording, 2*time.Second))
	fc.t = fc.t.Add(5 * time.Second)

	st := p.State()
	assert.Equal(t, 2*time.Second, st.Position)
	assert.False(t, st.Playing, "position reaching duration should stop playback")
}

func TestSetVolumeClamps(t *testing.T) {
	p := New()
	p.SetVolume(-1)
	assert.Equal(t, 0.0, p.State().Volume)
	p.SetVolume(5)
	assert.Equal(t, 1.0, p.State().Volume)
}
