package driver

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/storyrig/internal/source"
)

const tick = time.Second / 60

func TestSmoothDampConverges(t *testing.T) {
	d := NewDamper(DefaultSmoothTime, 0, 0)
	d.Target = 1

	prev := d.Value
	for i := 0; i < 600 && !d.Settled(); i++ {
		v := d.Step(tick.Seconds())
		assert.GreaterOrEqual(t, v, prev, "monotonic")
		assert.LessOrEqual(t, v, 1.0, "never overshoots")
		prev = v
	}
	assert.True(t, d.Settled())
	assert.Equal(t, 1.0, d.Value)
}

func TestSmoothDampDownward(t *testing.T) {
	v, vel := 1.0, 0.0
	for i := 0; i < 600; i++ {
		next, nv := SmoothDamp(v, 0.2, vel, 0.1, 0, tick.Seconds())
		assert.LessOrEqual(t, next, v)
		assert.GreaterOrEqual(t, next, 0.2)
		v, vel = next, nv
	}
	assert.Equal(t, 0.2, v)
}

func TestSmoothDampSnapAndZeroStep(t *testing.T) {
	v, vel := SmoothDamp(0.4995, 0.5, 0.3, 0.25, 0, tick.Seconds())
	assert.Equal(t, 0.5, v)
	assert.Equal(t, 0.0, vel)

	v, vel = SmoothDamp(0.1, 0.9, 0.2, 0.25, 0, 0)
	assert.Equal(t, 0.1, v)
	assert.Equal(t, 0.2, vel)
}

func TestSmoothDampMaxSpeed(t *testing.T) {
	const maxSpeed = 0.5
	v, vel := 0.0, 0.0
	for i := 0; i < 10; i++ {
		next, nv := SmoothDamp(v, 1, vel, 0.25, maxSpeed, tick.Seconds())
		assert.LessOrEqual(t, next-v, maxSpeed*tick.Seconds()*2+1e-9)
		v, vel = next, nv
	}
}

func TestSmoothDampDeterministic(t *testing.T) {
	run := func() []float64 {
		d := NewDamper(0.3, 0, 0.1)
		d.Target = 0.8
		var out []float64
		for i := 0; i < 120; i++ {
			out = append(out, d.Step(tick.Seconds()))
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestReducedMotionIsSnappier(t *testing.T) {
	steps := func(reduced bool) int {
		d := New(Options{ReducedMotion: reduced})
		src := source.NewChanSource(4)
		defer src.Close()
		d.Bind(src)
		defer d.Close()
		src.Push(source.EventAt(1, 2000, 1000))
		require.Eventually(t, func() bool { return d.Status().Target == 1 }, time.Second, time.Millisecond)

		n := 0
		for d.Step(tick) < 1 && n < 10000 {
			n++
		}
		return n
	}
	assert.Less(t, steps(true), steps(false))
}

func TestScrubIsImmediateAndSuspendsScroll(t *testing.T) {
	d := New(Options{})
	src := source.NewChanSource(4)
	defer src.Close()
	b := d.SetMode(ModePreview, src)
	require.NotNil(t, b)
	defer b.Close()
	assert.Equal(t, StateScrollBound, d.Status().State)

	src.Push(source.EventAt(0.8, 2000, 1000))
	require.Eventually(t, func() bool { return d.Status().Target == 0.8 }, time.Second, time.Millisecond)

	d.Scrub(0.3)
	assert.Equal(t, 0.3, d.Progress(), "no damping")
	assert.Equal(t, StateEditing, d.Status().State)
	for i := 0; i < 30; i++ {
		assert.Equal(t, 0.3, d.Step(tick), "scroll damping suspended after scrub")
	}

	src.Push(source.EventAt(0.5, 2000, 1000))
	require.Eventually(t, func() bool { return d.Status().State == StateScrollBound }, time.Second, time.Millisecond)
	p := d.Step(tick)
	assert.Greater(t, p, 0.3)
	assert.Less(t, p, 0.5, "damping resumes from the scrubbed value")
}

func TestScrubClamps(t *testing.T) {
	d := New(Options{})
	d.Scrub(-2)
	assert.Equal(t, 0.0, d.Progress())
	d.Scrub(7)
	assert.Equal(t, 1.0, d.Progress())
}

func TestJumpToResetsDamper(t *testing.T) {
	d := New(Options{})
	src := source.NewChanSource(4)
	defer src.Close()
	d.Bind(src)
	defer d.Close()

	d.JumpTo(0.67)
	st := d.Status()
	assert.Equal(t, 0.67, st.Progress)
	assert.Equal(t, 0.67, st.Target)
	assert.Equal(t, 0.67, d.Step(tick), "no drift after a jump")
	assert.True(t, d.Settled())
}

func TestBindingCloseIsSynchronous(t *testing.T) {
	d := New(Options{})
	src := source.NewChanSource(16)
	defer src.Close()

	b := d.Bind(src)
	src.Push(source.EventAt(0.4, 2000, 1000))
	require.Eventually(t, func() bool { return d.Status().Target == 0.4 }, time.Second, time.Millisecond)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	st := d.Status()
	assert.False(t, st.Bound)
	assert.Equal(t, StateIdle, st.State)

	for i := 0; i < 10; i++ {
		src.Push(source.EventAt(0.9, 2000, 1000))
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0.4, d.Status().Target, "no event after Close")
}

func TestSetModeTearsDownOldBinding(t *testing.T) {
	d := New(Options{})
	editorScroll := source.NewChanSource(4)
	playerScroll := source.NewChanSource(4)
	defer editorScroll.Close()
	defer playerScroll.Close()

	d.SetMode(ModePreview, editorScroll)
	d.SetMode(ModePlayer, playerScroll)
	assert.Equal(t, ModePlayer, d.Mode())

	editorScroll.Push(source.EventAt(0.9, 2000, 1000))
	playerScroll.Push(source.EventAt(0.2, 2000, 1000))
	require.Eventually(t, func() bool { return d.Status().Target == 0.2 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0.2, d.Status().Target)

	assert.Nil(t, d.SetMode(ModeEdit, playerScroll))
	st := d.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.False(t, st.Bound)
	require.NoError(t, d.Close())
}

func TestConcurrentBindLeavesOneListener(t *testing.T) {
	d := New(Options{})
	const n = 16
	sources := make([]*source.ChanSource, n)
	bindings := make([]*Binding, n)
	for i := range sources {
		sources[i] = source.NewChanSource(1)
		defer sources[i].Close()
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				bindings[i] = d.Bind(sources[i])
			} else {
				bindings[i] = d.SetMode(ModePlayer, sources[i])
			}
		}()
	}
	wg.Wait()

	d.mu.Lock()
	current := d.binding
	d.mu.Unlock()
	require.NotNil(t, current)

	live := 0
	for _, b := range bindings {
		select {
		case <-b.done:
		default:
			live++
			assert.Same(t, current, b, "only the installed binding keeps listening")
		}
	}
	assert.Equal(t, 1, live)

	require.NoError(t, d.Close())
	select {
	case <-current.done:
	default:
		t.Fatal("listener still running after Close")
	}
}

func TestModeStrings(t *testing.T) {
	for _, m := range []Mode{ModeEdit, ModePreview, ModePlayer} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("fly")
	assert.Error(t, err)
	assert.Equal(t, "scroll-bound", StateScrollBound.String())
}

func TestDamperSettlesOnTarget(t *testing.T) {
	d := New(Options{SmoothTime: 0.1})
	src := source.NewChanSource(1)
	defer src.Close()
	d.Bind(src)
	defer d.Close()

	src.Push(source.EventAt(0.75, 4000, 1000))
	require.Eventually(t, func() bool { return d.Status().Target == 0.75 }, time.Second, time.Millisecond)
	for i := 0; i < 600 && !d.Settled(); i++ {
		d.Step(tick)
	}
	assert.True(t, d.Settled())
	assert.InDelta(t, 0.75, d.Progress(), 1e-12)
	assert.False(t, math.IsNaN(d.Progress()))
}
