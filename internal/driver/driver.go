package driver

import (
	"fmt"
	"sync"
	"time"

	"github.com/ivlev/storyrig/internal/geom"
	"github.com/ivlev/storyrig/internal/source"
)

// Mode is the application mode the driver serves.
type Mode int

const (
	ModeEdit    Mode = iota // editor, progress set by the scrub control
	ModePreview             // editor, progress follows the timeline scroll
	ModePlayer              // exported player, progress follows the document scroll
)

func (m Mode) String() string {
	switch m {
	case ModeEdit:
		return "edit"
	case ModePreview:
		return "preview"
	case ModePlayer:
		return "player"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{ModeEdit, ModePreview, ModePlayer} {
		if m.String() == s {
			return m, nil
		}
	}
	return ModeEdit, fmt.Errorf("unknown mode %q", s)
}

// State is where the authoritative progress currently comes from.
type State int

const (
	StateIdle        State = iota // nothing moves progress
	StateEditing                  // last set by Scrub, scroll input suspended
	StateScrollBound              // damped towards the bound scroll source
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEditing:
		return "editing"
	case StateScrollBound:
		return "scroll-bound"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options tunes the damping of scroll-driven progress.
type Options struct {
	SmoothTime    float64
	MaxSpeed      float64
	ReducedMotion bool
}

// Status is a consistent snapshot of the driver.
type Status struct {
	Mode     Mode
	State    State
	Progress float64
	Target   float64
	Bound    bool
}

// Driver reconciles scrub, timeline scroll and native scroll into the one
// authoritative progress value. Scroll events only move the damper target;
// the progress itself advances in Step, once per render tick.
type Driver struct {
	mu       sync.Mutex
	mode     Mode
	state    State
	progress float64
	damper   Damper
	opts     Options

	scrubbed bool   // set by Scrub, cleared by the next scroll event
	gen      uint64 // bumped on every bind and unbind
	binding  *Binding
}

// New creates an idle driver in edit mode at progress 0.
func New(opts Options) *Driver {
	if opts.SmoothTime <= 0 {
		opts.SmoothTime = DefaultSmoothTime
	}
	d := &Driver{opts: opts}
	d.damper = Damper{SmoothTime: d.smoothTime(), MaxSpeed: opts.MaxSpeed}
	return d
}

func (d *Driver) smoothTime() float64 {
	if d.opts.ReducedMotion {
		return d.opts.SmoothTime * ReducedMotionScale
	}
	return d.opts.SmoothTime
}

// SetReducedMotion switches the damping for viewers preferring reduced motion.
func (d *Driver) SetReducedMotion(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.ReducedMotion = on
	d.damper.SmoothTime = d.smoothTime()
}

// Progress returns the authoritative progress.
func (d *Driver) Progress() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

// Status returns a snapshot of mode, state and progress.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Mode:     d.mode,
		State:    d.state,
		Progress: d.progress,
		Target:   d.damper.Target,
		Bound:    d.binding != nil,
	}
}

// Scrub sets progress immediately, without damping. Scroll input is ignored
// until the next scroll event arrives.
func (d *Driver) Scrub(p float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p = geom.Clamp01(p)
	d.progress = p
	d.damper.Reset(p)
	d.scrubbed = true
	d.state = StateEditing
}

// JumpTo sets progress programmatically, e.g. to the start of a chapter.
// The damper is moved along so that scroll damping resumes from p.
func (d *Driver) JumpTo(p float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p = geom.Clamp01(p)
	d.progress = p
	d.damper.Reset(p)
}

// Step advances scroll damping by dt and returns the progress for this tick.
func (d *Driver) Step(dt time.Duration) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateScrollBound && !d.scrubbed {
		d.progress = geom.Clamp01(d.damper.Step(dt.Seconds()))
	}
	return d.progress
}

// Settled reports whether scroll damping has come to rest.
func (d *Driver) Settled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state != StateScrollBound || d.scrubbed || d.damper.Settled()
}

// Bind attaches src. Its events drive the damper target until the returned
// binding is closed. A previous binding is torn down first. The driver does
// not close src.
func (d *Driver) Bind(src source.ScrollSource) *Binding {
	d.mu.Lock()
	prev := d.takeBinding()
	b := d.attach(src)
	d.mu.Unlock()

	if prev != nil {
		prev.stopAndWait()
	}
	return b
}

// SetMode tears down the current binding and, for scroll-driven modes,
// binds src. Edit mode ignores src and leaves the driver idle.
func (d *Driver) SetMode(mode Mode, src source.ScrollSource) *Binding {
	d.mu.Lock()
	prev := d.takeBinding()
	d.mode = mode
	d.scrubbed = false
	d.state = StateIdle
	var b *Binding
	if mode != ModeEdit && src != nil {
		b = d.attach(src)
	}
	d.mu.Unlock()

	if prev != nil {
		prev.stopAndWait()
	}
	return b
}

// takeBinding detaches and returns the current binding, which the caller
// stops after releasing d.mu. Must be called with d.mu held.
func (d *Driver) takeBinding() *Binding {
	b := d.binding
	if b != nil {
		d.detach(b)
	}
	return b
}

// attach installs a new binding for src. Must be called with d.mu held.
func (d *Driver) attach(src source.ScrollSource) *Binding {
	d.gen++
	b := &Binding{
		d:    d,
		gen:  d.gen,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	d.binding = b
	d.state = StateScrollBound
	d.damper.Reset(d.progress)
	go b.listen(src.Events())
	return b
}

// Mode returns the current mode.
func (d *Driver) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Close tears down the current binding.
func (d *Driver) Close() error {
	d.unbind()
	return nil
}

// unbind invalidates and synchronously stops the current binding. The lock
// is released before waiting so a listener blocked on it can finish.
func (d *Driver) unbind() {
	d.mu.Lock()
	b := d.takeBinding()
	d.mu.Unlock()
	if b != nil {
		b.stopAndWait()
	}
}

// detach must be called with d.mu held.
func (d *Driver) detach(b *Binding) {
	if d.binding != b {
		return
	}
	d.gen++
	d.binding = nil
	if d.state == StateScrollBound {
		d.state = StateIdle
	}
}

func (d *Driver) onScroll(gen uint64, ev source.ScrollEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	if d.scrubbed {
		// resume damping from where the scrub left the camera
		d.damper.Reset(d.progress)
		d.scrubbed = false
	}
	d.damper.Target = ev.Offset()
	d.state = StateScrollBound
}

// Binding is a live subscription of a driver to a scroll source.
type Binding struct {
	d    *Driver
	gen  uint64
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (b *Binding) listen(events <-chan source.ScrollEvent) {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.d.onScroll(b.gen, ev)
		}
	}
}

// Close stops the listener and returns once it has exited. No scroll event
// reaches the driver through this binding after Close returns.
func (b *Binding) Close() error {
	b.d.mu.Lock()
	b.d.detach(b)
	b.d.mu.Unlock()
	b.stopAndWait()
	return nil
}

func (b *Binding) stopAndWait() {
	b.once.Do(func() { close(b.stop) })
	<-b.done
}
