package effects

import (
	"sync"

	"github.com/ivlev/storyrig/internal/director"
)

// EnvironmentSink receives chapter-scoped scene state. It is written once per
// chapter switch, never per frame.
type EnvironmentSink interface {
	SetBackground(color string)
	SetFog(color string, near, far float64)
	SetExposure(exposure float64)
	SetBloom(strength float64)
}

// ApplyEnvironment pushes env into sink. A nil sink is a no-op.
func ApplyEnvironment(sink EnvironmentSink, env director.Environment) {
	if sink == nil {
		return
	}
	sink.SetBackground(env.Background)
	sink.SetFog(env.FogColor, env.FogNear, env.FogFar)
	sink.SetExposure(env.Exposure)
	sink.SetBloom(env.Bloom)
}

// EnvironmentRecorder is an EnvironmentSink that keeps the current state and
// counts writes. The preview server forwards it to clients.
type EnvironmentRecorder struct {
	mu      sync.Mutex
	current director.Environment
	writes  int
}

func (r *EnvironmentRecorder) SetBackground(color string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Background = color
	r.writes++
}

func (r *EnvironmentRecorder) SetFog(color string, near, far float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.FogColor, r.current.FogNear, r.current.FogFar = color, near, far
	r.writes++
}

func (r *EnvironmentRecorder) SetExposure(exposure float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Exposure = exposure
	r.writes++
}

func (r *EnvironmentRecorder) SetBloom(strength float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Bloom = strength
	r.writes++
}

// Current returns the last applied environment.
func (r *EnvironmentRecorder) Current() director.Environment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Writes returns the number of setter calls so far.
func (r *EnvironmentRecorder) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}
