package driver

import "math"

const (
	// DefaultSmoothTime is the time in seconds the damper needs to cover most
	// of the distance to its target.
	DefaultSmoothTime = 0.25

	// ReducedMotionScale multiplies the smooth time when the viewer prefers
	// reduced motion: the camera follows the scroll position more tightly.
	ReducedMotionScale = 0.2

	// SnapEpsilon is the distance under which the damper jumps to its target.
	SnapEpsilon = 1e-3

	minSmoothTime = 1e-4
)

// Damper is a critically damped spring following Target. The editor timeline
// and the exported player step the same Damper, so both produce the same
// easing for the same scroll input.
type Damper struct {
	SmoothTime float64 // seconds, see DefaultSmoothTime
	MaxSpeed   float64 // progress units per second, 0 for unlimited

	Value    float64
	Target   float64
	Velocity float64
}

// NewDamper creates a damper resting at value.
func NewDamper(smoothTime, maxSpeed, value float64) *Damper {
	return &Damper{SmoothTime: smoothTime, MaxSpeed: maxSpeed, Value: value, Target: value}
}

// Reset places the damper at value with no velocity.
func (d *Damper) Reset(value float64) {
	d.Value, d.Target, d.Velocity = value, value, 0
}

// Settled reports whether the damper has reached its target.
func (d *Damper) Settled() bool {
	return d.Value == d.Target && d.Velocity == 0
}

// Step advances the damper by dt seconds and returns the new value.
func (d *Damper) Step(dt float64) float64 {
	d.Value, d.Velocity = SmoothDamp(d.Value, d.Target, d.Velocity, d.SmoothTime, d.MaxSpeed, dt)
	return d.Value
}

// SmoothDamp moves current towards target over roughly smoothTime seconds and
// returns the new value and velocity. The exponential decay uses the
// polynomial approximation 1/(1+x+0.48x²+0.235x³). It never overshoots and
// snaps to target within SnapEpsilon.
func SmoothDamp(current, target, velocity, smoothTime, maxSpeed, dt float64) (float64, float64) {
	if math.Abs(current-target) <= SnapEpsilon {
		return target, 0
	}
	if dt <= 0 {
		return current, velocity
	}

	smoothTime = math.Max(minSmoothTime, smoothTime)
	omega := 2 / smoothTime
	x := omega * dt
	exp := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := current - target
	originalTo := target
	if maxSpeed > 0 {
		maxChange := maxSpeed * smoothTime
		change = math.Max(-maxChange, math.Min(change, maxChange))
	}
	target = current - change

	temp := (velocity + omega*change) * dt
	velocity = (velocity - omega*temp) * exp
	out := target + (change+temp)*exp

	if (originalTo-current > 0) == (out > originalTo) {
		out = originalTo
		velocity = 0
	}
	return out, velocity
}
