package renderer

import (
	"errors"

	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/geom"
)

// ErrNoKeyframes is returned when a chapter has no keyframe to pin the camera to.
var ErrNoKeyframes = errors.New("chapter has no keyframes")

// CameraState represents the camera at a specific progress value
type CameraState struct {
	Position    geom.Vec3     `json:"position"`
	Target      geom.Vec3     `json:"target"`
	Orientation geom.Quat     `json:"orientation"`
	FOV         float64       `json:"fov"`
	Lens        director.Lens `json:"lens"`
}

// View converts the state into a capturable camera snapshot.
func (s CameraState) View() director.View {
	l := s.Lens
	return director.View{
		Position:    s.Position,
		Target:      s.Target,
		Orientation: s.Orientation,
		FOV:         s.FOV,
		Lens:        &l,
	}
}

// Path is the derived, immutable camera path of one chapter. It is rebuilt
// whenever the chapter's keyframes or tension change, never edited in place.
type Path struct {
	ChapterID string
	Alpha     float64
	Keyframes []director.Keyframe // sorted, see SortKeyframes
	Lenses    []director.Lens     // resolved lens per keyframe

	PositionCurve *Curve // nil with fewer than two keyframes
	TargetCurve   *Curve
}

// NewPath sorts the chapter keyframes and builds both curves.
func NewPath(ch *director.Chapter) *Path {
	kfs := SortKeyframes(ch.Keyframes)
	lenses := make([]director.Lens, len(kfs))
	for i, kf := range kfs {
		lenses[i] = ch.LensAt(kf)
	}
	pos, target := BuildCurves(kfs, ch.SplineAlpha)
	return &Path{
		ChapterID:     ch.ID,
		Alpha:         ch.SplineAlpha,
		Keyframes:     kfs,
		Lenses:        lenses,
		PositionCurve: pos,
		TargetCurve:   target,
	}
}

// Segment returns the keyframe segment bracketing t and the position of t
// inside it, clamped to [0,1]. t outside the keyframe range clamps to the
// first or last segment.
func (p *Path) Segment(t float64) (i int, alpha float64) {
	n := len(p.Keyframes)
	if n < 2 {
		return 0, 0
	}
	for i < n-2 && t >= p.Keyframes[i+1].Progress {
		i++
	}
	a, b := p.Keyframes[i], p.Keyframes[i+1]
	span := b.Progress - a.Progress
	if span <= 0 {
		return i, 0
	}
	return i, geom.Clamp01((t - a.Progress) / span)
}

// Interpolate calculates the camera state at local chapter progress t.
//
// Position and target follow the curves at constant speed inside each
// keyframe segment and pass exactly through every keyframe. Orientation is a
// shortest-arc slerp between the bracketing keyframes; FOV and lens are
// linear. target == position is not guarded.
func Interpolate(t float64, p *Path) (CameraState, error) {
	if p == nil || len(p.Keyframes) == 0 {
		return CameraState{}, ErrNoKeyframes
	}

	if len(p.Keyframes) == 1 {
		kf := p.Keyframes[0]
		return CameraState{
			Position:    kf.Position,
			Target:      kf.Target,
			Orientation: kf.Orientation,
			FOV:         kf.FOV,
			Lens:        p.Lenses[0],
		}, nil
	}

	i, a := p.Segment(t)
	kfA, kfB := p.Keyframes[i], p.Keyframes[i+1]
	lensA, lensB := p.Lenses[i], p.Lenses[i+1]

	return CameraState{
		Position:    p.PositionCurve.SegmentPointAt(i, a),
		Target:      p.TargetCurve.SegmentPointAt(i, a),
		Orientation: kfA.Orientation.Slerp(kfB.Orientation, a),
		FOV:         geom.Lerp(kfA.FOV, kfB.FOV, a),
		Lens: director.Lens{
			FocusDistance: geom.Lerp(lensA.FocusDistance, lensB.FocusDistance, a),
			Aperture:      geom.Lerp(lensA.Aperture, lensB.Aperture, a),
			BokehScale:    geom.Lerp(lensA.BokehScale, lensB.BokehScale, a),
		},
	}, nil
}
