package effects

import (
	"math"

	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/geom"
)

const (
	// AnnotationWindow is the full width of the progress window centered on
	// an annotation's VisibleAt.
	AnnotationWindow = 0.1
	// AnnotationRamp is the width of the fade at each edge of the window.
	AnnotationRamp = 0.02
	// InteractiveOpacity is the opacity from which an annotation accepts
	// pointer input.
	InteractiveOpacity = 0.8
)

// AnnotationState is the visibility of one annotation at a given progress.
type AnnotationState struct {
	ID          string    `json:"id"`
	ChapterID   string    `json:"chapterId"`
	Label       string    `json:"label"`
	Position    geom.Vec3 `json:"position"`
	Opacity     float64   `json:"opacity"`
	Interactive bool      `json:"interactive"`
}

// AnnotationOpacity is 1 inside the window around visibleAt, ramps linearly
// to 0 over the outer AnnotationRamp on each side and is 0 beyond.
func AnnotationOpacity(progress, visibleAt float64) float64 {
	d := math.Abs(progress - visibleAt)
	half := AnnotationWindow / 2
	switch {
	case d >= half:
		return 0
	case d <= half-AnnotationRamp:
		return 1
	default:
		return (half - d) / AnnotationRamp
	}
}

// Interactive reports whether an annotation at opacity takes pointer input.
func Interactive(opacity float64) bool {
	return opacity >= InteractiveOpacity
}

// AnnotationStates evaluates every annotation of every chapter at progress,
// regardless of which chapter is active.
func AnnotationStates(chapters []director.Chapter, progress float64) []AnnotationState {
	var out []AnnotationState
	for _, ch := range chapters {
		for _, a := range ch.Annotations {
			op := AnnotationOpacity(progress, a.VisibleAt)
			out = append(out, AnnotationState{
				ID:          a.ID,
				ChapterID:   ch.ID,
				Label:       a.Label,
				Position:    a.Position,
				Opacity:     op,
				Interactive: Interactive(op),
			})
		}
	}
	return out
}
