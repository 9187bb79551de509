package director

import (
	"fmt"

	"github.com/jinzhu/copier"

	"github.com/ivlev/storyrig/internal/geom"
)

// ProjectVersion is the schema version written by this package.
const ProjectVersion = "1.0"

// Project is the complete authored story, the exchange format between the
// editor and the exported player.
type Project struct {
	Version  string    `json:"version" yaml:"version"`
	Title    string    `json:"title,omitempty" yaml:"title,omitempty"`
	Chapters []Chapter `json:"chapters" yaml:"chapters,omitempty"`
}

// Chapter is a progress interval owning one model, its camera path, narrative
// beats and spatial annotations.
type Chapter struct {
	ID            string       `json:"id" yaml:"id"`
	Title         string       `json:"title,omitempty" yaml:"title,omitempty"`
	Model         string       `json:"model,omitempty" yaml:"model,omitempty"`
	StartProgress float64      `json:"startProgress" yaml:"startProgress"`
	EndProgress   float64      `json:"endProgress" yaml:"endProgress"`
	// SplineAlpha is the Catmull-Rom knot exponent applied to chord length:
	// 0 uniform, 0.5 centripetal, 1 chordal. It is not a tension label where
	// 0 means centripetal; projects written with that reading need 0 and 0.5
	// swapped.
	SplineAlpha   float64      `json:"splineAlpha" yaml:"splineAlpha"`
	Environment   Environment  `json:"environment" yaml:"environment"`
	Lens          Lens         `json:"lens" yaml:"lens"` // default when a keyframe carries none
	Keyframes     []Keyframe   `json:"keyframes" yaml:"keyframes,omitempty"`
	Beats         []Beat       `json:"beats" yaml:"beats,omitempty"`
	Annotations   []Annotation `json:"annotations" yaml:"annotations,omitempty"`
}

// Keyframe is a camera snapshot anchored to a progress value.
type Keyframe struct {
	ID          string    `json:"id" yaml:"id"`
	Progress    float64   `json:"progress" yaml:"progress"`
	Position    geom.Vec3 `json:"position" yaml:"position,flow"`
	Target      geom.Vec3 `json:"target" yaml:"target,flow"`
	Orientation geom.Quat `json:"orientation" yaml:"orientation,flow"`
	FOV         float64   `json:"fov" yaml:"fov"` // degrees
	Lens        *Lens     `json:"lens,omitempty" yaml:"lens,omitempty"`
}

// Lens holds depth of field parameters.
type Lens struct {
	FocusDistance float64 `json:"focusDistance" yaml:"focusDistance"`
	Aperture      float64 `json:"aperture" yaml:"aperture"`
	BokehScale    float64 `json:"bokehScale" yaml:"bokehScale"`
}

// Environment is chapter-scoped scene state, applied once per chapter switch.
type Environment struct {
	Background string  `json:"background,omitempty" yaml:"background,omitempty"`
	FogColor   string  `json:"fogColor,omitempty" yaml:"fogColor,omitempty"`
	FogNear    float64 `json:"fogNear" yaml:"fogNear"`
	FogFar     float64 `json:"fogFar" yaml:"fogFar"`
	Exposure   float64 `json:"exposure" yaml:"exposure"`
	Bloom      float64 `json:"bloom" yaml:"bloom"`
}

// Beat is a narrative text overlay tied to a progress value.
type Beat struct {
	ID          string  `json:"id" yaml:"id"`
	Progress    float64 `json:"progress" yaml:"progress"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description" yaml:"description"`
	Style       string  `json:"style,omitempty" yaml:"style,omitempty"`
}

// Annotation is a 3D-anchored callout visible around VisibleAt.
type Annotation struct {
	ID        string    `json:"id" yaml:"id"`
	Position  geom.Vec3 `json:"position" yaml:"position,flow"`
	VisibleAt float64   `json:"visibleAt" yaml:"visibleAt"`
	Label     string    `json:"label" yaml:"label"`
	Content   string    `json:"content,omitempty" yaml:"content,omitempty"`
	Node      string    `json:"node,omitempty" yaml:"node,omitempty"` // model node the callout points at
}

// Chapter returns the chapter with the given ID.
func (p *Project) Chapter(id string) (*Chapter, bool) {
	for i := range p.Chapters {
		if p.Chapters[i].ID == id {
			return &p.Chapters[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() (*Project, error) {
	var out Project
	if err := copier.CopyWithOption(&out, p, copier.Option{DeepCopy: true, IgnoreEmpty: true}); err != nil {
		return nil, fmt.Errorf("clone project: %w", err)
	}
	return &out, nil
}

// Keyframe returns the keyframe with the given ID.
func (c *Chapter) Keyframe(id string) (*Keyframe, bool) {
	for i := range c.Keyframes {
		if c.Keyframes[i].ID == id {
			return &c.Keyframes[i], true
		}
	}
	return nil, false
}

// LensAt returns the keyframe lens or the chapter default.
func (c *Chapter) LensAt(kf Keyframe) Lens {
	if kf.Lens != nil {
		return *kf.Lens
	}
	return c.Lens
}

// Local maps a global progress value into this chapter, clamped to [0,1].
// A zero-length chapter uses a denominator of 1.
func (c *Chapter) Local(progress float64) float64 {
	span := c.EndProgress - c.StartProgress
	if span == 0 {
		span = 1
	}
	return geom.Clamp01((progress - c.StartProgress) / span)
}

// Contains reports whether progress lies in [StartProgress, EndProgress],
// both ends inclusive.
func (c *Chapter) Contains(progress float64) bool {
	return progress >= c.StartProgress && progress <= c.EndProgress
}
