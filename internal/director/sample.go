package director

import (
	"fmt"
	"math"

	"github.com/ivlev/storyrig/internal/geom"
)

// SampleProject builds a three-chapter demo story: an orbit, a fly-in and a
// pull-back, with one narrative beat per chapter and a few annotations.
func SampleProject() *Project {
	d := New(nil)
	d.Project().Title = "Sample story"

	up := geom.V3(0, 1, 0)
	view := func(pos, target geom.Vec3, fov float64) View {
		return View{
			Position:    pos,
			Target:      target,
			Orientation: geom.LookAt(pos, target, up),
			FOV:         fov,
		}
	}

	// Chapter 1: a quarter orbit around the origin
	orbit := d.AddChapter("Orbit", 0, 0.34)
	orbit.SplineAlpha = 0.5
	for i := 0; i <= 4; i++ {
		angle := float64(i) * math.Pi / 8
		pos := geom.V3(8*math.Sin(angle), 2, 8*math.Cos(angle))
		global := orbit.StartProgress + float64(i)/4*(orbit.EndProgress-orbit.StartProgress)
		d.CaptureKeyframe(orbit.ID, global, view(pos, geom.V3(0, 0, 0), 45))
	}
	d.AddBeat(orbit.ID, Beat{Progress: 0.1, Title: "Overview", Description: "The whole model from a distance.", Style: "center"})
	d.AddAnnotation(orbit.ID, Annotation{Position: geom.V3(0, 1.5, 0), VisibleAt: 0.2, Label: "Top", Content: "Highest point of the model.", Node: "top_cap"})

	// Chapter 2: fly in towards a detail
	fly := d.AddChapter("Detail", 0.34, 0.67)
	fly.SplineAlpha = 0
	fly.Environment = Environment{Background: "#101820", FogColor: "#101820", FogNear: 4, FogFar: 30, Exposure: 1.2, Bloom: 0.3}
	points := []geom.Vec3{
		geom.V3(8, 2, 0),
		geom.V3(5, 1.5, 1),
		geom.V3(3, 1, 1),
		geom.V3(1.5, 0.8, 0.5),
	}
	for i, pos := range points {
		global := fly.StartProgress + float64(i)/float64(len(points)-1)*(fly.EndProgress-fly.StartProgress)
		v := view(pos, geom.V3(0, 0.5, 0), 45-float64(i)*5)
		v.Lens = &Lens{FocusDistance: pos.Dist(geom.V3(0, 0.5, 0)), Aperture: 0.02 + float64(i)*0.01, BokehScale: 1 + float64(i)}
		d.CaptureKeyframe(fly.ID, global, v)
	}
	d.AddBeat(fly.ID, Beat{Progress: 0.4, Title: "Detail", Description: "A closer look.", Style: "left"})
	d.AddAnnotation(fly.ID, Annotation{Position: geom.V3(0, 0.5, 0), VisibleAt: 0.55, Label: "Joint"})

	// Chapter 3: pull back
	back := d.AddChapter("Finale", 0.67, 1)
	back.SplineAlpha = 1
	d.CaptureKeyframe(back.ID, 0.67, view(geom.V3(1.5, 0.8, 0.5), geom.V3(0, 0.5, 0), 30))
	d.CaptureKeyframe(back.ID, 1, view(geom.V3(0, 6, 12), geom.V3(0, 0, 0), 50))
	d.AddBeat(back.ID, Beat{Progress: 0.9, Title: "Finale", Description: "Back to the full picture.", Style: "center"})

	p := d.Project()
	for i := range p.Chapters {
		if p.Chapters[i].Model == "" {
			p.Chapters[i].Model = fmt.Sprintf("models/chapter_%d.glb", i+1)
		}
	}
	return p
}
