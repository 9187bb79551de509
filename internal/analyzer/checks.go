package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/renderer"
	"github.com/ivlev/storyrig/internal/scene"
)

// RangeChecker flags values outside their domain: progress outside [0,1],
// tension outside [0,1], field of view outside (0,180), non-finite numbers.
type RangeChecker struct{}

func (RangeChecker) Check(p *director.Project) []Finding {
	var out []Finding
	add := func(sev Severity, ch, item, format string, args ...any) {
		out = append(out, Finding{Check: "range", Severity: sev, ChapterID: ch, ItemID: item, Message: fmt.Sprintf(format, args...)})
	}
	inUnit := func(v float64) bool { return v >= 0 && v <= 1 }

	for _, ch := range p.Chapters {
		if !inUnit(ch.StartProgress) || !inUnit(ch.EndProgress) {
			add(Warning, ch.ID, "", "chapter range [%g, %g] leaves [0,1]", ch.StartProgress, ch.EndProgress)
		}
		if ch.EndProgress < ch.StartProgress {
			add(Error, ch.ID, "", "chapter ends (%g) before it starts (%g)", ch.EndProgress, ch.StartProgress)
		}
		if !inUnit(ch.SplineAlpha) {
			add(Warning, ch.ID, "", "splineAlpha %g outside [0,1]", ch.SplineAlpha)
		}
		for _, kf := range ch.Keyframes {
			if math.IsNaN(kf.Progress) || !inUnit(kf.Progress) {
				add(Warning, ch.ID, kf.ID, "keyframe progress %g outside [0,1]", kf.Progress)
			}
			if !(kf.FOV > 0 && kf.FOV < 180) {
				add(Error, ch.ID, kf.ID, "field of view %g outside (0,180)", kf.FOV)
			}
			if !kf.Position.IsFinite() || !kf.Target.IsFinite() {
				add(Error, ch.ID, kf.ID, "non-finite position or target")
			}
		}
		for _, b := range ch.Beats {
			if !inUnit(b.Progress) {
				add(Warning, ch.ID, b.ID, "beat progress %g outside [0,1]", b.Progress)
			}
		}
		for _, a := range ch.Annotations {
			if !inUnit(a.VisibleAt) {
				add(Warning, ch.ID, a.ID, "annotation visibleAt %g outside [0,1]", a.VisibleAt)
			}
		}
	}
	return out
}

// CoverageChecker flags gaps and overlaps between consecutive chapters and
// a story that does not span [0,1]. Progress in a gap falls back to the first
// chapter.
type CoverageChecker struct {
	Tolerance float64
}

func NewCoverageChecker() CoverageChecker {
	return CoverageChecker{Tolerance: 1e-9}
}

func (c CoverageChecker) Check(p *director.Project) []Finding {
	if len(p.Chapters) == 0 {
		return []Finding{{Check: "coverage", Severity: Error, Message: "project has no chapters"}}
	}

	sorted := make([]director.Chapter, len(p.Chapters))
	copy(sorted, p.Chapters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartProgress < sorted[j].StartProgress
	})

	var out []Finding
	add := func(sev Severity, ch, format string, args ...any) {
		out = append(out, Finding{Check: "coverage", Severity: sev, ChapterID: ch, Message: fmt.Sprintf(format, args...)})
	}

	if first := sorted[0]; first.StartProgress > c.Tolerance {
		add(Warning, first.ID, "story starts at %g, earlier progress falls back to this chapter", first.StartProgress)
	}
	if last := sorted[len(sorted)-1]; last.EndProgress < 1-c.Tolerance {
		add(Warning, last.ID, "story ends at %g", last.EndProgress)
	}
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		switch d := cur.StartProgress - prev.EndProgress; {
		case d > c.Tolerance:
			add(Warning, cur.ID, "gap [%g, %g] after chapter %s", prev.EndProgress, cur.StartProgress, prev.ID)
		case d < -c.Tolerance:
			add(Warning, cur.ID, "overlaps chapter %s on [%g, %g]", prev.ID, cur.StartProgress, prev.EndProgress)
		}
	}
	return out
}

// DegenerateChecker flags chapters the engine can only partially handle.
type DegenerateChecker struct{}

func (DegenerateChecker) Check(p *director.Project) []Finding {
	var out []Finding
	add := func(sev Severity, ch, item, msg string) {
		out = append(out, Finding{Check: "degenerate", Severity: sev, ChapterID: ch, ItemID: item, Message: msg})
	}

	for _, ch := range p.Chapters {
		switch len(ch.Keyframes) {
		case 0:
			add(Error, ch.ID, "", "chapter has no keyframes, no camera state can be computed")
		case 1:
			add(Info, ch.ID, "", "single keyframe, the camera is pinned for the whole chapter")
		}
		if ch.StartProgress == ch.EndProgress {
			add(Warning, ch.ID, "", "zero-length chapter")
		}
		for _, kf := range ch.Keyframes {
			if kf.Position == kf.Target {
				add(Warning, ch.ID, kf.ID, "target equals position, the view direction is undefined")
			}
			if l := kf.Orientation.Length(); math.Abs(l-1) > 1e-3 {
				add(Warning, ch.ID, kf.ID, fmt.Sprintf("orientation is not a unit quaternion (length %.4f)", l))
			}
		}
	}
	return out
}

// CoincidentChecker flags keyframes whose progress is shared with, or too
// close to, the previous one. The engine pushes them apart by
// renderer.KeyframeEpsilon, which can move them visibly in short chapters.
type CoincidentChecker struct{}

func (CoincidentChecker) Check(p *director.Project) []Finding {
	var out []Finding
	for _, ch := range p.Chapters {
		raw := make(map[string]float64, len(ch.Keyframes))
		for _, kf := range ch.Keyframes {
			raw[kf.ID] = kf.Progress
		}
		for _, kf := range renderer.SortKeyframes(ch.Keyframes) {
			if orig, ok := raw[kf.ID]; ok && kf.Progress != orig && !math.IsNaN(orig) {
				out = append(out, Finding{
					Check:     "coincident",
					Severity:  Warning,
					ChapterID: ch.ID,
					ItemID:    kf.ID,
					Message:   fmt.Sprintf("progress %g moved to %g to keep keyframes apart", orig, kf.Progress),
				})
			}
		}
	}
	return out
}

// NodeChecker verifies that annotations pointing at a model node name a node
// that exists. Outlines maps a chapter's model path to its node registry;
// chapters without an outline are skipped.
type NodeChecker struct {
	Outlines map[string]*scene.Registry
}

func NewNodeChecker(outlines map[string]*scene.Registry) NodeChecker {
	return NodeChecker{Outlines: outlines}
}

func (c NodeChecker) Check(p *director.Project) []Finding {
	var out []Finding
	for _, ch := range p.Chapters {
		reg, ok := c.Outlines[ch.Model]
		if !ok {
			continue
		}
		for _, a := range ch.Annotations {
			if a.Node == "" {
				continue
			}
			if _, ok := reg.Lookup(a.Node); !ok {
				out = append(out, Finding{
					Check:     "nodes",
					Severity:  Warning,
					ChapterID: ch.ID,
					ItemID:    a.ID,
					Message:   fmt.Sprintf("node %q not found in %s", a.Node, ch.Model),
				})
			}
		}
	}
	return out
}
