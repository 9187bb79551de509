package renderer

import (
	"math"
	"sort"

	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/geom"
)

const (
	// KeyframeEpsilon is the minimum progress gap between two sorted
	// keyframes. Coincident or inverted values are pushed forward by it.
	KeyframeEpsilon = 1e-4

	// ArcDivisions is the number of samples per segment in the arc-length table.
	ArcDivisions = 200

	// minSpan replaces knot spans that are too short to divide by.
	minSpan = 1e-4
)

// Curve is an open Catmull-Rom spline through a list of points with
// |p[i+1]-p[i]|^alpha knot spacing (0 uniform, 0.5 centripetal, 1 chordal).
// The raw parameter u = i/(n-1) lands exactly on point i.
type Curve struct {
	points []geom.Vec3
	alpha  float64

	arcs       [][]float64 // cumulative length per segment, ArcDivisions+1 entries each
	cumulative []float64   // length up to the start of each segment, plus the total
}

// NewCurve builds a curve through points. It needs at least two points.
func NewCurve(points []geom.Vec3, alpha float64) *Curve {
	if len(points) < 2 {
		return nil
	}
	c := &Curve{
		points: append([]geom.Vec3(nil), points...),
		alpha:  alpha,
	}
	c.buildArcTable()
	return c
}

// BuildCurves builds the position and target curves of sorted keyframes.
// Fewer than two keyframes yield nil curves: the camera is pinned.
func BuildCurves(kfs []director.Keyframe, alpha float64) (pos, target *Curve) {
	if len(kfs) < 2 {
		return nil, nil
	}
	positions := make([]geom.Vec3, len(kfs))
	targets := make([]geom.Vec3, len(kfs))
	for i, kf := range kfs {
		positions[i] = kf.Position
		targets[i] = kf.Target
	}
	return NewCurve(positions, alpha), NewCurve(targets, alpha)
}

// SortKeyframes returns a copy of kfs ordered by progress, with every
// keyframe at least KeyframeEpsilon after its predecessor. The input order is
// kept for ties.
func SortKeyframes(kfs []director.Keyframe) []director.Keyframe {
	sorted := make([]director.Keyframe, len(kfs))
	copy(sorted, kfs)
	for i := range sorted {
		if math.IsNaN(sorted[i].Progress) {
			sorted[i].Progress = 0
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Progress < sorted[j].Progress
	})

	for i := 1; i < len(sorted); i++ {
		if floor := sorted[i-1].Progress + KeyframeEpsilon; sorted[i].Progress < floor {
			sorted[i].Progress = floor
		}
	}
	return sorted
}

// Points returns the control points.
func (c *Curve) Points() []geom.Vec3 {
	return c.points
}

// Segments returns the number of segments (points - 1).
func (c *Curve) Segments() int {
	return len(c.points) - 1
}

// Length returns the approximate arc length of the whole curve.
func (c *Curve) Length() float64 {
	return c.cumulative[len(c.cumulative)-1]
}

// Point samples the raw uniform parameter u in [0,1].
func (c *Curve) Point(u float64) geom.Vec3 {
	u = geom.Clamp01(u)
	p := float64(len(c.points)-1) * u
	i := int(math.Floor(p))
	w := p - float64(i)
	if i >= len(c.points)-1 {
		i = len(c.points) - 2
		w = 1
	}
	return c.segmentPoint(i, w)
}

// SegmentPointAt samples segment i at arc-length fraction a in [0,1].
// a = 0 and a = 1 return the segment's control points exactly.
func (c *Curve) SegmentPointAt(i int, a float64) geom.Vec3 {
	if i < 0 {
		i = 0
	}
	if i > len(c.points)-2 {
		i = len(c.points) - 2
	}
	return c.segmentPoint(i, c.segmentParam(i, geom.Clamp01(a)))
}

// PointAt samples the curve at global arc-length fraction s in [0,1].
func (c *Curve) PointAt(s float64) geom.Vec3 {
	s = geom.Clamp01(s)
	total := c.Length()
	if total == 0 {
		return c.Point(s)
	}
	target := s * total

	segs := c.Segments()
	i := sort.Search(segs, func(k int) bool { return c.cumulative[k+1] >= target })
	if i >= segs {
		i = segs - 1
	}
	segLen := c.cumulative[i+1] - c.cumulative[i]
	if segLen == 0 {
		return c.points[i]
	}
	return c.SegmentPointAt(i, (target-c.cumulative[i])/segLen)
}

// segmentParam inverts the arc-length table of segment i.
func (c *Curve) segmentParam(i int, a float64) float64 {
	if a == 0 || a == 1 {
		return a
	}
	arc := c.arcs[i]
	segLen := arc[ArcDivisions]
	if segLen == 0 {
		return a
	}
	target := a * segLen

	k := sort.SearchFloat64s(arc, target)
	if k < len(arc) && arc[k] == target {
		return float64(k) / ArcDivisions
	}
	// arc[k-1] < target < arc[k]
	lo, hi := arc[k-1], arc[k]
	return (float64(k-1) + (target-lo)/(hi-lo)) / ArcDivisions
}

func (c *Curve) buildArcTable() {
	segs := c.Segments()
	c.arcs = make([][]float64, segs)
	c.cumulative = make([]float64, segs+1)

	for i := 0; i < segs; i++ {
		arc := make([]float64, ArcDivisions+1)
		prev := c.segmentPoint(i, 0)
		for k := 1; k <= ArcDivisions; k++ {
			cur := c.segmentPoint(i, float64(k)/ArcDivisions)
			arc[k] = arc[k-1] + cur.Dist(prev)
			prev = cur
		}
		c.arcs[i] = arc
		c.cumulative[i+1] = c.cumulative[i] + arc[ArcDivisions]
	}
}

// segmentPoint evaluates segment i at raw weight w in [0,1].
func (c *Curve) segmentPoint(i int, w float64) geom.Vec3 {
	p1 := c.points[i]
	p2 := c.points[i+1]
	if w == 0 {
		return p1
	}
	if w == 1 {
		return p2
	}

	var p0, p3 geom.Vec3
	if i > 0 {
		p0 = c.points[i-1]
	} else {
		p0 = p1.Scale(2).Sub(p2)
	}
	if i+2 < len(c.points) {
		p3 = c.points[i+2]
	} else {
		p3 = p2.Scale(2).Sub(p1)
	}

	pow := c.alpha / 2 // applied to squared distances
	dt0 := math.Pow(p0.DistSquared(p1), pow)
	dt1 := math.Pow(p1.DistSquared(p2), pow)
	dt2 := math.Pow(p2.DistSquared(p3), pow)

	if dt1 < minSpan {
		dt1 = 1.0
	}
	if dt0 < minSpan {
		dt0 = dt1
	}
	if dt2 < minSpan {
		dt2 = dt1
	}

	var out geom.Vec3
	for k := 0; k < 3; k++ {
		out[k] = nonUniformCatmullRom(p0[k], p1[k], p2[k], p3[k], dt0, dt1, dt2, w)
	}
	return out
}

// nonUniformCatmullRom evaluates one component of a Catmull-Rom segment
// between x1 and x2 with knot spans dt0, dt1, dt2, as a cubic Hermite.
func nonUniformCatmullRom(x0, x1, x2, x3, dt0, dt1, dt2, w float64) float64 {
	t1 := (x1-x0)/dt0 - (x2-x0)/(dt0+dt1) + (x2-x1)/dt1
	t2 := (x2-x1)/dt1 - (x3-x1)/(dt1+dt2) + (x3-x2)/dt2
	t1 *= dt1
	t2 *= dt1

	c0 := x1
	c1 := t1
	c2 := -3*x1 + 3*x2 - 2*t1 - t2
	c3 := 2*x1 - 2*x2 + t1 + t2

	w2 := w * w
	return c0 + c1*w + c2*w2 + c3*w2*w
}
