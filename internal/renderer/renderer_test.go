package renderer

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/geom"
)

func key(progress float64, pos geom.Vec3, fov float64) director.Keyframe {
	return director.Keyframe{
		Progress:    progress,
		Position:    pos,
		Target:      geom.V3(0, 0, 0),
		Orientation: geom.IdentityQuat(),
		FOV:         fov,
	}
}

func chapter(alpha float64, kfs ...director.Keyframe) *director.Chapter {
	return &director.Chapter{
		ID:          "ch",
		EndProgress: 1,
		SplineAlpha: alpha,
		Lens:        director.Lens{FocusDistance: 10, Aperture: 0.02, BokehScale: 1},
		Keyframes:   kfs,
	}
}

func TestInterpolateTwoKeyframes(t *testing.T) {
	p := NewPath(chapter(0.5,
		key(0, geom.V3(0, 0, 0), 40),
		key(1, geom.V3(10, 0, 10), 60),
	))

	tests := []struct {
		t       float64
		wantPos geom.Vec3
		wantFOV float64
	}{
		{0, geom.V3(0, 0, 0), 40},
		{0.5, geom.V3(5, 0, 5), 50},
		{1, geom.V3(10, 0, 10), 60},
		{-0.5, geom.V3(0, 0, 0), 40},
		{1.5, geom.V3(10, 0, 10), 60},
	}

	for _, tt := range tests {
		state, err := Interpolate(tt.t, p)
		require.NoError(t, err)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, tt.wantPos[k], state.Position[k], 1e-6, "t=%v axis %d", tt.t, k)
		}
		assert.InDelta(t, tt.wantFOV, state.FOV, 1e-9, "t=%v", tt.t)
	}
}

func TestInterpolatePassesThroughKeyframes(t *testing.T) {
	kfs := []director.Keyframe{
		key(0, geom.V3(0, 0, 8), 45),
		key(0.2, geom.V3(5, 1, 6), 40),
		key(0.55, geom.V3(8, 2, 0), 35),
		key(0.7, geom.V3(3, 0, -4), 50),
		key(1, geom.V3(-2, 3, -6), 60),
	}

	for _, alpha := range []float64{0, 0.5, 1} {
		p := NewPath(chapter(alpha, kfs...))
		for _, kf := range kfs {
			state, err := Interpolate(kf.Progress, p)
			require.NoError(t, err)
			assert.Equal(t, kf.Position, state.Position, "alpha=%v progress=%v", alpha, kf.Progress)
			assert.Equal(t, kf.FOV, state.FOV)
		}
	}
}

func TestInterpolateSingleKeyframe(t *testing.T) {
	kf := key(0.3, geom.V3(1, 2, 3), 42)
	kf.Lens = &director.Lens{FocusDistance: 3, Aperture: 0.1, BokehScale: 2}
	p := NewPath(chapter(0.5, kf))

	for _, at := range []float64{0, 0.3, 0.9, 1} {
		state, err := Interpolate(at, p)
		require.NoError(t, err)
		assert.Equal(t, kf.Position, state.Position)
		assert.Equal(t, kf.FOV, state.FOV)
		assert.Equal(t, *kf.Lens, state.Lens)
	}
}

func TestInterpolateNoKeyframes(t *testing.T) {
	_, err := Interpolate(0.5, NewPath(chapter(0.5)))
	assert.ErrorIs(t, err, ErrNoKeyframes)

	_, err = Interpolate(0.5, nil)
	assert.ErrorIs(t, err, ErrNoKeyframes)
}

func TestInterpolateCoincidentProgress(t *testing.T) {
	p := NewPath(chapter(0.5,
		key(0.5, geom.V3(0, 0, 0), 40),
		key(0.5, geom.V3(1, 0, 0), 50),
		key(0.5, geom.V3(2, 0, 0), 60),
	))

	for _, at := range []float64{0, 0.5, 0.50005, 0.5001, 0.6, 1} {
		state, err := Interpolate(at, p)
		require.NoError(t, err)
		assert.True(t, state.Position.IsFinite(), "t=%v", at)
		assert.False(t, math.IsNaN(state.FOV), "t=%v", at)
		for _, v := range state.Orientation {
			assert.False(t, math.IsNaN(v))
		}
	}
}

func TestSortKeyframes(t *testing.T) {
	in := []director.Keyframe{
		{ID: "c", Progress: 0.8},
		{ID: "a", Progress: 0.2},
		{ID: "b", Progress: 0.2},
		{ID: "n", Progress: math.NaN()},
	}
	got := SortKeyframes(in)

	ids := make([]string, len(got))
	for i, kf := range got {
		ids[i] = kf.ID
	}
	assert.Equal(t, []string{"n", "a", "b", "c"}, ids, "stable for ties")
	assert.Equal(t, 0.0, got[0].Progress)
	assert.InDelta(t, 0.2+KeyframeEpsilon, got[2].Progress, 1e-12)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Progress, got[i-1].Progress)
	}
	assert.Equal(t, 0.2, in[2].Progress, "input is not modified")
}

func TestInterpolateLensAndOrientation(t *testing.T) {
	a := key(0, geom.V3(0, 0, 0), 40)
	a.Orientation = geom.QuatAxisAngle(geom.V3(0, 1, 0), 0)
	b := key(1, geom.V3(4, 0, 0), 40)
	b.Orientation = geom.QuatAxisAngle(geom.V3(0, 1, 0), math.Pi/2)
	b.Lens = &director.Lens{FocusDistance: 20, Aperture: 0.06, BokehScale: 3}

	state, err := Interpolate(0.5, NewPath(chapter(0, a, b)))
	require.NoError(t, err)

	// a falls back to the chapter lens
	assert.InDelta(t, 15, state.Lens.FocusDistance, 1e-9)
	assert.InDelta(t, 0.04, state.Lens.Aperture, 1e-9)
	assert.InDelta(t, 2, state.Lens.BokehScale, 1e-9)
	assert.InDelta(t, math.Pi/4, state.Orientation.AngleTo(a.Orientation), 1e-9)
}

func TestCurveConstantSpeedInsideSegment(t *testing.T) {
	c := NewCurve([]geom.Vec3{
		geom.V3(0, 0, 0),
		geom.V3(1, 0, 6),
		geom.V3(8, 0, 7),
		geom.V3(9, 0, 0),
	}, 0.5)
	require.NotNil(t, c)

	for seg := 0; seg < c.Segments(); seg++ {
		const steps = 10
		prev := c.SegmentPointAt(seg, 0)
		var dists []float64
		for k := 1; k <= steps; k++ {
			cur := c.SegmentPointAt(seg, float64(k)/steps)
			dists = append(dists, cur.Dist(prev))
			prev = cur
		}
		for _, d := range dists[1:] {
			assert.InEpsilon(t, dists[0], d, 0.05, "segment %d", seg)
		}
	}
}

func TestCurveEndpointsAndLength(t *testing.T) {
	assert.Nil(t, NewCurve([]geom.Vec3{geom.V3(1, 1, 1)}, 0.5))

	c := NewCurve([]geom.Vec3{geom.V3(0, 0, 0), geom.V3(10, 0, 10)}, 0.5)
	assert.InDelta(t, math.Sqrt(200), c.Length(), 1e-6)
	assert.Equal(t, geom.V3(0, 0, 0), c.PointAt(0))
	assert.Equal(t, geom.V3(10, 0, 10), c.PointAt(1))
	assert.Equal(t, geom.V3(10, 0, 10), c.Point(1))

	pts := []geom.Vec3{geom.V3(0, 0, 0), geom.V3(2, 0, 0), geom.V3(2, 0, 2)}
	c = NewCurve(pts, 1)
	for i, p := range pts {
		assert.Equal(t, p, c.Point(float64(i)/2))
	}
}

func TestBuildCurvesNeedsTwoKeyframes(t *testing.T) {
	pos, target := BuildCurves([]director.Keyframe{key(0, geom.V3(0, 0, 0), 40)}, 0.5)
	assert.Nil(t, pos)
	assert.Nil(t, target)
}

func TestRenderPreview(t *testing.T) {
	project := director.SampleProject()
	var paths []*Path
	for i := range project.Chapters {
		paths = append(paths, NewPath(&project.Chapters[i]))
	}

	opt := DefaultPreviewOptions()
	opt.Width, opt.Height, opt.Samples = 160, 90, 64
	img, err := RenderPreview(paths, opt)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 160, 90), img.Bounds())

	bg := color.RGBAModel.Convert(opt.Background).(color.RGBA)
	drawn := 0
	for y := 0; y < 90; y++ {
		for x := 0; x < 160; x++ {
			if img.RGBAAt(x, y) != bg {
				drawn++
			}
		}
	}
	assert.Positive(t, drawn, "paths are drawn")

	for _, format := range []string{"png", "webp"} {
		var buf bytes.Buffer
		require.NoError(t, EncodePreview(&buf, img, format), format)
		assert.NotZero(t, buf.Len(), format)
	}
	assert.Error(t, EncodePreview(&bytes.Buffer{}, img, "gif"))

	_, err = RenderPreview(paths, PreviewOptions{})
	assert.Error(t, err)
}

func TestPreviewFormat(t *testing.T) {
	assert.Equal(t, "webp", PreviewFormat("out/path.WEBP"))
	assert.Equal(t, "png", PreviewFormat("out/path.png"))
	assert.Equal(t, "png", PreviewFormat("out/path"))
}

func TestSplineAlphaIsKnotExponent(t *testing.T) {
	pts := []geom.Vec3{
		geom.V3(0, 0, 0),
		geom.V3(1, 0, 6),
		geom.V3(8, 0, 7),
		geom.V3(9, 0, 0),
	}

	// alpha 0 gives evenly spaced knots: the classic uniform Catmull-Rom,
	// here the middle of the inner segment
	uniform := geom.V3(4.5, 0, 7.3125)
	got := NewCurve(pts, 0).Point(0.5)
	for k := 0; k < 3; k++ {
		assert.InDelta(t, uniform[k], got[k], 1e-9, "axis %d", k)
	}

	centripetal := NewCurve(pts, 0.5).Point(0.5)
	assert.Greater(t, centripetal.Dist(uniform), 1e-3, "0.5 is centripetal, not uniform")
}
