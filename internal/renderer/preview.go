package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/ivlev/storyrig/internal/geom"
	"github.com/ivlev/storyrig/internal/system"
)

// PreviewOptions controls the top-down path preview.
type PreviewOptions struct {
	Width       int
	Height      int
	Samples     int // samples per chapter path
	Supersample int // render at this multiple, then downscale
	Background  color.Color
}

// DefaultPreviewOptions returns a 1280x720 preview at 2x supersampling.
func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{
		Width:       1280,
		Height:      720,
		Samples:     256,
		Supersample: 2,
		Background:  color.RGBA{R: 18, G: 18, B: 24, A: 255},
	}
}

var chapterColors = []color.RGBA{
	{R: 0x4e, G: 0xc9, B: 0xb0, A: 0xff},
	{R: 0xf2, G: 0xa6, B: 0x5a, A: 0xff},
	{R: 0x8a, G: 0x9b, B: 0xff, A: 0xff},
	{R: 0xe8, G: 0x6a, B: 0x92, A: 0xff},
	{R: 0xd7, G: 0xdc, B: 0x6a, A: 0xff},
}

var targetColor = color.RGBA{R: 0x90, G: 0x90, B: 0x90, A: 0xff}

// RenderPreview draws the camera paths seen from above (X right, Z down):
// the sampled camera path per chapter, the look-at target path in grey and a
// square on every keyframe.
func RenderPreview(paths []*Path, opt PreviewOptions) (*image.RGBA, error) {
	if opt.Width <= 0 || opt.Height <= 0 {
		return nil, fmt.Errorf("invalid preview size %dx%d", opt.Width, opt.Height)
	}
	if opt.Samples < 2 {
		opt.Samples = 2
	}
	if opt.Supersample < 1 {
		opt.Supersample = 1
	}
	if opt.Background == nil {
		opt.Background = color.Black
	}

	type track struct {
		camera, target []geom.Vec3
		keys           []geom.Vec3
	}
	tracks := make([]track, 0, len(paths))
	var all []geom.Vec3
	for _, p := range paths {
		var tr track
		for s := 0; s < opt.Samples; s++ {
			state, err := Interpolate(float64(s)/float64(opt.Samples-1), p)
			if err != nil {
				break
			}
			tr.camera = append(tr.camera, state.Position)
			tr.target = append(tr.target, state.Target)
		}
		for _, kf := range p.Keyframes {
			tr.keys = append(tr.keys, kf.Position)
		}
		all = append(all, tr.camera...)
		all = append(all, tr.target...)
		tracks = append(tracks, tr)
	}

	w, h := opt.Width*opt.Supersample, opt.Height*opt.Supersample
	canvas := system.GetImage(image.Rect(0, 0, w, h))
	defer system.PutImage(canvas)
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(opt.Background), image.Point{}, draw.Src)

	project := fitTopDown(all, w, h)
	lw := float32(2 * opt.Supersample)
	z := vector.NewRasterizer(w, h)

	for i, tr := range tracks {
		z.Reset(w, h)
		strokePolyline(z, tr.target, project, lw/2)
		z.Draw(canvas, canvas.Bounds(), image.NewUniform(targetColor), image.Point{})

		z.Reset(w, h)
		strokePolyline(z, tr.camera, project, lw)
		for _, k := range tr.keys {
			x, y := project(k)
			s := 3 * lw
			z.MoveTo(x-s, y-s)
			z.LineTo(x+s, y-s)
			z.LineTo(x+s, y+s)
			z.LineTo(x-s, y+s)
			z.ClosePath()
		}
		z.Draw(canvas, canvas.Bounds(), image.NewUniform(chapterColors[i%len(chapterColors)]), image.Point{})
	}

	out := image.NewRGBA(image.Rect(0, 0, opt.Width, opt.Height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)
	return out, nil
}

// EncodePreview writes img as PNG or WebP.
func EncodePreview(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "webp":
		if err := nativewebp.Encode(w, img, nil); err != nil {
			return fmt.Errorf("webp encode: %w", err)
		}
		return nil
	case "png", "":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unknown preview format: %s", format)
	}
}

// PreviewFormat derives the preview format from a file name.
func PreviewFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		return "webp"
	}
	return "png"
}

// fitTopDown maps the X/Z extent of points into a w*h image with a margin,
// keeping the aspect ratio.
func fitTopDown(points []geom.Vec3, w, h int) func(geom.Vec3) (float32, float32) {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if !p.IsFinite() {
			continue
		}
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minZ, maxZ = math.Min(minZ, p[2]), math.Max(maxZ, p[2])
	}
	if math.IsInf(minX, 1) {
		minX, maxX, minZ, maxZ = -1, 1, -1, 1
	}

	spanX := math.Max(maxX-minX, 1e-6)
	spanZ := math.Max(maxZ-minZ, 1e-6)
	margin := 0.08
	scale := math.Min(float64(w)*(1-2*margin)/spanX, float64(h)*(1-2*margin)/spanZ)
	cx, cz := (minX+maxX)/2, (minZ+maxZ)/2

	return func(p geom.Vec3) (float32, float32) {
		return float32(float64(w)/2 + (p[0]-cx)*scale), float32(float64(h)/2 + (p[2]-cz)*scale)
	}
}

// strokePolyline adds one quad per segment of width lw to z.
func strokePolyline(z *vector.Rasterizer, pts []geom.Vec3, project func(geom.Vec3) (float32, float32), lw float32) {
	for i := 1; i < len(pts); i++ {
		x0, y0 := project(pts[i-1])
		x1, y1 := project(pts[i])
		dx, dy := x1-x0, y1-y0
		l := float32(math.Hypot(float64(dx), float64(dy)))
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*lw/2, dx/l*lw/2
		z.MoveTo(x0+nx, y0+ny)
		z.LineTo(x1+nx, y1+ny)
		z.LineTo(x1-nx, y1-ny)
		z.LineTo(x0-nx, y0-ny)
		z.ClosePath()
	}
}
