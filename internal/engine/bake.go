package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/storyrig/internal/director"
)

// BakeFile is the parity file shipped with an exported player: frames sampled
// from the editor engine that the player must reproduce.
type BakeFile struct {
	Version string  `json:"version"`
	Title   string  `json:"title,omitempty"`
	Frames  []Frame `json:"frames"`
}

// Steps returns n+1 evenly spaced progress values from 0 to 1.
func Steps(n int) []float64 {
	if n < 1 {
		n = 1
	}
	out := make([]float64, n+1)
	for i := range out {
		out[i] = float64(i) / float64(n)
	}
	return out
}

// Bake samples every progress value concurrently with up to workers
// goroutines. The first failure cancels the rest.
func (e *Engine) Bake(ctx context.Context, progresses []float64, workers int) ([]Frame, error) {
	frames := make([]Frame, len(progresses))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, p := range progresses {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := e.Sample(p)
			if err != nil {
				return fmt.Errorf("progress %.4f: %w", p, err)
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

// Mismatch is one differing value between two bakes.
type Mismatch struct {
	Index    int
	Progress float64
	Field    string
	A, B     string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("frame %d (progress %.4f): %s %s != %s", m.Index, m.Progress, m.Field, m.A, m.B)
}

// Compare checks two bakes for parity: same chapters, camera values within
// tol. It returns every mismatch found.
func Compare(a, b []Frame, tol float64) []Mismatch {
	var out []Mismatch
	if len(a) != len(b) {
		return []Mismatch{{Index: -1, Field: "frames", A: fmt.Sprint(len(a)), B: fmt.Sprint(len(b))}}
	}

	for i := range a {
		fa, fb := a[i], b[i]
		add := func(field string, va, vb any) {
			out = append(out, Mismatch{Index: i, Progress: fa.Progress, Field: field, A: fmt.Sprint(va), B: fmt.Sprint(vb)})
		}
		num := func(field string, va, vb float64) {
			if math.Abs(va-vb) > tol || math.IsNaN(va) != math.IsNaN(vb) {
				add(field, va, vb)
			}
		}

		num("progress", fa.Progress, fb.Progress)
		if fa.ChapterID != fb.ChapterID {
			add("chapter", fa.ChapterID, fb.ChapterID)
			continue
		}
		for k := 0; k < 3; k++ {
			num(fmt.Sprintf("position[%d]", k), fa.Camera.Position[k], fb.Camera.Position[k])
			num(fmt.Sprintf("target[%d]", k), fa.Camera.Target[k], fb.Camera.Target[k])
		}
		for k := 0; k < 4; k++ {
			num(fmt.Sprintf("orientation[%d]", k), fa.Camera.Orientation[k], fb.Camera.Orientation[k])
		}
		num("fov", fa.Camera.FOV, fb.Camera.FOV)
		num("lens.focusDistance", fa.Camera.Lens.FocusDistance, fb.Camera.Lens.FocusDistance)
		num("lens.aperture", fa.Camera.Lens.Aperture, fb.Camera.Lens.Aperture)
		num("lens.bokehScale", fa.Camera.Lens.BokehScale, fb.Camera.Lens.BokehScale)
	}
	return out
}

// EncodeBake writes frames as a parity file.
func EncodeBake(w io.Writer, p *director.Project, frames []Frame) error {
	bf := BakeFile{Version: director.ProjectVersion, Frames: frames}
	if p != nil {
		bf.Title = p.Title
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bf)
}

// WriteBake writes a parity file to path.
func WriteBake(path string, p *director.Project, frames []Frame) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeBake(f, p, frames); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadBake reads a parity file.
func ReadBake(path string) (*BakeFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bf BakeFile
	if err := json.NewDecoder(f).Decode(&bf); err != nil {
		return nil, fmt.Errorf("decode bake %s: %w", path, err)
	}
	return &bf, nil
}
