package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/effects"
	"github.com/ivlev/storyrig/internal/geom"
	"github.com/ivlev/storyrig/internal/renderer"
)

// ErrNoCameraState is returned when a progress value cannot be turned into a
// camera state. Frame still returns the last good frame, marked Stale.
var ErrNoCameraState = errors.New("no camera state available")

// Camera is the render camera the engine drives, written once per tick.
type Camera interface {
	SetPosition(p geom.Vec3)
	SetOrientation(q geom.Quat)
	SetFOV(fov float64)
	SetLens(l director.Lens)
}

// ProgressSource yields the authoritative progress for each tick.
type ProgressSource interface {
	Step(dt time.Duration) float64
}

// Frame is everything the scene and the overlays need for one tick.
type Frame struct {
	Progress       float64                   `json:"progress"`
	ChapterID      string                    `json:"chapterId"`
	Local          float64                   `json:"local"`
	Camera         renderer.CameraState      `json:"camera"`
	Environment    director.Environment      `json:"environment"`
	Beats          []effects.BeatState       `json:"beats,omitempty"`
	Annotations    []effects.AnnotationState `json:"annotations,omitempty"`
	ChapterChanged bool                      `json:"chapterChanged,omitempty"`
	Stale          bool                      `json:"stale,omitempty"`
}

// pathSet is an immutable snapshot: a project copy and the paths built from
// it. Frames read one set; edits build a new one and swap it in.
type pathSet struct {
	project *director.Project
	sorted  []*director.Chapter
	paths   map[string]*renderer.Path
	beats   []effects.StoryBeat
}

// Engine turns progress into frames. Editor and exported player run the same
// Engine over the same project file.
type Engine struct {
	set     atomic.Pointer[pathSet]
	writeMu sync.Mutex // serializes Load and Rebuild
	workers int

	mu      sync.Mutex // guards tracker and last
	tracker Tracker
	last    Frame
	hasLast bool
}

// New creates an engine building paths with up to workers goroutines
// (0 means one per chapter). sink receives chapter environments, may be nil.
func New(workers int, sink effects.EnvironmentSink) *Engine {
	return &Engine{workers: workers, tracker: Tracker{Sink: sink}}
}

// Project returns the project snapshot frames are computed from.
func (e *Engine) Project() *director.Project {
	if s := e.set.Load(); s != nil {
		return s.project
	}
	return nil
}

// Path returns the built path of a chapter.
func (e *Engine) Path(chapterID string) (*renderer.Path, bool) {
	s := e.set.Load()
	if s == nil {
		return nil, false
	}
	p, ok := s.paths[chapterID]
	return p, ok
}

// Paths returns the built paths in chapter order.
func (e *Engine) Paths() []*renderer.Path {
	s := e.set.Load()
	if s == nil {
		return nil
	}
	out := make([]*renderer.Path, 0, len(s.sorted))
	for _, ch := range s.sorted {
		out = append(out, s.paths[ch.ID])
	}
	return out
}

// Load replaces the project and rebuilds every chapter path concurrently.
// Frames keep reading the previous set until the new one is complete.
func (e *Engine) Load(ctx context.Context, p *director.Project) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.swap(ctx, p, nil)
}

// Rebuild takes a new snapshot of p and rebuilds only the listed chapters,
// reusing the current path of every other chapter. With no IDs only beats,
// annotations and environments are refreshed.
func (e *Engine) Rebuild(p *director.Project, chapterIDs ...string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	old := e.set.Load()
	if old == nil {
		return e.swap(context.Background(), p, nil)
	}
	dirty := make(map[string]bool, len(chapterIDs))
	for _, id := range chapterIDs {
		dirty[id] = true
	}
	reuse := make(map[string]*renderer.Path, len(old.paths))
	for id, path := range old.paths {
		if !dirty[id] {
			reuse[id] = path
		}
	}
	return e.swap(context.Background(), p, reuse)
}

// Follow keeps the engine in sync with the edits of d.
func (e *Engine) Follow(d *director.Director) {
	d.OnChange(func(c director.Change) {
		snap, err := d.Snapshot()
		if err != nil {
			log.Printf("[!] Snapshot failed: %v", err)
			return
		}
		switch c.Kind {
		case director.ChangeStructure:
			err = e.Load(context.Background(), snap)
		case director.ChangePath:
			err = e.Rebuild(snap, c.ChapterID)
		default:
			err = e.Rebuild(snap)
		}
		if err != nil {
			log.Printf("[!] Rebuild after %s change of %s failed: %v", c.Kind, c.ChapterID, err)
		}
	})
}

func (e *Engine) swap(ctx context.Context, p *director.Project, reuse map[string]*renderer.Path) error {
	if p == nil {
		return ErrNoChapters
	}
	snap, err := p.Clone()
	if err != nil {
		return err
	}

	next := &pathSet{
		project: snap,
		sorted:  SortChapters(snap.Chapters),
		paths:   make(map[string]*renderer.Path, len(snap.Chapters)),
		beats:   effects.Beats(snap.Chapters),
	}

	built := make([]*renderer.Path, len(snap.Chapters))
	g, ctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}
	for i := range snap.Chapters {
		ch := &snap.Chapters[i]
		if path, ok := reuse[ch.ID]; ok {
			built[i] = path
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			built[i] = renderer.NewPath(ch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("build paths: %w", err)
	}

	for i := range snap.Chapters {
		next.paths[snap.Chapters[i].ID] = built[i]
	}
	e.set.Store(next)
	return nil
}

// Sample computes the frame at progress without touching the chapter tracker
// or the last good frame. It is safe for concurrent use.
//
// Progress outside [0,1] is clamped before resolution, so overscroll holds
// the first or last chapter at its edge. Resolve, which receives raw values,
// falls back to the first chapter instead.
func (e *Engine) Sample(progress float64) (Frame, error) {
	s := e.set.Load()
	if s == nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrNoCameraState, ErrNoChapters)
	}
	if math.IsNaN(progress) {
		return Frame{}, fmt.Errorf("%w: progress is NaN", ErrNoCameraState)
	}
	progress = geom.Clamp01(progress)

	res, err := resolveSorted(progress, s.sorted)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrNoCameraState, err)
	}
	ch := res.Chapter

	cam, err := renderer.Interpolate(res.Local, s.paths[ch.ID])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: chapter %q: %w", ErrNoCameraState, ch.ID, err)
	}

	return Frame{
		Progress:    progress,
		ChapterID:   ch.ID,
		Local:       res.Local,
		Camera:      cam,
		Environment: ch.Environment,
		Beats:       effects.BeatStates(s.beats, progress),
		Annotations: effects.AnnotationStates(s.project.Chapters, progress),
	}, nil
}

// Frame computes the frame at progress and reports chapter switches exactly
// once. When no state can be computed it returns the last good frame marked
// Stale together with the error.
func (e *Engine) Frame(progress float64) (Frame, error) {
	f, err := e.Sample(progress)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if !e.hasLast {
			return Frame{Progress: progress, Stale: true}, err
		}
		stale := e.last
		stale.Stale = true
		stale.ChapterChanged = false
		return stale, err
	}

	f.ChapterChanged = e.tracker.Observe(f.ChapterID, f.Environment)
	e.last = f
	e.hasLast = true
	return f, nil
}

// ActiveChapter returns the chapter of the last good frame.
func (e *Engine) ActiveChapter() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Current()
}

// Apply writes the camera part of f to cam.
func Apply(cam Camera, f Frame) {
	cam.SetPosition(f.Camera.Position)
	cam.SetOrientation(f.Camera.Orientation)
	cam.SetFOV(f.Camera.FOV)
	cam.SetLens(f.Camera.Lens)
}

// Loop runs the render tick at fps until ctx is done: step the progress
// source, compute the frame, apply it to cam once, hand it to onFrame.
// Stale frames are not applied; the camera holds its last state.
func (e *Engine) Loop(ctx context.Context, src ProgressSource, cam Camera, fps int, onFrame func(Frame, error)) error {
	if fps <= 0 {
		return fmt.Errorf("invalid fps %d", fps)
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now

			f, err := e.Frame(src.Step(dt))
			if err == nil && cam != nil {
				Apply(cam, f)
			}
			if onFrame != nil {
				onFrame(f, err)
			}
		}
	}
}
