package director

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/ivlev/storyrig/internal/geom"
)

var (
	ErrUnknownChapter  = errors.New("unknown chapter")
	ErrUnknownKeyframe = errors.New("unknown keyframe")
	ErrUnknownItem     = errors.New("unknown beat or annotation")
)

// ChangeKind says what part of a project an edit touched.
type ChangeKind int

const (
	// ChangeStructure: chapters were added, removed or re-timed.
	ChangeStructure ChangeKind = iota
	// ChangePath: keyframes or spline tension of one chapter changed, its
	// curves must be rebuilt.
	ChangePath
	// ChangeContent: beats, annotations, environment or lens of one chapter.
	ChangeContent
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeStructure:
		return "structure"
	case ChangePath:
		return "path"
	case ChangeContent:
		return "content"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change is reported to listeners after every successful edit.
type Change struct {
	Kind      ChangeKind
	ChapterID string
}

// View is a camera snapshot handed over by the scene when the user captures
// the current view.
type View struct {
	Position    geom.Vec3
	Target      geom.Vec3
	Orientation geom.Quat
	FOV         float64
	Lens        *Lens
}

// Director edits a project: chapter and keyframe CRUD plus the active chapter
// selection. It has a single writer (the editing UI); readers get snapshots.
type Director struct {
	project   *Project
	active    string
	listeners []func(Change)
}

// New creates a Director over p. A nil project starts empty.
func New(p *Project) *Director {
	if p == nil {
		p = &Project{Version: ProjectVersion}
	}
	d := &Director{project: p}
	if len(p.Chapters) > 0 {
		d.active = p.Chapters[0].ID
	}
	return d
}

// Project returns the live project. Callers outside the editing UI should
// use Snapshot.
func (d *Director) Project() *Project {
	return d.project
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (d *Director) Snapshot() (*Project, error) {
	return d.project.Clone()
}

// OnChange registers a listener called after every edit.
func (d *Director) OnChange(fn func(Change)) {
	d.listeners = append(d.listeners, fn)
}

func (d *Director) emit(kind ChangeKind, chapterID string) {
	c := Change{Kind: kind, ChapterID: chapterID}
	for _, fn := range d.listeners {
		fn(c)
	}
}

// Active returns the selected chapter. ok is false when the project has no
// chapters left.
func (d *Director) Active() (ch *Chapter, ok bool) {
	if d.active == "" {
		return nil, false
	}
	return d.project.Chapter(d.active)
}

// SelectChapter makes id the active chapter.
func (d *Director) SelectChapter(id string) error {
	if _, ok := d.project.Chapter(id); !ok {
		return fmt.Errorf("select %q: %w", id, ErrUnknownChapter)
	}
	d.active = id
	return nil
}

// AddChapter appends a chapter covering [start, end] and selects it.
func (d *Director) AddChapter(title string, start, end float64) *Chapter {
	d.project.Chapters = append(d.project.Chapters, Chapter{
		ID:            uuid.NewString(),
		Title:         title,
		StartProgress: start,
		EndProgress:   end,
		SplineAlpha:   0.5,
		Environment:   Environment{Background: "#000000", Exposure: 1},
		Lens:          Lens{FocusDistance: 10, Aperture: 0.02, BokehScale: 1},
	})
	ch := &d.project.Chapters[len(d.project.Chapters)-1]
	d.active = ch.ID
	d.emit(ChangeStructure, ch.ID)
	return ch
}

// DuplicateChapter inserts a deep copy of chapter id right after it. Every
// copied item gets a fresh ID.
func (d *Director) DuplicateChapter(id string) (*Chapter, error) {
	idx := d.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("duplicate %q: %w", id, ErrUnknownChapter)
	}

	var dup Chapter
	if err := copier.CopyWithOption(&dup, &d.project.Chapters[idx], copier.Option{DeepCopy: true, IgnoreEmpty: true}); err != nil {
		return nil, fmt.Errorf("duplicate %q: %w", id, err)
	}
	dup.ID = uuid.NewString()
	if dup.Title != "" {
		dup.Title += " (copy)"
	}
	for i := range dup.Keyframes {
		dup.Keyframes[i].ID = uuid.NewString()
	}
	for i := range dup.Beats {
		dup.Beats[i].ID = uuid.NewString()
	}
	for i := range dup.Annotations {
		dup.Annotations[i].ID = uuid.NewString()
	}

	chapters := d.project.Chapters
	chapters = append(chapters[:idx+1], append([]Chapter{dup}, chapters[idx+1:]...)...)
	d.project.Chapters = chapters

	ch := &d.project.Chapters[idx+1]
	d.emit(ChangeStructure, ch.ID)
	return ch, nil
}

// DeleteChapter removes chapter id. Deleting the active chapter selects the
// chapter that took its place, else the previous one, else nothing.
func (d *Director) DeleteChapter(id string) error {
	idx := d.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("delete %q: %w", id, ErrUnknownChapter)
	}

	d.project.Chapters = append(d.project.Chapters[:idx], d.project.Chapters[idx+1:]...)

	if d.active == id {
		switch {
		case idx < len(d.project.Chapters):
			d.active = d.project.Chapters[idx].ID
		case idx > 0:
			d.active = d.project.Chapters[idx-1].ID
		default:
			d.active = ""
		}
	}
	d.emit(ChangeStructure, id)
	return nil
}

// UpdateChapter applies fn to chapter id. The edit is reported as a path
// change since fn may touch timing or tension.
func (d *Director) UpdateChapter(id string, fn func(*Chapter)) error {
	ch, ok := d.project.Chapter(id)
	if !ok {
		return fmt.Errorf("update %q: %w", id, ErrUnknownChapter)
	}
	start, end := ch.StartProgress, ch.EndProgress
	fn(ch)
	ch.ID = id
	if ch.StartProgress != start || ch.EndProgress != end {
		d.emit(ChangeStructure, id)
		return nil
	}
	d.emit(ChangePath, id)
	return nil
}

// CaptureKeyframe stores view as a new keyframe of chapter chapterID at the
// given global progress.
func (d *Director) CaptureKeyframe(chapterID string, progress float64, view View) (*Keyframe, error) {
	ch, ok := d.project.Chapter(chapterID)
	if !ok {
		return nil, fmt.Errorf("capture: %w", ErrUnknownChapter)
	}
	kf := Keyframe{
		ID:          uuid.NewString(),
		Progress:    ch.Local(progress),
		Position:    view.Position,
		Target:      view.Target,
		Orientation: view.Orientation,
		FOV:         view.FOV,
	}
	if view.Lens != nil {
		l := *view.Lens
		kf.Lens = &l
	}
	ch.Keyframes = append(ch.Keyframes, kf)
	d.emit(ChangePath, chapterID)
	return &ch.Keyframes[len(ch.Keyframes)-1], nil
}

// UpdateKeyframe applies fn to keyframe kfID of chapter chapterID.
func (d *Director) UpdateKeyframe(chapterID, kfID string, fn func(*Keyframe)) error {
	ch, ok := d.project.Chapter(chapterID)
	if !ok {
		return fmt.Errorf("update keyframe: %w", ErrUnknownChapter)
	}
	kf, ok := ch.Keyframe(kfID)
	if !ok {
		return fmt.Errorf("update keyframe %q: %w", kfID, ErrUnknownKeyframe)
	}
	fn(kf)
	kf.ID = kfID
	d.emit(ChangePath, chapterID)
	return nil
}

// RemoveKeyframe deletes keyframe kfID of chapter chapterID.
func (d *Director) RemoveKeyframe(chapterID, kfID string) error {
	ch, ok := d.project.Chapter(chapterID)
	if !ok {
		return fmt.Errorf("remove keyframe: %w", ErrUnknownChapter)
	}
	for i := range ch.Keyframes {
		if ch.Keyframes[i].ID == kfID {
			ch.Keyframes = append(ch.Keyframes[:i], ch.Keyframes[i+1:]...)
			d.emit(ChangePath, chapterID)
			return nil
		}
	}
	return fmt.Errorf("remove keyframe %q: %w", kfID, ErrUnknownKeyframe)
}

// AddBeat appends a narrative beat. An empty ID is filled in.
func (d *Director) AddBeat(chapterID string, b Beat) (*Beat, error) {
	ch, ok := d.project.Chapter(chapterID)
	if !ok {
		return nil, fmt.Errorf("add beat: %w", ErrUnknownChapter)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	ch.Beats = append(ch.Beats, b)
	d.emit(ChangeContent, chapterID)
	return &ch.Beats[len(ch.Beats)-1], nil
}

// RemoveBeat deletes beat id from chapter chapterID.
func (d *Director) RemoveBeat(chapterID, id string) error {
	ch, ok := d.project.Chapter(chapterID)
	if !ok {
		return fmt.Errorf("remove beat: %w", ErrUnknownChapter)
	}
	for i := range ch.Beats {
		if ch.Beats[i].ID == id {
			ch.Beats = append(ch.Beats[:i], ch.Beats[i+1:]...)
			d.emit(ChangeContent, chapterID)
			return nil
		}
	}
	return fmt.Errorf("remove beat %q: %w", id, ErrUnknownItem)
}

// AddAnnotation appends a spatial annotation. An empty ID is filled in.
func (d *Director) AddAnnotation(chapterID string, a Annotation) (*Annotation, error) {
	ch, ok := d.project.Chapter(chapterID)
	if !ok {
		return nil, fmt.Errorf("add annotation: %w", ErrUnknownChapter)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	ch.Annotations = append(ch.Annotations, a)
	d.emit(ChangeContent, chapterID)
	return &ch.Annotations[len(ch.Annotations)-1], nil
}

// RemoveAnnotation deletes annotation id from chapter chapterID.
func (d *Director) RemoveAnnotation(chapterID, id string) error {
	ch, ok := d.project.Chapter(chapterID)
	if !ok {
		return fmt.Errorf("remove annotation: %w", ErrUnknownChapter)
	}
	for i := range ch.Annotations {
		if ch.Annotations[i].ID == id {
			ch.Annotations = append(ch.Annotations[:i], ch.Annotations[i+1:]...)
			d.emit(ChangeContent, chapterID)
			return nil
		}
	}
	return fmt.Errorf("remove annotation %q: %w", id, ErrUnknownItem)
}

func (d *Director) indexOf(id string) int {
	for i := range d.project.Chapters {
		if d.project.Chapters[i].ID == id {
			return i
		}
	}
	return -1
}
