package director

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/storyrig/internal/geom"
)

func TestDirectorChapters(t *testing.T) {
	d := New(nil)
	_, ok := d.Active()
	assert.False(t, ok, "empty director has no active chapter")

	var changes []Change
	d.OnChange(func(c Change) { changes = append(changes, c) })

	a := d.AddChapter("A", 0, 0.5).ID
	b := d.AddChapter("B", 0.5, 1).ID

	active, ok := d.Active()
	require.True(t, ok)
	assert.Equal(t, b, active.ID)
	assert.Len(t, changes, 2)
	assert.Equal(t, ChangeStructure, changes[0].Kind)

	require.NoError(t, d.SelectChapter(a))
	require.NoError(t, d.DeleteChapter(a))
	active, ok = d.Active()
	require.True(t, ok)
	assert.Equal(t, b, active.ID, "deleting the active chapter selects the next one")

	require.NoError(t, d.DeleteChapter(b))
	_, ok = d.Active()
	assert.False(t, ok, "deleting the last chapter leaves the empty state")

	assert.ErrorIs(t, d.DeleteChapter("missing"), ErrUnknownChapter)
	assert.ErrorIs(t, d.SelectChapter("missing"), ErrUnknownChapter)
}

func TestDirectorDeleteLastSelectsPrevious(t *testing.T) {
	d := New(nil)
	a := d.AddChapter("A", 0, 0.5).ID
	b := d.AddChapter("B", 0.5, 1).ID

	require.NoError(t, d.DeleteChapter(b))
	active, ok := d.Active()
	require.True(t, ok)
	assert.Equal(t, a, active.ID)
}

func TestDuplicateChapter(t *testing.T) {
	d := New(nil)
	src := d.AddChapter("A", 0, 1).ID
	_, err := d.CaptureKeyframe(src, 0.25, View{Position: geom.V3(1, 2, 3), FOV: 40, Lens: &Lens{Aperture: 0.1}})
	require.NoError(t, err)
	_, err = d.AddBeat(src, Beat{Progress: 0.2, Title: "t"})
	require.NoError(t, err)

	dup, err := d.DuplicateChapter(src)
	require.NoError(t, err)
	require.Len(t, d.Project().Chapters, 2)

	orig, _ := d.Project().Chapter(src)
	assert.NotEqual(t, orig.ID, dup.ID)
	assert.Equal(t, "A (copy)", dup.Title)
	require.Len(t, dup.Keyframes, 1)
	assert.NotEqual(t, orig.Keyframes[0].ID, dup.Keyframes[0].ID)
	assert.Equal(t, orig.Keyframes[0].Position, dup.Keyframes[0].Position)
	assert.NotEqual(t, orig.Beats[0].ID, dup.Beats[0].ID)

	// deep copy: editing the copy leaves the original alone
	dup.Keyframes[0].Lens.Aperture = 0.5
	dup.Keyframes[0].Position[0] = 99
	assert.Equal(t, 0.1, orig.Keyframes[0].Lens.Aperture)
	assert.Equal(t, 1.0, orig.Keyframes[0].Position[0])
}

func TestKeyframeCRUD(t *testing.T) {
	d := New(nil)
	ch := d.AddChapter("A", 0.5, 1).ID

	var kinds []ChangeKind
	d.OnChange(func(c Change) { kinds = append(kinds, c.Kind) })

	kf, err := d.CaptureKeyframe(ch, 0.75, View{FOV: 50})
	require.NoError(t, err)
	assert.Equal(t, 0.5, kf.Progress, "capture converts global to chapter-local progress")
	id := kf.ID

	require.NoError(t, d.UpdateKeyframe(ch, id, func(k *Keyframe) {
		k.FOV = 60
		k.ID = "overwritten"
	}))
	c, _ := d.Project().Chapter(ch)
	got, ok := c.Keyframe(id)
	require.True(t, ok, "keyframe ID is preserved across updates")
	assert.Equal(t, 60.0, got.FOV)

	assert.ErrorIs(t, d.UpdateKeyframe(ch, "nope", func(*Keyframe) {}), ErrUnknownKeyframe)
	require.NoError(t, d.RemoveKeyframe(ch, id))
	assert.ErrorIs(t, d.RemoveKeyframe(ch, id), ErrUnknownKeyframe)
	assert.Equal(t, []ChangeKind{ChangePath, ChangePath, ChangePath}, kinds)
}

func TestUpdateChapterTiming(t *testing.T) {
	d := New(nil)
	ch := d.AddChapter("A", 0, 1).ID

	var last Change
	d.OnChange(func(c Change) { last = c })

	require.NoError(t, d.UpdateChapter(ch, func(c *Chapter) { c.SplineAlpha = 1 }))
	assert.Equal(t, ChangePath, last.Kind)

	require.NoError(t, d.UpdateChapter(ch, func(c *Chapter) { c.EndProgress = 0.5 }))
	assert.Equal(t, ChangeStructure, last.Kind)
}

func TestBeatsAndAnnotations(t *testing.T) {
	d := New(nil)
	ch := d.AddChapter("A", 0, 1).ID

	b, err := d.AddBeat(ch, Beat{Progress: 0.3})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	a, err := d.AddAnnotation(ch, Annotation{VisibleAt: 0.3})
	require.NoError(t, err)

	require.NoError(t, d.RemoveBeat(ch, b.ID))
	require.NoError(t, d.RemoveAnnotation(ch, a.ID))
	assert.ErrorIs(t, d.RemoveBeat(ch, b.ID), ErrUnknownItem)
	assert.ErrorIs(t, d.RemoveAnnotation(ch, a.ID), ErrUnknownItem)
	_, err = d.AddBeat("missing", Beat{})
	assert.ErrorIs(t, err, ErrUnknownChapter)
}

func TestChapterLocal(t *testing.T) {
	ch := Chapter{StartProgress: 0, EndProgress: 0.5}
	assert.InDelta(t, 0.98, ch.Local(0.49), 1e-12)
	assert.Equal(t, 0.0, ch.Local(-1))
	assert.Equal(t, 1.0, ch.Local(0.7))

	point := Chapter{StartProgress: 0.3, EndProgress: 0.3}
	assert.Equal(t, 0.0, point.Local(0.3))
	assert.InDelta(t, 0.2, point.Local(0.5), 1e-12)
}

func TestProjectRoundTripJSON(t *testing.T) {
	p := SampleProject()

	var buf bytes.Buffer
	require.NoError(t, EncodeProject(&buf, p))
	got, err := DecodeProject(&buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestProjectRoundTripFiles(t *testing.T) {
	p := SampleProject()
	dir := t.TempDir()

	for _, name := range []string{"story.json", "story.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteProject(p, path))
			got, err := ReadProject(path)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestSampleProject(t *testing.T) {
	p := SampleProject()
	require.Len(t, p.Chapters, 3)
	assert.Equal(t, ProjectVersion, p.Version)
	for _, ch := range p.Chapters {
		assert.NotEmpty(t, ch.Keyframes, ch.Title)
		assert.Len(t, ch.Beats, 1, ch.Title)
	}
	assert.Equal(t, 0.0, p.Chapters[0].StartProgress)
	assert.Equal(t, 1.0, p.Chapters[2].EndProgress)
}

func TestClone(t *testing.T) {
	p := SampleProject()
	c, err := p.Clone()
	require.NoError(t, err)
	assert.Equal(t, p, c)

	c.Chapters[0].Keyframes[0].FOV = 1
	assert.NotEqual(t, 1.0, p.Chapters[0].Keyframes[0].FOV)
}
