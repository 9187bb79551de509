package engine

import (
	"errors"
	"math"
	"sort"

	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/effects"
)

// ErrNoChapters is returned when there is no chapter to resolve progress into.
var ErrNoChapters = errors.New("project has no chapters")

// Resolution is the chapter a global progress value falls into.
type Resolution struct {
	Chapter  *director.Chapter
	Local    float64 // progress within the chapter, in [0,1]
	Fallback bool    // no chapter contained the progress
}

// SortChapters returns pointers to chapters ordered by StartProgress. Equal
// starts keep list order.
func SortChapters(chapters []director.Chapter) []*director.Chapter {
	out := make([]*director.Chapter, len(chapters))
	for i := range chapters {
		out[i] = &chapters[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartProgress < out[j].StartProgress
	})
	return out
}

// Resolve maps global progress to a chapter and the local progress inside it.
//
// A chapter owns [start, end). Progress equal to the end of a chapter that is
// not the start of another one (the end of the story, or a zero-length
// chapter) belongs to the first chapter ending there. Progress no chapter
// contains falls back to the first chapter.
func Resolve(progress float64, chapters []director.Chapter) (Resolution, error) {
	return resolveSorted(progress, SortChapters(chapters))
}

func resolveSorted(progress float64, sorted []*director.Chapter) (Resolution, error) {
	if len(sorted) == 0 {
		return Resolution{}, ErrNoChapters
	}
	if math.IsNaN(progress) {
		return Resolution{Chapter: sorted[0], Fallback: true}, nil
	}

	for _, ch := range sorted {
		if progress >= ch.StartProgress && progress < ch.EndProgress {
			return Resolution{Chapter: ch, Local: ch.Local(progress)}, nil
		}
	}
	for _, ch := range sorted {
		if ch.Contains(progress) {
			return Resolution{Chapter: ch, Local: ch.Local(progress)}, nil
		}
	}
	ch := sorted[0]
	return Resolution{Chapter: ch, Local: ch.Local(progress), Fallback: true}, nil
}

// Tracker turns successive resolutions into chapter-changed transitions and
// applies the new chapter's environment once per switch.
type Tracker struct {
	Sink    effects.EnvironmentSink
	current string
	started bool
}

// Observe records the active chapter. It reports true, after applying env,
// only when the chapter differs from the previous call.
func (t *Tracker) Observe(chapterID string, env director.Environment) bool {
	if t.started && chapterID == t.current {
		return false
	}
	t.current = chapterID
	t.started = true
	effects.ApplyEnvironment(t.Sink, env)
	return true
}

// Current returns the last observed chapter ID.
func (t *Tracker) Current() string {
	return t.current
}

// Reset forgets the active chapter, so the next Observe reports a change.
func (t *Tracker) Reset() {
	t.current = ""
	t.started = false
}
