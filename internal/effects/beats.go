package effects

import (
	"math"
	"sort"

	"github.com/ivlev/storyrig/internal/director"
)

// BeatSentinel closes the window of the last beat, past the end of the story.
const BeatSentinel = 1.01

// FadeRate is the slope of the crossfade envelope: a beat fades out over
// 1/FadeRate progress units on each side of its activation point.
const FadeRate = 10.0

// StoryBeat is a narrative beat with the chapter it was authored in.
type StoryBeat struct {
	director.Beat
	ChapterID string
}

// BeatState is the visibility of one beat at a given progress.
type BeatState struct {
	ID        string  `json:"id"`
	ChapterID string  `json:"chapterId"`
	Title     string  `json:"title"`
	Style     string  `json:"style,omitempty"`
	Active    bool    `json:"active"`
	Opacity   float64 `json:"opacity"` // 1 while active, else 0
	Fade      float64 `json:"fade"`    // crossfade envelope
}

// Beats flattens the beats of every chapter into one story-wide list ordered
// by progress. Beats with equal progress keep chapter order.
func Beats(chapters []director.Chapter) []StoryBeat {
	var out []StoryBeat
	for _, ch := range chapters {
		for _, b := range ch.Beats {
			out = append(out, StoryBeat{Beat: b, ChapterID: ch.ID})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Progress < out[j].Progress
	})
	return out
}

// ActiveBeat returns the index of the beat whose window [beat, next beat)
// contains progress, or -1 before the first beat and past the sentinel.
func ActiveBeat(beats []StoryBeat, progress float64) int {
	for i := range beats {
		end := BeatSentinel
		if i+1 < len(beats) {
			end = beats[i+1].Progress
		}
		if progress >= beats[i].Progress && progress < end {
			return i
		}
	}
	return -1
}

// BeatFade is max(0, 1 - 10*|progress - beatProgress|).
func BeatFade(progress, beatProgress float64) float64 {
	return math.Max(0, 1-FadeRate*math.Abs(progress-beatProgress))
}

// BeatStates evaluates every beat at progress.
func BeatStates(beats []StoryBeat, progress float64) []BeatState {
	active := ActiveBeat(beats, progress)
	states := make([]BeatState, len(beats))
	for i, b := range beats {
		s := BeatState{
			ID:        b.ID,
			ChapterID: b.ChapterID,
			Title:     b.Title,
			Style:     b.Style,
			Active:    i == active,
			Fade:      BeatFade(progress, b.Progress),
		}
		if s.Active {
			s.Opacity = 1
		}
		states[i] = s
	}
	return states
}
