package source

import (
	"sync"

	"github.com/ivlev/storyrig/internal/geom"
)

// ScrollEvent is one scroll position report. The editor timeline reports its
// scroll container, the player reports the document.
type ScrollEvent struct {
	Top      float64 `json:"top" yaml:"top"`           // scrolled distance
	Height   float64 `json:"height" yaml:"height"`     // total scrollable content height
	Viewport float64 `json:"viewport" yaml:"viewport"` // visible height
}

// Offset normalizes the event to story progress in [0,1]. Content that does
// not scroll reports 0.
func (e ScrollEvent) Offset() float64 {
	scrollable := e.Height - e.Viewport
	if scrollable <= 0 {
		return 0
	}
	return geom.Clamp01(e.Top / scrollable)
}

// EventAt builds the event for progress p over content of the given size.
func EventAt(p, height, viewport float64) ScrollEvent {
	return ScrollEvent{Top: geom.Clamp01(p) * (height - viewport), Height: height, Viewport: viewport}
}

type ScrollSource interface {
	Events() <-chan ScrollEvent
	Close() error
}

// ChanSource is an in-memory scroll source fed by Push, used by the preview
// server and tests.
type ChanSource struct {
	ch     chan ScrollEvent
	mu     sync.Mutex
	closed bool
}

// NewChanSource creates a source buffering up to size events.
func NewChanSource(size int) *ChanSource {
	if size < 1 {
		size = 1
	}
	return &ChanSource{ch: make(chan ScrollEvent, size)}
}

func (s *ChanSource) Events() <-chan ScrollEvent {
	return s.ch
}

// Push queues ev. When the buffer is full the oldest queued event is dropped:
// only the latest scroll position matters. Push after Close reports false.
func (s *ChanSource) Push(ev ScrollEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.ch <- ev:
			return true
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *ChanSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}
