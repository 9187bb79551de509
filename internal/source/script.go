package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ScriptStep is one scripted scroll position, emitted after Delay.
type ScriptStep struct {
	ScrollEvent `yaml:",inline"`

	Delay    time.Duration `yaml:"delay"`
	Progress *float64      `yaml:"progress,omitempty"` // replaces Top, relative to Height and Viewport
}

// Script is a recorded or hand-written scroll session.
type Script struct {
	Height   float64      `yaml:"height"`
	Viewport float64      `yaml:"viewport"`
	Steps    []ScriptStep `yaml:"steps"`
}

// Events resolves every step into a scroll event.
func (s *Script) Events() []ScrollEvent {
	out := make([]ScrollEvent, len(s.Steps))
	for i, st := range s.Steps {
		ev := st.ScrollEvent
		if ev.Height == 0 {
			ev.Height = s.Height
		}
		if ev.Viewport == 0 {
			ev.Viewport = s.Viewport
		}
		if st.Progress != nil {
			ev = EventAt(*st.Progress, ev.Height, ev.Viewport)
		}
		out[i] = ev
	}
	return out
}

// LoadScripts reads one script file, or every .yaml/.yml script of a
// directory in name order, concatenated.
func LoadScripts(path string) (*Script, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				ext := strings.ToLower(filepath.Ext(entry.Name()))
				if ext == ".yaml" || ext == ".yml" {
					paths = append(paths, filepath.Join(path, entry.Name()))
				}
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scroll scripts in %s", path)
	}

	merged := &Script{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var s Script
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("scroll script %s: %w", p, err)
		}
		if merged.Height == 0 {
			merged.Height, merged.Viewport = s.Height, s.Viewport
		}
		// resolve per file so each keeps its own content size
		for i, ev := range s.Events() {
			merged.Steps = append(merged.Steps, ScriptStep{Delay: s.Steps[i].Delay, ScrollEvent: ev})
		}
	}
	return merged, nil
}

// ScriptSource replays a Script in real time.
type ScriptSource struct {
	ch     chan ScrollEvent
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewScriptSource starts replaying script. The events channel is closed
// after the last step or on Close.
func NewScriptSource(script *Script) *ScriptSource {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ScriptSource{
		ch:     make(chan ScrollEvent),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	events := script.Events()
	go func() {
		defer close(s.done)
		defer close(s.ch)
		for i, ev := range events {
			if d := script.Steps[i].Delay; d > 0 {
				t := time.NewTimer(d)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			select {
			case <-ctx.Done():
				return
			case s.ch <- ev:
			}
		}
	}()
	return s
}

func (s *ScriptSource) Events() <-chan ScrollEvent {
	return s.ch
}

// Done is closed when replay has finished or was stopped.
func (s *ScriptSource) Done() <-chan struct{} {
	return s.done
}

// Close stops the replay and waits for it to exit.
func (s *ScriptSource) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}
