package server

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ivlev/storyrig/internal/director"
)

// watch reloads the project whenever its file is written. Editors often save
// through a rename, so the directory is watched rather than the file, and
// bursts of events are folded into one reload.
func (s *Server) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target, err := filepath.Abs(s.projectPath)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	fmt.Printf("[*] Слежение за проектом: %s\n", target)

	debounce := time.Duration(s.cfg.Server.DebounceMs) * time.Millisecond
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[!] Watcher: %v", err)
		case <-timer.C:
			if err := s.Reload(ctx); err != nil {
				log.Printf("[!] Не удалось перезагрузить проект: %v", err)
			}
		}
	}
}

// Reload reads the project file again and swaps it into the engine. A project
// that fails to parse or build leaves the previous one running.
func (s *Server) Reload(ctx context.Context) error {
	p, err := director.ReadProject(s.projectPath)
	if err != nil {
		return err
	}
	if err := s.engine.Load(ctx, p); err != nil {
		return err
	}
	fmt.Printf("[+++] Проект перезагружен: %s (%d глав)\n", p.Title, len(p.Chapters))
	s.resend()
	s.broadcast(Message{Type: "reload"})
	return nil
}
