package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/storyrig/internal/analyzer"
	"github.com/ivlev/storyrig/internal/config"
	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/driver"
	"github.com/ivlev/storyrig/internal/effects"
	"github.com/ivlev/storyrig/internal/engine"
	"github.com/ivlev/storyrig/internal/renderer"
	"github.com/ivlev/storyrig/internal/scene"
	"github.com/ivlev/storyrig/internal/server"
	"github.com/ivlev/storyrig/internal/source"
	"github.com/ivlev/storyrig/internal/system"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runInit(cfg *config.Config, _ options) error {
	path := cfg.OutputPath
	if path == "" {
		path = director.GenerateProjectPath()
	}
	p := director.SampleProject()
	if err := director.WriteProject(p, path); err != nil {
		return err
	}
	fmt.Printf("[+++] Проект создан: %s (%d глав)\n", path, len(p.Chapters))
	return nil
}

func runValidate(cfg *config.Config, opt options) error {
	p, path, err := loadProject(cfg)
	if err != nil {
		return err
	}
	checker, err := analyzer.NewChecker(opt.check)
	if err != nil {
		return err
	}
	if outlines := loadOutlines(p, filepath.Dir(path)); len(outlines) > 0 {
		checker = analyzer.Multi{checker, analyzer.NewNodeChecker(outlines)}
	}

	findings := checker.Check(p)
	for _, f := range findings {
		fmt.Printf("[%s] %s\n", marker(f.Severity), f)
	}
	if analyzer.HasErrors(findings) {
		return fmt.Errorf("проект %s содержит ошибки", path)
	}
	fmt.Printf("[+++] Проект в порядке: %s (%d замечаний)\n", path, len(findings))
	return nil
}

func marker(s analyzer.Severity) string {
	switch s {
	case analyzer.Error:
		return "-"
	case analyzer.Warning:
		return "!"
	}
	return "*"
}

// loadOutlines reads the node outline exported next to each chapter model,
// <model>.outline.yaml or <model>.outline.json, relative to the project.
func loadOutlines(p *director.Project, dir string) map[string]*scene.Registry {
	outlines := make(map[string]*scene.Registry)
	for _, ch := range p.Chapters {
		if ch.Model == "" {
			continue
		}
		if _, done := outlines[ch.Model]; done {
			continue
		}
		for _, ext := range []string{".outline.yaml", ".outline.yml", ".outline.json"} {
			path := filepath.Join(dir, ch.Model+ext)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			root, err := scene.LoadOutline(path)
			if err != nil {
				fmt.Printf("[!] %v\n", err)
				break
			}
			reg := scene.NewRegistry(root)
			for _, w := range duplicateWarnings(path, reg) {
				fmt.Println(w)
			}
			outlines[ch.Model] = reg
			break
		}
	}
	return outlines
}

// duplicateWarnings reports nodes hidden behind an earlier node of the same
// name, by their path in the outline.
func duplicateWarnings(file string, reg *scene.Registry) []string {
	var out []string
	for _, dup := range reg.Duplicates() {
		name := dup[strings.LastIndex(dup, "/")+1:]
		out = append(out, fmt.Sprintf("[!] %s: узел по пути %s пропущен, имя %q уже занято", file, dup, name))
	}
	return out
}

func newEngine(ctx context.Context, cfg *config.Config, p *director.Project, sink effects.EnvironmentSink) (*engine.Engine, time.Duration, error) {
	eng := engine.New(system.Workers(cfg.Workers), sink)
	start := time.Now()
	if err := eng.Load(ctx, p); err != nil {
		return nil, 0, err
	}
	return eng, time.Since(start), nil
}

func runBake(cfg *config.Config, _ options) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, path, err := loadProject(cfg)
	if err != nil {
		return err
	}
	eng, build, err := newEngine(ctx, cfg, p, nil)
	if err != nil {
		return err
	}

	workers := system.Workers(cfg.Workers)
	fmt.Printf("[*] Запекание %d кадров (%d потоков)...\n", cfg.BakeSteps+1, workers)
	start := time.Now()
	frames, err := eng.Bake(ctx, engine.Steps(cfg.BakeSteps), workers)
	if err != nil {
		return err
	}
	sample := time.Since(start)

	out := outputPath(cfg, path, ".bake.json")
	if err := engine.WriteBake(out, p, frames); err != nil {
		return err
	}
	engine.Report(cfg, path, engine.BakeStats{
		Frames:   len(frames),
		Chapters: len(p.Chapters),
		Build:    build,
		Sample:   sample,
		Perf:     system.CollectPerf(),
	})
	fmt.Printf("[+++] Успех! Результат: %s\n", out)
	return nil
}

func runVerify(cfg *config.Config, opt options) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, path, err := loadProject(cfg)
	if err != nil {
		return err
	}
	baked := opt.baked
	if baked == "" {
		baked = outputPath(cfg, path, ".bake.json")
	}
	bf, err := engine.ReadBake(baked)
	if err != nil {
		return err
	}
	if bf.Version != director.ProjectVersion {
		fmt.Printf("[!] Версия файла %s: %s, ожидается %s\n", baked, bf.Version, director.ProjectVersion)
	}

	eng, _, err := newEngine(ctx, cfg, p, nil)
	if err != nil {
		return err
	}
	progresses := make([]float64, len(bf.Frames))
	for i, f := range bf.Frames {
		progresses[i] = f.Progress
	}
	fresh, err := eng.Bake(ctx, progresses, system.Workers(cfg.Workers))
	if err != nil {
		return err
	}

	mismatches := engine.Compare(bf.Frames, fresh, cfg.Tolerance)
	for i, m := range mismatches {
		if i == 20 {
			fmt.Printf("[!] ... и ещё %d расхождений\n", len(mismatches)-i)
			break
		}
		fmt.Printf("[!] %s\n", m)
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%d расхождений с %s", len(mismatches), baked)
	}
	fmt.Printf("[+++] Кадры совпадают: %d (допуск %g)\n", len(fresh), cfg.Tolerance)
	return nil
}

func runPreview(cfg *config.Config, _ options) error {
	p, path, err := loadProject(cfg)
	if err != nil {
		return err
	}
	eng, _, err := newEngine(context.Background(), cfg, p, nil)
	if err != nil {
		return err
	}

	opt := renderer.DefaultPreviewOptions()
	opt.Width, opt.Height = cfg.Preview.Width, cfg.Preview.Height
	opt.Samples, opt.Supersample = cfg.Preview.Samples, cfg.Preview.Supersample
	img, err := renderer.RenderPreview(eng.Paths(), opt)
	if err != nil {
		return err
	}

	out := outputPath(cfg, path, "_paths."+cfg.Preview.Format)
	format := cfg.Preview.Format
	if cfg.OutputPath != "" {
		format = renderer.PreviewFormat(out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := renderer.EncodePreview(f, img, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("[+++] Превью: %s\n", out)
	return nil
}

// runSample replays a scroll script through the player driver and prints
// chapter changes and narrative beats as they happen.
func runSample(cfg *config.Config, opt options) error {
	if opt.script == "" {
		return errors.New("укажите сценарий прокрутки: -script")
	}
	script, err := source.LoadScripts(opt.script)
	if err != nil {
		return err
	}
	p, _, err := loadProject(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	env := &effects.EnvironmentRecorder{}
	eng, _, err := newEngine(ctx, cfg, p, env)
	if err != nil {
		return err
	}

	drv := driver.New(driver.Options{
		SmoothTime:    cfg.Damping.SmoothTime,
		MaxSpeed:      cfg.Damping.MaxSpeed,
		ReducedMotion: cfg.Damping.ReducedMotion,
	})
	src := source.NewScriptSource(script)
	defer src.Close()
	drv.SetMode(driver.ModePlayer, src)
	defer drv.Close()

	fmt.Printf("[*] Сценарий: %d шагов\n", len(script.Steps))
	frames := 0
	beat := ""
	err = eng.Loop(ctx, drv, nil, cfg.FPS, func(f engine.Frame, err error) {
		frames++
		if err != nil {
			fmt.Printf("[!] %.3f: %v\n", f.Progress, err)
			return
		}
		if f.ChapterChanged {
			fmt.Printf("[*] %.3f: глава %s\n", f.Progress, chapterTitle(eng.Project(), f.ChapterID))
		}
		for _, b := range f.Beats {
			if b.Active && b.ID != beat {
				beat = b.ID
				fmt.Printf("[*] %.3f: %s\n", f.Progress, b.Title)
			}
		}
		select {
		case <-src.Done():
			if drv.Settled() {
				cancel()
			}
		default:
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Printf("[+++] Готово: %d кадров, прогресс %.3f, фон %s\n", frames, drv.Progress(), env.Current().Background)
	return nil
}

func chapterTitle(p *director.Project, id string) string {
	if ch, ok := p.Chapter(id); ok && ch.Title != "" {
		return ch.Title
	}
	return id
}

func runServe(cfg *config.Config, _ options) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, path, err := loadProject(cfg)
	if err != nil {
		return err
	}
	eng, _, err := newEngine(ctx, cfg, p, nil)
	if err != nil {
		return err
	}
	return server.New(cfg, eng, path).Run(ctx)
}
