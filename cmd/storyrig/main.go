package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ivlev/storyrig/internal/config"
	"github.com/ivlev/storyrig/internal/director"
	"github.com/ivlev/storyrig/internal/system"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `storyrig: камера для 3D scrollytelling

Использование:
  storyrig <команда> [флаги]

Команды:
  init      создать демонстрационный проект
  validate  проверить проект
  sample    проиграть сценарий прокрутки
  bake      запечь кадры камеры в файл
  verify    сравнить запечённые кадры с проектом
  preview   нарисовать траектории камеры сверху
  serve     запустить сервер предпросмотра
`

// options holds the flags that are not part of config.Config.
type options struct {
	script string // sample: scroll script file or directory
	baked  string // verify: bake file to compare against
	check  string // validate: checker variant
}

var commands = map[string]func(cfg *config.Config, opt options) error{
	"init":     runInit,
	"validate": runValidate,
	"sample":   runSample,
	"bake":     runBake,
	"verify":   runVerify,
	"preview":  runPreview,
	"serve":    runServe,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}
	name := os.Args[1]
	run, ok := commands[name]
	if !ok {
		fmt.Print(usage)
		log.Fatalf("[-] Неизвестная команда: %s", name)
	}

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPtr := fs.String("config", "", "Файл настроек (.yaml, .yml или .toml)")
	projectPtr := fs.String("project", "", "Файл проекта (по умолчанию: самый свежий в "+director.ProjectsDir+")")
	outputPtr := fs.String("output", "", "Куда записать результат")
	workersPtr := fs.Int("workers", 0, "Потоки (0 - по числу ядер)")
	fpsPtr := fs.Int("fps", 0, "Частота кадров")
	stepsPtr := fs.Int("steps", 0, "Число кадров при запекании")
	tolerancePtr := fs.Float64("tolerance", 0, "Допуск при сравнении кадров")
	smoothPtr := fs.Float64("smooth", 0, "Время сглаживания прокрутки (сек)")
	reducedPtr := fs.Bool("reduced-motion", false, "Уменьшенное движение")
	formatPtr := fs.String("format", "", "Формат превью: png, webp")
	addrPtr := fs.String("addr", "", "Адрес сервера")
	urlPtr := fs.String("url", "", "Публичный адрес для QR-кода")
	qrPtr := fs.String("qr", "", "Сохранить QR-код в PNG")
	watchPtr := fs.Bool("watch", true, "Перезагружать проект при изменении")
	statsPtr := fs.Bool("stats", false, "Показать отчёт о производительности")

	var opt options
	fs.StringVar(&opt.script, "script", "", "Сценарий прокрутки (файл или папка .yaml)")
	fs.StringVar(&opt.baked, "baked", "", "Файл запечённых кадров для сравнения")
	fs.StringVar(&opt.check, "check", "all", "Проверки: all, range, coverage, degenerate, coincident")
	fs.Parse(os.Args[2:])

	system.InitResourceLimits()

	cfg := config.Default()
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка настроек: %v", err)
		}
		cfg = loaded
		fmt.Printf("[*] Настройки: %s\n", *configPtr)
	}
	cfg.BuildVersion = version

	// flags given explicitly win over the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "project":
			cfg.ProjectPath = *projectPtr
		case "output":
			cfg.OutputPath = *outputPtr
		case "workers":
			cfg.Workers = *workersPtr
		case "fps":
			cfg.FPS = *fpsPtr
		case "steps":
			cfg.BakeSteps = *stepsPtr
		case "tolerance":
			cfg.Tolerance = *tolerancePtr
		case "smooth":
			cfg.Damping.SmoothTime = *smoothPtr
		case "reduced-motion":
			cfg.Damping.ReducedMotion = *reducedPtr
		case "format":
			cfg.Preview.Format = *formatPtr
		case "addr":
			cfg.Server.Addr = *addrPtr
		case "url":
			cfg.Server.PublicURL = *urlPtr
		case "qr":
			cfg.Server.QRCodePath = *qrPtr
		case "watch":
			cfg.Server.Watch = *watchPtr
		case "stats":
			cfg.ShowStats = *statsPtr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка настроек: %v", err)
	}

	if err := run(cfg, opt); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
}

// resolveProject returns the project path from the config, or the newest
// project in the default directory.
func resolveProject(cfg *config.Config) (string, error) {
	if cfg.ProjectPath != "" {
		return cfg.ProjectPath, nil
	}
	latest, err := director.FindLatestProject(director.ProjectsDir)
	if err != nil {
		return "", fmt.Errorf("%w. Создайте проект: storyrig init", err)
	}
	fmt.Printf("[*] Выбран проект: %s\n", latest)
	return latest, nil
}

func loadProject(cfg *config.Config) (*director.Project, string, error) {
	path, err := resolveProject(cfg)
	if err != nil {
		return nil, "", err
	}
	p, err := director.ReadProject(path)
	if err != nil {
		return nil, "", err
	}
	return p, path, nil
}

// outputPath returns cfg.OutputPath, or output/<project name><suffix>.
func outputPath(cfg *config.Config, projectPath, suffix string) string {
	if cfg.OutputPath != "" {
		return cfg.OutputPath
	}
	base := filepath.Base(projectPath)
	name := strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_")
	return filepath.Join("output", name+suffix)
}
