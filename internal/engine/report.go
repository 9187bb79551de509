package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/storyrig/internal/config"
	"github.com/ivlev/storyrig/internal/system"
)

// BenchmarkLog is where bake reports are appended when ShowStats is on.
var BenchmarkLog = "benchmark.log"

// BakeStats describes one bake run.
type BakeStats struct {
	Frames   int
	Chapters int
	Build    time.Duration // path building
	Sample   time.Duration // frame sampling
	Perf     system.PerfReport
}

// Report prints the performance report of a bake and appends it to
// BenchmarkLog, when cfg.ShowStats is set.
func Report(cfg *config.Config, input string, st BakeStats) {
	if !cfg.ShowStats {
		return
	}
	total := st.Build + st.Sample
	fps := 0.0
	if st.Sample > 0 {
		fps = float64(st.Frames) / st.Sample.Seconds()
	}

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.3fs\n"+
			"Path building: %.3fs (%d chapters)\n"+
			"Sampling: %.3fs (%d frames)\n"+
			"Frames per second: %.0f\n"+
			"Host: %s\n"+
			"----------------------------\n",
		cfg.BuildVersion, total.Seconds(), st.Build.Seconds(), st.Chapters, st.Sample.Seconds(), st.Frames, fps, st.Perf,
	)
	fmt.Print(report)

	logEntry := fmt.Sprintf("[%s] Build: %s | Input: %s | Chapters: %d | Frames: %d | Total: %.3fs | Paths: %.3fs | Sample: %.3fs | FPS: %.0f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		cfg.BuildVersion,
		filepath.Base(input),
		st.Chapters,
		st.Frames,
		total.Seconds(),
		st.Build.Seconds(),
		st.Sample.Seconds(),
		fps,
	)

	f, err := os.OpenFile(BenchmarkLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		fmt.Printf("[!] Не удалось записать %s: %v\n", BenchmarkLog, err)
	}
}
