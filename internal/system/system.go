package system

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// InitResourceLimits raises the open file limit; every preview server client
// holds a websocket and the watcher holds the project directory.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		fmt.Printf("[*] Системный лимит открытых файлов увеличен до %d\n", rLimit.Cur)
	}
}

// FindLatest returns the newest file in dir (or in the directory of a file
// path) with one of the given extensions.
func FindLatest(path string, extensions ...string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	searchDir := path
	if !fi.IsDir() {
		searchDir = filepath.Dir(path)
	}

	files, err := os.ReadDir(searchDir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, f := range files {
		if f.IsDir() || !hasExtension(f.Name(), extensions) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if latestFile == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(searchDir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено файлов %s", searchDir, strings.Join(extensions, ", "))
	}
	return latestFile, nil
}

func hasExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// PerfReport is a snapshot of host resources around a bake run.
type PerfReport struct {
	LogicalCPUs  int
	PhysicalCPUs int
	CPUPercent   float64
	TotalMemory  uint64
	UsedPercent  float64
	HeapAlloc    uint64
	Goroutines   int
}

// CollectPerf samples host CPU and memory. Host figures that cannot be read
// are left zero; only the Go runtime figures are always present.
func CollectPerf() PerfReport {
	var r PerfReport
	if n, err := cpu.Counts(true); err == nil {
		r.LogicalCPUs = n
	}
	if n, err := cpu.Counts(false); err == nil {
		r.PhysicalCPUs = n
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		r.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		r.TotalMemory = vm.Total
		r.UsedPercent = vm.UsedPercent
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	r.HeapAlloc = ms.HeapAlloc
	r.Goroutines = runtime.NumGoroutine()
	return r
}

// Workers returns n, or the logical CPU count when n <= 0.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	if c, err := cpu.Counts(true); err == nil && c > 0 {
		return c
	}
	return runtime.NumCPU()
}

func (r PerfReport) String() string {
	return fmt.Sprintf("CPU: %d/%d ядер, загрузка %.1f%% | RAM: %.1f%% из %d MB | heap %d MB | goroutines %d",
		r.LogicalCPUs, r.PhysicalCPUs, r.CPUPercent, r.UsedPercent, r.TotalMemory>>20, r.HeapAlloc>>20, r.Goroutines)
}
