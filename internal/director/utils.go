package director

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ProjectsDir is where generated projects are stored by default.
var ProjectsDir = filepath.Join("internal", "projects")

// GenerateProjectPath creates a timestamped project filename
func GenerateProjectPath() string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(ProjectsDir, fmt.Sprintf("project_%s.json", timestamp))
}

// FindLatestProject finds the most recent project file (.json, .yaml, .yml) in dir
func FindLatestProject(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read projects directory: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}

	var projects []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		projects = append(projects, candidate{filepath.Join(dir, entry.Name()), info.ModTime()})
	}

	if len(projects) == 0 {
		return "", fmt.Errorf("no project files found in %s", dir)
	}

	// Newest first
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].modTime.After(projects[j].modTime)
	})

	return projects[0].path, nil
}
