package analyzer

import (
	"fmt"
	"sort"

	"github.com/ivlev/storyrig/internal/director"
)

// Severity ranks a finding.
type Severity int

const (
	Info Severity = iota
	Warning
	Error // the engine cannot produce a camera state somewhere
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Finding is one problem found in a project
type Finding struct {
	Check     string
	Severity  Severity
	ChapterID string
	ItemID    string // keyframe, beat or annotation, if any
	Message   string
}

func (f Finding) String() string {
	where := f.ChapterID
	if f.ItemID != "" {
		where += "/" + f.ItemID
	}
	if where == "" {
		where = "project"
	}
	return fmt.Sprintf("[%s] %s: %s (%s)", f.Severity, f.Check, f.Message, where)
}

// Checker is the interface for project lint strategies
type Checker interface {
	Check(p *director.Project) []Finding
}

// Multi runs several checkers and merges their findings, most severe first.
type Multi []Checker

func (m Multi) Check(p *director.Project) []Finding {
	var out []Finding
	for _, c := range m {
		out = append(out, c.Check(p)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity > out[j].Severity
	})
	return out
}

// HasErrors reports whether any finding is an Error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == Error {
			return true
		}
	}
	return false
}
