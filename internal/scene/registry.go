package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Node is one element of a loaded model's scene graph.
type Node interface {
	Name() string
	Children() []Node
}

// Handle is what the scene module hands out for a node: the node itself plus
// its path from the root, for diagnostics.
type Handle struct {
	Node Node
	Path string
}

// Registry maps node names to handles. It is built by one traversal per model
// load and queried by exact name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Handle
	dups   []string
}

// NewRegistry builds a registry over root.
func NewRegistry(root Node) *Registry {
	r := &Registry{}
	r.Rebuild(root)
	return r
}

// Rebuild replaces the map with a fresh traversal of root, e.g. after the
// model asset of a chapter changed. A nil root empties the registry.
func (r *Registry) Rebuild(root Node) {
	byName := make(map[string]Handle)
	var dups []string
	if root != nil {
		walk(root, "", func(n Node, path string) {
			name := n.Name()
			if name == "" {
				return
			}
			if _, ok := byName[name]; ok {
				dups = append(dups, path)
				return
			}
			byName[name] = Handle{Node: n, Path: path}
		})
	}

	r.mu.Lock()
	r.byName = byName
	r.dups = dups
	r.mu.Unlock()
}

// walk visits nodes depth-first, parents before children.
func walk(n Node, parent string, visit func(Node, string)) {
	path := n.Name()
	if parent != "" {
		path = parent + "/" + path
	}
	visit(n, path)
	for _, c := range n.Children() {
		if c != nil {
			walk(c, path, visit)
		}
	}
}

// Lookup returns the node registered under name. With duplicate names the
// first node in traversal order wins.
func (r *Registry) Lookup(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Duplicates returns the paths of nodes shadowed by an earlier node with the
// same name.
func (r *Registry) Duplicates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.dups...)
}

// Group is a plain Node, used for tests and for scene graphs described in
// project files.
type Group struct {
	Label string   `json:"name" yaml:"name"`
	Kids  []*Group `json:"children,omitempty" yaml:"children,omitempty"`
}

func (g *Group) Name() string { return g.Label }

func (g *Group) Children() []Node {
	out := make([]Node, 0, len(g.Kids))
	for _, k := range g.Kids {
		if k != nil {
			out = append(out, k)
		}
	}
	return out
}

// LoadOutline reads a node outline exported next to a model, as YAML or
// JSON by extension.
func LoadOutline(path string) (*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Group
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &g)
	} else {
		err = yaml.Unmarshal(data, &g)
	}
	if err != nil {
		return nil, fmt.Errorf("outline %s: %w", path, err)
	}
	return &g, nil
}
