package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func model() *Group {
	return &Group{Label: "root", Kids: []*Group{
		{Label: "body", Kids: []*Group{
			{Label: "wheel"},
			{Label: "door"},
		}},
		{Label: "wheel"},
		{Label: ""},
	}}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(model())
	assert.Equal(t, 4, r.Len())

	h, ok := r.Lookup("door")
	require.True(t, ok)
	assert.Equal(t, "root/body/door", h.Path)
	assert.Equal(t, "door", h.Node.Name())

	_, ok = r.Lookup("Door")
	assert.False(t, ok, "lookup is exact")
}

func TestRegistryFirstDuplicateWins(t *testing.T) {
	r := NewRegistry(model())
	h, ok := r.Lookup("wheel")
	require.True(t, ok)
	assert.Equal(t, "root/body/wheel", h.Path)
	assert.Equal(t, []string{"root/wheel"}, r.Duplicates())
}

func TestRegistryRebuild(t *testing.T) {
	r := NewRegistry(model())
	r.Rebuild(&Group{Label: "other", Kids: []*Group{{Label: "lamp"}}})

	_, ok := r.Lookup("door")
	assert.False(t, ok)
	_, ok = r.Lookup("lamp")
	assert.True(t, ok)

	r.Rebuild(nil)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Duplicates())
}

func TestLoadOutline(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "car.glb.outline.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("name: root\nchildren:\n  - name: body\n    children:\n      - name: door\n"), 0644))
	js := filepath.Join(dir, "car.glb.outline.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"name":"root","children":[{"name":"body","children":[{"name":"door"}]}]}`), 0644))

	for _, path := range []string{yml, js} {
		g, err := LoadOutline(path)
		require.NoError(t, err)
		h, ok := NewRegistry(g).Lookup("door")
		require.True(t, ok, path)
		assert.Equal(t, "root/body/door", h.Path)
	}

	_, err := LoadOutline(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
