package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a.yaml", "b.YML", "c.yaml"}
	for i, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
		mt := time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(p, mt, mt))
	}
	other := filepath.Join(dir, "z.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(other, later, later))

	got, err := FindLatest(dir, ".yaml", ".yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "c.yaml"), got)

	// a file path searches its directory
	got, err = FindLatest(filepath.Join(dir, "a.yaml"), ".yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.YML"), got)

	_, err = FindLatest(dir, ".webp")
	assert.Error(t, err)
}

func TestImagePoolReuse(t *testing.T) {
	p := NewImagePool()
	a := p.Get(image.Rect(0, 0, 8, 4))
	assert.Equal(t, image.Rect(0, 0, 8, 4), a.Bounds())
	p.Put(a)

	b := p.Get(image.Rect(0, 0, 4, 8))
	assert.Equal(t, image.Rect(0, 0, 4, 8), b.Bounds(), "different size is never handed out")
	assert.Len(t, b.Pix, 4*8*4)

	p.Put(nil)
	p.Put(&image.RGBA{})

	hits, misses := p.Stats()
	assert.Equal(t, int64(2), hits+misses)
}

func TestCollectPerf(t *testing.T) {
	r := CollectPerf()
	assert.Positive(t, r.Goroutines)
	assert.Positive(t, r.HeapAlloc)
	assert.NotEmpty(t, r.String())
	assert.Equal(t, 3, Workers(3))
	assert.Positive(t, Workers(0))
}
