package system

import (
	"image"
	"sync"
	"sync/atomic"
)

// ImagePool reuses *image.RGBA canvases per size so repeated preview renders
// (every hot reload in the preview server) do not allocate a fresh
// supersampled canvas each time.
type ImagePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex

	hits   atomic.Int64
	misses atomic.Int64
}

// NewImagePool creates an empty pool.
func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Point]*sync.Pool)}
}

var globalPool = NewImagePool()

// GetImage returns a canvas of rect's size from the shared pool. The pixels
// are not cleared.
func GetImage(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// PutImage hands img back to the shared pool.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

// PoolStats reports shared pool reuse counters.
func PoolStats() (hits, misses int64) {
	return globalPool.Stats()
}

func (p *ImagePool) pool(size image.Point) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.pools[size]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, ok = p.pools[size]; ok {
		return pool
	}
	pool = &sync.Pool{}
	p.pools[size] = pool
	return pool
}

// Get returns a canvas with bounds rect.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	if v := p.pool(rect.Size()).Get(); v != nil {
		p.hits.Add(1)
		img := v.(*image.RGBA)
		img.Rect = rect
		return img
	}
	p.misses.Add(1)
	return image.NewRGBA(rect)
}

// Put returns img for reuse. Empty images are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Empty() {
		return
	}
	p.pool(img.Rect.Size()).Put(img)
}

// Stats returns how many Get calls reused a canvas and how many allocated.
func (p *ImagePool) Stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}
