package templates

import (
	"fmt"
	"image"
	"sync"

	"github.com/nfnt/resize"

	"jordanella.com/slash-go/internal/cv"
)

// cachedImage is a template plus its lazily loaded, pre-scaled pixels
type cachedImage struct {
	tpl         cv.Template
	preload     bool
	unloadAfter bool

	mu    sync.Mutex
	image *image.RGBA
}

// ImageCache loads template images on first use and keeps them until
// released or unloaded.
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string]*cachedImage
	stats   CacheStats
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits        int64
	Misses      int64 // Had to load from disk
	Loads       int64
	Unloads     int64
	PreloadFail int64
}

// NewImageCache creates an empty cache
func NewImageCache() *ImageCache {
	return &ImageCache{entries: make(map[string]*cachedImage)}
}

// Register adds or replaces a template, loading it now when preload is set
func (ic *ImageCache) Register(tpl cv.Template, preload, unloadAfter bool) error {
	entry := &cachedImage{tpl: tpl, preload: preload, unloadAfter: unloadAfter}

	var err error
	if preload {
		if _, err = entry.get(); err != nil {
			err = fmt.Errorf("failed to preload template %s: %w", tpl.Name, err)
		}
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.entries[tpl.Name] = entry
	if preload {
		if err != nil {
			ic.stats.PreloadFail++
		} else {
			ic.stats.Loads++
		}
	}
	return err
}

// Get returns a template's image, loading it if necessary
func (ic *ImageCache) Get(name string) (*image.RGBA, cv.Template, error) {
	ic.mu.RLock()
	entry, ok := ic.entries[name]
	ic.mu.RUnlock()
	if !ok {
		return nil, cv.Template{}, fmt.Errorf("template '%s' not found in cache", name)
	}

	hit := entry.loaded()
	img, err := entry.get()
	if err != nil {
		return nil, cv.Template{}, err
	}

	ic.mu.Lock()
	if hit {
		ic.stats.Hits++
	} else {
		ic.stats.Misses++
		ic.stats.Loads++
	}
	ic.mu.Unlock()

	return img, entry.tpl, nil
}

// Release unloads a template image if it was registered unload_after
func (ic *ImageCache) Release(name string) error {
	ic.mu.RLock()
	entry, ok := ic.entries[name]
	ic.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template '%s' not found in cache", name)
	}

	if entry.unloadAfter && entry.unload() {
		ic.mu.Lock()
		ic.stats.Unloads++
		ic.mu.Unlock()
	}
	return nil
}

// Forget drops a template from the cache entirely
func (ic *ImageCache) Forget(name string) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	delete(ic.entries, name)
}

// PreloadAll loads every template registered with preload
func (ic *ImageCache) PreloadAll() error {
	ic.mu.RLock()
	pending := make([]*cachedImage, 0, len(ic.entries))
	for _, e := range ic.entries {
		if e.preload && !e.loaded() {
			pending = append(pending, e)
		}
	}
	ic.mu.RUnlock()

	var failed []error
	for _, e := range pending {
		_, err := e.get()

		ic.mu.Lock()
		if err != nil {
			failed = append(failed, fmt.Errorf("template %s: %w", e.tpl.Name, err))
			ic.stats.PreloadFail++
		} else {
			ic.stats.Loads++
		}
		ic.mu.Unlock()
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to preload %d templates: %w", len(failed), failed[0])
	}
	return nil
}

// UnloadAll drops every loaded image
func (ic *ImageCache) UnloadAll() {
	ic.mu.RLock()
	all := make([]*cachedImage, 0, len(ic.entries))
	for _, e := range ic.entries {
		all = append(all, e)
	}
	ic.mu.RUnlock()

	var n int64
	for _, e := range all {
		if e.unload() {
			n++
		}
	}

	ic.mu.Lock()
	ic.stats.Unloads += n
	ic.mu.Unlock()
}

// IsLoaded reports whether a template's image is in memory
func (ic *ImageCache) IsLoaded(name string) bool {
	ic.mu.RLock()
	entry, ok := ic.entries[name]
	ic.mu.RUnlock()
	return ok && entry.loaded()
}

// Stats returns cache statistics
func (ic *ImageCache) Stats() CacheStats {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return ic.stats
}

func (c *cachedImage) loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image != nil
}

func (c *cachedImage) get() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.image != nil {
		return c.image, nil
	}
	img, err := cv.LoadImage(c.tpl.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	c.image = scale(img, c.tpl.Scale)
	return c.image, nil
}

func (c *cachedImage) unload() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.image == nil {
		return false
	}
	c.image = nil
	return true
}

// scale resizes img by factor; 0 and 1 leave it untouched
func scale(img *image.RGBA, factor float64) *image.RGBA {
	if factor <= 0 || factor == 1 {
		return img
	}
	b := img.Bounds()
	w := uint(float64(b.Dx())*factor + 0.5)
	h := uint(float64(b.Dy())*factor + 0.5)
	if w == 0 || h == 0 {
		return img
	}
	return cv.ToRGBA(resize.Resize(w, h, img, resize.Bilinear))
}
