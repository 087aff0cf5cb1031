// Package templates loads named reference images from YAML definitions for
// the correlation and template-matching detectors.
package templates

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"jordanella.com/slash-go/internal/cv"
	"jordanella.com/slash-go/internal/logging"
)

// DefaultThreshold applies to definitions that leave threshold unset
const DefaultThreshold = 0.8

var log = logging.NewLogger("Templates")

// Registry maps template names to definitions and serves their pixels.
// It implements cv.TemplateSource.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]cv.Template
	basePath  string // Root for relative image paths
	cache     *ImageCache
}

// Definition is one template entry in a YAML file
type Definition struct {
	Name        string     `yaml:"name"`
	Path        string     `yaml:"path"`
	Threshold   float64    `yaml:"threshold"`
	Method      string     `yaml:"method,omitempty"` // ssd when empty; sad, ncc, correlation
	Region      *RegionDef `yaml:"region,omitempty"`
	Scale       float64    `yaml:"scale,omitempty"`
	Preload     bool       `yaml:"preload,omitempty"`
	UnloadAfter bool       `yaml:"unload_after,omitempty"`
}

// RegionDef is a corner-defined search area
type RegionDef struct {
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
	X2 int `yaml:"x2"`
	Y2 int `yaml:"y2"`
}

// File is the layout of a template YAML file
type File struct {
	Templates []Definition `yaml:"templates"`
}

// NewRegistry creates an empty registry resolving image paths under basePath
func NewRegistry(basePath string) *Registry {
	return &Registry{
		templates: make(map[string]cv.Template),
		basePath:  basePath,
		cache:     NewImageCache(),
	}
}

func (r *Registry) toTemplate(def Definition) cv.Template {
	path := def.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.basePath, path)
	}
	tpl := cv.Template{
		Name:      def.Name,
		Path:      path,
		Threshold: def.Threshold,
		Scale:     def.Scale,
		Method:    cv.ParseMatchMethod(def.Method),
	}
	if def.Region != nil {
		region := cv.NewRegion(def.Region.X1, def.Region.Y1, def.Region.X2, def.Region.Y2)
		tpl.Region = &region
	}
	if tpl.Threshold == 0 {
		tpl.Threshold = DefaultThreshold
	}
	return tpl
}

// LoadFromFile loads every definition in a YAML file. A definition without
// a name or path rejects the whole file.
func (r *Registry) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal template YAML: %w", err)
	}

	for i, def := range file.Templates {
		if def.Name == "" {
			return fmt.Errorf("template %d: name cannot be empty", i+1)
		}
		if def.Path == "" {
			return fmt.Errorf("template %d (%s): path cannot be empty", i+1, def.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range file.Templates {
		tpl := r.toTemplate(def)
		r.templates[tpl.Name] = tpl

		// A failed preload still leaves the image loadable on demand
		if err := r.cache.Register(tpl, def.Preload, def.UnloadAfter); err != nil {
			log.WarnWithContext("template preload failed", map[string]interface{}{
				"template": tpl.Name,
				"error":    err.Error(),
			})
		}
	}

	return nil
}

// LoadFromDirectory loads every .yaml/.yml file in dirPath
func (r *Registry) LoadFromDirectory(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read template directory %s: %w", dirPath, err)
	}

	var errs []error
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := r.LoadFromFile(filepath.Join(dirPath, entry.Name())); err != nil {
			errs = append(errs, fmt.Errorf("file %s: %w", entry.Name(), err))
			continue
		}
		loaded++
	}

	log.InfoWithContext("templates loaded", map[string]interface{}{
		"dir":       dirPath,
		"files":     loaded,
		"templates": r.Count(),
	})
	return errors.Join(errs...)
}

// Get retrieves a template definition by name
func (r *Registry) Get(name string) (cv.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.templates[name]
	return tpl, ok
}

// Image returns the template's pixels, scaled by its Scale
func (r *Registry) Image(name string) (*image.RGBA, error) {
	if !r.Has(name) {
		return nil, fmt.Errorf("template '%s' not found in registry", name)
	}
	img, _, err := r.cache.Get(name)
	if err != nil {
		return nil, err
	}
	// Marked unload_after images are dropped once handed out
	if err := r.cache.Release(name); err != nil {
		log.Debug(err.Error())
	}
	return img, nil
}

// Register adds a template programmatically
func (r *Registry) Register(tpl cv.Template) error {
	if tpl.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if tpl.Threshold == 0 {
		tpl.Threshold = DefaultThreshold
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[tpl.Name] = tpl
	return r.cache.Register(tpl, false, false)
}

// Has checks if a template exists in the registry
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.templates[name]
	return ok
}

// List returns all template names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of templates in the registry
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.templates)
}

// Remove removes a template and its cached image
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[name]; !ok {
		return false
	}
	delete(r.templates, name)
	r.cache.Forget(name)
	return true
}

// PreloadAll loads every template marked preload
func (r *Registry) PreloadAll() error {
	return r.cache.PreloadAll()
}

// UnloadAll drops every cached image
func (r *Registry) UnloadAll() {
	r.cache.UnloadAll()
}

// CacheStats returns image cache statistics
func (r *Registry) CacheStats() CacheStats {
	return r.cache.Stats()
}
