// Package plugins maps source file suffixes to the handlers that turn
// those files into build tasks.
package plugins

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/efebarandurmaz/protoforge/internal/build"
)

// Registry stores the handler registered for each file suffix.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]build.Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]build.Handler),
	}
}

// Register binds every suffix h declares to h. A suffix can only be
// bound once; on conflict nothing is registered.
func (r *Registry) Register(h build.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exts := h.Extensions()
	if len(exts) == 0 {
		return fmt.Errorf("handler %q declares no extensions", h.Name())
	}
	for _, ext := range exts {
		if ext == "" {
			return fmt.Errorf("handler %q declares an empty extension", h.Name())
		}
		if prev, ok := r.handlers[ext]; ok {
			return fmt.Errorf("extension %q already handled by %q", ext, prev.Name())
		}
	}
	for _, ext := range exts {
		r.handlers[ext] = h
	}
	return nil
}

// Resolve returns the handler whose suffix matches path. When several
// suffixes match, the longest wins.
func (r *Registry) Resolve(path string) (build.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best    build.Handler
		bestLen int
	)
	for ext, h := range r.handlers {
		if len(ext) > bestLen && strings.HasSuffix(path, ext) {
			best, bestLen = h, len(ext)
		}
	}
	return best, best != nil
}

// Suffixes lists the registered suffixes, sorted.
func (r *Registry) Suffixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for ext := range r.handlers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

var _ build.Resolver = (*Registry)(nil)
