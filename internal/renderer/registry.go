package renderer

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"renderbot/internal/domain"
)

// Registry holds all named render functions. It is created once at the
// composition root and passed to whatever needs lookup — there is no
// package-level instance. Registration is expected at startup or library
// reload time; mutating it under active dispatch is not supported.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]domain.RenderFunc
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		renderers: make(map[string]domain.RenderFunc),
		logger:    logger,
	}
}

// Register stores a render function under name. A leading '#' is tolerated
// and stripped. Re-registering an existing name overwrites it silently,
// which is what hot-reloading a renderer library relies on.
func (r *Registry) Register(name string, fn domain.RenderFunc) error {
	name = strings.TrimPrefix(name, "#")
	if name == "" {
		return fmt.Errorf("renderer name must be non-empty: %w", domain.ErrValidation)
	}
	if fn == nil {
		return fmt.Errorf("renderer %q has no render function: %w", name, domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[name] = fn
	r.logger.Debug("registered renderer", "name", name)
	return nil
}

// Unregister removes a renderer. Unknown names are an error.
func (r *Registry) Unregister(name string) error {
	name = strings.TrimPrefix(name, "#")
	if name == "" {
		return fmt.Errorf("renderer name must be non-empty: %w", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.renderers[name]; !ok {
		return fmt.Errorf("renderer not defined: %s: %w", name, domain.ErrNotFound)
	}
	delete(r.renderers, name)
	r.logger.Debug("unregistered renderer", "name", name)
	return nil
}

// IsRegistered reports whether name is registered. Sigil-insensitive,
// never errors for unknown names.
func (r *Registry) IsRegistered(name string) bool {
	name = strings.TrimPrefix(name, "#")
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.renderers[name]
	return ok
}

// Get returns the render function for name.
func (r *Registry) Get(name string) (domain.RenderFunc, error) {
	name = strings.TrimPrefix(name, "#")
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.renderers[name]
	if !ok {
		return nil, fmt.Errorf("renderer not defined: %s: %w", name, domain.ErrNotFound)
	}
	return fn, nil
}

// Names returns all registered renderer names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.renderers))
	for n := range r.renderers {
		names = append(names, n)
	}
	return names
}
