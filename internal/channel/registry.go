package channel

import (
	"fmt"
	"log/slog"
	"sync"

	"renderbot/internal/domain"
)

// Registry holds the channel binding for each outbound platform. Unlike the
// renderer registry, bindings are permanent: at most one per platform, no
// unregistration, registering a platform twice is an error. The registry is
// created at the composition root and handed to the engine and sender.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]domain.Channel
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		bindings: make(map[string]domain.Channel),
		logger:   logger,
	}
}

// Register binds ch to its platform for the process lifetime.
func (r *Registry) Register(ch domain.Channel) error {
	if ch == nil {
		return fmt.Errorf("channel binding must not be nil: %w", domain.ErrValidation)
	}
	platform := ch.Platform()
	if platform == "" {
		return fmt.Errorf("channel platform must be non-empty: %w", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[platform]; ok {
		return fmt.Errorf("channel already registered for platform %q: %w", platform, domain.ErrConflict)
	}
	r.bindings[platform] = ch
	r.logger.Info("channel registered", "platform", platform)
	return nil
}

// Get returns the binding for platform.
func (r *Registry) Get(platform string) (domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.bindings[platform]
	if !ok {
		return nil, fmt.Errorf("no channel for platform %q: %w", platform, domain.ErrNotFound)
	}
	return ch, nil
}

// Has reports whether a binding exists for platform.
func (r *Registry) Has(platform string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[platform]
	return ok
}

// Platforms returns the registered platform names.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bindings))
	for p := range r.bindings {
		names = append(names, p)
	}
	return names
}
