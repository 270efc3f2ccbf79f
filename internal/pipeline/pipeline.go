// Package pipeline runs incoming events through an ordered chain of stages.
// Stages observe and enrich the event; a stage error is logged and the chain
// continues, so one misbehaving stage cannot starve the rest.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"renderbot/internal/domain"
)

// Handler processes one incoming event. The event is shared down the chain,
// so mutations (like attaching the reply capability) are visible to later
// stages.
type Handler func(ctx context.Context, ev *domain.IncomingEvent) error

// Stage is one step in the incoming event chain.
type Stage struct {
	Name        string
	Type        string // "incoming" is the only direction handled here
	Order       int    // lower runs first; ties run in registration order
	Description string
	Handler     Handler
}

// Pipeline holds the registered stages. Register at startup with Use; the
// stage list is not meant to change under traffic.
type Pipeline struct {
	mu     sync.RWMutex
	stages []Stage
	logger *slog.Logger
}

func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{logger: logger}
}

// Use registers a stage. Stage names must be unique.
func (p *Pipeline) Use(s Stage) error {
	if s.Name == "" {
		return fmt.Errorf("stage name must be non-empty: %w", domain.ErrValidation)
	}
	if s.Handler == nil {
		return fmt.Errorf("stage %q has no handler: %w", s.Name, domain.ErrValidation)
	}
	if s.Type == "" {
		s.Type = "incoming"
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.stages {
		if existing.Name == s.Name {
			return fmt.Errorf("stage %q already registered: %w", s.Name, domain.ErrConflict)
		}
	}
	p.stages = append(p.stages, s)
	sort.SliceStable(p.stages, func(i, j int) bool {
		return p.stages[i].Order < p.stages[j].Order
	})
	p.logger.Debug("pipeline stage registered", "name", s.Name, "order", s.Order)
	return nil
}

// Stages returns the registered stages in execution order.
func (p *Pipeline) Stages() []Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Stage(nil), p.stages...)
}

// Process runs every incoming stage over the event in order. Stage errors
// are logged, not propagated, and never stop later stages.
func (p *Pipeline) Process(ctx context.Context, ev *domain.IncomingEvent) {
	for _, s := range p.Stages() {
		if s.Type != "incoming" {
			continue
		}
		if err := s.Handler(ctx, ev); err != nil {
			p.logger.Error("pipeline stage failed",
				"stage", s.Name,
				"platform", ev.Platform,
				"event", ev.ID,
				"error", err,
			)
		}
	}
}
