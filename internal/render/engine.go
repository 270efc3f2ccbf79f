package render

import (
	"context"
	"fmt"
	"log/slog"

	"renderbot/internal/channel"
	"renderbot/internal/domain"
)

// Engine invokes render functions and runs each payload step through the
// target platform's outgoing processor, so a renderer's platform-agnostic
// payload leaves the engine in channel-deliverable form.
type Engine struct {
	channels *channel.Registry
	logger   *slog.Logger
}

func NewEngine(channels *channel.Registry, logger *slog.Logger) *Engine {
	return &Engine{channels: channels, logger: logger}
}

var _ domain.Engine = (*Engine)(nil)

// Invoke runs one render call and returns the processed step sequence.
// The sequence is finite and ordered; pause steps pass through untouched.
func (e *Engine) Invoke(ctx context.Context, inv domain.Invocation) ([]domain.Step, error) {
	if inv.Render == nil {
		return nil, fmt.Errorf("renderer %q has no render function: %w", inv.Renderer, domain.ErrValidation)
	}

	platform := inv.Options.CurrentPlatform
	if platform == "" {
		platform = inv.Platform
	}

	var binding domain.Channel
	if e.channels.Has(platform) {
		binding, _ = e.channels.Get(platform)
	} else if inv.Options.FailWithoutPlatform {
		return nil, fmt.Errorf("renderer %q: no channel for platform %q: %w",
			inv.Renderer, platform, domain.ErrNotFound)
	}

	steps, err := inv.Render(inv.Context)
	if err != nil {
		return nil, fmt.Errorf("renderer %q: %w", inv.Renderer, err)
	}

	out := make([]domain.Step, 0, len(steps))
	for i, step := range steps {
		switch s := step.(type) {
		case domain.PauseStep:
			if s.Duration < 0 {
				return nil, fmt.Errorf("renderer %q step %d: negative pause: %w",
					inv.Renderer, i, domain.ErrValidation)
			}
			out = append(out, s)
		case domain.PayloadStep:
			if binding == nil {
				out = append(out, s)
				continue
			}
			processed, err := binding.ProcessOutgoing(s.Payload, inv.Event)
			if err != nil {
				return nil, fmt.Errorf("renderer %q step %d on %s: %w", inv.Renderer, i, platform, err)
			}
			out = append(out, domain.PayloadStep{Payload: processed})
		default:
			return nil, fmt.Errorf("renderer %q step %d: unknown step type %T: %w",
				inv.Renderer, i, step, domain.ErrValidation)
		}
	}

	e.logger.Debug("render invocation complete", "renderer", inv.Renderer, "platform", platform, "steps", len(out))
	return out, nil
}
