package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"renderbot/internal/bus"
	"renderbot/internal/channel"
	"renderbot/internal/content"
	"renderbot/internal/domain"
	"renderbot/internal/metrics"
	"renderbot/internal/renderer"
)

// Sender is the one place rendered content leaves the process. It resolves a
// reference to a render function, builds the render context, invokes the
// engine, and then plays the resulting step sequence against the target
// channel strictly in order: pauses suspend the loop, payloads are delivered
// one at a time, and the first delivery failure aborts the remainder.
type Sender struct {
	renderers *renderer.Registry
	channels  *channel.Registry
	resolver  *content.Resolver
	engine    domain.Engine
	events    *bus.EventBus
	metrics   *metrics.AppMetrics
	logger    *slog.Logger
}

func NewSender(
	renderers *renderer.Registry,
	channels *channel.Registry,
	resolver *content.Resolver,
	engine domain.Engine,
	events *bus.EventBus,
	m *metrics.AppMetrics,
	logger *slog.Logger,
) *Sender {
	return &Sender{
		renderers: renderers,
		channels:  channels,
		resolver:  resolver,
		engine:    engine,
		events:    events,
		metrics:   m,
		logger:    logger,
	}
}

// SendContent renders rawRef for the given event and delivers the resulting
// sequence to the event's platform and chat. It blocks until every step has
// been delivered (pauses included) or a step has failed. Two concurrent
// SendContent calls may interleave with each other; within one call the
// order is strict.
func (s *Sender) SendContent(ctx context.Context, ev *domain.IncomingEvent, rawRef string, extra map[string]any) error {
	if ev == nil {
		return fmt.Errorf("send requires an event: %w", domain.ErrValidation)
	}
	start := time.Now()
	s.count(func(m *metrics.AppMetrics) { m.SendsTotal.Inc() })

	ref, err := domain.ParseRef(rawRef)
	if err != nil {
		return s.failed(ev, rawRef, err)
	}

	name := ref.Name
	var base map[string]any
	if ref.Kind == domain.RefContent {
		if s.resolver == nil {
			return s.failed(ev, rawRef, fmt.Errorf("no content store configured for %q: %w", rawRef, domain.ErrNotFound))
		}
		name, base, err = s.resolver.Resolve(ctx, ref.Name)
		if err != nil {
			return s.failed(ev, rawRef, err)
		}
		s.emit(bus.EventContentResolved, map[string]any{"item": ref.Name, "renderer": name})
	}

	// Resolve the render function before anything is delivered so an
	// undefined renderer never produces a partial sequence.
	render, err := s.renderers.Get(name)
	if err != nil {
		return s.failed(ev, rawRef, err)
	}

	rc := BuildContext(base, ev, extra)

	s.emit(bus.EventSendStarted, map[string]any{"renderer": name, "platform": ev.Platform, "chat": ev.ChatID})

	steps, err := s.engine.Invoke(ctx, domain.Invocation{
		Renderer: name,
		Render:   render,
		Context:  rc,
		Platform: ev.Platform,
		Event:    ev,
		Options: domain.InvokeOptions{
			FailWithoutPlatform: true,
			CurrentPlatform:     ev.Platform,
		},
	})
	if err != nil {
		return s.failed(ev, rawRef, err)
	}

	binding, err := s.channels.Get(ev.Platform)
	if err != nil {
		return s.failed(ev, rawRef, err)
	}

	for i, step := range steps {
		switch st := step.(type) {
		case domain.PauseStep:
			// Pauses run to completion once started; a sequence is never
			// resumed mid-way, so it is never cut short mid-way either.
			time.Sleep(st.Duration)
		case domain.PayloadStep:
			stepStart := time.Now()
			if err := binding.Deliver(ctx, ev.ChatID, st.Payload); err != nil {
				if !errors.Is(err, domain.ErrDelivery) {
					err = fmt.Errorf("%v: %w", err, domain.ErrDelivery)
				}
				return s.failed(ev, rawRef,
					fmt.Errorf("deliver step %d of renderer %q on %s: %w", i, name, ev.Platform, err))
			}
			s.count(func(m *metrics.AppMetrics) {
				m.DeliveriesTotal.Inc()
				m.DeliveryLatency.Observe(time.Since(stepStart).Seconds())
			})
			s.emit(bus.EventMessageDelivered, map[string]any{"renderer": name, "platform": ev.Platform, "step": i})
		default:
			return s.failed(ev, rawRef,
				fmt.Errorf("renderer %q step %d: unknown step type %T: %w", name, i, step, domain.ErrValidation))
		}
	}

	s.count(func(m *metrics.AppMetrics) { m.SendLatency.Observe(time.Since(start).Seconds()) })
	s.emit(bus.EventSendCompleted, map[string]any{"renderer": name, "platform": ev.Platform, "steps": len(steps)})
	s.logger.Debug("send complete", "renderer", name, "platform", ev.Platform, "chat", ev.ChatID, "steps", len(steps))
	return nil
}

// SendTo dispatches content outside any conversation, for scheduled or
// operator-initiated sends. It synthesizes a minimal proactive event so the
// rest of the path is identical to a reply.
func (s *Sender) SendTo(ctx context.Context, platform, chatID, rawRef string, extra map[string]any) error {
	if platform == "" || chatID == "" {
		return fmt.Errorf("proactive send requires platform and chat id: %w", domain.ErrValidation)
	}
	ev := &domain.IncomingEvent{
		ID:        uuid.NewString(),
		Platform:  platform,
		Type:      "proactive",
		ChatID:    chatID,
		Timestamp: time.Now(),
	}
	return s.SendContent(ctx, ev, rawRef, extra)
}

func (s *Sender) failed(ev *domain.IncomingEvent, rawRef string, err error) error {
	s.count(func(m *metrics.AppMetrics) { m.SendsFailed.Inc() })
	s.emit(bus.EventSendFailed, map[string]any{"ref": rawRef, "platform": ev.Platform, "error": err.Error()})
	s.logger.Warn("send failed", "ref", rawRef, "platform", ev.Platform, "error", err)
	return err
}

func (s *Sender) emit(eventType string, payload map[string]any) {
	if s.events != nil {
		s.events.Emit(bus.Event{Type: eventType, Source: "sender", Payload: payload})
	}
}

func (s *Sender) count(fn func(*metrics.AppMetrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
