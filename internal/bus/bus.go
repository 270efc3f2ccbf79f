package bus

import (
	"log/slog"
	"sync"
	"time"

	"renderbot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus carries incoming events from channels to the gateway loop.
// Outbound traffic does not pass through here: deliveries go straight to
// the channel registry so their errors can propagate to the sender.
type InMemoryBus struct {
	inbound chan domain.IncomingEvent
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// New creates an InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound: make(chan domain.IncomingEvent, bufferSize),
		logger:  logger,
	}
}

// Publish blocks up to 10 seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(ev domain.IncomingEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- ev:
	default:
		b.logger.Warn("inbound bus full, waiting...", "platform", ev.Platform, "sender", ev.User.ID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- ev:
			b.logger.Info("event delivered after wait", "platform", ev.Platform)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s",
				"platform", ev.Platform,
				"sender", ev.User.ID,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.IncomingEvent {
	return b.inbound
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
