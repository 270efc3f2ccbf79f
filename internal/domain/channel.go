package domain

import "context"

// Channel binds one outbound platform: it transforms renderer payloads into
// channel-specific form and delivers them. Bindings are registered once per
// platform at startup and live for the process lifetime.
type Channel interface {
	Platform() string

	// ProcessOutgoing transforms a renderer's platform-agnostic payload
	// (a map such as {"text": ..., "markdown": true}) into whatever this
	// channel's Deliver accepts. The triggering event is nil for proactive
	// sends without an incoming counterpart.
	ProcessOutgoing(payload any, ev *IncomingEvent) (any, error)

	// Deliver sends one processed payload to the given chat and does not
	// return until the delivery attempt has completed.
	Deliver(ctx context.Context, chatID string, payload any) error
}

// Listener is implemented by channels that also receive incoming traffic.
// Start blocks until the context is cancelled, publishing each incoming
// event through publish.
type Listener interface {
	Start(ctx context.Context, publish func(IncomingEvent)) error
	Stop() error
}
