package domain

import "time"

// User identifies the sender of an incoming event.
type User struct {
	ID   string
	Name string
}

// ReplyFunc sends a rendered content reply bound to one incoming event.
// The reference accepts "#renderer", "renderer", or "!contentItem" forms.
// It blocks until the full message sequence has been delivered (or failed).
type ReplyFunc func(ref string, extra map[string]any) error

// IncomingEvent is one message arriving from a channel. Channels publish
// these onto the bus; the pipeline attaches the Reply capability before
// any consumer sees the event.
type IncomingEvent struct {
	ID        string
	Platform  string // originating channel platform, e.g. "telegram"
	Type      string // "message" | "command" | "proactive"
	ChatID    string
	User      User
	Text      string
	Raw       any // channel-specific original update, opaque to the core
	Timestamp time.Time

	Reply ReplyFunc
}

// Proactive reports whether this event was synthesized for a scheduled or
// triggered send rather than received from a channel.
func (e *IncomingEvent) Proactive() bool {
	return e.Type == "proactive"
}
