package pipeline

import (
	"context"

	"renderbot/internal/dispatch"
	"renderbot/internal/domain"
)

// ReplyHookStage attaches the Reply capability to every incoming event. It
// runs at order 2, early enough that every consumer stage downstream can
// answer the event without knowing about the sender.
func ReplyHookStage(sender *dispatch.Sender) Stage {
	return Stage{
		Name:        "reply-hook",
		Type:        "incoming",
		Order:       2,
		Description: "Attaches the content reply capability to incoming events",
		Handler: func(ctx context.Context, ev *domain.IncomingEvent) error {
			ev.Reply = func(ref string, extra map[string]any) error {
				return sender.SendContent(ctx, ev, ref, extra)
			}
			return nil
		},
	}
}
