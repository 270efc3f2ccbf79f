package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"renderbot/internal/domain"
)

// ResponderRule maps message keywords to a renderer or content reference.
type ResponderRule struct {
	Keywords []string
	Ref      string
}

// ResponderStage answers incoming messages whose text contains one of the
// configured keywords. First matching rule wins. It runs late in the chain
// so enrichment stages have already done their work.
func ResponderStage(rules []ResponderRule, logger *slog.Logger) Stage {
	return Stage{
		Name:        "responder",
		Type:        "incoming",
		Order:       10,
		Description: "Replies to keyword-matched messages with configured content",
		Handler: func(ctx context.Context, ev *domain.IncomingEvent) error {
			if ev.Proactive() || ev.Reply == nil || ev.Text == "" {
				return nil
			}
			text := strings.ToLower(ev.Text)
			for _, rule := range rules {
				for _, kw := range rule.Keywords {
					if kw == "" || !strings.Contains(text, strings.ToLower(kw)) {
						continue
					}
					logger.Debug("responder matched", "keyword", kw, "ref", rule.Ref, "event", ev.ID)
					return ev.Reply(rule.Ref, nil)
				}
			}
			return nil
		},
	}
}
