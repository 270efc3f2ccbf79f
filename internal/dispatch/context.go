package dispatch

import "renderbot/internal/domain"

// BuildContext layers the render context for one send. Precedence, lowest
// first: content item data, event-derived keys, caller overrides. The caller
// can therefore replace even "user" or "originalEvent" when it needs to.
func BuildContext(base map[string]any, ev *domain.IncomingEvent, extra map[string]any) domain.Context {
	rc := make(domain.Context, len(base)+len(extra)+2)
	for k, v := range base {
		rc[k] = v
	}
	if ev != nil {
		rc["user"] = map[string]any{
			"id":   ev.User.ID,
			"name": ev.User.Name,
		}
		rc["originalEvent"] = ev
	}
	for k, v := range extra {
		rc[k] = v
	}
	return rc
}
