package renderer

import (
	"fmt"

	"renderbot/internal/domain"
)

// RegisterBuiltins installs the built-in renderers. Content libraries can
// shadow any of them by re-registering the same name.
func RegisterBuiltins(r *Registry) {
	builtins := map[string]domain.RenderFunc{
		"text":        renderText,
		"typing-text": renderTypingText,
		"choices":     renderChoices,
	}
	for name, fn := range builtins {
		// Names are non-empty and functions non-nil, so this cannot fail.
		_ = r.Register(name, fn)
	}
}

// renderText emits a single text message. Context keys: "text" (required),
// "markdown" (optional bool).
func renderText(rc domain.Context) ([]domain.Step, error) {
	text, err := ctxString(rc, "text")
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"text": text}
	if md, ok := rc["markdown"].(bool); ok {
		payload["markdown"] = md
	}
	return []domain.Step{domain.PayloadStep{Payload: payload}}, nil
}

// renderTypingText behaves like "text" but pauses first, simulating typing.
// Context key "typing" is the pause in milliseconds (default 800).
func renderTypingText(rc domain.Context) ([]domain.Step, error) {
	steps, err := renderText(rc)
	if err != nil {
		return nil, err
	}
	ms := 800
	if v, ok := ctxInt(rc, "typing"); ok {
		ms = v
	}
	return append([]domain.Step{domain.Pause(ms)}, steps...), nil
}

// renderChoices emits a text message with quick-reply choices. Context keys:
// "text" (required), "choices" (list of strings).
func renderChoices(rc domain.Context) ([]domain.Step, error) {
	text, err := ctxString(rc, "text")
	if err != nil {
		return nil, err
	}
	var choices []string
	switch v := rc["choices"].(type) {
	case []string:
		choices = v
	case []any:
		for _, c := range v {
			if s, ok := c.(string); ok {
				choices = append(choices, s)
			}
		}
	}
	payload := map[string]any{"text": text, "choices": choices}
	return []domain.Step{domain.PayloadStep{Payload: payload}}, nil
}

func ctxString(rc domain.Context, key string) (string, error) {
	s, ok := rc[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("render context missing %q: %w", key, domain.ErrValidation)
	}
	return s, nil
}

// ctxInt reads an int-valued context key. JSON and YAML decoding produce
// float64 and int respectively, so both are accepted.
func ctxInt(rc domain.Context, key string) (int, bool) {
	switch v := rc[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
