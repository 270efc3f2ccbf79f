package domain

import "context"

// InvokeOptions tune a single engine invocation.
type InvokeOptions struct {
	// FailWithoutPlatform makes the engine fail when no channel binding
	// exists for CurrentPlatform instead of passing payloads through
	// unprocessed.
	FailWithoutPlatform bool
	CurrentPlatform     string
}

// Invocation is the full input for one render call.
type Invocation struct {
	Renderer string // renderer name, for diagnostics
	Render   RenderFunc
	Context  Context
	Platform string
	Event    *IncomingEvent // nil for proactive sends
	Options  InvokeOptions
}

// Engine produces the ordered message sequence for one invocation. It calls
// the render function and consults the channel registry's outgoing
// processors so renderers can rely on platform-specific behavior.
type Engine interface {
	Invoke(ctx context.Context, inv Invocation) ([]Step, error)
}
