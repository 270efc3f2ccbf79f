package domain

// Context is the merged render context a renderer sees: the content item's
// data as the base layer, then "user" and "originalEvent" from the
// triggering event, then caller-supplied overrides. Later layers win.
type Context map[string]any

// RenderFunc turns a context into an ordered, finite message sequence.
// Render functions are deterministic producers of a bounded list.
type RenderFunc func(rc Context) ([]Step, error)
