package domain

import (
	"context"
	"time"
)

// ContentItem is a stored piece of structured content. Its category decides
// which renderer formats it; its data becomes the base render context layer.
type ContentItem struct {
	ID         string
	CategoryID string
	Data       map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ContentCategory is the schema for a group of content items. Renderer must
// be a "#"-prefixed renderer name.
type ContentCategory struct {
	ID          string
	Renderer    string
	Description string
}

// ContentStore persists content items and categories. Get methods return
// (nil, nil) when the id is unknown; the resolver turns that into a
// not-found error with context.
type ContentStore interface {
	GetItem(ctx context.Context, id string) (*ContentItem, error)
	GetCategory(ctx context.Context, id string) (*ContentCategory, error)
	PutItem(ctx context.Context, item ContentItem) error
	PutCategory(ctx context.Context, cat ContentCategory) error
	ListItems(ctx context.Context, limit int) ([]ContentItem, error)
	Close() error
}
