package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"renderbot/internal/domain"
)

// Resolver turns a content item reference into a renderer name plus the
// item's data. Resolution is one level deep: the category's renderer field
// names a renderer directly and is never itself resolved as content.
type Resolver struct {
	store  domain.ContentStore
	logger *slog.Logger
}

func NewResolver(store domain.ContentStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve looks up the item, then its category, validates the category's
// renderer field, and returns the renderer name (sigil stripped) and the
// item's data as the base render context layer.
func (r *Resolver) Resolve(ctx context.Context, itemID string) (string, map[string]any, error) {
	item, err := r.store.GetItem(ctx, itemID)
	if err != nil {
		return "", nil, fmt.Errorf("look up content item %q: %w", itemID, err)
	}
	if item == nil {
		return "", nil, fmt.Errorf("content item not found: %s: %w", itemID, domain.ErrNotFound)
	}

	cat, err := r.store.GetCategory(ctx, item.CategoryID)
	if err != nil {
		return "", nil, fmt.Errorf("look up content category %q: %w", item.CategoryID, err)
	}
	if cat == nil {
		return "", nil, fmt.Errorf("content category %q not found for item %q: %w",
			item.CategoryID, itemID, domain.ErrNotFound)
	}

	if !strings.HasPrefix(cat.Renderer, "#") || len(cat.Renderer) < 2 {
		return "", nil, fmt.Errorf(
			"category %q renderer must be a #-prefixed renderer name, got %q: %w",
			cat.ID, cat.Renderer, domain.ErrValidation)
	}

	name := cat.Renderer[1:]
	r.logger.Debug("content resolved", "item", itemID, "category", cat.ID, "renderer", name)
	return name, item.Data, nil
}
