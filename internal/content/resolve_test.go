package content

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"renderbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "content.db"), testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seed(t *testing.T, store *SQLiteStore, renderer string) {
	t.Helper()
	ctx := context.Background()
	if err := store.PutCategory(ctx, domain.ContentCategory{ID: "catA", Renderer: renderer}); err != nil {
		t.Fatalf("put category: %v", err)
	}
	if err := store.PutItem(ctx, domain.ContentItem{
		ID:         "item1",
		CategoryID: "catA",
		Data:       map[string]any{"text": "hello", "typing": float64(200)},
	}); err != nil {
		t.Fatalf("put item: %v", err)
	}
}

func TestResolve(t *testing.T) {
	store := testStore(t)
	seed(t, store, "#greet")
	resolver := NewResolver(store, testLogger())

	name, data, err := resolver.Resolve(context.Background(), "item1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if name != "greet" {
		t.Fatalf("expected renderer 'greet', got %q", name)
	}
	if data["text"] != "hello" {
		t.Fatalf("expected item data in resolution, got %v", data)
	}
}

func TestResolve_UnknownItem(t *testing.T) {
	store := testStore(t)
	resolver := NewResolver(store, testLogger())

	_, _, err := resolver.Resolve(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestResolve_UnknownCategory(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if err := store.PutItem(ctx, domain.ContentItem{
		ID:         "orphan",
		CategoryID: "ghost",
		Data:       map[string]any{},
	}); err != nil {
		t.Fatalf("put item: %v", err)
	}
	resolver := NewResolver(store, testLogger())

	_, _, err := resolver.Resolve(ctx, "orphan")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	// The error must name both the category and the item.
	msg := err.Error()
	if !strings.Contains(msg, "ghost") || !strings.Contains(msg, "orphan") {
		t.Fatalf("error should mention category and item ids: %q", msg)
	}
}

func TestResolve_MalformedRenderer(t *testing.T) {
	cases := []string{"greet", "#", ""}
	for _, renderer := range cases {
		store := testStore(t)
		seed(t, store, renderer)
		resolver := NewResolver(store, testLogger())

		_, _, err := resolver.Resolve(context.Background(), "item1")
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("renderer %q: expected validation error, got %v", renderer, err)
		}
	}
}

func TestStore_GetUnknownReturnsNil(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	item, err := store.GetItem(ctx, "nope")
	if err != nil || item != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", item, err)
	}
	cat, err := store.GetCategory(ctx, "nope")
	if err != nil || cat != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", cat, err)
	}
}

func TestStore_UpsertItem(t *testing.T) {
	store := testStore(t)
	seed(t, store, "#greet")
	ctx := context.Background()

	if err := store.PutItem(ctx, domain.ContentItem{
		ID:         "item1",
		CategoryID: "catA",
		Data:       map[string]any{"text": "updated"},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	item, err := store.GetItem(ctx, "item1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.Data["text"] != "updated" {
		t.Fatalf("expected updated data, got %v", item.Data)
	}
}

func TestStore_ListItems(t *testing.T) {
	store := testStore(t)
	seed(t, store, "#greet")
	ctx := context.Background()
	if err := store.PutItem(ctx, domain.ContentItem{ID: "item2", CategoryID: "catA", Data: map[string]any{}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	items, err := store.ListItems(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestLoadLibrary(t *testing.T) {
	dir := t.TempDir()
	yamlFile := `
categories:
  - id: greetings
    renderer: "#text"
    description: Welcome messages
items:
  - id: welcome
    category: greetings
    data:
      text: "Hello there!"
`
	if err := os.WriteFile(filepath.Join(dir, "greetings.yaml"), []byte(yamlFile), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// A broken file must not abort the load.
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("{{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := testStore(t)
	ctx := context.Background()
	if err := LoadLibrary(ctx, dir, store, testLogger()); err != nil {
		t.Fatalf("load: %v", err)
	}

	item, err := store.GetItem(ctx, "welcome")
	if err != nil || item == nil {
		t.Fatalf("expected welcome item, got (%v, %v)", item, err)
	}
	cat, err := store.GetCategory(ctx, "greetings")
	if err != nil || cat == nil {
		t.Fatalf("expected greetings category, got (%v, %v)", cat, err)
	}
	if cat.Renderer != "#text" {
		t.Fatalf("unexpected renderer: %q", cat.Renderer)
	}
}

func TestLoadLibrary_MissingDir(t *testing.T) {
	store := testStore(t)
	if err := LoadLibrary(context.Background(), "/does/not/exist", store, testLogger()); err != nil {
		t.Fatalf("missing dir should be a no-op, got %v", err)
	}
}
