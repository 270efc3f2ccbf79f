package channel

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"renderbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubChannel is a minimal binding for registry tests.
type stubChannel struct {
	platform string
}

func (s *stubChannel) Platform() string { return s.platform }
func (s *stubChannel) ProcessOutgoing(payload any, ev *domain.IncomingEvent) (any, error) {
	return payload, nil
}
func (s *stubChannel) Deliver(ctx context.Context, chatID string, payload any) error {
	return nil
}

var _ domain.Channel = (*stubChannel)(nil)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())
	if err := reg.Register(&stubChannel{platform: "telegram"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ch, err := reg.Get("telegram")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ch.Platform() != "telegram" {
		t.Fatalf("expected telegram, got %q", ch.Platform())
	}
	if !reg.Has("telegram") {
		t.Fatal("Has should report true for registered platform")
	}
}

func TestRegistry_DuplicatePlatform(t *testing.T) {
	reg := NewRegistry(testLogger())
	if err := reg.Register(&stubChannel{platform: "telegram"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := reg.Register(&stubChannel{platform: "telegram"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestRegistry_InvalidBindings(t *testing.T) {
	reg := NewRegistry(testLogger())

	if err := reg.Register(nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for nil binding, got %v", err)
	}
	if err := reg.Register(&stubChannel{platform: ""}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty platform, got %v", err)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := NewRegistry(testLogger())
	_, err := reg.Get("nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if reg.Has("nope") {
		t.Fatal("Has should report false for unknown platform")
	}
}

func TestRegistry_Platforms(t *testing.T) {
	reg := NewRegistry(testLogger())
	_ = reg.Register(&stubChannel{platform: "cli"})
	_ = reg.Register(&stubChannel{platform: "web"})

	got := map[string]bool{}
	for _, p := range reg.Platforms() {
		got[p] = true
	}
	if !got["cli"] || !got["web"] {
		t.Fatalf("missing expected platforms: %v", reg.Platforms())
	}
}

func TestSplitMessage(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "0123456789\n"
	}
	chunks := splitMessage(long, 300)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if len(c) > 300 {
			t.Fatalf("chunk exceeds limit: %d", len(c))
		}
		total += len(c)
	}
	if total != len(long) {
		t.Fatalf("chunks lost content: %d != %d", total, len(long))
	}
}

func TestCLI_ProcessOutgoing(t *testing.T) {
	cli := NewCLI(CLIConfig{Logger: testLogger()})

	out, err := cli.ProcessOutgoing(map[string]any{
		"text":    "pick",
		"choices": []string{"a", "b"},
	}, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	text := out.(string)
	if text != "pick\n  1) a\n  2) b" {
		t.Fatalf("unexpected rendering: %q", text)
	}
}

func TestCLI_ProcessOutgoingInvalid(t *testing.T) {
	cli := NewCLI(CLIConfig{Logger: testLogger()})

	if _, err := cli.ProcessOutgoing("not a map", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := cli.ProcessOutgoing(map[string]any{}, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing text, got %v", err)
	}
}

func TestTelegram_ProcessOutgoing(t *testing.T) {
	tg := NewTelegram(TelegramConfig{Logger: testLogger(), ParseMode: "Markdown"})

	out, err := tg.ProcessOutgoing(map[string]any{"text": "hi", "markdown": true}, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	p := out.(telegramPayload)
	if p.Text != "hi" || p.ParseMode != "Markdown" {
		t.Fatalf("unexpected payload: %+v", p)
	}

	out, err = tg.ProcessOutgoing(map[string]any{"text": "hi"}, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.(telegramPayload).ParseMode != "" {
		t.Fatal("plain payload should not carry a parse mode")
	}
}

func TestTelegram_DeliverBadChatID(t *testing.T) {
	tg := NewTelegram(TelegramConfig{Logger: testLogger()})
	err := tg.Deliver(context.Background(), "not-a-number", telegramPayload{Text: "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
