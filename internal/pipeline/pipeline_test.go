package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"renderbot/internal/channel"
	"renderbot/internal/dispatch"
	"renderbot/internal/domain"
	"renderbot/internal/render"
	"renderbot/internal/renderer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSender(t *testing.T) *dispatch.Sender {
	t.Helper()
	logger := testLogger()
	renderers := renderer.NewRegistry(logger)
	channels := channel.NewRegistry(logger)
	engine := render.NewEngine(channels, logger)
	return dispatch.NewSender(renderers, channels, nil, engine, nil, nil, logger)
}

func namedStage(name string, order int, visit *[]string) Stage {
	return Stage{
		Name:  name,
		Order: order,
		Handler: func(ctx context.Context, ev *domain.IncomingEvent) error {
			*visit = append(*visit, name)
			return nil
		},
	}
}

func TestProcess_RunsInOrder(t *testing.T) {
	p := New(testLogger())
	var visit []string
	p.Use(namedStage("late", 10, &visit))
	p.Use(namedStage("early", 1, &visit))
	p.Use(namedStage("middle", 5, &visit))

	p.Process(context.Background(), &domain.IncomingEvent{ID: "e1"})

	want := []string{"early", "middle", "late"}
	for i := range want {
		if visit[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, visit)
		}
	}
}

func TestProcess_StageErrorDoesNotStopChain(t *testing.T) {
	p := New(testLogger())
	var visit []string
	p.Use(Stage{
		Name:  "boom",
		Order: 1,
		Handler: func(ctx context.Context, ev *domain.IncomingEvent) error {
			return fmt.Errorf("stage exploded")
		},
	})
	p.Use(namedStage("after", 2, &visit))

	p.Process(context.Background(), &domain.IncomingEvent{ID: "e1"})

	if len(visit) != 1 || visit[0] != "after" {
		t.Fatalf("later stage should still run, got %v", visit)
	}
}

func TestUse_DuplicateName(t *testing.T) {
	p := New(testLogger())
	var visit []string
	if err := p.Use(namedStage("dup", 1, &visit)); err != nil {
		t.Fatalf("first use: %v", err)
	}
	err := p.Use(namedStage("dup", 2, &visit))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestUse_Validation(t *testing.T) {
	p := New(testLogger())
	if err := p.Use(Stage{Name: "", Handler: func(ctx context.Context, ev *domain.IncomingEvent) error { return nil }}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty name should be rejected, got %v", err)
	}
	if err := p.Use(Stage{Name: "nohandler"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("nil handler should be rejected, got %v", err)
	}
}

func TestReplyHookStage_AttachesReply(t *testing.T) {
	stage := ReplyHookStage(testSender(t))
	if stage.Order != 2 {
		t.Fatalf("reply hook must run at order 2, got %d", stage.Order)
	}

	ev := &domain.IncomingEvent{ID: "e1", Platform: "nowhere", ChatID: "c1"}
	if err := stage.Handler(context.Background(), ev); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if ev.Reply == nil {
		t.Fatal("reply capability not attached")
	}
	// The hook wires through to the sender; an unknown renderer surfaces
	// as the sender's not-found error.
	if err := ev.Reply("#missing", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found from sender, got %v", err)
	}
}

func TestResponderStage_Matches(t *testing.T) {
	stage := ResponderStage([]ResponderRule{
		{Keywords: []string{"help"}, Ref: "!help-card"},
		{Keywords: []string{"hi", "hello"}, Ref: "#greet"},
	}, testLogger())

	var gotRef string
	ev := &domain.IncomingEvent{
		ID:   "e1",
		Text: "Hello there",
		Reply: func(ref string, extra map[string]any) error {
			gotRef = ref
			return nil
		},
	}

	if err := stage.Handler(context.Background(), ev); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if gotRef != "#greet" {
		t.Fatalf("expected #greet reply, got %q", gotRef)
	}
}

func TestResponderStage_NoMatchNoReply(t *testing.T) {
	stage := ResponderStage([]ResponderRule{
		{Keywords: []string{"help"}, Ref: "!help-card"},
	}, testLogger())

	replied := false
	ev := &domain.IncomingEvent{
		ID:   "e1",
		Text: "totally unrelated",
		Reply: func(ref string, extra map[string]any) error {
			replied = true
			return nil
		},
	}

	if err := stage.Handler(context.Background(), ev); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if replied {
		t.Fatal("should not reply without a keyword match")
	}
}

func TestResponderStage_IgnoresProactive(t *testing.T) {
	stage := ResponderStage([]ResponderRule{
		{Keywords: []string{"hi"}, Ref: "#greet"},
	}, testLogger())

	replied := false
	ev := &domain.IncomingEvent{
		ID:   "e1",
		Type: "proactive",
		Text: "hi",
		Reply: func(ref string, extra map[string]any) error {
			replied = true
			return nil
		},
	}

	if err := stage.Handler(context.Background(), ev); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if replied {
		t.Fatal("proactive events must not trigger the responder")
	}
}
