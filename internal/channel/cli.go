package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"renderbot/internal/domain"

	"github.com/google/uuid"
)

// CLI is the interactive terminal channel: incoming lines from stdin,
// outbound messages printed to stdout.
type CLI struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

type CLIConfig struct {
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &CLI{logger: cfg.Logger, in: cfg.In, out: cfg.Out}
}

func (c *CLI) Platform() string { return "cli" }

// ProcessOutgoing renders the payload as a plain text block; choices become
// a numbered list under the text.
func (c *CLI) ProcessOutgoing(payload any, ev *domain.IncomingEvent) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cli payload must be a map, got %T: %w", payload, domain.ErrValidation)
	}
	text, _ := m["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("cli payload missing text: %w", domain.ErrValidation)
	}
	var b strings.Builder
	b.WriteString(text)
	if choices, ok := m["choices"].([]string); ok {
		for i, choice := range choices {
			fmt.Fprintf(&b, "\n  %d) %s", i+1, choice)
		}
	}
	return b.String(), nil
}

func (c *CLI) Deliver(ctx context.Context, chatID string, payload any) error {
	text, ok := payload.(string)
	if !ok {
		return fmt.Errorf("cli delivery expects a string, got %T: %w", payload, domain.ErrValidation)
	}
	if _, err := fmt.Fprintf(c.out, "\n--- renderbot ---\n%s\n-----------------\nYou> ", text); err != nil {
		return err
	}
	return nil
}

// Start runs the REPL and blocks until the context is cancelled or stdin
// closes. Each non-empty line is published as an incoming event.
func (c *CLI) Start(ctx context.Context, publish func(domain.IncomingEvent)) error {
	_, _ = fmt.Fprintln(c.out, "renderbot CLI. Type a message and press Enter. /quit to exit.")
	_, _ = fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			return scanner.Err() // nil on EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}

		publish(domain.IncomingEvent{
			ID:        uuid.NewString(),
			Platform:  "cli",
			Type:      "message",
			ChatID:    "direct",
			User:      domain.User{ID: "user", Name: "user"},
			Text:      line,
			Timestamp: time.Now(),
		})
	}
}

func (c *CLI) Stop() error { return nil }
