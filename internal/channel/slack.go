package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"renderbot/internal/domain"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const slackMaxMsgLen = 4000

// Slack binds the Slack platform using Socket Mode.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	logger   *slog.Logger
	botUID   string // the bot's own user ID, to avoid echoing itself
}

type SlackConfig struct {
	BotToken string
	AppToken string
	Logger   *slog.Logger
}

func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Platform() string { return "slack" }

// slackPayload is the processed outbound form for this channel.
type slackPayload struct {
	Text    string
	Choices []string
}

func (s *Slack) ProcessOutgoing(payload any, ev *domain.IncomingEvent) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("slack payload must be a map, got %T: %w", payload, domain.ErrValidation)
	}
	text, _ := m["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("slack payload missing text: %w", domain.ErrValidation)
	}
	out := slackPayload{Text: text}
	if choices, ok := m["choices"].([]string); ok {
		out.Choices = choices
	}
	return out, nil
}

func (s *Slack) Deliver(ctx context.Context, chatID string, payload any) error {
	p, ok := payload.(slackPayload)
	if !ok {
		return fmt.Errorf("slack delivery expects slackPayload, got %T: %w", payload, domain.ErrValidation)
	}
	if s.client == nil {
		return fmt.Errorf("slack client not connected: %w", domain.ErrDelivery)
	}

	text := p.Text
	if len(p.Choices) > 0 {
		var b strings.Builder
		b.WriteString(text)
		for _, c := range p.Choices {
			b.WriteString("\n• ")
			b.WriteString(c)
		}
		text = b.String()
	}

	for _, chunk := range splitMessage(text, slackMaxMsgLen) {
		_, _, err := s.client.PostMessageContext(ctx, chatID,
			slack.MsgOptionText(chunk, false),
		)
		if err != nil {
			return fmt.Errorf("slack send to %s: %v: %w", chatID, err, domain.ErrDelivery)
		}
	}
	return nil
}

// Start connects via Socket Mode and blocks until ctx is cancelled.
func (s *Slack) Start(ctx context.Context, publish func(domain.IncomingEvent)) error {
	api := slack.New(s.botToken, slack.OptionAppLevelToken(s.appToken))
	s.client = api

	authResp, err := api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(api)

	go func() {
		for evt := range socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleEventsAPI(apiEvent, publish)
			default:
				// Ack unknown events to keep Socket Mode connected.
				if evt.Request != nil {
					socketClient.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

func (s *Slack) Stop() error { return nil }

func (s *Slack) handleEventsAPI(event slackevents.EventsAPIEvent, publish func(domain.IncomingEvent)) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		if ev.User == s.botUID || ev.User == "" || ev.SubType != "" {
			return
		}
		s.logger.Info("slack message received", "user", ev.User, "channel", ev.Channel, "content_len", len(ev.Text))
		publish(domain.IncomingEvent{
			ID:        uuid.NewString(),
			Platform:  "slack",
			Type:      "message",
			ChatID:    ev.Channel,
			User:      domain.User{ID: ev.User},
			Text:      ev.Text,
			Raw:       ev,
			Timestamp: time.Now(),
		})

	case *slackevents.AppMentionEvent:
		content := ev.Text
		if idx := strings.Index(content, ">"); idx >= 0 {
			content = strings.TrimSpace(content[idx+1:])
		}
		s.logger.Info("slack mention received", "user", ev.User, "channel", ev.Channel)
		publish(domain.IncomingEvent{
			ID:        uuid.NewString(),
			Platform:  "slack",
			Type:      "message",
			ChatID:    ev.Channel,
			User:      domain.User{ID: ev.User},
			Text:      content,
			Raw:       ev,
			Timestamp: time.Now(),
		})
	}
}
