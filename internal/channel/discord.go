package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"renderbot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const discordMaxMsgLen = 2000

// Discord binds the Discord platform via a gateway session.
type Discord struct {
	token   string
	guildID string
	session *discordgo.Session
	logger  *slog.Logger
}

type DiscordConfig struct {
	Token   string
	GuildID string // optional: restrict to one guild
	Logger  *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		logger:  cfg.Logger,
	}
}

func (d *Discord) Platform() string { return "discord" }

// discordPayload is the processed outbound form for this channel. Choices
// become message components (buttons).
type discordPayload struct {
	Text    string
	Choices []string
}

func (d *Discord) ProcessOutgoing(payload any, ev *domain.IncomingEvent) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("discord payload must be a map, got %T: %w", payload, domain.ErrValidation)
	}
	text, _ := m["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("discord payload missing text: %w", domain.ErrValidation)
	}
	out := discordPayload{Text: text}
	if choices, ok := m["choices"].([]string); ok {
		out.Choices = choices
	}
	return out, nil
}

func (d *Discord) Deliver(ctx context.Context, chatID string, payload any) error {
	p, ok := payload.(discordPayload)
	if !ok {
		return fmt.Errorf("discord delivery expects discordPayload, got %T: %w", payload, domain.ErrValidation)
	}
	if d.session == nil {
		return fmt.Errorf("discord session not connected: %w", domain.ErrDelivery)
	}

	chunks := splitMessage(p.Text, discordMaxMsgLen)
	for i, chunk := range chunks {
		send := &discordgo.MessageSend{Content: chunk}
		if i == len(chunks)-1 && len(p.Choices) > 0 {
			send.Components = []discordgo.MessageComponent{choiceButtons(p.Choices)}
		}
		if _, err := d.session.ChannelMessageSendComplex(chatID, send); err != nil {
			return fmt.Errorf("discord send to %s: %v: %w", chatID, err, domain.ErrDelivery)
		}
	}
	return nil
}

func choiceButtons(choices []string) discordgo.ActionsRow {
	var buttons []discordgo.MessageComponent
	for i, c := range choices {
		if i >= 5 { // Discord caps a row at five buttons
			break
		}
		buttons = append(buttons, discordgo.Button{
			Label:    c,
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("choice_%d", i),
		})
	}
	return discordgo.ActionsRow{Components: buttons}
}

// Start opens the gateway session and blocks until ctx is cancelled.
func (d *Discord) Start(ctx context.Context, publish func(domain.IncomingEvent)) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.ID == s.State.User.ID {
			return
		}
		if d.guildID != "" && m.GuildID != d.guildID {
			return
		}

		d.logger.Info("discord message received",
			"author", m.Author.Username,
			"channel_id", m.ChannelID,
			"content_len", len(m.Content),
		)

		publish(domain.IncomingEvent{
			ID:        uuid.NewString(),
			Platform:  "discord",
			Type:      "message",
			ChatID:    m.ChannelID,
			User:      domain.User{ID: m.Author.ID, Name: m.Author.Username},
			Text:      m.Content,
			Raw:       m,
			Timestamp: time.Now(),
		})
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord bot connected", "user", session.State.User.Username)

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

func (d *Discord) Stop() error { return nil }
