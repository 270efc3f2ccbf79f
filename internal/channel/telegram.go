package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"renderbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram binds the Telegram platform: long-polling for incoming updates,
// chunked sends with retry for outbound payloads.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed user IDs (empty = allow all)
	parseMode string

	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // user IDs as strings
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		parseMode: cfg.ParseMode,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Platform() string { return "telegram" }

// telegramPayload is the processed outbound form for this channel.
type telegramPayload struct {
	Text      string
	ParseMode string
	Choices   []string // rendered as a one-time reply keyboard
}

func (t *Telegram) ProcessOutgoing(payload any, ev *domain.IncomingEvent) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("telegram payload must be a map, got %T: %w", payload, domain.ErrValidation)
	}
	text, _ := m["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("telegram payload missing text: %w", domain.ErrValidation)
	}

	out := telegramPayload{Text: text}
	if md, ok := m["markdown"].(bool); ok && md {
		out.ParseMode = t.parseMode
	}
	if choices, ok := m["choices"].([]string); ok {
		out.Choices = choices
	}
	return out, nil
}

// Deliver sends one payload to chatID, splitting messages over Telegram's
// length limit. The keyboard, when present, goes out with the last chunk.
func (t *Telegram) Deliver(ctx context.Context, chatID string, payload any) error {
	p, ok := payload.(telegramPayload)
	if !ok {
		return fmt.Errorf("telegram delivery expects telegramPayload, got %T: %w", payload, domain.ErrValidation)
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat ID %q: %w", chatID, domain.ErrValidation)
	}
	if t.bot == nil {
		return fmt.Errorf("telegram bot not connected: %w", domain.ErrDelivery)
	}

	chunks := splitMessage(p.Text, telegramMaxMsgLen)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(id, chunk)
		msg.ParseMode = p.ParseMode
		if i == len(chunks)-1 && len(p.Choices) > 0 {
			msg.ReplyMarkup = choicesKeyboard(p.Choices)
		}
		if err := t.sendWithRetry(msg); err != nil {
			return err
		}
	}
	return nil
}

// sendWithRetry tries parse mode first, falls back to plain text on entity
// parse errors, and backs off on rate limits and transient failures.
func (t *Telegram) sendWithRetry(msg tgbotapi.MessageConfig) error {
	var lastErr error
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		if attempt > 0 {
			msg.ParseMode = "" // retries go out as plain text
		}
		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		errStr := err.Error()

		switch {
		case strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429"):
			backoff := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off", "retry_after", backoff, "attempt", attempt+1)
			time.Sleep(backoff)
		case msg.ParseMode != "" && strings.Contains(errStr, "can't parse entities"):
			t.logger.Warn("telegram parse error, retrying as plain text", "err", err)
		case attempt < telegramMaxSendRetries:
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
		}
	}
	return fmt.Errorf("telegram send failed after %d attempts: %v: %w",
		telegramMaxSendRetries+1, lastErr, domain.ErrDelivery)
}

func choicesKeyboard(choices []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for _, c := range choices {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(c)))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	return kb
}

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context, publish func(domain.IncomingEvent)) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update, publish)
		}
	}
}

// Stop is a no-op: polling stops when Start's context is cancelled.
func (t *Telegram) Stop() error { return nil }

func (t *Telegram) handleUpdate(update tgbotapi.Update, publish func(domain.IncomingEvent)) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user", "user_id", userID, "username", update.Message.From.UserName)
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}

	evType := "message"
	if update.Message.IsCommand() {
		evType = "command"
	}

	t.logger.Info("telegram message received", "user_id", userID, "chat_id", chatID, "text_len", len(text))

	publish(domain.IncomingEvent{
		ID:       uuid.NewString(),
		Platform: "telegram",
		Type:     evType,
		ChatID:   strconv.FormatInt(chatID, 10),
		User: domain.User{
			ID:   strconv.FormatInt(userID, 10),
			Name: update.Message.From.UserName,
		},
		Text:      text,
		Raw:       update,
		Timestamp: time.Unix(int64(update.Message.Date), 0),
	})
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// splitMessage splits text into chunks under maxLen, preferring newline
// boundaries in the second half of the chunk.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}
	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
