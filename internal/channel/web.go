package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"renderbot/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Web binds the browser platform: a websocket endpoint for bidirectional
// chat plus /healthz and an optional /metrics handler.
type Web struct {
	host    string
	port    int
	logger  *slog.Logger
	metrics http.Handler
	server  *http.Server

	mu      sync.RWMutex
	clients map[string]*wsClient
}

// wsClient tracks one connected websocket.
type wsClient struct {
	conn   *websocket.Conn
	chatID string
	mu     sync.Mutex
}

// wsMessage is the JSON frame exchanged with browsers.
type wsMessage struct {
	Type    string   `json:"type"` // "message" | "status"
	Text    string   `json:"text,omitempty"`
	Choices []string `json:"choices,omitempty"`
	ChatID  string   `json:"chat_id,omitempty"`
	UserID  string   `json:"user_id,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // configure CORS before exposing beyond localhost
	},
}

type WebConfig struct {
	Host    string
	Port    int
	Logger  *slog.Logger
	Metrics http.Handler // optional, served at /metrics
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return &Web{
		host:    cfg.Host,
		port:    cfg.Port,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		clients: make(map[string]*wsClient),
	}
}

func (w *Web) Platform() string { return "web" }

func (w *Web) ProcessOutgoing(payload any, ev *domain.IncomingEvent) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("web payload must be a map, got %T: %w", payload, domain.ErrValidation)
	}
	text, _ := m["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("web payload missing text: %w", domain.ErrValidation)
	}
	out := wsMessage{Type: "message", Text: text}
	if choices, ok := m["choices"].([]string); ok {
		out.Choices = choices
	}
	return out, nil
}

// Deliver pushes the frame to every websocket joined to chatID. A chat with
// no connected client is a delivery failure, so the dispatch loop aborts
// instead of silently dropping the rest of the sequence.
func (w *Web) Deliver(ctx context.Context, chatID string, payload any) error {
	frame, ok := payload.(wsMessage)
	if !ok {
		return fmt.Errorf("web delivery expects wsMessage, got %T: %w", payload, domain.ErrValidation)
	}
	frame.ChatID = chatID

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode web frame: %w", err)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	delivered := 0
	for _, client := range w.clients {
		if client.chatID != chatID {
			continue
		}
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			return fmt.Errorf("web send to %s: %v: %w", chatID, err, domain.ErrDelivery)
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("no web client connected for chat %s: %w", chatID, domain.ErrDelivery)
	}
	return nil
}

// Start serves HTTP until ctx is cancelled.
func (w *Web) Start(ctx context.Context, publish func(domain.IncomingEvent)) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(rw http.ResponseWriter, r *http.Request) {
		w.handleUpgrade(rw, r, publish)
	})
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	if w.metrics != nil {
		mux.Handle("/metrics", w.metrics)
	}

	w.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", w.host, w.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	w.logger.Info("web channel starting", "addr", w.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (w *Web) Stop() error { return nil }

func (w *Web) handleUpgrade(rw http.ResponseWriter, r *http.Request, publish func(domain.IncomingEvent)) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		chatID = "web-" + uuid.NewString()
	}

	client := &wsClient{conn: conn, chatID: chatID}
	clientID := fmt.Sprintf("%s-%p", chatID, conn)

	w.mu.Lock()
	w.clients[clientID] = client
	w.mu.Unlock()

	w.logger.Info("web client connected", "client_id", clientID, "chat_id", chatID)
	client.send(wsMessage{Type: "status", Text: "connected", ChatID: chatID})

	defer func() {
		w.mu.Lock()
		delete(w.clients, clientID)
		w.mu.Unlock()
		conn.Close()
		w.logger.Info("web client disconnected", "client_id", clientID)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Error("websocket read error", "err", err)
			}
			return
		}

		var frame wsMessage
		if err := json.Unmarshal(message, &frame); err != nil {
			w.logger.Warn("invalid websocket frame", "err", err)
			continue
		}
		if frame.Type != "message" || frame.Text == "" {
			continue
		}

		publish(domain.IncomingEvent{
			ID:        uuid.NewString(),
			Platform:  "web",
			Type:      "message",
			ChatID:    chatID,
			User:      domain.User{ID: frame.UserID},
			Text:      frame.Text,
			Timestamp: time.Now(),
		})
	}
}

func (c *wsClient) send(frame wsMessage) {
	data, _ := json.Marshal(frame)
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *Web) closeAllClients() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, client := range w.clients {
		client.conn.Close()
		delete(w.clients, id)
	}
}
