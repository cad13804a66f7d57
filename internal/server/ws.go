package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unisale/unichat-go/internal/chat"
	"github.com/unisale/unichat-go/internal/models"
)

// writeWait bounds a single websocket write.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The bridge fronts browser clients on other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsBatch is pushed on every store change: the complete ordered message
// list, never a delta.
type wsBatch struct {
	Type     string      `json:"type"`
	Messages []wsMessage `json:"messages"`
}

type wsMessage struct {
	ID     string    `json:"id"`
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// wsError terminates the feed. Code is "permission_denied" or "transient";
// the client decides whether to reconnect.
type wsError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleSubscribe upgrades to websocket and mirrors the live feed onto it.
// Both feed callbacks run on the feed's dispatcher goroutine, so writes to
// the connection are already serialized.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "key", key, "error", err)
		return
	}
	defer conn.Close()

	onBatch := func(msgs []models.Message) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(encodeBatch(msgs)); err != nil {
			s.logger.Debug("websocket write failed", "key", key, "error", err)
		}
	}
	onError := func(err error) {
		code := "transient"
		if errors.Is(err, chat.ErrPermissionDenied) {
			code = "permission_denied"
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(wsError{Type: "error", Code: code, Message: err.Error()})
	}

	cancel, err := s.feed.Subscribe(r.Context(), key, onBatch, onError)
	if err != nil {
		onError(chat.ErrTransientFailure)
		return
	}
	defer cancel()

	// Drain the connection; returning tears the subscription down, so no
	// frame is written after the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed", "key", key, "error", err)
			}
			return
		}
	}
}

func encodeBatch(msgs []models.Message) wsBatch {
	out := wsBatch{Type: "batch", Messages: make([]wsMessage, 0, len(msgs))}
	for _, m := range msgs {
		id, err := models.RecordIDString(m.ID)
		if err != nil {
			slog.Debug("skipping message with malformed id", "error", err)
			continue
		}
		out.Messages = append(out.Messages, wsMessage{
			ID:     id,
			Sender: m.Sender,
			Text:   m.Text,
			SentAt: m.SentAt,
		})
	}
	return out
}
