// Package server exposes the chat core over HTTP: a small REST surface for
// conversations and messages, a stats endpoint, and a websocket bridge for
// live feeds. Web clients that cannot speak the store's RPC protocol
// connect here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/unisale/unichat-go/internal/chat"
	"github.com/unisale/unichat-go/internal/db"
	"github.com/unisale/unichat-go/internal/metrics"
	"github.com/unisale/unichat-go/internal/models"
)

// ConversationStore is the store surface the server needs.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, key string, participants [2]string, productID string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, key, senderID, text, clientToken string) (string, error)
	Messages(ctx context.Context, key string) ([]models.Message, error)
	ConversationsFor(ctx context.Context, userID string) ([]models.Conversation, error)
}

// Subscriber establishes live feeds for the websocket bridge.
type Subscriber interface {
	Subscribe(ctx context.Context, key string, onBatch func([]models.Message), onError func(error)) (func(), error)
}

// Server wraps the HTTP server with dependencies and lifecycle management.
type Server struct {
	store   ConversationStore
	feed    Subscriber
	metrics *metrics.Collector
	logger  *slog.Logger
	http    *http.Server
}

// New creates a bridge server listening on addr.
func New(addr string, store ConversationStore, feed Subscriber, collector *metrics.Collector, logger *slog.Logger) *Server {
	s := &Server{
		store:   store,
		feed:    feed,
		metrics: collector,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("POST /api/conversations", s.handleEnsureConversation)
	mux.HandleFunc("GET /api/conversations/{key}/messages", s.handleListMessages)
	mux.HandleFunc("POST /api/conversations/{key}/messages", s.handleSendMessage)
	mux.HandleFunc("GET /ws/conversations/{key}", s.handleSubscribe)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run starts the server and blocks until it stops. On context cancellation
// it drains in-flight requests before returning.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting bridge server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// Handler exposes the configured handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "missing user parameter")
		return
	}

	convs, err := s.store.ConversationsFor(r.Context(), user)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

type ensureRequest struct {
	Buyer   string `json:"buyer"`
	Seller  string `json:"seller"`
	Product string `json:"product"`
}

func (s *Server) handleEnsureConversation(w http.ResponseWriter, r *http.Request) {
	var req ensureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Buyer == req.Seller {
		writeError(w, http.StatusBadRequest, chat.ErrSelfConversation.Error())
		return
	}

	key, err := chat.Resolve(req.Buyer, req.Seller, req.Product)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lo, hi := req.Buyer, req.Seller
	if hi < lo {
		lo, hi = hi, lo
	}
	conv, err := s.store.EnsureConversation(r.Context(), key, [2]string{lo, hi}, req.Product)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "conversation": conv})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.Messages(r.Context(), r.PathValue("key"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type sendRequest struct {
	Sender      string `json:"sender"`
	Text        string `json:"text"`
	ClientToken string `json:"client_token"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.store.AppendMessage(r.Context(), r.PathValue("key"), req.Sender, req.Text, req.ClientToken)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// writeStoreError maps chat and store errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMissingParticipant),
		errors.Is(err, chat.ErrMissingProduct),
		errors.Is(err, chat.ErrSelfConversation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotParticipant),
		errors.Is(err, chat.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, db.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrStoreUnavailable),
		errors.Is(err, db.ErrTransactionConflict),
		errors.Is(err, chat.ErrTransientFailure):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("unhandled store error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
