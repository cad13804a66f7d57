package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/unisale/unichat-go/internal/db"
	"github.com/unisale/unichat-go/internal/metrics"
	"github.com/unisale/unichat-go/internal/models"
)

// Store is the conversation store adapter. It owns all persisted
// Conversation and Message records; retry policy belongs to callers.
type Store struct {
	db      *db.Client
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewStore creates a store adapter. collector may be nil.
func NewStore(client *db.Client, collector *metrics.Collector, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: client, metrics: collector, logger: logger}
}

// EnsureConversation creates the conversation record if absent and returns
// it. Idempotent: the record id is the conversation key, so concurrent
// calls from both participants converge on one record, and participants,
// product and created_at are only written on first creation.
func (s *Store) EnsureConversation(ctx context.Context, key string, participants [2]string, productID string) (*models.Conversation, error) {
	defer s.record(metrics.OpEnsureConversation, time.Now())

	sql := `
		UPSERT type::record("conversation", $key) SET
			participants = IF participants THEN participants ELSE $participants END,
			product = IF product THEN product ELSE $product END,
			created_at = IF created_at THEN created_at ELSE time::now() END
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]models.Conversation](ctx, s.db.DB(), sql, map[string]any{
		"key":          key,
		"participants": []string{participants[0], participants[1]},
		"product":      productID,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", db.WrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("ensure conversation: no result returned")
	}

	conv := (*results)[0].Result[0]
	s.logger.Debug("conversation ensured", "key", key, "product", productID)
	return &conv, nil
}

// Conversation retrieves a conversation by key. Returns
// db.ErrConversationNotFound if the record does not exist.
func (s *Store) Conversation(ctx context.Context, key string) (*models.Conversation, error) {
	results, err := surrealdb.Query[[]models.Conversation](ctx, s.db.DB(), `
		SELECT * FROM type::record("conversation", $key)
	`, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", db.WrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get conversation %q: %w", key, db.ErrConversationNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// AppendMessage validates and persists one message, returning the
// store-assigned message id. The store assigns sent_at; clientToken (may
// be empty) is persisted for optimistic-send reconciliation.
//
// Fails with ErrEmptyMessage for whitespace-only text and
// ErrNotParticipant when the sender is not in the conversation, even if
// the UI already enforces both.
func (s *Store) AppendMessage(ctx context.Context, key, senderID, text, clientToken string) (string, error) {
	defer s.record(metrics.OpAppendMessage, time.Now())

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}

	conv, err := s.Conversation(ctx, key)
	if err != nil {
		return "", err
	}
	if !conv.HasParticipant(senderID) {
		return "", fmt.Errorf("%w: %s not in %s", ErrNotParticipant, senderID, key)
	}

	vars := map[string]any{
		"key":    key,
		"sender": senderID,
		"text":   trimmed,
	}
	tokenClause := "client_token = NONE,"
	if clientToken != "" {
		tokenClause = "client_token = $token,"
		vars["token"] = clientToken
	}

	sql := fmt.Sprintf(`
		CREATE message SET
			conversation = type::record("conversation", $key),
			sender = $sender,
			text = $text,
			%s
			sent_at = time::now()
		RETURN AFTER
	`, tokenClause)

	results, err := surrealdb.Query[[]models.Message](ctx, s.db.DB(), sql, vars)
	if err != nil {
		return "", fmt.Errorf("append message: %w", db.WrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", fmt.Errorf("append message: no result returned")
	}

	id, err := models.RecordIDString((*results)[0].Result[0].ID)
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	return id, nil
}

// Messages returns all messages of a conversation ordered by
// (sent_at, id) ascending. Used for initial backfill and full resyncs;
// steady-state updates arrive through the live feed.
func (s *Store) Messages(ctx context.Context, key string) ([]models.Message, error) {
	defer s.record(metrics.OpBackfill, time.Now())

	results, err := surrealdb.Query[[]models.Message](ctx, s.db.DB(), `
		SELECT * FROM message
		WHERE conversation = type::record("conversation", $key)
		ORDER BY sent_at ASC, id ASC
	`, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", db.WrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Message{}, nil
	}
	return (*results)[0].Result, nil
}

// ConversationsFor lists the conversations a user participates in, newest
// first.
func (s *Store) ConversationsFor(ctx context.Context, userID string) ([]models.Conversation, error) {
	results, err := surrealdb.Query[[]models.Conversation](ctx, s.db.DB(), `
		SELECT * FROM conversation
		WHERE participants CONTAINS $user
		ORDER BY created_at DESC
	`, map[string]any{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", db.WrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Conversation{}, nil
	}
	return (*results)[0].Result, nil
}

func (s *Store) record(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordTiming(op, time.Since(start))
	}
}
