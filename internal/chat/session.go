package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unisale/unichat-go/internal/models"
)

// MessageStore is the store-adapter surface the session controller needs.
type MessageStore interface {
	EnsureConversation(ctx context.Context, key string, participants [2]string, productID string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, key, senderID, text, clientToken string) (string, error)
	Messages(ctx context.Context, key string) ([]models.Message, error)
}

// LiveSubscriber establishes live feeds; implemented by *LiveFeed.
type LiveSubscriber interface {
	Subscribe(ctx context.Context, key string, onBatch func([]models.Message), onError func(error)) (func(), error)
}

// Entry is one row of the list handed to the UI: either an authoritative
// store message (confirmed) or a local-only optimistic one (pending or
// failed). Local entries always follow the authoritative history in
// client-generation order; they are never interleaved into it.
type Entry struct {
	// ID is the store-assigned record id for confirmed entries, or the
	// client correlation token while the entry is local-only.
	ID     string
	Sender string
	Text   string
	SentAt time.Time // zero until the store assigns it
	State  models.DeliveryState
}

// fallbackMatchWindow bounds how far before an optimistic send's local
// enqueue time a token-less authoritative message may be stamped and
// still count as its echo. Covers client/server clock skew.
const fallbackMatchWindow = 2 * time.Minute

// Session orchestrates one open conversation view: it resolves identity,
// ensures the conversation, owns the subscription and the optimistic
// overlay, and republishes ordered snapshots to the UI.
//
// The update/error callbacks are invoked with internal state settled; they
// must not call back into the Session.
type Session struct {
	store  MessageStore
	live   LiveSubscriber
	logger *slog.Logger

	mu            sync.Mutex
	conv          *models.Conversation
	key           string
	userID        string
	authoritative []models.Message
	outbox        []*localEntry
	onUpdate      func([]Entry)
	onError       func(error)
	unsubscribe   func()
	opened        bool
	closed        bool

	readyOnce sync.Once
	ready     chan struct{}
	initErr   chan error
}

type localEntry struct {
	token    string
	text     string
	state    models.DeliveryState
	queuedAt time.Time
}

// NewSession creates a session controller. One instance serves exactly one
// open conversation view.
func NewSession(store MessageStore, live LiveSubscriber, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:   store,
		live:    live,
		logger:  logger,
		ready:   make(chan struct{}),
		initErr: make(chan error, 1),
	}
}

// SetOnUpdate registers the snapshot callback. Call before Open.
func (s *Session) SetOnUpdate(fn func([]Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// SetOnError registers the callback for subscription failures after the
// session is open. Call before Open.
func (s *Session) SetOnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Open resolves the conversation identity, ensures the record exists and
// activates the live feed. It returns once the first authoritative batch
// arrived, so callers see backfilled history immediately. Any failure is
// wrapped in ErrSessionInit.
//
// userID must be the authenticated user; Open never reads ambient auth
// state. Self-conversations are rejected here, keeping Resolve total.
func (s *Session) Open(ctx context.Context, userID, peerID, productID string) (*models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, ErrNoCurrentUser)
	}
	if userID == peerID {
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, ErrSelfConversation)
	}

	key, err := Resolve(userID, peerID, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	}

	s.mu.Lock()
	if s.opened || s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session already used", ErrSessionInit)
	}
	s.key = key
	s.userID = userID
	s.mu.Unlock()

	lo, hi := userID, peerID
	if hi < lo {
		lo, hi = hi, lo
	}
	conv, err := s.store.EnsureConversation(ctx, key, [2]string{lo, hi}, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: ensure conversation: %w", ErrSessionInit, err)
	}

	cancel, err := s.live.Subscribe(ctx, key, s.handleBatch, s.handleError)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe: %w", ErrSessionInit, err)
	}

	s.mu.Lock()
	s.conv = conv
	s.unsubscribe = cancel
	s.opened = true
	s.mu.Unlock()

	// Block until the channel is active (first batch) or broken.
	select {
	case <-s.ready:
		return conv, nil
	case err := <-s.initErr:
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	case <-ctx.Done():
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, ctx.Err())
	}
}

// Send validates, optimistically appends and persists one message. It
// blocks until the store accepts or rejects the write; confirmation of the
// optimistic entry arrives asynchronously through the live feed.
//
// On failure the optimistic entry stays visible as failed and the returned
// *SendError carries the original text for input restoration.
func (s *Session) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		// Pre-flight UX check, mirrored by the store's own validation.
		// No optimistic entry for whitespace.
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if !s.opened || s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	key, sender := s.key, s.userID

	entry := &localEntry{
		token:    uuid.NewString(),
		text:     trimmed,
		state:    models.DeliveryPending,
		queuedAt: time.Now(),
	}
	s.outbox = append(s.outbox, entry)
	s.publishLocked()
	s.mu.Unlock()

	if _, err := s.store.AppendMessage(ctx, key, sender, trimmed, entry.token); err != nil {
		s.mu.Lock()
		entry.state = models.DeliveryFailed
		s.publishLocked()
		s.mu.Unlock()
		return &SendError{Text: text, Err: err}
	}
	return nil
}

// Close tears the subscription down before returning, guaranteeing no
// callback fires after it. Idempotent; later sends fail with
// ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Conversation returns the open conversation record, or nil before Open.
func (s *Session) Conversation() *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// Entries returns the current snapshot: authoritative ordering first, then
// pending/failed local entries in client-generation order.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// handleBatch is invoked from the feed's dispatcher goroutine with the
// complete ordered list. It replaces the authoritative history, reconciles
// the optimistic overlay and republishes.
func (s *Session) handleBatch(msgs []models.Message) {
	s.mu.Lock()
	s.authoritative = msgs
	s.reconcileLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Session) handleError(err error) {
	// Route pre-activation failures to the blocked Open call.
	select {
	case s.initErr <- err:
	default:
	}

	s.mu.Lock()
	closed := s.closed
	fn := s.onError
	s.mu.Unlock()
	if closed {
		return
	}
	if fn != nil {
		fn(err)
	} else {
		s.logger.Warn("live feed error", "error", err)
	}
}

// reconcileLocked drops local entries whose authoritative echo arrived.
// Exact matching uses the client correlation token; token-less messages
// (older clients) fall back to sender+text with the closest sent_at among
// unconfirmed pendings.
func (s *Session) reconcileLocked() {
	if len(s.outbox) == 0 {
		return
	}

	byToken := make(map[string]bool, len(s.authoritative))
	for _, m := range s.authoritative {
		if tok := m.Token(); tok != "" {
			byToken[tok] = true
		}
	}

	claimed := make(map[int]bool)
	remaining := s.outbox[:0]
	for _, e := range s.outbox {
		if byToken[e.token] {
			continue // confirmed, now part of authoritative history
		}
		if e.state == models.DeliveryPending && s.claimFallbackLocked(e, claimed) {
			continue
		}
		remaining = append(remaining, e)
	}
	s.outbox = remaining
}

// claimFallbackLocked tries to match a pending entry against a token-less
// authoritative message from the same sender with identical text, closest
// in time to the local enqueue. Returns true if one was claimed.
func (s *Session) claimFallbackLocked(e *localEntry, claimed map[int]bool) bool {
	best := -1
	var bestDelta time.Duration
	for i, m := range s.authoritative {
		if claimed[i] || m.Token() != "" {
			continue
		}
		if m.Sender != s.userID || m.Text != e.text {
			continue
		}
		if m.SentAt.Before(e.queuedAt.Add(-fallbackMatchWindow)) {
			continue
		}
		delta := m.SentAt.Sub(e.queuedAt)
		if delta < 0 {
			delta = -delta
		}
		if best == -1 || delta < bestDelta {
			best, bestDelta = i, delta
		}
	}
	if best == -1 {
		return false
	}
	claimed[best] = true
	return true
}

func (s *Session) snapshotLocked() []Entry {
	entries := make([]Entry, 0, len(s.authoritative)+len(s.outbox))
	for _, m := range s.authoritative {
		id, err := models.RecordIDString(m.ID)
		if err != nil {
			id = fmt.Sprint(m.ID.ID)
		}
		entries = append(entries, Entry{
			ID:     id,
			Sender: m.Sender,
			Text:   m.Text,
			SentAt: m.SentAt,
			State:  models.DeliveryConfirmed,
		})
	}
	for _, e := range s.outbox {
		entries = append(entries, Entry{
			ID:     e.token,
			Sender: s.userID,
			Text:   e.text,
			State:  e.state,
		})
	}
	return entries
}

func (s *Session) publishLocked() {
	if s.onUpdate == nil {
		return
	}
	s.onUpdate(s.snapshotLocked())
}
