package chat

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/connection"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/unisale/unichat-go/internal/db"
	"github.com/unisale/unichat-go/internal/metrics"
	"github.com/unisale/unichat-go/internal/models"
)

// Subscription channel states.
const (
	stateUnsubscribed int32 = iota
	stateSubscribing
	stateActive
	stateErrored
)

// killTimeout bounds the live-query teardown RPC during unsubscribe.
const killTimeout = 5 * time.Second

// liveSource is the slice of db.Client the feed needs. Narrowed to an
// interface so unit tests can drive notifications without a server.
type liveSource interface {
	Live(ctx context.Context, table string) (string, <-chan connection.Notification, error)
	Kill(ctx context.Context, liveID string) error
}

// backfiller provides the complete ordered message list for a conversation.
type backfiller interface {
	Messages(ctx context.Context, key string) ([]models.Message, error)
}

// LiveFeed maintains push-based live feeds over the store's message table.
// Each Subscribe call owns one dispatcher goroutine; all callbacks for a
// subscription are invoked from that goroutine, so deliveries are totally
// ordered and never concurrent.
type LiveFeed struct {
	source  liveSource
	store   backfiller
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewLiveFeed creates a feed backed by the SurrealDB client and store
// adapter. collector may be nil.
func NewLiveFeed(client *db.Client, store *Store, collector *metrics.Collector, logger *slog.Logger) *LiveFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveFeed{source: client, store: store, metrics: collector, logger: logger}
}

// Subscribe establishes a live feed for one conversation. onBatch receives
// the complete, current, ordered message list on every underlying change —
// not a delta. onError fires at most once, classified as
// ErrPermissionDenied or ErrTransientFailure, and the feed does not retry;
// resubscribing is the caller's decision.
//
// The returned cancel func is idempotent and synchronous: once it returns,
// no further onBatch or onError call occurs for this subscription.
func (f *LiveFeed) Subscribe(ctx context.Context, key string, onBatch func([]models.Message), onError func(error)) (func(), error) {
	sub := &subscription{
		feed:    f,
		key:     key,
		onBatch: onBatch,
		onError: onError,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	sub.state.Store(stateSubscribing)

	go sub.run(ctx)

	cancel := func() {
		sub.stopOnce.Do(func() { close(sub.stop) })
		<-sub.done
	}
	return cancel, nil
}

type subscription struct {
	feed    *LiveFeed
	key     string
	onBatch func([]models.Message)
	onError func(error)

	state    atomic.Int32
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// run owns the whole subscription lifecycle: establish the live query,
// deliver the initial backfill, then refetch-and-deliver on every relevant
// notification until stopped or broken.
func (s *subscription) run(ctx context.Context) {
	defer close(s.done)

	liveID, notifications, err := s.feed.source.Live(ctx, "message")
	if err != nil {
		s.fail(err)
		return
	}
	defer func() {
		killCtx, cancel := context.WithTimeout(context.Background(), killTimeout)
		defer cancel()
		if err := s.feed.source.Kill(killCtx, liveID); err != nil {
			s.feed.logger.Debug("live query kill failed", "key", s.key, "error", err)
		}
	}()

	// Initial backfill establishes the Active state.
	if !s.resync(ctx) {
		return
	}
	s.state.Store(stateActive)

	for {
		select {
		case <-s.stop:
			s.state.Store(stateUnsubscribed)
			return
		case <-ctx.Done():
			s.state.Store(stateUnsubscribed)
			return
		case n, ok := <-notifications:
			if !ok {
				// Live queries do not survive reconnects; surface once and
				// let the caller resubscribe.
				s.fail(ErrTransientFailure)
				return
			}
			if s.feed.metrics != nil {
				s.feed.metrics.RecordTiming(metrics.OpNotification, 0)
			}
			if !s.matches(n) {
				continue
			}
			if !s.resync(ctx) {
				return
			}
		}
	}
}

// resync fetches the complete ordered list and delivers it. Returns false
// if the subscription should terminate (stopped or fetch failed).
func (s *subscription) resync(ctx context.Context) bool {
	msgs, err := s.feed.store.Messages(ctx, s.key)
	if err != nil {
		s.fail(err)
		return false
	}

	select {
	case <-s.stop:
		s.state.Store(stateUnsubscribed)
		return false
	default:
	}
	s.onBatch(msgs)
	return true
}

// fail classifies the error and delivers it unless the caller already
// unsubscribed.
func (s *subscription) fail(err error) {
	s.state.Store(stateErrored)
	select {
	case <-s.stop:
		return
	default:
	}
	classified := classifyFeedError(err)
	s.feed.logger.Warn("subscription failed", "key", s.key, "error", classified)
	s.onError(classified)
}

// matches reports whether a notification concerns this conversation. The
// live query spans the whole message table; payloads we cannot interpret
// trigger a resync anyway, which is harmless under full-resync semantics.
func (s *subscription) matches(n connection.Notification) bool {
	record, ok := n.Result.(map[string]any)
	if !ok {
		return true
	}
	conv, ok := record["conversation"]
	if !ok {
		return true
	}

	switch id := conv.(type) {
	case surrealmodels.RecordID:
		key, err := models.RecordIDString(id)
		return err != nil || key == s.key
	case *surrealmodels.RecordID:
		if id == nil {
			return true
		}
		key, err := models.RecordIDString(*id)
		return err != nil || key == s.key
	case string:
		return id == "conversation:"+s.key || id == s.key
	default:
		return true
	}
}
