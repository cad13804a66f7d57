//go:build integration

// End-to-end tests for the chat core against a real SurrealDB instance.
package chat_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/unisale/unichat-go/internal/chat"
	"github.com/unisale/unichat-go/internal/db"
	"github.com/unisale/unichat-go/internal/models"
)

var (
	testClient *db.Client
	testStore  *chat.Store
	testFeed   *chat.LiveFeed
)

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testClient, err = db.NewClient(ctx, db.Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "chat",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testClient.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	testStore = chat.NewStore(testClient, nil, nil)
	testFeed = chat.NewLiveFeed(testClient, testStore, nil, nil)

	code := m.Run()

	_ = testClient.Close(ctx)
	_ = container.Terminate(ctx)

	os.Exit(code)
}

// ensure creates the canonical conversation for a user pair and product.
func ensure(t *testing.T, a, b, product string) string {
	t.Helper()
	key, err := chat.Resolve(a, b, product)
	require.NoError(t, err)

	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	_, err = testStore.EnsureConversation(context.Background(), key, [2]string{lo, hi}, product)
	require.NoError(t, err)
	return key
}

func TestEnsureConversationIsIdempotent(t *testing.T) {
	ctx := context.Background()

	key, err := chat.Resolve("alice", "bob", "P100")
	require.NoError(t, err)

	first, err := testStore.EnsureConversation(ctx, key, [2]string{"alice", "bob"}, "P100")
	require.NoError(t, err)

	// The second caller arrives with the arguments in their own order; the
	// record and its creation time must not change.
	second, err := testStore.EnsureConversation(ctx, key, [2]string{"alice", "bob"}, "P100")
	require.NoError(t, err)

	assert.Equal(t, first.Key(), second.Key())
	assert.Equal(t, first.Participants, second.Participants)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt), "created_at must survive re-ensure")
}

func TestAppendMessageValidation(t *testing.T) {
	ctx := context.Background()
	key := ensure(t, "alice", "bob", "P101")

	t.Run("whitespace only is rejected", func(t *testing.T) {
		_, err := testStore.AppendMessage(ctx, key, "alice", "   \n ", "")
		assert.ErrorIs(t, err, chat.ErrEmptyMessage)
	})

	t.Run("outsiders cannot write", func(t *testing.T) {
		_, err := testStore.AppendMessage(ctx, key, "mallory", "cheap bikes here", "")
		assert.ErrorIs(t, err, chat.ErrNotParticipant)
	})

	t.Run("unknown conversation is reported", func(t *testing.T) {
		_, err := testStore.AppendMessage(ctx, "P999::x::y", "x", "hello", "")
		assert.ErrorIs(t, err, db.ErrConversationNotFound)
	})

	t.Run("text is trimmed before storage", func(t *testing.T) {
		_, err := testStore.AppendMessage(ctx, key, "alice", "  hi bob  ", "")
		require.NoError(t, err)

		msgs, err := testStore.Messages(ctx, key)
		require.NoError(t, err)
		require.NotEmpty(t, msgs)
		assert.Equal(t, "hi bob", msgs[len(msgs)-1].Text)
	})
}

func TestMessagesAreOrderedBySentAt(t *testing.T) {
	ctx := context.Background()
	key := ensure(t, "carol", "dave", "P102")

	for i := 0; i < 5; i++ {
		sender := "carol"
		if i%2 == 1 {
			sender = "dave"
		}
		_, err := testStore.AppendMessage(ctx, key, sender, fmt.Sprintf("message %d", i), "")
		require.NoError(t, err)
	}

	msgs, err := testStore.Messages(ctx, key)
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].SentAt.Before(msgs[i-1].SentAt),
			"messages must be ordered oldest to newest")
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("message %d", i), msgs[i].Text)
	}
}

func TestLiveFeedDeliversAndStaysSilentAfterUnsubscribe(t *testing.T) {
	ctx := context.Background()
	key := ensure(t, "erin", "frank", "P103")

	_, err := testStore.AppendMessage(ctx, key, "erin", "opening offer", "")
	require.NoError(t, err)

	batches := make(chan []models.Message, 32)
	cancel, err := testFeed.Subscribe(ctx, key,
		func(msgs []models.Message) { batches <- msgs },
		func(err error) { t.Errorf("unexpected feed error: %v", err) })
	require.NoError(t, err)

	// Backfill carries existing history.
	select {
	case batch := <-batches:
		require.Len(t, batch, 1)
		assert.Equal(t, "opening offer", batch[0].Text)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for backfill")
	}

	// A write by the peer produces a complete refreshed list.
	_, err = testStore.AppendMessage(ctx, key, "frank", "counter offer", "")
	require.NoError(t, err)

	deadline := time.After(10 * time.Second)
	for {
		select {
		case batch := <-batches:
			if len(batch) == 2 {
				assert.Equal(t, "counter offer", batch[1].Text)
				goto unsubscribed
			}
		case <-deadline:
			t.Fatal("timed out waiting for live update")
		}
	}

unsubscribed:
	cancel()

	// Writes after unsubscribe must not reach the callback.
	_, err = testStore.AppendMessage(ctx, key, "erin", "after unsubscribe", "")
	require.NoError(t, err)

	select {
	case batch := <-batches:
		t.Errorf("batch delivered after unsubscribe: %v", batch)
	case <-time.After(2 * time.Second):
	}
}

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()

	alice := chat.NewSession(testStore, testFeed, nil)
	aliceUpdates := make(chan []chat.Entry, 32)
	alice.SetOnUpdate(func(entries []chat.Entry) { aliceUpdates <- entries })

	_, err := alice.Open(ctx, "alice", "bob", "P104")
	require.NoError(t, err)
	defer alice.Close()

	bob := chat.NewSession(testStore, testFeed, nil)
	_, err = bob.Open(ctx, "bob", "alice", "P104")
	require.NoError(t, err)
	defer bob.Close()

	require.NoError(t, bob.Send(ctx, "is the desk still available?"))

	// Alice's view converges on bob's confirmed message.
	deadline := time.After(15 * time.Second)
	for {
		select {
		case entries := <-aliceUpdates:
			if len(entries) == 1 && entries[0].State == models.DeliveryConfirmed {
				assert.Equal(t, "bob", entries[0].Sender)
				assert.Equal(t, "is the desk still available?", entries[0].Text)
				return
			}
		case <-deadline:
			t.Fatal("alice never saw bob's message")
		}
	}
}
