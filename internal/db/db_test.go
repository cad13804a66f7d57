// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	// Start SurrealDB container
	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
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

	// Get container host and port
	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	// Connect to test database
	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Run tests
	code := m.Run()

	// Cleanup
	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()

	// TestMain already ran it once; a second run must not fail.
	if err := testDB.InitSchema(ctx); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}
}

func TestSchemaRejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()

	// A conversation needs exactly two participants.
	_, err := testDB.Query(ctx, `
		CREATE conversation SET participants = ["alice"], product = "P1"
	`, nil)
	if err == nil {
		t.Error("conversation with one participant should be rejected")
	}

	// Whitespace-only message text fails the field assert.
	_, err = testDB.Query(ctx, `
		LET $conv = (UPSERT type::record("conversation", "P1::a::b") SET
			participants = ["a", "b"], product = "P1" RETURN AFTER);
		CREATE message SET conversation = $conv[0].id, sender = "a", text = "   "
	`, nil)
	if err == nil {
		t.Error("whitespace-only message text should be rejected")
	}
}

func TestWipeData(t *testing.T) {
	ctx := context.Background()

	_, err := testDB.Query(ctx, `
		UPSERT type::record("conversation", "P2::a::b") SET
			participants = ["a", "b"], product = "P2"
	`, nil)
	if err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}

	if err := testDB.WipeData(ctx); err != nil {
		t.Fatalf("WipeData failed: %v", err)
	}

	results, err := testDB.Query(ctx, "SELECT * FROM conversation", nil)
	if err != nil {
		t.Fatalf("select after wipe failed: %v", err)
	}
	if results != nil && len(*results) > 0 {
		if rows, ok := (*results)[0].Result.([]any); ok && len(rows) != 0 {
			t.Errorf("expected no conversations after wipe, got %d", len(rows))
		}
	}
}

func TestLiveQueryNotifications(t *testing.T) {
	ctx := context.Background()

	liveID, notifications, err := testDB.Live(ctx, "message")
	if err != nil {
		t.Fatalf("Live failed: %v", err)
	}
	defer func() {
		if err := testDB.Kill(ctx, liveID); err != nil {
			t.Logf("kill failed: %v", err)
		}
	}()

	_, err = testDB.Query(ctx, `
		LET $conv = (UPSERT type::record("conversation", "P3::a::b") SET
			participants = ["a", "b"], product = "P3" RETURN AFTER);
		CREATE message SET conversation = $conv[0].id, sender = "a", text = "ping"
	`, nil)
	if err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	select {
	case n, ok := <-notifications:
		if !ok {
			t.Fatal("notification channel closed unexpectedly")
		}
		t.Logf("received live notification: action=%v", n.Action)
	case <-time.After(10 * time.Second):
		t.Fatal("no live notification within timeout")
	}
}
