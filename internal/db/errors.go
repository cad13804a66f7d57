// Package db provides error types for database operations.
package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConversationNotFound indicates the requested conversation record
	// does not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// Occurs when both participants write to the same record concurrently;
	// callers may retry.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrStoreUnavailable indicates the store could not be reached or the
	// RPC failed below the query layer. The adapter performs no retries;
	// that policy belongs to the session controller.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// WrapQueryError inspects a SurrealDB error and wraps it with the
// appropriate sentinel. Query-level errors keep their message; anything
// below the query layer (transport, RPC) becomes ErrStoreUnavailable.
func WrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		if strings.Contains(queryErr.Message, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, queryErr.Message)
		}
		// Database-level error (validation, permissions): keep as-is so
		// callers can classify by message.
		return err
	}

	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
