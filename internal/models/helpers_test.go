package models

import (
	"testing"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestRecordIDString(t *testing.T) {
	id := surrealmodels.RecordID{Table: "conversation", ID: "P7::U1::U2"}
	s, err := RecordIDString(id)
	if err != nil {
		t.Fatalf("RecordIDString failed: %v", err)
	}
	if s != "P7::U1::U2" {
		t.Errorf("expected %q, got %q", "P7::U1::U2", s)
	}
}

func TestRecordIDStringNonString(t *testing.T) {
	id := surrealmodels.RecordID{Table: "message", ID: 42}
	if _, err := RecordIDString(id); err == nil {
		t.Error("expected error for non-string ID")
	}
}

func TestLessMessageOrdersBySentAtThenID(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := func(id string, at time.Time) Message {
		return Message{ID: surrealmodels.RecordID{Table: "message", ID: id}, SentAt: at}
	}

	earlier := msg("zzz", base)
	later := msg("aaa", base.Add(time.Second))
	if !LessMessage(earlier, later) {
		t.Error("earlier sent_at should sort first regardless of id")
	}

	// Equal timestamps fall back to id order.
	a := msg("a1", base)
	b := msg("b1", base)
	if !LessMessage(a, b) {
		t.Error("equal sent_at should break ties by id ascending")
	}
	if LessMessage(b, a) {
		t.Error("tie-break must be asymmetric")
	}
}
