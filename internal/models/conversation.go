// Package models defines data structures for the UniSale chat store.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Conversation is one buyer/seller/product chat thread. The record id is
// the resolved conversation key; participants and product never change
// after creation.
type Conversation struct {
	ID           surrealmodels.RecordID `json:"id"`
	Participants []string               `json:"participants"`
	Product      string                 `json:"product"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Key returns the conversation key (the string record id).
func (c Conversation) Key() string {
	return MustRecordIDString(c.ID)
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is a single persisted chat message. SentAt is assigned by the
// store on write; ClientToken is the sender-generated correlation token
// echoed back for optimistic-send reconciliation (absent on messages from
// older clients).
type Message struct {
	ID           surrealmodels.RecordID `json:"id"`
	Conversation surrealmodels.RecordID `json:"conversation"`
	Sender       string                 `json:"sender"`
	Text         string                 `json:"text"`
	ClientToken  *string                `json:"client_token,omitempty"`
	SentAt       time.Time              `json:"sent_at"`
}

// Token returns the client correlation token or "".
func (m Message) Token() string {
	if m.ClientToken == nil {
		return ""
	}
	return *m.ClientToken
}

// DeliveryState is the client-local delivery state of a message. It is
// never persisted.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryFailed    DeliveryState = "failed"
)

// LessMessage orders messages by (sent_at, id) ascending. This is the
// display order for every list handed to a UI.
func LessMessage(a, b Message) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.Before(b.SentAt)
	}
	return recordIDKey(a.ID) < recordIDKey(b.ID)
}
