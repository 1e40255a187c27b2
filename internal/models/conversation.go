package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ConversationStatus is the single source of truth for whether any automated
// component may act on a conversation.
type ConversationStatus string

const (
	// StatusAutomated allows the orchestration core to respond.
	StatusAutomated ConversationStatus = "automated"
	// StatusHuman means a human operator owns the conversation. Terminal for
	// the core; only an external operator action resets it.
	StatusHuman ConversationStatus = "human"
	// StatusClosed marks a finished conversation.
	StatusClosed ConversationStatus = "closed"
)

// Conversation represents one chat thread with a patient.
type Conversation struct {
	ID         surrealmodels.RecordID `json:"id"`
	Contact    surrealmodels.RecordID `json:"contact"`
	Status     ConversationStatus     `json:"status"`
	LastIntent string                 `json:"last_intent,omitempty"`
	TurnCount  int                    `json:"turn_count"`
	Collection *Collection            `json:"collection,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Message roles in the transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleReception and RoleAgenda mark cross-role traffic recorded for audit;
	// these entries are never shown to the patient.
	RoleReception = "reception"
	RoleAgenda    = "agenda"
)

// Message is a single transcript entry within a conversation.
type Message struct {
	ID           surrealmodels.RecordID `json:"id"`
	Conversation surrealmodels.RecordID `json:"conversation"`
	Role         string                 `json:"role"`
	Content      string                 `json:"content"`
	Intent       string                 `json:"intent,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}
