package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Contact is a patient identity on the chat channel. Owned externally;
// referenced read/write by the reception role.
type Contact struct {
	ID    surrealmodels.RecordID `json:"id"`
	Phone string                 `json:"phone"`
	Name  string                 `json:"name,omitempty"`
	// Summary holds stable free-form facts the collector has learned about
	// the contact, used to prefill slots in later conversations.
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
