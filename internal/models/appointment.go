package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Appointment categories.
const (
	CategorySelfPay   = "self-pay"
	CategoryInsurance = "insurance"
)

// Appointment is a booked consultation. Created and cancelled only by the
// scheduling executor.
type Appointment struct {
	ID       surrealmodels.RecordID `json:"id"`
	Contact  surrealmodels.RecordID `json:"contact"`
	Subject  string                 `json:"subject"`
	Category string                 `json:"category"`
	// ScheduledAt is the slot start in the clinic timezone.
	ScheduledAt time.Time `json:"scheduled_at"`
	// CalendarEventID references the backing calendar event.
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Fulfillment records the literal outcome of a mutating cross-role request,
// keyed by correlation key. A retried request replays this result instead of
// mutating again.
type Fulfillment struct {
	ID        surrealmodels.RecordID `json:"id"`
	Key       string                 `json:"key"`
	Operation string                 `json:"operation"`
	Response  string                 `json:"response"` // encoded protocol.Response
	CreatedAt time.Time              `json:"created_at"`
}

// Incident is a persisted record of a protocol violation, kept for operator
// review.
type Incident struct {
	ID           surrealmodels.RecordID `json:"id"`
	Conversation surrealmodels.RecordID `json:"conversation"`
	Detail       string                 `json:"detail"`
	Raw          string                 `json:"raw,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}
