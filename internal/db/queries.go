// Package db provides SurrealDB query functions for the secretary's records.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/secretary-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// first unwraps the leading result row of a query, or nil when empty.
func first[T any](results *[]surrealdb.QueryResult[[]T]) *T {
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil
	}
	return &(*results)[0].Result[0]
}

// all unwraps every result row of a query.
func all[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

// ==========================================================================
// Contacts
// ==========================================================================

// GetOrCreateContact looks up a contact by channel phone identifier, creating
// the record on first inbound message.
func (c *Client) GetOrCreateContact(ctx context.Context, phone string) (*models.Contact, error) {
	results, err := surrealdb.Query[[]models.Contact](ctx, c.db, `
		SELECT * FROM contact WHERE phone = $phone LIMIT 1
	`, map[string]any{"phone": phone})
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	if contact := first(results); contact != nil {
		return contact, nil
	}

	results, err = surrealdb.Query[[]models.Contact](ctx, c.db, `
		CREATE contact SET phone = $phone
	`, map[string]any{"phone": phone})
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", wrapQueryError(err))
	}
	contact := first(results)
	if contact == nil {
		return nil, fmt.Errorf("create contact: empty result")
	}
	return contact, nil
}

// UpdateContactName sets the contact's display name.
func (c *Client) UpdateContactName(ctx context.Context, id surrealmodels.RecordID, name string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE $contact SET name = $name, updated_at = time::now()
	`, map[string]any{"contact": id, "name": name})
	if err != nil {
		return fmt.Errorf("update contact name: %w", err)
	}
	return nil
}

// UpdateContactSummary replaces the free-form contact summary.
func (c *Client) UpdateContactSummary(ctx context.Context, id surrealmodels.RecordID, summary string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE $contact SET summary = $summary, updated_at = time::now()
	`, map[string]any{"contact": id, "summary": summary})
	if err != nil {
		return fmt.Errorf("update contact summary: %w", err)
	}
	return nil
}

// ==========================================================================
// Conversations
// ==========================================================================

// GetOrCreateConversation returns the contact's open conversation, creating
// one when none exists. Closed conversations are never reopened.
func (c *Client) GetOrCreateConversation(ctx context.Context, contact surrealmodels.RecordID) (*models.Conversation, error) {
	results, err := surrealdb.Query[[]models.Conversation](ctx, c.db, `
		SELECT * FROM conversation
		WHERE contact = $contact AND status != "closed"
		ORDER BY created_at DESC LIMIT 1
	`, map[string]any{"contact": contact})
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv := first(results); conv != nil {
		return conv, nil
	}

	results, err = surrealdb.Query[[]models.Conversation](ctx, c.db, `
		CREATE conversation SET contact = $contact, status = "automated"
	`, map[string]any{"contact": contact})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", wrapQueryError(err))
	}
	conv := first(results)
	if conv == nil {
		return nil, fmt.Errorf("create conversation: empty result")
	}
	return conv, nil
}

// SaveTurnState persists the conversation fields mutated during a turn.
func (c *Client) SaveTurnState(ctx context.Context, conv *models.Conversation) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE $conversation SET
			status = $status,
			last_intent = $last_intent,
			turn_count = $turn_count,
			collection = $collection,
			updated_at = time::now()
	`, map[string]any{
		"conversation": conv.ID,
		"status":       string(conv.Status),
		"last_intent":  conv.LastIntent,
		"turn_count":   conv.TurnCount,
		"collection":   conv.Collection,
	})
	if err != nil {
		return fmt.Errorf("save turn state: %w", wrapQueryError(err))
	}
	return nil
}

// SetConversationStatus updates only the status enum.
func (c *Client) SetConversationStatus(ctx context.Context, id surrealmodels.RecordID, status models.ConversationStatus) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE $conversation SET status = $status, updated_at = time::now()
	`, map[string]any{"conversation": id, "status": string(status)})
	if err != nil {
		return fmt.Errorf("set conversation status: %w", err)
	}
	return nil
}

// ResetConversationStatus is the operator path out of human handoff: it
// returns the conversation to automated control and clears any stale
// collection state. Never called from the conversational flow.
func (c *Client) ResetConversationStatus(ctx context.Context, id surrealmodels.RecordID) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE $conversation SET status = "automated", collection = NONE, updated_at = time::now()
	`, map[string]any{"conversation": id})
	if err != nil {
		return fmt.Errorf("reset conversation status: %w", err)
	}
	return nil
}

// AppendMessage adds a transcript entry to the conversation.
func (c *Client) AppendMessage(ctx context.Context, conv surrealmodels.RecordID, role, content, intent string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE message SET
			conversation = $conversation,
			role = $role,
			content = $content,
			intent = $intent
	`, map[string]any{
		"conversation": conv,
		"role":         role,
		"content":      content,
		"intent":       intent,
	})
	if err != nil {
		return fmt.Errorf("append message: %w", wrapQueryError(err))
	}
	return nil
}

// RecentMessages returns the newest transcript entries for a conversation,
// oldest first, capped at limit. Used as classifier context.
func (c *Client) RecentMessages(ctx context.Context, conv surrealmodels.RecordID, limit int) ([]models.Message, error) {
	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		SELECT * FROM (
			SELECT * FROM message
			WHERE conversation = $conversation
			ORDER BY created_at DESC LIMIT $limit
		) ORDER BY created_at ASC
	`, map[string]any{"conversation": conv, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return all(results), nil
}

// ==========================================================================
// Appointments
// ==========================================================================

// CreateAppointment inserts a booked appointment. A duplicate
// (contact, scheduled_at) pair returns ErrAlreadyExists.
func (c *Client) CreateAppointment(ctx context.Context, appt models.Appointment) (*models.Appointment, error) {
	results, err := surrealdb.Query[[]models.Appointment](ctx, c.db, `
		CREATE appointment SET
			contact = $contact,
			subject = $subject,
			category = $category,
			scheduled_at = $scheduled_at,
			calendar_event_id = $calendar_event_id
	`, map[string]any{
		"contact":           appt.Contact,
		"subject":           appt.Subject,
		"category":          appt.Category,
		"scheduled_at":      appt.ScheduledAt,
		"calendar_event_id": appt.CalendarEventID,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", wrapQueryError(err))
	}
	created := first(results)
	if created == nil {
		return nil, fmt.Errorf("create appointment: empty result")
	}
	return created, nil
}

// GetAppointmentAt finds the contact's appointment at an exact slot start.
// Returns ErrNotFound when absent.
func (c *Client) GetAppointmentAt(ctx context.Context, contact surrealmodels.RecordID, at time.Time) (*models.Appointment, error) {
	results, err := surrealdb.Query[[]models.Appointment](ctx, c.db, `
		SELECT * FROM appointment
		WHERE contact = $contact AND scheduled_at = $at
		LIMIT 1
	`, map[string]any{"contact": contact, "at": at})
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	appt := first(results)
	if appt == nil {
		return nil, fmt.Errorf("appointment at %s: %w", at.Format(time.RFC3339), ErrNotFound)
	}
	return appt, nil
}

// ListAppointmentsByContact returns the contact's appointments ordered by
// slot start.
func (c *Client) ListAppointmentsByContact(ctx context.Context, contact surrealmodels.RecordID) ([]models.Appointment, error) {
	results, err := surrealdb.Query[[]models.Appointment](ctx, c.db, `
		SELECT * FROM appointment
		WHERE contact = $contact
		ORDER BY scheduled_at ASC
	`, map[string]any{"contact": contact})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return all(results), nil
}

// DeleteAppointment removes a booked appointment record.
func (c *Client) DeleteAppointment(ctx context.Context, id surrealmodels.RecordID) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE $appointment
	`, map[string]any{"appointment": id})
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// ==========================================================================
// Fulfillments (idempotency ledger)
// ==========================================================================

// GetFulfillment returns the stored outcome for a correlation key, or nil
// when the key has not been fulfilled.
func (c *Client) GetFulfillment(ctx context.Context, key string) (*models.Fulfillment, error) {
	results, err := surrealdb.Query[[]models.Fulfillment](ctx, c.db, `
		SELECT * FROM fulfillment WHERE key = $key LIMIT 1
	`, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("get fulfillment: %w", err)
	}
	return first(results), nil
}

// PutFulfillment records the literal outcome of a mutating operation under
// its correlation key. Duplicate keys return ErrAlreadyExists.
func (c *Client) PutFulfillment(ctx context.Context, key, operation, response string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE fulfillment SET key = $key, operation = $operation, response = $response
	`, map[string]any{"key": key, "operation": operation, "response": response})
	if err != nil {
		return fmt.Errorf("put fulfillment: %w", wrapQueryError(err))
	}
	return nil
}

// ==========================================================================
// Incidents
// ==========================================================================

// RecordIncident persists a protocol violation for operator review.
func (c *Client) RecordIncident(ctx context.Context, conv surrealmodels.RecordID, detail, raw string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE incident SET conversation = $conversation, detail = $detail, raw = $raw
	`, map[string]any{"conversation": conv, "detail": detail, "raw": raw})
	if err != nil {
		return fmt.Errorf("record incident: %w", err)
	}
	return nil
}
