package reception

import (
	"context"
	"log/slog"
	"strings"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/secretary-go/internal/faults"
	"github.com/raphaelgruber/secretary-go/internal/models"
)

// ContactStore is the contact persistence surface the reception tools need.
// *db.Client satisfies it.
type ContactStore interface {
	UpdateContactName(ctx context.Context, id surrealmodels.RecordID, name string) error
	UpdateContactSummary(ctx context.Context, id surrealmodels.RecordID, summary string) error
}

// Tools are the reception role's contact-side helpers. None of them touch
// the calendar.
type Tools struct {
	store  ContactStore
	logger *slog.Logger
}

// NewTools creates the reception contact tools.
func NewTools(store ContactStore, logger *slog.Logger) *Tools {
	return &Tools{store: store, logger: logger}
}

// RememberName stores the patient name on the contact record the first time
// the collector learns it.
func (t *Tools) RememberName(ctx context.Context, contact *models.Contact, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return faults.Validationf("contact name must not be empty")
	}
	if contact.Name == name {
		return nil
	}
	if err := t.store.UpdateContactName(ctx, contact.ID, name); err != nil {
		return err
	}
	contact.Name = name
	t.logger.Debug("updated contact name", "contact", contact.ID.ID)
	return nil
}

// RememberSummary replaces the contact's running conversation summary.
func (t *Tools) RememberSummary(ctx context.Context, contact *models.Contact, summary string) error {
	summary = strings.TrimSpace(summary)
	if summary == "" || summary == contact.Summary {
		return nil
	}
	if err := t.store.UpdateContactSummary(ctx, contact.ID, summary); err != nil {
		return err
	}
	contact.Summary = summary
	return nil
}
