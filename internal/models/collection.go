package models

// Pending operations a collection can be gathering fields for.
const (
	PendingCreate     = "create"
	PendingCancel     = "cancel"
	PendingReschedule = "reschedule"
)

// Collection state machine states, in collection order. Out-of-order input is
// accepted opportunistically but every field must be filled before
// confirmation.
const (
	StateAwaitingName         = "AWAITING_NAME"
	StateAwaitingCategory     = "AWAITING_CATEGORY"
	StateAwaitingOldDate      = "AWAITING_CURRENT_DATE"
	StateAwaitingOldTime      = "AWAITING_CURRENT_TIME"
	StateAwaitingDate         = "AWAITING_DATE"
	StateAwaitingTime         = "AWAITING_TIME"
	StateAwaitingConfirmation = "AWAITING_CONFIRMATION"
	StateDispatched           = "DISPATCHED"
)

// Collection is the partial slot state gathered so far for a pending
// operation. Persisted on the conversation record between turns.
type Collection struct {
	Pending  string `json:"pending"`
	State    string `json:"state"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	Date     string `json:"date,omitempty"` // DD/MM/YYYY
	Time     string `json:"time,omitempty"` // HH:MM

	// OldDate/OldTime identify the appointment being moved; only gathered
	// for a reschedule.
	OldDate string `json:"old_date,omitempty"`
	OldTime string `json:"old_time,omitempty"`

	// ProposedDate/ProposedTime record what the confirmation question was
	// tied to; an affirmative only counts against this exact pair.
	ProposedDate string `json:"proposed_date,omitempty"`
	ProposedTime string `json:"proposed_time,omitempty"`

	// IdleTurns counts consecutive turns without collection progress; the
	// collection is abandoned once the policy budget is exceeded.
	IdleTurns int `json:"idle_turns"`
}

// Complete reports whether every field required for the pending operation has
// been gathered (confirmation excluded).
func (c *Collection) Complete() bool {
	if c == nil {
		return false
	}
	switch c.Pending {
	case PendingCreate:
		return c.Name != "" && c.Category != "" && c.Date != "" && c.Time != ""
	case PendingReschedule:
		return c.Name != "" && c.Category != "" && c.Date != "" && c.Time != "" &&
			c.OldDate != "" && c.OldTime != ""
	case PendingCancel:
		return c.Date != "" && c.Time != ""
	default:
		return false
	}
}
