package reception

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/secretary-go/internal/config"
	"github.com/raphaelgruber/secretary-go/internal/models"
)

// Result is the outcome of advancing the collector by one user turn.
type Result struct {
	// Reply is the next question or acknowledgement for the user. Empty when
	// Ready is set: the dialog engine speaks with the executor's result
	// instead.
	Reply string
	// Ready means every slot is filled and the user confirmed the proposed
	// date and time; the pending operation can be dispatched now.
	Ready bool
	// Abandoned means the idle budget ran out and the collection was cleared.
	Abandoned bool
}

// Collector advances a conversation's slot collection.
type Collector struct {
	policy config.Policy
	logger *slog.Logger
}

// NewCollector creates a slot collector bound to the clinic policy.
func NewCollector(policy config.Policy, logger *slog.Logger) *Collector {
	return &Collector{policy: policy, logger: logger}
}

// Begin starts a collection for the given pending operation and immediately
// harvests whatever fields the triggering message already carries. The
// triggering message is never taken as the patient name; a name already on
// the contact record prefills the slot instead of being asked again.
func (c *Collector) Begin(conv *models.Conversation, contact *models.Contact, pending, utterance string) Result {
	col := &models.Collection{Pending: pending, State: models.StateAwaitingName}
	switch pending {
	case models.PendingCancel:
		col.State = models.StateAwaitingDate
	case models.PendingReschedule:
		col.State = models.StateAwaitingOldDate
	}
	if contact != nil && contact.Name != "" {
		col.Name = contact.Name
	}
	conv.Collection = col

	c.harvest(col, utterance, false)
	if reply := c.insurancePrecheck(col); reply != "" {
		return Result{Reply: reply}
	}
	return Result{Reply: c.nextPrompt(col)}
}

// Advance consumes one user turn. Fields are accepted in any order; the reply
// always asks for exactly the next missing one. An affirmative at the
// confirmation step only counts against the exact date and time that were
// proposed.
func (c *Collector) Advance(conv *models.Conversation, utterance string) Result {
	col := conv.Collection
	if col == nil || col.State == models.StateDispatched {
		return Result{Reply: "How can I help you?"}
	}

	progress := c.harvest(col, utterance, true)

	if reply := c.insurancePrecheck(col); reply != "" {
		col.IdleTurns = 0
		return Result{Reply: reply}
	}

	if col.State == models.StateAwaitingConfirmation {
		return c.confirm(conv, utterance, progress)
	}

	if !progress {
		if res, done := c.idle(conv); done {
			return res
		}
	} else {
		col.IdleTurns = 0
	}

	return Result{Reply: c.nextPrompt(col)}
}

// harvest pulls every recognizable field out of the utterance. Returns
// whether anything new was learned.
func (c *Collector) harvest(col *models.Collection, utterance string, allowName bool) bool {
	progress := false
	reschedule := col.Pending == models.PendingReschedule

	if date := ExtractDate(utterance, c.policy.Location()); date != "" {
		switch {
		case reschedule && col.OldDate == "":
			col.OldDate = date
			progress = true
		case date != col.Date:
			col.Date = date
			progress = true
		}
	}
	if clock := extractTime(utterance); clock != "" {
		switch {
		case reschedule && col.OldDate != "" && col.OldTime == "" && col.State != models.StateAwaitingTime:
			col.OldTime = clock
			progress = true
		case clock != col.Time:
			col.Time = clock
			progress = true
		}
	}
	if col.Pending != models.PendingCancel {
		if cat := extractCategory(utterance); cat != "" && cat != col.Category {
			col.Category = cat
			progress = true
		}
		if allowName && col.Name == "" && col.State == models.StateAwaitingName && !progress {
			if name := extractName(utterance); name != "" {
				col.Name = name
				progress = true
			}
		}
	}
	return progress
}

// insurancePrecheck catches an insurance visit aimed at a non-insurance day
// before the request ever reaches the agenda role, and asks for another day.
func (c *Collector) insurancePrecheck(col *models.Collection) string {
	if col.Category != models.CategoryInsurance || col.Date == "" {
		return ""
	}
	day, err := time.ParseInLocation("02/01/2006", col.Date, c.policy.Location())
	if err != nil {
		col.Date = ""
		return "I could not read that date. Please use DD/MM/YYYY."
	}
	if !c.policy.AllowsInsuranceOn(day.Weekday()) {
		col.Date = ""
		col.ProposedDate = ""
		return fmt.Sprintf("Insurance visits are only available on %s. Which of those days works for you?",
			strings.Join(c.policy.InsuranceDay, " or "))
	}
	return ""
}

func (c *Collector) confirm(conv *models.Conversation, utterance string, progress bool) Result {
	col := conv.Collection

	// A changed date or time invalidates the standing proposal.
	if col.Date != col.ProposedDate || col.Time != col.ProposedTime {
		col.IdleTurns = 0
		return Result{Reply: c.propose(col)}
	}

	switch {
	case isNegative(utterance):
		col.Date, col.Time = "", ""
		col.ProposedDate, col.ProposedTime = "", ""
		col.State = models.StateAwaitingDate
		col.IdleTurns = 0
		return Result{Reply: "No problem. What date would you prefer?"}
	case isAffirmative(utterance):
		col.State = models.StateDispatched
		col.IdleTurns = 0
		return Result{Ready: true}
	default:
		if !progress {
			if res, done := c.idle(conv); done {
				return res
			}
		}
		// Anything that is neither an affirmative nor a refusal drops back
		// to time collection; the machine never proceeds on an ambiguous
		// reply.
		col.Time = ""
		col.ProposedDate, col.ProposedTime = "", ""
		col.State = models.StateAwaitingTime
		if col.Pending == models.PendingCancel {
			return Result{Reply: fmt.Sprintf("I did not catch that. Keeping %s; what time is the appointment booked at?", col.Date)}
		}
		return Result{Reply: fmt.Sprintf("I did not catch that. Keeping %s for now; what time works for you?", col.Date)}
	}
}

// idle charges one idle turn and abandons the collection once the policy
// budget is spent.
func (c *Collector) idle(conv *models.Conversation) (Result, bool) {
	col := conv.Collection
	col.IdleTurns++
	if col.IdleTurns < c.policy.Collector.MaxIdleTurns {
		return Result{}, false
	}
	c.logger.Info("abandoning stalled collection",
		"conversation", conv.ID.ID,
		"pending", col.Pending,
		"idle_turns", col.IdleTurns)
	conv.Collection = nil
	return Result{
		Abandoned: true,
		Reply:     "It seems we lost track of this request, so I have set it aside. Just tell me again whenever you are ready.",
	}, true
}

// nextPrompt moves the state to the first missing field and asks for it, or
// proposes the gathered slot for confirmation once nothing is missing.
func (c *Collector) nextPrompt(col *models.Collection) string {
	cancel := col.Pending == models.PendingCancel
	reschedule := col.Pending == models.PendingReschedule
	switch {
	case reschedule && col.OldDate == "":
		col.State = models.StateAwaitingOldDate
		return "Which date is the appointment you want to move? Please use DD/MM/YYYY."
	case reschedule && col.OldTime == "":
		col.State = models.StateAwaitingOldTime
		return "And what time is it currently booked at?"
	case !cancel && col.Name == "":
		col.State = models.StateAwaitingName
		return "Of course. Can I have the patient's full name, please?"
	case !cancel && col.Category == "":
		col.State = models.StateAwaitingCategory
		return "Will the visit be through insurance or self-pay?"
	case col.Date == "":
		col.State = models.StateAwaitingDate
		if cancel {
			return "What is the date of the appointment, in DD/MM/YYYY?"
		}
		return "What date works for you? Please use DD/MM/YYYY."
	case col.Time == "":
		col.State = models.StateAwaitingTime
		return "And what time? We book half-hour slots."
	default:
		col.State = models.StateAwaitingConfirmation
		return c.propose(col)
	}
}

// propose pins the confirmation question to the current date and time.
func (c *Collector) propose(col *models.Collection) string {
	col.ProposedDate = col.Date
	col.ProposedTime = col.Time
	col.State = models.StateAwaitingConfirmation
	switch col.Pending {
	case models.PendingCancel:
		return fmt.Sprintf("To confirm: cancel the appointment on %s at %s?", col.Date, col.Time)
	case models.PendingReschedule:
		return fmt.Sprintf("To confirm: move %s's %s appointment to %s at %s?",
			col.Name, col.Category, col.Date, col.Time)
	default:
		return fmt.Sprintf("To confirm: %s, %s visit on %s at %s. Shall I book it?",
			col.Name, col.Category, col.Date, col.Time)
	}
}
