package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/secretary-go/internal/calendar"
	"github.com/raphaelgruber/secretary-go/internal/config"
	"github.com/raphaelgruber/secretary-go/internal/db"
	"github.com/raphaelgruber/secretary-go/internal/faults"
	"github.com/raphaelgruber/secretary-go/internal/models"
	"github.com/raphaelgruber/secretary-go/internal/protocol"
)

// Store is the persistence surface the executor needs. *db.Client satisfies
// it.
type Store interface {
	CreateAppointment(ctx context.Context, appt models.Appointment) (*models.Appointment, error)
	GetAppointmentAt(ctx context.Context, contact surrealmodels.RecordID, at time.Time) (*models.Appointment, error)
	ListAppointmentsByContact(ctx context.Context, contact surrealmodels.RecordID) ([]models.Appointment, error)
	DeleteAppointment(ctx context.Context, id surrealmodels.RecordID) error
	GetFulfillment(ctx context.Context, key string) (*models.Fulfillment, error)
	PutFulfillment(ctx context.Context, key, operation, response string) error
}

// Executor runs cross-role calendar operations. It is the only component
// allowed to mutate the calendar backend or the appointment table.
type Executor struct {
	store  Store
	cal    calendar.Client
	policy config.Policy
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewExecutor creates a scheduling executor.
func NewExecutor(store Store, cal calendar.Client, policy config.Policy, logger *slog.Logger) *Executor {
	return &Executor{
		store:  store,
		cal:    cal,
		policy: policy,
		logger: logger,
		now:    func() time.Time { return time.Now().In(policy.Location()) },
	}
}

// Cycle caches the backend event listing for the duration of one fulfillment
// cycle, so a turn that checks availability and then books does not list the
// agenda twice.
type Cycle struct {
	ex     *Executor
	events []calendar.Event
	listed bool
}

// NewCycle starts a fulfillment cycle.
func (e *Executor) NewCycle() *Cycle {
	return &Cycle{ex: e}
}

func (c *Cycle) listEvents(ctx context.Context) ([]calendar.Event, error) {
	if c.listed {
		return c.events, nil
	}
	var events []calendar.Event
	err := c.ex.withRetry(ctx, func() error {
		var listErr error
		events, listErr = c.ex.cal.ListEvents(ctx, c.ex.policy.Executor.ListLimit)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	c.events = events
	c.listed = true
	return events, nil
}

// invalidate drops the cached listing after a mutation.
func (c *Cycle) invalidate() {
	c.listed = false
	c.events = nil
}

// Execute runs one cross-role request on behalf of the given contact and
// returns the literal outcome. Recoverable rule violations become rejected
// responses; only unexpected failures return an error.
func (c *Cycle) Execute(ctx context.Context, contact surrealmodels.RecordID, req protocol.Request) (protocol.Response, error) {
	if err := req.Validate(); err != nil {
		return protocol.Response{}, err
	}

	e := c.ex
	if req.Op.Mutating() {
		if resp, replayed, err := e.replay(ctx, req); err != nil {
			return protocol.Response{}, err
		} else if replayed {
			return resp, nil
		}
	}

	var (
		result string
		err    error
	)
	switch req.Op {
	case protocol.OpListSlots:
		result, err = c.listSlots(ctx)
	case protocol.OpCheckAvailability:
		result, err = c.checkAvailability(ctx, req.Fields[protocol.FieldDate])
	case protocol.OpFindNextWeekday:
		result, err = e.findNextWeekday(req.Fields[protocol.FieldDay])
	case protocol.OpCreate:
		result, err = c.create(ctx, contact, req.Fields)
	case protocol.OpCancel:
		result, err = c.cancel(ctx, contact, req.Fields)
	default:
		return protocol.Response{}, faults.Protocolf("unknown operation %q", req.Op)
	}

	resp := protocol.Response{Op: req.Op, CorrelationKey: req.CorrelationKey}
	switch {
	case err == nil:
		resp.Outcome = protocol.OutcomeOK
		resp.Result = result
	case faults.Recoverable(err):
		resp.Outcome = protocol.OutcomeRejected
		resp.Reason = faults.Reason(err)
	case errors.Is(err, faults.ErrExternalService):
		resp.Outcome = protocol.OutcomeFailed
		resp.Reason = faults.Reason(err)
	default:
		return protocol.Response{}, err
	}

	if req.Op.Mutating() {
		if err := e.record(ctx, req, resp); err != nil {
			return protocol.Response{}, err
		}
		c.invalidate()
	}

	e.logger.Info("executed agenda operation",
		"operation", string(req.Op),
		"outcome", string(resp.Outcome),
		"correlation_key", req.CorrelationKey)
	return resp, nil
}

// replay checks the idempotency ledger. A correlation key seen before returns
// its recorded outcome instead of mutating again; a replayed success is
// marked duplicate so the reception role can phrase it as already done.
func (e *Executor) replay(ctx context.Context, req protocol.Request) (protocol.Response, bool, error) {
	stored, err := e.store.GetFulfillment(ctx, req.CorrelationKey)
	if err != nil {
		return protocol.Response{}, false, err
	}
	if stored == nil {
		return protocol.Response{}, false, nil
	}
	resp, err := protocol.ParseResponse(stored.Response)
	if err != nil {
		return protocol.Response{}, false, fmt.Errorf("decode fulfillment %s: %w", req.CorrelationKey, err)
	}
	if resp.Outcome == protocol.OutcomeOK {
		resp.Outcome = protocol.OutcomeDuplicate
	}
	e.logger.Info("replayed fulfilled operation",
		"operation", string(req.Op), "correlation_key", req.CorrelationKey)
	return resp, true, nil
}

// record persists the literal response under the request's correlation key.
// A concurrent duplicate insert is benign: both writers hold the same
// outcome.
func (e *Executor) record(ctx context.Context, req protocol.Request, resp protocol.Response) error {
	wire, err := protocol.EncodeResponse(resp)
	if err != nil {
		return err
	}
	if err := e.store.PutFulfillment(ctx, req.CorrelationKey, string(req.Op), wire); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

// withRetry runs fn with a bounded retry budget, retrying only on external
// service faults.
func (e *Executor) withRetry(ctx context.Context, fn func() error) error {
	attempts := e.policy.Executor.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, faults.ErrExternalService) {
			return err
		}
		if attempt == attempts {
			break
		}
		e.logger.Warn("calendar backend failed, retrying",
			"attempt", attempt, "error", err)
		select {
		case <-time.After(e.policy.Executor.RetryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *Cycle) listSlots(ctx context.Context) (string, error) {
	events, err := c.listEvents(ctx)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "the agenda has no upcoming appointments", nil
	}
	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = formatEvent(ev)
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Cycle) checkAvailability(ctx context.Context, date string) (string, error) {
	e := c.ex
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), e.policy.Location())
	if err != nil {
		return "", faults.Validationf("date %q is not in DD/MM/YYYY form", date)
	}
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return "", faults.BusinessRulef("the clinic does not open on weekends")
	}

	events, err := c.listEvents(ctx)
	if err != nil {
		return "", err
	}
	free, err := FreeSlots(day, events, e.now(), e.policy)
	if err != nil {
		return "", err
	}
	if len(free) == 0 {
		return fmt.Sprintf("no free slots on %s", day.Format(DateLayout)), nil
	}
	return fmt.Sprintf("free slots on %s: %s", day.Format(DateLayout), formatSlotTimes(free)), nil
}

func (e *Executor) findNextWeekday(name string) (string, error) {
	day, err := ParseWeekday(name)
	if err != nil {
		return "", err
	}
	dates := NextWeekdays(e.now(), day, e.policy.Executor.WeekdayOccurrences)
	return formatDates(dates), nil
}

func (c *Cycle) create(ctx context.Context, contact surrealmodels.RecordID, fields map[string]string) (string, error) {
	e := c.ex
	category := strings.ToLower(strings.TrimSpace(fields[protocol.FieldCategory]))
	if category != models.CategorySelfPay && category != models.CategoryInsurance {
		return "", faults.Validationf("category %q must be %s or %s",
			fields[protocol.FieldCategory], models.CategorySelfPay, models.CategoryInsurance)
	}

	at, err := ParseSlot(fields[protocol.FieldDate], fields[protocol.FieldTime], e.policy.Location())
	if err != nil {
		return "", err
	}
	if err := validateSlot(at, category, e.now(), e.policy); err != nil {
		return "", err
	}

	events, err := c.listEvents(ctx)
	if err != nil {
		return "", err
	}
	for _, ev := range events {
		if ev.StartAt.Equal(at) {
			return "", faults.Conflictf("the %s slot on %s is already taken",
				at.Format(TimeLayout), at.Format(DateLayout))
		}
	}

	subject := fmt.Sprintf("%s (%s)", strings.TrimSpace(fields[protocol.FieldName]), category)
	var created calendar.Event
	err = e.withRetry(ctx, func() error {
		var createErr error
		created, createErr = e.cal.CreateEvent(ctx, calendar.Event{
			Subject: subject,
			StartAt: at,
			EndAt:   at.Add(e.policy.SlotDuration()),
		})
		return createErr
	})
	if err != nil {
		return "", err
	}

	if _, err := e.store.CreateAppointment(ctx, models.Appointment{
		Contact:         contact,
		Subject:         subject,
		Category:        category,
		ScheduledAt:     at,
		CalendarEventID: created.ID,
	}); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			// Somebody booked the same slot between listing and writing.
			// Back out the event we just created.
			if delErr := e.cal.DeleteEvent(ctx, created.ID); delErr != nil {
				e.logger.Error("could not back out conflicting event",
					"event_id", created.ID, "error", delErr)
			}
			return "", faults.Conflictf("the %s slot on %s is already taken",
				at.Format(TimeLayout), at.Format(DateLayout))
		}
		return "", err
	}

	return fmt.Sprintf("booked %s on %s at %s",
		subject, at.Format(DateLayout), at.Format(TimeLayout)), nil
}

func (c *Cycle) cancel(ctx context.Context, contact surrealmodels.RecordID, fields map[string]string) (string, error) {
	e := c.ex
	at, err := ParseSlot(fields[protocol.FieldDate], fields[protocol.FieldTime], e.policy.Location())
	if err != nil {
		return "", err
	}

	appt, err := e.store.GetAppointmentAt(ctx, contact, at)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", faults.BusinessRulef("no appointment found on %s at %s",
				at.Format(DateLayout), at.Format(TimeLayout))
		}
		return "", err
	}

	if appt.CalendarEventID != "" {
		err = e.withRetry(ctx, func() error {
			return e.cal.DeleteEvent(ctx, appt.CalendarEventID)
		})
		if err != nil {
			// Keep the local record so the appointment stays visible until
			// the backend deletion can be repeated.
			return "", err
		}
	}

	if err := e.store.DeleteAppointment(ctx, appt.ID); err != nil {
		return "", err
	}

	return fmt.Sprintf("cancelled the appointment on %s at %s",
		at.Format(DateLayout), at.Format(TimeLayout)), nil
}

// ListContactAppointments renders the contact's booked appointments for the
// reception role's query flow.
func (e *Executor) ListContactAppointments(ctx context.Context, contact surrealmodels.RecordID) (string, error) {
	appts, err := e.store.ListAppointmentsByContact(ctx, contact)
	if err != nil {
		return "", err
	}
	if len(appts) == 0 {
		return "you have no booked appointments", nil
	}
	lines := make([]string, len(appts))
	for i, appt := range appts {
		lines[i] = fmt.Sprintf("%s %s - %s",
			appt.ScheduledAt.Format(DateLayout), appt.ScheduledAt.Format(TimeLayout), appt.Subject)
	}
	return strings.Join(lines, "\n"), nil
}
