package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/secretary-go/internal/calendar"
	"github.com/raphaelgruber/secretary-go/internal/config"
	"github.com/raphaelgruber/secretary-go/internal/db"
	"github.com/raphaelgruber/secretary-go/internal/models"
	"github.com/raphaelgruber/secretary-go/internal/protocol"
)

// fakeStore is an in-memory Store for executor tests.
type fakeStore struct {
	nextID       int
	appointments map[string]models.Appointment
	fulfillments map[string]models.Fulfillment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appointments: make(map[string]models.Appointment),
		fulfillments: make(map[string]models.Fulfillment),
	}
}

func (s *fakeStore) CreateAppointment(_ context.Context, appt models.Appointment) (*models.Appointment, error) {
	for _, existing := range s.appointments {
		if existing.Contact == appt.Contact && existing.ScheduledAt.Equal(appt.ScheduledAt) {
			return nil, db.ErrAlreadyExists
		}
	}
	s.nextID++
	key := fmt.Sprintf("appt-%d", s.nextID)
	appt.ID = surrealmodels.RecordID{Table: "appointment", ID: key}
	s.appointments[key] = appt
	return &appt, nil
}

func (s *fakeStore) GetAppointmentAt(_ context.Context, contact surrealmodels.RecordID, at time.Time) (*models.Appointment, error) {
	for _, appt := range s.appointments {
		if appt.Contact == contact && appt.ScheduledAt.Equal(at) {
			found := appt
			return &found, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakeStore) ListAppointmentsByContact(_ context.Context, contact surrealmodels.RecordID) ([]models.Appointment, error) {
	var out []models.Appointment
	for _, appt := range s.appointments {
		if appt.Contact == contact {
			out = append(out, appt)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteAppointment(_ context.Context, id surrealmodels.RecordID) error {
	delete(s.appointments, id.ID.(string))
	return nil
}

func (s *fakeStore) GetFulfillment(_ context.Context, key string) (*models.Fulfillment, error) {
	if f, ok := s.fulfillments[key]; ok {
		return &f, nil
	}
	return nil, nil
}

func (s *fakeStore) PutFulfillment(_ context.Context, key, operation, response string) error {
	if _, ok := s.fulfillments[key]; ok {
		return db.ErrAlreadyExists
	}
	s.fulfillments[key] = models.Fulfillment{Key: key, Operation: operation, Response: response}
	return nil
}

// Wednesday 2026-09-02 09:00 clinic time.
func testNow(t *testing.T, policy config.Policy) time.Time {
	t.Helper()
	return time.Date(2026, 9, 2, 9, 0, 0, 0, policy.Location())
}

func newTestExecutor(t *testing.T) (*Executor, *fakeStore, *calendar.Fake) {
	t.Helper()
	policy := config.DefaultPolicy()
	policy.Executor.RetryBackoff = time.Millisecond
	store := newFakeStore()
	cal := calendar.NewFake()
	ex := NewExecutor(store, cal, policy, slog.New(slog.DiscardHandler))
	ex.now = func() time.Time { return testNow(t, policy) }
	return ex, store, cal
}

var testContact = surrealmodels.RecordID{Table: "contact", ID: "c1"}

func createRequest(key, date, clock, category string) protocol.Request {
	return protocol.Request{
		Op: protocol.OpCreate,
		Fields: map[string]string{
			protocol.FieldName:     "Maria Souza",
			protocol.FieldCategory: category,
			protocol.FieldDate:     date,
			protocol.FieldTime:     clock,
		},
		CorrelationKey: key,
	}
}

func TestCreateBooksSlot(t *testing.T) {
	ex, store, cal := newTestExecutor(t)

	resp, err := ex.NewCycle().Execute(context.Background(), testContact,
		createRequest("conv:1", "03/09/2026", "09:30", models.CategorySelfPay))
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeOK, resp.Outcome)
	assert.Contains(t, resp.Result, "03/09/2026")
	assert.Equal(t, 1, cal.Len())
	assert.Len(t, store.appointments, 1)
}

func TestCreateIsIdempotent(t *testing.T) {
	ex, _, cal := newTestExecutor(t)
	req := createRequest("conv:1", "03/09/2026", "09:30", models.CategorySelfPay)

	first, err := ex.NewCycle().Execute(context.Background(), testContact, req)
	require.NoError(t, err)
	require.Equal(t, protocol.OutcomeOK, first.Outcome)

	second, err := ex.NewCycle().Execute(context.Background(), testContact, req)
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, 1, cal.Len(), "replay must not book a second event")
}

func TestCreateRejections(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		clock  string
		cat    string
		reason string
	}{
		{"insurance on wednesday", "02/09/2026", "10:00", models.CategoryInsurance, "insurance"},
		{"insurance on monday", "07/09/2026", "10:00", models.CategoryInsurance, "insurance"},
		{"weekend", "05/09/2026", "10:00", models.CategorySelfPay, "weekends"},
		{"past slot", "01/09/2026", "10:00", models.CategorySelfPay, "past"},
		{"off the grid", "03/09/2026", "09:45", models.CategorySelfPay, "bookable"},
		{"lunch break", "03/09/2026", "12:00", models.CategorySelfPay, "bookable"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _, cal := newTestExecutor(t)
			key := fmt.Sprintf("conv:%d", i)
			resp, err := ex.NewCycle().Execute(context.Background(), testContact,
				createRequest(key, tt.date, tt.clock, tt.cat))
			require.NoError(t, err)
			assert.Equal(t, protocol.OutcomeRejected, resp.Outcome)
			assert.Contains(t, resp.Reason, tt.reason)
			assert.Equal(t, 0, cal.Len())
		})
	}
}

func TestCreateInsuranceOnAllowedDay(t *testing.T) {
	ex, _, _ := newTestExecutor(t)

	// 03/09/2026 is a Thursday.
	resp, err := ex.NewCycle().Execute(context.Background(), testContact,
		createRequest("conv:1", "03/09/2026", "14:00", models.CategoryInsurance))
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeOK, resp.Outcome)
}

func TestCreateOccupiedSlotConflicts(t *testing.T) {
	ex, _, cal := newTestExecutor(t)

	slot := time.Date(2026, 9, 3, 9, 30, 0, 0, config.DefaultPolicy().Location())
	_, err := cal.CreateEvent(context.Background(), calendar.Event{
		Subject: "someone else", StartAt: slot, EndAt: slot.Add(30 * time.Minute),
	})
	require.NoError(t, err)

	resp, err := ex.NewCycle().Execute(context.Background(), testContact,
		createRequest("conv:1", "03/09/2026", "09:30", models.CategorySelfPay))
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeRejected, resp.Outcome)
	assert.Contains(t, resp.Reason, "taken")
}

func TestCreateRetriesTransientBackendFailure(t *testing.T) {
	ex, _, cal := newTestExecutor(t)
	cal.FailList = true

	// One injected failure, retry budget of two attempts: the retry succeeds.
	resp, err := ex.NewCycle().Execute(context.Background(), testContact,
		createRequest("conv:1", "03/09/2026", "09:30", models.CategorySelfPay))
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeOK, resp.Outcome)
}

func TestCreatePersistentBackendFailureFails(t *testing.T) {
	ex, store, cal := newTestExecutor(t)
	broken := &alwaysFailCreate{Fake: cal}
	ex2 := NewExecutor(store, broken, ex.policy, slog.New(slog.DiscardHandler))
	ex2.now = ex.now

	resp, err := ex2.NewCycle().Execute(context.Background(), testContact,
		createRequest("conv:1", "03/09/2026", "09:30", models.CategorySelfPay))
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeFailed, resp.Outcome)
	assert.Empty(t, store.appointments)
	assert.Equal(t, 0, cal.Len())
}

// alwaysFailCreate wraps the fake so every CreateEvent call fails.
type alwaysFailCreate struct {
	*calendar.Fake
}

func (a *alwaysFailCreate) CreateEvent(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	a.Fake.FailCreate = true
	return a.Fake.CreateEvent(ctx, ev)
}

func TestCancelRoundTrip(t *testing.T) {
	ex, store, cal := newTestExecutor(t)

	created, err := ex.NewCycle().Execute(context.Background(), testContact,
		createRequest("conv:1", "03/09/2026", "09:30", models.CategorySelfPay))
	require.NoError(t, err)
	require.Equal(t, protocol.OutcomeOK, created.Outcome)

	resp, err := ex.NewCycle().Execute(context.Background(), testContact, protocol.Request{
		Op: protocol.OpCancel,
		Fields: map[string]string{
			protocol.FieldDate: "03/09/2026",
			protocol.FieldTime: "09:30",
		},
		CorrelationKey: "conv:2",
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeOK, resp.Outcome)
	assert.Equal(t, 0, cal.Len())
	assert.Empty(t, store.appointments)
}

func TestCancelKeepsRecordWhenBackendDeleteFails(t *testing.T) {
	ex, store, cal := newTestExecutor(t)

	_, err := ex.NewCycle().Execute(context.Background(), testContact,
		createRequest("conv:1", "03/09/2026", "09:30", models.CategorySelfPay))
	require.NoError(t, err)

	failTwice := &alwaysFailDelete{Fake: cal}
	ex2 := NewExecutor(store, failTwice, ex.policy, slog.New(slog.DiscardHandler))
	ex2.now = ex.now

	resp, err := ex2.NewCycle().Execute(context.Background(), testContact, protocol.Request{
		Op: protocol.OpCancel,
		Fields: map[string]string{
			protocol.FieldDate: "03/09/2026",
			protocol.FieldTime: "09:30",
		},
		CorrelationKey: "conv:2",
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeFailed, resp.Outcome)
	assert.Len(t, store.appointments, 1, "local record survives a failed backend delete")
}

// alwaysFailDelete wraps the fake so every DeleteEvent call fails.
type alwaysFailDelete struct {
	*calendar.Fake
}

func (a *alwaysFailDelete) DeleteEvent(ctx context.Context, id string) error {
	a.Fake.FailDelete = true
	return a.Fake.DeleteEvent(ctx, id)
}

func TestCancelUnknownAppointmentRejected(t *testing.T) {
	ex, _, _ := newTestExecutor(t)

	resp, err := ex.NewCycle().Execute(context.Background(), testContact, protocol.Request{
		Op: protocol.OpCancel,
		Fields: map[string]string{
			protocol.FieldDate: "03/09/2026",
			protocol.FieldTime: "09:30",
		},
		CorrelationKey: "conv:1",
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeRejected, resp.Outcome)
	assert.Contains(t, resp.Reason, "no appointment")
}

func TestCheckAvailabilityExcludesBookedSlots(t *testing.T) {
	ex, _, _ := newTestExecutor(t)
	cycle := ex.NewCycle()

	_, err := cycle.Execute(context.Background(), testContact,
		createRequest("conv:1", "03/09/2026", "09:00", models.CategorySelfPay))
	require.NoError(t, err)

	resp, err := cycle.Execute(context.Background(), testContact, protocol.Request{
		Op:     protocol.OpCheckAvailability,
		Fields: map[string]string{protocol.FieldDate: "03/09/2026"},
	})
	require.NoError(t, err)
	require.Equal(t, protocol.OutcomeOK, resp.Outcome)
	assert.NotContains(t, resp.Result, "09:00,")
	assert.Contains(t, resp.Result, "09:30")
	assert.Contains(t, resp.Result, "13:00")
	assert.NotContains(t, resp.Result, "12:00")
	assert.NotContains(t, resp.Result, "17:00")
}

func TestCheckAvailabilityWeekendRejected(t *testing.T) {
	ex, _, _ := newTestExecutor(t)

	resp, err := ex.NewCycle().Execute(context.Background(), testContact, protocol.Request{
		Op:     protocol.OpCheckAvailability,
		Fields: map[string]string{protocol.FieldDate: "05/09/2026"},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeRejected, resp.Outcome)
}

func TestFindNextWeekdaySkipsToday(t *testing.T) {
	ex, _, _ := newTestExecutor(t)

	// Now is Wednesday 02/09/2026; the first Wednesday returned is a week out.
	resp, err := ex.NewCycle().Execute(context.Background(), testContact, protocol.Request{
		Op:     protocol.OpFindNextWeekday,
		Fields: map[string]string{protocol.FieldDay: "Wednesday"},
	})
	require.NoError(t, err)
	require.Equal(t, protocol.OutcomeOK, resp.Outcome)
	assert.NotContains(t, resp.Result, "02/09/2026")
	assert.Contains(t, resp.Result, "09/09/2026")
	assert.Len(t, strings.Split(resp.Result, ", "), 10)
}
