// Package schedule executes calendar operations for the agenda role: listing
// the near-term agenda, computing free slots on the clinic's grid, resolving
// upcoming weekdays, and booking or cancelling appointments with idempotent
// retry handling.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/secretary-go/internal/calendar"
	"github.com/raphaelgruber/secretary-go/internal/config"
	"github.com/raphaelgruber/secretary-go/internal/faults"
	"github.com/raphaelgruber/secretary-go/internal/models"
)

// Wire formats for dates and times in cross-role fields.
const (
	DateLayout = "02/01/2006"
	TimeLayout = "15:04"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseSlot combines a DD/MM/YYYY date and HH:MM time into a slot start in
// the clinic timezone. Malformed input is a validation fault.
func ParseSlot(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, faults.Validationf("date %q is not in DD/MM/YYYY form", date)
	}
	t, err := time.Parse(TimeLayout, strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, faults.Validationf("time %q is not in HH:MM form", clock)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// ParseWeekday resolves a weekday name, case-insensitively.
func ParseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, faults.Validationf("unknown weekday %q", name)
	}
	return day, nil
}

// NextWeekdays returns the next count occurrences of the given weekday after
// now. Today never counts, even when now falls on that weekday.
func NextWeekdays(now time.Time, day time.Weekday, count int) []time.Time {
	dates := make([]time.Time, 0, count)
	candidate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for len(dates) < count {
		candidate = candidate.AddDate(0, 0, 1)
		if candidate.Weekday() == day {
			dates = append(dates, candidate)
		}
	}
	return dates
}

// SlotGrid enumerates every bookable slot start on the given day, from the
// policy's shift windows and slot length.
func SlotGrid(day time.Time, policy config.Policy) ([]time.Time, error) {
	bounds, err := policy.ShiftBounds()
	if err != nil {
		return nil, err
	}
	step := int(policy.SlotDuration().Minutes())
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	var slots []time.Time
	for _, shift := range bounds {
		for minute := shift[0]; minute+step <= shift[1]; minute += step {
			slots = append(slots, midnight.Add(time.Duration(minute)*time.Minute))
		}
	}
	return slots, nil
}

// FreeSlots filters the day's grid down to slots not occupied by an existing
// event and not already past.
func FreeSlots(day time.Time, events []calendar.Event, now time.Time, policy config.Policy) ([]time.Time, error) {
	grid, err := SlotGrid(day, policy)
	if err != nil {
		return nil, err
	}
	occupied := make(map[int64]bool, len(events))
	for _, ev := range events {
		occupied[ev.StartAt.Unix()] = true
	}
	free := grid[:0]
	for _, slot := range grid {
		if slot.After(now) && !occupied[slot.Unix()] {
			free = append(free, slot)
		}
	}
	return free, nil
}

// validateSlot enforces the booking rules shared by create requests: the slot
// must be in the future, on a clinic business day, on the grid, and — for
// insurance visits — on an allowed insurance day.
func validateSlot(at time.Time, category string, now time.Time, policy config.Policy) error {
	if !at.After(now) {
		return faults.BusinessRulef("slot %s is in the past", at.Format(DateLayout+" "+TimeLayout))
	}
	switch at.Weekday() {
	case time.Saturday, time.Sunday:
		return faults.BusinessRulef("the clinic does not open on weekends")
	}
	if category == models.CategoryInsurance && !policy.AllowsInsuranceOn(at.Weekday()) {
		return faults.BusinessRulef("insurance visits are only available on %s",
			strings.Join(policy.InsuranceDay, " and "))
	}
	grid, err := SlotGrid(at, policy)
	if err != nil {
		return err
	}
	for _, slot := range grid {
		if slot.Equal(at) {
			return nil
		}
	}
	return faults.BusinessRulef("%s is not a bookable slot time", at.Format(TimeLayout))
}

func formatSlotTimes(slots []time.Time) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = s.Format(TimeLayout)
	}
	return strings.Join(parts, ", ")
}

func formatDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(DateLayout)
	}
	return strings.Join(parts, ", ")
}

func formatEvent(ev calendar.Event) string {
	return fmt.Sprintf("%s %s - %s",
		ev.StartAt.Format(DateLayout), ev.StartAt.Format(TimeLayout), ev.Subject)
}
