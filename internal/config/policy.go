package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Shift is one contiguous run of bookable hours within a business day.
type Shift struct {
	Start string `yaml:"start"` // "09:00"
	End   string `yaml:"end"`   // "12:00"
}

// Policy holds the clinic business rules. Loaded from a YAML file when
// configured, otherwise DefaultPolicy applies.
type Policy struct {
	Timezone     string   `yaml:"timezone"`
	Shifts       []Shift  `yaml:"shifts"`
	SlotMinutes  int      `yaml:"slot_minutes"`
	InsuranceDay []string `yaml:"insurance_weekdays"`

	Collector struct {
		// MaxIdleTurns is the number of consecutive turns without progress
		// after which an incomplete collection is abandoned.
		MaxIdleTurns int `yaml:"max_idle_turns"`
	} `yaml:"collector"`

	Executor struct {
		// RetryAttempts counts total attempts against the calendar backend
		// for a single operation (1 means no retry).
		RetryAttempts int `yaml:"retry_attempts"`
		// RetryBackoffText is the file form of RetryBackoff, in Go duration
		// syntax ("2s", "500ms").
		RetryBackoffText string        `yaml:"retry_backoff"`
		RetryBackoff     time.Duration `yaml:"-"`
		// ListLimit bounds the near-term event listing.
		ListLimit int `yaml:"list_limit"`
		// WeekdayOccurrences is how many upcoming dates find-next-weekday returns.
		WeekdayOccurrences int `yaml:"weekday_occurrences"`
	} `yaml:"executor"`
}

// DefaultPolicy returns the built-in clinic rules: two shifts (09-12, 13-17),
// 30-minute slots, insurance restricted to Tuesday and Thursday.
func DefaultPolicy() Policy {
	p := Policy{
		Timezone:     "America/Sao_Paulo",
		Shifts:       []Shift{{Start: "09:00", End: "12:00"}, {Start: "13:00", End: "17:00"}},
		SlotMinutes:  30,
		InsuranceDay: []string{"Tuesday", "Thursday"},
	}
	p.Collector.MaxIdleTurns = 8
	p.Executor.RetryAttempts = 2
	p.Executor.RetryBackoff = 2 * time.Second
	p.Executor.ListLimit = 50
	p.Executor.WeekdayOccurrences = 10
	return p
}

// LoadPolicy reads the policy YAML from path. Fields left empty in the file
// fall back to the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy file: %w", err)
	}
	if raw := strings.TrimSpace(p.Executor.RetryBackoffText); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return p, fmt.Errorf("policy file %s: retry_backoff: %w", path, err)
		}
		p.Executor.RetryBackoff = d
	}
	if err := p.validate(); err != nil {
		return p, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

func (p Policy) validate() error {
	if p.SlotMinutes <= 0 || p.SlotMinutes > 120 {
		return fmt.Errorf("slot_minutes out of range: %d", p.SlotMinutes)
	}
	if len(p.Shifts) == 0 {
		return fmt.Errorf("at least one shift required")
	}
	for _, s := range p.Shifts {
		if _, err := parseClock(s.Start); err != nil {
			return err
		}
		if _, err := parseClock(s.End); err != nil {
			return err
		}
	}
	for _, d := range p.InsuranceDay {
		if _, ok := weekdayNames[d]; !ok {
			return fmt.Errorf("unknown insurance weekday: %q", d)
		}
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// InsuranceWeekdays returns the weekdays on which insurance appointments may
// be booked.
func (p Policy) InsuranceWeekdays() []time.Weekday {
	days := make([]time.Weekday, 0, len(p.InsuranceDay))
	for _, name := range p.InsuranceDay {
		if wd, ok := weekdayNames[name]; ok {
			days = append(days, wd)
		}
	}
	return days
}

// AllowsInsuranceOn reports whether insurance appointments may be booked on
// the given weekday.
func (p Policy) AllowsInsuranceOn(day time.Weekday) bool {
	for _, wd := range p.InsuranceWeekdays() {
		if wd == day {
			return true
		}
	}
	return false
}

// SlotDuration returns the bookable slot length.
func (p Policy) SlotDuration() time.Duration {
	return time.Duration(p.SlotMinutes) * time.Minute
}

// Location resolves the configured timezone, falling back to UTC.
func (p Policy) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ShiftBounds returns each shift as minutes-of-day pairs, for slot grid
// computation.
func (p Policy) ShiftBounds() ([][2]int, error) {
	bounds := make([][2]int, 0, len(p.Shifts))
	for _, s := range p.Shifts {
		start, err := parseClock(s.Start)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(s.End)
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, fmt.Errorf("shift %s-%s: end before start", s.Start, s.End)
		}
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
