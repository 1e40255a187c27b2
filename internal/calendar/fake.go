package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/raphaelgruber/secretary-go/internal/faults"
)

// Fake is an in-memory calendar backend for tests and local runs. Failure
// modes can be injected per call to exercise retry and compensation paths.
type Fake struct {
	mu     sync.Mutex
	nextID int
	events map[string]Event

	// FailList, FailCreate and FailDelete inject an external fault on the
	// next matching call, then reset.
	FailList   bool
	FailCreate bool
	FailDelete bool
}

// NewFake creates an empty in-memory calendar.
func NewFake() *Fake {
	return &Fake{events: make(map[string]Event)}
}

func (f *Fake) ListEvents(_ context.Context, max int) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailList {
		f.FailList = false
		return nil, faults.Externalf("calendar: injected list failure")
	}
	events := make([]Event, 0, len(f.events))
	for _, ev := range f.events {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartAt.Before(events[j].StartAt) })
	if max > 0 && len(events) > max {
		events = events[:max]
	}
	return events, nil
}

func (f *Fake) CreateEvent(_ context.Context, ev Event) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		f.FailCreate = false
		return Event{}, faults.Externalf("calendar: injected create failure")
	}
	f.nextID++
	ev.ID = fmt.Sprintf("evt-%d", f.nextID)
	f.events[ev.ID] = ev
	return ev, nil
}

func (f *Fake) DeleteEvent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDelete {
		f.FailDelete = false
		return faults.Externalf("calendar: injected delete failure")
	}
	if _, ok := f.events[id]; !ok {
		return faults.Externalf("calendar: event %s not found", id)
	}
	delete(f.events, id)
	return nil
}

// Len reports how many events the fake currently holds.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// Has reports whether an event with the given ID exists.
func (f *Fake) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.events[id]
	return ok
}
