// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// TimingMetrics holds aggregated latency metrics for one operation type.
type TimingMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// TimingSnapshot provides computed stats from raw timings.
type TimingSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the full runtime statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64

	// Turns processed, split by classified intent.
	TurnsByIntent map[string]int64
	// Agenda operations executed, split by outcome ("create/ok" etc.).
	OperationsByOutcome map[string]int64
	// Guarded counts turns dropped because the conversation was not in
	// automated mode.
	Guarded int64
	// Handoffs counts conversations transferred to a human.
	Handoffs int64
	// Incidents counts recorded protocol violations.
	Incidents int64

	Turn        *TimingSnapshot
	LLMClassify *TimingSnapshot
	LLMReply    *TimingSnapshot
	Calendar    *TimingSnapshot
}

// Timed operation names for the collector.
const (
	OpTurn        = "turn"
	OpLLMClassify = "llm_classify"
	OpLLMReply    = "llm_reply"
	OpCalendar    = "calendar"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	timings   map[string]*TimingMetrics
	intents   map[string]int64
	outcomes  map[string]int64
	guarded   int64
	handoffs  int64
	incidents int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		timings:   make(map[string]*TimingMetrics),
		intents:   make(map[string]int64),
		outcomes:  make(map[string]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *TimingMetrics {
	m, ok := c.timings[op]
	if !ok {
		m = &TimingMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.timings[op] = m
	}
	return m
}

// RecordTiming records latency for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordIntent counts one processed turn under its classified intent.
func (c *Collector) RecordIntent(intent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents[intent]++
}

// RecordOperation counts one executed agenda operation under its outcome.
func (c *Collector) RecordOperation(op, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[op+"/"+outcome]++
}

// RecordGuarded counts a turn dropped by the conversation guard.
func (c *Collector) RecordGuarded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guarded++
}

// RecordHandoff counts a conversation transferred to a human.
func (c *Collector) RecordHandoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handoffs++
}

// RecordIncident counts a persisted protocol violation.
func (c *Collector) RecordIncident() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incidents++
}

// snapshotTiming creates a snapshot for an operation, returning nil if no data.
func snapshotTiming(m *TimingMetrics) *TimingSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &TimingSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	intents := make(map[string]int64, len(c.intents))
	for k, v := range c.intents {
		intents[k] = v
	}
	outcomes := make(map[string]int64, len(c.outcomes))
	for k, v := range c.outcomes {
		outcomes[k] = v
	}

	return Snapshot{
		UptimeSeconds:       time.Since(c.startTime).Seconds(),
		TurnsByIntent:       intents,
		OperationsByOutcome: outcomes,
		Guarded:             c.guarded,
		Handoffs:            c.handoffs,
		Incidents:           c.incidents,
		Turn:                snapshotTiming(c.timings[OpTurn]),
		LLMClassify:         snapshotTiming(c.timings[OpLLMClassify]),
		LLMReply:            snapshotTiming(c.timings[OpLLMReply]),
		Calendar:            snapshotTiming(c.timings[OpCalendar]),
	}
}
