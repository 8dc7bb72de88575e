// Package trace records the execution timeline of a single pipeline run:
// named steps, outbound API calls and numeric metrics, each stamped with
// its offset from the start of the run.
package trace

import (
	"time"
)

// Step statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Step is one recorded pipeline step.
type Step struct {
	Step        string    `json:"step"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	SinceStart  float64   `json:"duration_from_start"` // Seconds
	Status      string    `json:"status"`
}

// APICall is one recorded outbound call.
type APICall struct {
	Service    string            `json:"service"`
	Operation  string            `json:"operation"`
	Timestamp  time.Time         `json:"timestamp"`
	SinceStart float64           `json:"duration_from_start"` // Seconds
	Details    map[string]string `json:"details,omitempty"`
}

// Trace is the completed timeline of one run.
type Trace struct {
	StartedAt     time.Time          `json:"started_at"`
	Steps         []Step             `json:"steps"`
	APICalls      []APICall          `json:"api_calls"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
	TotalDuration float64            `json:"total_duration"` // Seconds
}

// Tracker accumulates the timeline for one request. It belongs to a
// single request and is not safe for concurrent use.
type Tracker struct {
	start   time.Time
	steps   []Step
	calls   []APICall
	metrics map[string]float64
	now     func() time.Time
}

// NewTracker starts a tracker clocked from now.
func NewTracker() *Tracker {
	return newTrackerAt(time.Now)
}

func newTrackerAt(now func() time.Time) *Tracker {
	return &Tracker{
		start:   now(),
		metrics: make(map[string]float64),
		now:     now,
	}
}

// AddStep records a pipeline step with its offset from the run start.
func (t *Tracker) AddStep(name, description, status string) {
	ts := t.now()
	t.steps = append(t.steps, Step{
		Step:        name,
		Description: description,
		Timestamp:   ts,
		SinceStart:  ts.Sub(t.start).Seconds(),
		Status:      status,
	})
}

// AddAPICall records an outbound service call.
func (t *Tracker) AddAPICall(service, operation string, details map[string]string) {
	ts := t.now()
	t.calls = append(t.calls, APICall{
		Service:    service,
		Operation:  operation,
		Timestamp:  ts,
		SinceStart: ts.Sub(t.start).Seconds(),
		Details:    details,
	})
}

// AddMetric records a named numeric measurement. Re-adding a name
// overwrites the previous value.
func (t *Tracker) AddMetric(name string, value float64) {
	t.metrics[name] = value
}

// Summary snapshots the timeline. The tracker remains usable; total
// duration reflects the time of the call.
func (t *Tracker) Summary() Trace {
	steps := make([]Step, len(t.steps))
	copy(steps, t.steps)
	calls := make([]APICall, len(t.calls))
	copy(calls, t.calls)
	metrics := make(map[string]float64, len(t.metrics))
	for k, v := range t.metrics {
		metrics[k] = v
	}

	return Trace{
		StartedAt:     t.start,
		Steps:         steps,
		APICalls:      calls,
		Metrics:       metrics,
		TotalDuration: t.now().Sub(t.start).Seconds(),
	}
}
