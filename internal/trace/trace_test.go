package trace

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances a fixed amount on every reading.
type fakeClock struct {
	current time.Time
	step    time.Duration
}

func (c *fakeClock) now() time.Time {
	t := c.current
	c.current = c.current.Add(c.step)
	return t
}

func newTestTracker(step time.Duration) *Tracker {
	clock := &fakeClock{
		current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		step:    step,
	}
	return newTrackerAt(clock.now)
}

func TestTracker_StepsCarryOffsets(t *testing.T) {
	tr := newTestTracker(100 * time.Millisecond)

	tr.AddStep("embedding", "embedding the question", StatusStarted)
	tr.AddStep("embedding", "embedding the question", StatusCompleted)

	got := tr.Summary()
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "embedding", got.Steps[0].Step)
	assert.Equal(t, StatusStarted, got.Steps[0].Status)
	assert.InDelta(t, 0.1, got.Steps[0].SinceStart, 1e-9)
	assert.InDelta(t, 0.2, got.Steps[1].SinceStart, 1e-9)
	assert.True(t, got.Steps[1].Timestamp.After(got.Steps[0].Timestamp))
}

func TestTracker_APICallsAndMetrics(t *testing.T) {
	tr := newTestTracker(50 * time.Millisecond)

	tr.AddAPICall("embedding", "invoke", map[string]string{"model": "titan"})
	tr.AddMetric("documents_retrieved", 3)
	tr.AddMetric("documents_retrieved", 5) // overwrite

	got := tr.Summary()
	require.Len(t, got.APICalls, 1)
	assert.Equal(t, "embedding", got.APICalls[0].Service)
	assert.Equal(t, "invoke", got.APICalls[0].Operation)
	assert.Equal(t, "titan", got.APICalls[0].Details["model"])
	assert.Equal(t, 5.0, got.Metrics["documents_retrieved"])
	assert.Greater(t, got.TotalDuration, 0.0)
}

func TestTracker_SummaryIsASnapshot(t *testing.T) {
	tr := newTestTracker(10 * time.Millisecond)
	tr.AddStep("searching", "querying the index", StatusStarted)

	first := tr.Summary()
	tr.AddStep("searching", "querying the index", StatusFailed)
	second := tr.Summary()

	assert.Len(t, first.Steps, 1, "earlier snapshot must not grow")
	assert.Len(t, second.Steps, 2)
	assert.Greater(t, second.TotalDuration, first.TotalDuration)
}

func TestTrace_JSONFieldNames(t *testing.T) {
	tr := newTestTracker(time.Millisecond)
	tr.AddStep("received", "question received", StatusCompleted)
	tr.AddAPICall("vectors", "QueryVectors", nil)

	data, err := json.Marshal(tr.Summary())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "steps")
	assert.Contains(t, decoded, "api_calls")
	assert.Contains(t, decoded, "total_duration")

	steps := decoded["steps"].([]any)
	step := steps[0].(map[string]any)
	assert.Contains(t, step, "duration_from_start")
	assert.Contains(t, step, "status")
}
