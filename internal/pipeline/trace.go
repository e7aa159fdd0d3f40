package pipeline

import (
	"encoding/json"
	"time"
)

// Trace accumulates the decision trace of one batch run: every branch
// taken, tool call made, and retrieval outcome, persisted with the jobs
// for later inspection.
type Trace struct {
	events []map[string]any
	now    func() time.Time
}

// NewTrace creates a Trace stamping events with the given clock.
func NewTrace(now func() time.Time) *Trace {
	if now == nil {
		now = time.Now
	}
	return &Trace{now: now}
}

// Add records an event from the given source, merging fields into it.
func (t *Trace) Add(source string, fields map[string]any) {
	event := map[string]any{
		"at":     t.now().UTC().Format(time.RFC3339),
		"source": source,
	}
	for k, v := range fields {
		event[k] = v
	}
	t.events = append(t.events, event)
}

// Step records a decision_trace event with a step name.
func (t *Trace) Step(step string, fields map[string]any) {
	merged := map[string]any{"step": step}
	for k, v := range fields {
		merged[k] = v
	}
	t.Add("decision_trace", merged)
}

// Len returns the number of recorded events.
func (t *Trace) Len() int { return len(t.events) }

// JSON serializes the trace for persistence. Returns an empty array when
// nothing was recorded.
func (t *Trace) JSON() []byte {
	if len(t.events) == 0 {
		return []byte("[]")
	}
	out, err := json.Marshal(t.events)
	if err != nil {
		return []byte("[]")
	}
	return out
}
