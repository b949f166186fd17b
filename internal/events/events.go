package events

import "time"

// Type identifies the kind of pipeline event.
type Type string

const (
	Start    Type = "start"
	Complete Type = "complete"
	Error    Type = "error"

	// Test runner
	StepStart    Type = "step_start"
	StepProgress Type = "step_progress"
	StepComplete Type = "step_complete"
	StepSkipped  Type = "step_skipped"

	// Adaptive engine
	Retry           Type = "retry"
	VariantProgress Type = "variant_progress"

	// Synthesis engine
	ConfigStart       Type = "config_start"
	ConfigComplete    Type = "config_complete"
	SynthesisStart    Type = "synthesis_start"
	SynthesisComplete Type = "synthesis_complete"

	// Verdict engine
	Phase Type = "phase"
)

// Terminal reports whether t ends a stream.
func (t Type) Terminal() bool {
	return t == Complete || t == Error
}

// Event is a single timestamped entry pushed to a run's listener.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Type      Type           `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// New creates an event with the current timestamp.
func New(t Type, data map[string]any) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Data:      data,
	}
}

// Listener receives events. Implementations must not block for long; the
// engines call it inline.
type Listener func(Event)

// Tee returns a listener that forwards to every non-nil listener in order.
func Tee(ls ...Listener) Listener {
	var out []Listener
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return func(e Event) {
		for _, l := range out {
			l(e)
		}
	}
}

// WithSession stamps every event with sessionID before forwarding it.
func WithSession(sessionID string, l Listener) Listener {
	if l == nil {
		return func(Event) {}
	}
	return func(e Event) {
		if e.SessionID == "" {
			e.SessionID = sessionID
		}
		l(e)
	}
}

// Discard drops every event.
func Discard(Event) {}
