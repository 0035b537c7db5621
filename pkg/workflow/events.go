package workflow

import "time"

// EventType labels a lifecycle event.
type EventType string

const (
	EventStarted       EventType = "started"
	EventAttemptFailed EventType = "attempt_failed"
	EventSucceeded     EventType = "succeeded"
	EventFailed        EventType = "failed"
	EventSkipped       EventType = "skipped"
	EventRunCompleted  EventType = "run_completed"
)

// Event is one lifecycle notification. NodeID is empty for run-level
// events.
type Event struct {
	RunID   string    `json:"run_id"`
	NodeID  string    `json:"node_id,omitempty"`
	Type    EventType `json:"type"`
	Attempt int       `json:"attempt,omitempty"`
	Err     string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}
