package api

import "time"

type (
	// RunStartedEvent is emitted when a workflow run begins
	RunStartedEvent struct {
		TaskID   string `json:"task_id"`
		Workflow string `json:"workflow"`
		Workdir  string `json:"workdir"`
	}

	// RunCompletedEvent is emitted when a workflow run finishes,
	// whatever its outcome
	RunCompletedEvent struct {
		TaskID   string  `json:"task_id"`
		Workflow string  `json:"workflow"`
		Outcome  Outcome `json:"outcome"`
		Duration float64 `json:"duration_seconds"`
		Error    string  `json:"error,omitempty"`
	}

	// StepStartedEvent is emitted when a step attempt begins
	StepStartedEvent struct {
		TaskID   string `json:"task_id"`
		Workflow string `json:"workflow"`
		Step     string `json:"step"`
		Attempt  int    `json:"attempt"`
	}

	// StepCompletedEvent is emitted when a step succeeds
	StepCompletedEvent struct {
		TaskID   string `json:"task_id"`
		Workflow string `json:"workflow"`
		Step     string `json:"step"`
		Attempts int    `json:"attempts"`
	}

	// StepFailedEvent is emitted when a step fails permanently, either
	// because its handler is unregistered or its retries are exhausted
	StepFailedEvent struct {
		TaskID   string `json:"task_id"`
		Workflow string `json:"workflow"`
		Step     string `json:"step"`
		Error    string `json:"error,omitempty"`
	}

	// StepSkippedEvent is emitted when flow control skips a step
	StepSkippedEvent struct {
		TaskID   string `json:"task_id"`
		Workflow string `json:"workflow"`
		Step     string `json:"step"`
	}

	// RunEvent is the envelope carried on the event queue
	RunEvent struct {
		Type EventType `json:"type"`
		Time time.Time `json:"time"`
		Data any       `json:"data"`
	}

	EventType string
)

const (
	EventTypeRunStarted    EventType = "run_started"
	EventTypeRunCompleted  EventType = "run_completed"
	EventTypeStepStarted   EventType = "step_started"
	EventTypeStepCompleted EventType = "step_completed"
	EventTypeStepFailed    EventType = "step_failed"
	EventTypeStepSkipped   EventType = "step_skipped"
)

// NewRunEvent wraps a payload in an envelope stamped with the current
// time
func NewRunEvent(typ EventType, data any) RunEvent {
	return RunEvent{
		Type: typ,
		Time: time.Now().UTC(),
		Data: data,
	}
}
