package api

import (
	"context"
	"log/slog"
	"net/http"
)

type (
	// Vars is the shared key/value state accumulated across the steps of
	// a run. Each step sees a snapshot and contributes updates through
	// StepResult.ContextUpdates; later updates win for the same key
	Vars map[string]any

	// StepInput is the data a handler receives for one attempt. It is
	// constructed fresh for every attempt, with Vars copied so a handler
	// cannot mutate the runner's state in place
	StepInput struct {
		StepName       string         `json:"step_name"`
		TaskID         string         `json:"task_id"`
		WorkflowName   string         `json:"workflow_name"`
		Params         map[string]any `json:"params,omitempty"`
		Vars           Vars           `json:"vars,omitempty"`
		Attempt        int            `json:"attempt"`
		TotalRetries   int            `json:"total_retries"`
		WorkflowResult string         `json:"workflow_result,omitempty"`
	}

	// StepResult is what a handler returns. A result carrying at least
	// one error-severity message is a failed attempt
	StepResult struct {
		Messages       []*Message     `json:"messages"`
		Output         map[string]any `json:"output,omitempty"`
		ContextUpdates map[string]any `json:"context_updates,omitempty"`
		FlowControl    map[string]any `json:"flow_control,omitempty"`
	}

	// StepDeps bundles the collaborators a handler may use. The runner
	// supplies them; handlers never construct their own
	StepDeps struct {
		HTTP    *http.Client
		Log     *slog.Logger
		Env     map[string]string
		WorkDir string
	}

	// Handler implements a step's behavior. Returning an error, or
	// panicking, is downgraded by the runner to a result carrying a
	// single error message; the runner never propagates either
	Handler func(
		context.Context, *StepInput, *StepDeps,
	) (*StepResult, error)
)

// Flow-control keys the runners act on. The flow-control state isn't
// namespaced; any step may set any key, but these two carry
// engine-defined meaning
const (
	// FlowSkipRemaining marks every later non-finalize step to be
	// skipped
	FlowSkipRemaining = "skip_remaining"

	// FlowMarkFailed forces the run's final outcome to Failed even when
	// every executed step succeeded
	FlowMarkFailed = "mark_failed"
)

// NewResult creates an empty, successful step result
func NewResult() *StepResult {
	return &StepResult{
		Messages: []*Message{},
	}
}

// ErrorResult creates a result carrying a single error message. It is
// used for early-failure paths where no handler output exists but the
// output contract must still be satisfied
func ErrorResult(system, text string) *StepResult {
	res := NewResult()
	res.AddError(system, text)
	return res
}

// AddMessage appends a prepared message to the result
func (r *StepResult) AddMessage(msg *Message) {
	r.Messages = append(r.Messages, msg)
}

// AddDebug appends a debug-severity message
func (r *StepResult) AddDebug(system, text string) {
	r.AddMessage(NewMessage(system, SeverityDebug, text))
}

// AddInfo appends an info-severity message
func (r *StepResult) AddInfo(system, text string) {
	r.AddMessage(NewMessage(system, SeverityInfo, text))
}

// AddWarning appends a warning-severity message
func (r *StepResult) AddWarning(system, text string) {
	r.AddMessage(NewMessage(system, SeverityWarning, text))
}

// AddError appends an error-severity message, marking the attempt as
// failed
func (r *StepResult) AddError(system, text string) {
	r.AddMessage(NewMessage(system, SeverityError, text))
}

// SetVar records a context update to be merged into the run's vars
func (r *StepResult) SetVar(key string, value any) {
	if r.ContextUpdates == nil {
		r.ContextUpdates = map[string]any{}
	}
	r.ContextUpdates[key] = value
}

// SetFlowControl records a flow-control signal for downstream steps
func (r *StepResult) SetFlowControl(key string, value any) {
	if r.FlowControl == nil {
		r.FlowControl = map[string]any{}
	}
	r.FlowControl[key] = value
}

// HasErrors reports whether any error-severity message is present
func (r *StepResult) HasErrors() bool {
	return r.ErrorCount() > 0
}

// ErrorCount returns the number of error-severity messages
func (r *StepResult) ErrorCount() int {
	return r.countSeverity(SeverityError)
}

// WarningCount returns the number of warning-severity messages
func (r *StepResult) WarningCount() int {
	return r.countSeverity(SeverityWarning)
}

func (r *StepResult) countSeverity(s Severity) int {
	count := 0
	for _, m := range r.Messages {
		if m.Severity == s {
			count++
		}
	}
	return count
}

// Clone returns a copy of the vars map. Nested values are shared;
// handlers treat them as read-only
func (v Vars) Clone() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
