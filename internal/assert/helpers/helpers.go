package helpers

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsforge/taskkit/pkg/api"
)

// Recorder wraps a handler and captures every input it receives.
// Attempt-driven tests use it to assert retry counts and vars snapshots
type Recorder struct {
	inner  api.Handler
	inputs []*api.StepInput
	mu     sync.Mutex
}

// Record wraps a handler with input capture
func Record(inner api.Handler) *Recorder {
	return &Recorder{inner: inner}
}

// Handler returns the recording handler
func (r *Recorder) Handler() api.Handler {
	return func(
		ctx context.Context, in *api.StepInput, deps *api.StepDeps,
	) (*api.StepResult, error) {
		r.mu.Lock()
		r.inputs = append(r.inputs, in)
		r.mu.Unlock()
		return r.inner(ctx, in, deps)
	}
}

// Calls returns how many times the handler ran
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs)
}

// Inputs returns the captured inputs in invocation order
func (r *Recorder) Inputs() []*api.StepInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*api.StepInput, len(r.inputs))
	copy(result, r.inputs)
	return result
}

// ScriptedHandler returns each prepared result in turn, repeating the
// last one once the script runs out
func ScriptedHandler(results ...*api.StepResult) api.Handler {
	var mu sync.Mutex
	call := 0
	return func(
		context.Context, *api.StepInput, *api.StepDeps,
	) (*api.StepResult, error) {
		mu.Lock()
		n := call
		call++
		mu.Unlock()
		if n >= len(results) {
			n = len(results) - 1
		}
		return results[n], nil
	}
}

// OKHandler succeeds on every attempt
func OKHandler() api.Handler {
	return func(
		context.Context, *api.StepInput, *api.StepDeps,
	) (*api.StepResult, error) {
		return api.NewResult(), nil
	}
}

// FailingHandler returns a failed result on every attempt
func FailingHandler(system, text string) api.Handler {
	return func(
		context.Context, *api.StepInput, *api.StepDeps,
	) (*api.StepResult, error) {
		return api.ErrorResult(system, text), nil
	}
}

// ErroringHandler returns the given error on every attempt
func ErroringHandler(err error) api.Handler {
	return func(
		context.Context, *api.StepInput, *api.StepDeps,
	) (*api.StepResult, error) {
		return nil, err
	}
}

// PanickyHandler panics with the given value on every attempt
func PanickyHandler(v any) api.Handler {
	return func(
		context.Context, *api.StepInput, *api.StepDeps,
	) (*api.StepResult, error) {
		panic(v)
	}
}

// OKResult creates a successful result carrying one info message
func OKResult(text string) *api.StepResult {
	res := api.NewResult()
	res.AddInfo("test", text)
	return res
}

// FailedResult creates a result carrying one error message
func FailedResult(text string) *api.StepResult {
	return api.ErrorResult("test", text)
}

// WriteJSON marshals v to a file
func WriteJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// ReadJSON unmarshals a file into v
func ReadJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}
