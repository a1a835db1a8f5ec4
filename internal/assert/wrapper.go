package assert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/runner"
)

// Wrapper wraps testify assertions with taskkit-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *require.Assertions
}

// New creates a new test assertion wrapper with both assert and require
// from testify plus taskkit-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    require.New(t),
	}
}

// ResultOK asserts that a step result exists and carries no
// error-severity messages
func (w *Wrapper) ResultOK(res *api.StepResult) {
	w.Helper()
	w.Require.NotNil(res)
	w.False(res.HasErrors(),
		"result should not carry errors: %v", res.Messages)
}

// ResultFailed asserts that a step result carries at least one
// error-severity message, optionally matching a substring
func (w *Wrapper) ResultFailed(res *api.StepResult, contains string) {
	w.Helper()
	w.Require.NotNil(res)
	w.True(res.HasErrors(), "result should carry errors")
	if contains != "" {
		w.HasMessage(res, api.SeverityError, contains)
	}
}

// HasMessage asserts that a result carries a message of the given
// severity whose text contains a substring
func (w *Wrapper) HasMessage(
	res *api.StepResult, severity api.Severity, contains string,
) {
	w.Helper()
	for _, m := range res.Messages {
		if m.Severity == severity && strings.Contains(m.Text, contains) {
			return
		}
	}
	w.Fail("missing expected message",
		"severity %s containing %q in %v", severity, contains, res.Messages)
}

// VarEquals asserts that a vars key holds the expected value
func (w *Wrapper) VarEquals(vars api.Vars, key string, expected any) {
	w.Helper()
	val, ok := vars[key]
	w.True(ok, "vars should have key: %s", key)
	w.Equal(expected, val)
}

// RunOutcome asserts the aggregate outcome of a workflow execution
func (w *Wrapper) RunOutcome(ex *runner.Execution, expected api.Outcome) {
	w.Helper()
	w.Require.NotNil(ex)
	w.Equal(expected, ex.Result)
}

// StepSucceeded asserts that a run executed the named step successfully
func (w *Wrapper) StepSucceeded(ex *runner.Execution, name string) {
	w.Helper()
	st := w.stepStatus(ex, name)
	w.True(st.Success, "step %s should have succeeded", name)
	w.False(st.Skipped, "step %s should not have been skipped", name)
}

// StepFailed asserts that a run executed the named step and it failed
func (w *Wrapper) StepFailed(ex *runner.Execution, name string) {
	w.Helper()
	st := w.stepStatus(ex, name)
	w.False(st.Success, "step %s should have failed", name)
	w.False(st.Skipped, "step %s should not have been skipped", name)
}

// StepSkipped asserts that a run recorded the named step as skipped
func (w *Wrapper) StepSkipped(ex *runner.Execution, name string) {
	w.Helper()
	st := w.stepStatus(ex, name)
	w.True(st.Skipped, "step %s should have been skipped", name)
}

func (w *Wrapper) stepStatus(
	ex *runner.Execution, name string,
) *runner.StepStatus {
	w.Helper()
	w.Require.NotNil(ex)
	st, ok := ex.StepResults[name]
	w.Require.True(ok, "run should have recorded step: %s", name)
	return st
}
