package assert

import (
	"testing"

	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/runner"
)

func TestNew(t *testing.T) {
	wrapper := New(t)

	if wrapper.T != t {
		t.Error("Wrapper.T should be set to the testing.T instance")
	}
	if wrapper.Assertions == nil {
		t.Error("Wrapper.Assertions should be initialized")
	}
	if wrapper.Require == nil {
		t.Error("Wrapper.Require should be initialized")
	}
}

func TestResultOK(t *testing.T) {
	tests := []struct {
		name string
		res  *api.StepResult
	}{
		{
			name: "empty result",
			res:  api.NewResult(),
		},
		{
			name: "result with info messages",
			res: func() *api.StepResult {
				res := api.NewResult()
				res.AddInfo("test", "all good")
				res.AddDebug("test", "details")
				return res
			}(),
		},
		{
			name: "result with warnings only",
			res: func() *api.StepResult {
				res := api.NewResult()
				res.AddWarning("test", "heads up")
				return res
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(t)
			w.ResultOK(tt.res)
		})
	}
}

func TestResultFailed(t *testing.T) {
	tests := []struct {
		name     string
		res      *api.StepResult
		contains string
	}{
		{
			name:     "single error",
			res:      api.ErrorResult("test", "it broke"),
			contains: "broke",
		},
		{
			name: "error among other messages",
			res: func() *api.StepResult {
				res := api.NewResult()
				res.AddInfo("test", "started")
				res.AddError("test", "midway failure")
				return res
			}(),
			contains: "midway",
		},
		{
			name:     "no substring check",
			res:      api.ErrorResult("test", "anything"),
			contains: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(t)
			w.ResultFailed(tt.res, tt.contains)
		})
	}
}

func TestHasMessage(t *testing.T) {
	res := api.NewResult()
	res.AddDebug("sys", "trace detail")
	res.AddInfo("sys", "progress note")
	res.AddWarning("sys", "watch out")
	res.AddError("sys", "hard failure")

	tests := []struct {
		name     string
		severity api.Severity
		contains string
	}{
		{"debug", api.SeverityDebug, "trace"},
		{"info", api.SeverityInfo, "progress"},
		{"warning", api.SeverityWarning, "watch"},
		{"error", api.SeverityError, "hard"},
		{"any_of_severity", api.SeverityInfo, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(t)
			w.HasMessage(res, tt.severity, tt.contains)
		})
	}
}

func TestVarEquals(t *testing.T) {
	tests := []struct {
		name     string
		vars     api.Vars
		key      string
		expected any
	}{
		{
			name:     "string value",
			vars:     api.Vars{"name": "test"},
			key:      "name",
			expected: "test",
		},
		{
			name:     "integer value",
			vars:     api.Vars{"count": 42},
			key:      "count",
			expected: 42,
		},
		{
			name:     "boolean value",
			vars:     api.Vars{"active": true},
			key:      "active",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(t)
			w.VarEquals(tt.vars, tt.key, tt.expected)
		})
	}
}

func TestRunOutcome(t *testing.T) {
	tests := []struct {
		name    string
		outcome api.Outcome
	}{
		{"succeeded", api.OutcomeSucceeded},
		{"failed", api.OutcomeFailed},
		{"error", api.OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(t)
			w.RunOutcome(&runner.Execution{Result: tt.outcome}, tt.outcome)
		})
	}
}

func TestStepStatuses(t *testing.T) {
	ex := &runner.Execution{
		Result: api.OutcomeFailed,
		StepResults: map[string]*runner.StepStatus{
			"good":    {Success: true},
			"bad":     {Success: false},
			"ignored": {Skipped: true},
		},
	}

	w := New(t)
	w.StepSucceeded(ex, "good")
	w.StepFailed(ex, "bad")
	w.StepSkipped(ex, "ignored")
}
