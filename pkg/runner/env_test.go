package runner_test

import (
	"path/filepath"
	"testing"

	"github.com/opsforge/taskkit/internal/assert"
	"github.com/opsforge/taskkit/internal/assert/helpers"
	"github.com/opsforge/taskkit/pkg/runner"
	"github.com/opsforge/taskkit/pkg/workflow"
)

func TestLoadEnv(t *testing.T) {
	as := assert.New(t)

	e := helpers.NewStepEnv(t, "check-dns").
		Set(runner.EnvTaskType, "workflow").
		Set(runner.EnvTaskVariant, "smoke-test").
		Set(runner.EnvPlatform, "prod").
		Set(runner.EnvContext, "cluster").
		Set(runner.EnvVarsFile, "/srv/vars.yaml").
		Set(runner.EnvStepTemplate, "finalize").
		Set(runner.EnvStepParams, `{"region": "us-east"}`).
		Set(runner.EnvHandlerPrefix, "smoke-test").
		Set(runner.EnvRetries, "1").
		Set(runner.EnvTotalRetries, "5").
		Set(runner.EnvWorkflowResult, "Failed")
	env := e.Load(t)

	as.Equal("check-dns", env.StepName)
	as.Equal(e.Environ[runner.EnvTaskID], env.TaskID)
	as.Equal("workflow", env.TaskType)
	as.Equal("smoke-test", env.TaskVariant)
	as.Equal("test-workflow", env.WorkflowName)
	as.Equal("prod", env.Platform)
	as.Equal("cluster", env.Context)
	as.Equal(e.Workdir, env.WorkingDir)
	as.Equal(e.ParamsFile, env.ParamsFile)
	as.Equal(e.OutputFile, env.OutputFile)
	as.Equal("/srv/vars.yaml", env.VarsFile)
	as.Equal(workflow.TemplateFinalize, env.StepTemplate)
	as.Equal(map[string]any{"region": "us-east"}, env.StepParams)
	as.Equal("smoke-test", env.HandlerPrefix)
	as.Equal(1, env.Retries)
	as.Equal(5, env.TotalRetries)
	as.Equal("Failed", env.WorkflowResult)
}

func TestLoadEnvDefaults(t *testing.T) {
	as := assert.New(t)

	e := helpers.NewStepEnv(t, "check-dns").
		Unset(runner.EnvFlowControlFile)
	env := e.Load(t)

	as.Equal(runner.DefaultPlatform, env.Platform)
	as.Equal(workflow.DefaultContext, env.Context)
	as.Equal(workflow.TemplateAction, env.StepTemplate)
	as.Equal(runner.DefaultFlowControlFile, env.FlowControlFile)
	as.Equal("", env.VarsFile)
	as.Equal("", env.HandlerPrefix)
	as.Equal(map[string]any{}, env.StepParams)
	as.Equal(0, env.Retries)
	as.Equal(runner.DefaultTotalRetries, env.TotalRetries)
}

func TestLoadEnvMissing(t *testing.T) {
	t.Run("reports_each_missing_variable", func(t *testing.T) {
		for _, key := range []string{
			runner.EnvStepName,
			runner.EnvTaskID,
			runner.EnvWorkflowName,
			runner.EnvWorkingDir,
			runner.EnvParamsFile,
			runner.EnvOutputFile,
		} {
			t.Run(key, func(t *testing.T) {
				as := assert.New(t)
				e := helpers.NewStepEnv(t, "check-dns").Unset(key)
				env, err := runner.LoadEnv(e.Environ)
				as.Nil(env)
				as.ErrorIs(err, runner.ErrMissingEnv)
				as.ErrorContains(err, key)
			})
		}
	})

	t.Run("lists_every_missing_variable", func(t *testing.T) {
		as := assert.New(t)
		_, err := runner.LoadEnv(map[string]string{})
		as.EqualError(err,
			"missing required environment variables: "+
				"TASKKIT_STEP_NAME, TASKKIT_TASK_ID, TASKKIT_WORKFLOW_NAME, "+
				"TASKKIT_WORKING_DIR, TASKKIT_PARAMS_FILE, TASKKIT_OUTPUT_FILE",
		)
	})
}

func TestLoadEnvRetries(t *testing.T) {
	t.Run("parses_values", func(t *testing.T) {
		as := assert.New(t)
		env := helpers.NewStepEnv(t, "check-dns").
			Set(runner.EnvRetries, "2").
			Set(runner.EnvTotalRetries, "7").
			Load(t)
		as.Equal(2, env.Retries)
		as.Equal(7, env.TotalRetries)
	})

	t.Run("tolerates_whitespace", func(t *testing.T) {
		as := assert.New(t)
		env := helpers.NewStepEnv(t, "check-dns").
			Set(runner.EnvRetries, " 4 ").
			Load(t)
		as.Equal(4, env.Retries)
	})

	t.Run("unparsable_values_yield_zero", func(t *testing.T) {
		as := assert.New(t)
		env := helpers.NewStepEnv(t, "check-dns").
			Set(runner.EnvRetries, "lots").
			Set(runner.EnvTotalRetries, "many").
			Load(t)
		as.Equal(0, env.Retries)
		as.Equal(0, env.TotalRetries)
	})
}

func TestLoadEnvStepParams(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "object",
			raw:  `{"region": "us-east", "count": 2}`,
			want: map[string]any{"region": "us-east", "count": float64(2)},
		},
		{
			name: "array_ignored",
			raw:  `[1, 2]`,
			want: map[string]any{},
		},
		{
			name: "malformed_ignored",
			raw:  `{"region":`,
			want: map[string]any{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			as := assert.New(t)
			env := helpers.NewStepEnv(t, "check-dns").
				Set(runner.EnvStepParams, tc.raw).
				Load(t)
			as.Equal(tc.want, env.StepParams)
		})
	}
}

func TestEnvHandlerName(t *testing.T) {
	as := assert.New(t)

	env := helpers.NewStepEnv(t, "check-dns").Load(t)
	as.Equal("check-dns", env.HandlerName())

	env = helpers.NewStepEnv(t, "check-dns").
		Set(runner.EnvHandlerPrefix, "smoke-test").
		Load(t)
	as.Equal("smoke-test-check-dns", env.HandlerName())
}

func TestEnvVarsFilePath(t *testing.T) {
	as := assert.New(t)

	e := helpers.NewStepEnv(t, "check-dns")
	as.Equal(
		filepath.Join(e.Workdir, runner.VarsFileName),
		e.Load(t).VarsFilePath(),
	)

	env := e.Set(runner.EnvVarsFile, "/srv/custom.yaml").Load(t)
	as.Equal("/srv/custom.yaml", env.VarsFilePath())
}

func TestEnvPredicates(t *testing.T) {
	as := assert.New(t)

	env := helpers.NewStepEnv(t, "check-dns").Load(t)
	as.True(env.IsFirstAttempt())
	as.False(env.IsFinalize())

	env = helpers.NewStepEnv(t, "report").
		Set(runner.EnvRetries, "2").
		Set(runner.EnvStepTemplate, "finalize").
		Load(t)
	as.False(env.IsFirstAttempt())
	as.True(env.IsFinalize())
}

func TestEnviron(t *testing.T) {
	as := assert.New(t)
	t.Setenv("TASKKIT_ENVIRON_PROBE", "present")

	environ := runner.Environ()
	as.Equal("present", environ["TASKKIT_ENVIRON_PROBE"])
}
