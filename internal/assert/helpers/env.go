package helpers

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/runner"
)

// TestStepEnv is a complete single-step environment rooted in a temp
// directory: the required TASKKIT_* variables plus the files they
// point at
type TestStepEnv struct {
	Workdir    string
	ParamsFile string
	OutputFile string
	Environ    map[string]string
}

// NewStepEnv creates a step environment for the named step. The params
// file starts empty and the flow-control file is scoped to the temp
// directory so tests don't share state
func NewStepEnv(t *testing.T, stepName string) *TestStepEnv {
	t.Helper()
	dir := t.TempDir()

	e := &TestStepEnv{
		Workdir:    dir,
		ParamsFile: filepath.Join(dir, "params.json"),
		OutputFile: filepath.Join(dir, "output.json"),
	}
	WriteJSON(t, e.ParamsFile, map[string]any{})

	e.Environ = map[string]string{
		runner.EnvStepName:        stepName,
		runner.EnvTaskID:          "task-" + uuid.New().String()[:8],
		runner.EnvWorkflowName:    "test-workflow",
		runner.EnvWorkingDir:      dir,
		runner.EnvParamsFile:      e.ParamsFile,
		runner.EnvOutputFile:      e.OutputFile,
		runner.EnvFlowControlFile: filepath.Join(dir, "flow_control.json"),
	}
	return e
}

// Set overrides one environment variable and returns the environment
// for chaining
func (e *TestStepEnv) Set(key, value string) *TestStepEnv {
	e.Environ[key] = value
	return e
}

// Unset removes one environment variable and returns the environment
// for chaining
func (e *TestStepEnv) Unset(key string) *TestStepEnv {
	delete(e.Environ, key)
	return e
}

// Load parses the environment the way a step container would
func (e *TestStepEnv) Load(t *testing.T) *runner.Env {
	t.Helper()
	env, err := runner.LoadEnv(e.Environ)
	require.NoError(t, err)
	return env
}

// ReadOutput reads the step output file written by the runner
func (e *TestStepEnv) ReadOutput(t *testing.T) *api.StepResult {
	t.Helper()
	var res api.StepResult
	ReadJSON(t, e.OutputFile, &res)
	return &res
}

// NewTestRedis starts an in-memory redis server and returns it with a
// connected client. Both are closed when the test finishes
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return server, client
}
