package runner

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/opsforge/taskkit"
	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/log"
	"github.com/opsforge/taskkit/pkg/registry"
	"github.com/opsforge/taskkit/pkg/state"
)

// StepRunner executes exactly one step from externally supplied
// configuration and file-based state. Retries across attempts are
// driven by the orchestrator re-invoking it, not by an internal loop.
// Zero-valued optional fields pick defaults
type StepRunner struct {
	Env      *Env
	Registry *registry.Registry

	Log         *slog.Logger
	LogLevel    slog.Level
	Store       state.Store
	Environ     map[string]string
	HTTPTimeout time.Duration
}

// stepSystem tags messages the runner synthesizes when a single-step
// invocation faults
const stepSystem = "taskkit"

// RunStep executes one step with default collaborators and returns the
// process exit code: 0 when the result carries no error messages, 1
// otherwise
func RunStep(ctx context.Context, env *Env, reg *registry.Registry) int {
	r := &StepRunner{Env: env, Registry: reg}
	return r.Run(ctx)
}

// Run performs the full single-step contract: resolve the handler,
// read input files, invoke, write output files, and report by exit
// code
func (r *StepRunner) Run(ctx context.Context) int {
	env := r.Env
	logger, closeLog := r.logger()
	defer closeLog()

	logger.Info("Starting step",
		log.Step(env.StepName),
		log.TaskID(env.TaskID),
		log.Attempt(env.Retries),
		slog.String("handler", env.HandlerName()))

	handler, err := r.Registry.Get(env.HandlerName())
	if err != nil {
		logger.Error("Handler not found", log.Error(err))
		return r.fail(logger, err.Error())
	}

	params, err := ReadParams(env.ParamsFile)
	if err != nil {
		logger.Error("Failed to read params", log.Error(err))
		return r.fail(logger, err.Error())
	}

	store := r.store()
	vars, err := store.Load(ctx)
	if err != nil {
		logger.Error("Failed to load vars", log.Error(err))
		return r.fail(logger, err.Error())
	}

	logger.Info("Executing handler",
		slog.String("handler", env.HandlerName()))
	res := invokeStep(
		ctx, logger, handler, r.stepInput(params, vars),
		r.stepDeps(logger), stepSystem,
	)

	return r.processResult(ctx, logger, store, vars, res)
}

func (r *StepRunner) processResult(
	ctx context.Context, logger *slog.Logger, store state.Store,
	vars api.Vars, res *api.StepResult,
) int {
	env := r.Env

	for _, m := range res.Messages {
		logger.Log(ctx, m.Severity.Level(), m.Text,
			log.Step(env.StepName), slog.String("system", m.System))
	}

	if err := WriteStepOutput(env.OutputFile, res); err != nil {
		logger.Error("Failed to write step output", log.Error(err))
		return r.fail(logger, err.Error())
	}
	logger.Info("Wrote step output", slog.String("path", env.OutputFile))

	if len(res.FlowControl) > 0 {
		// Flow control is advisory to the orchestrator; a failed write
		// doesn't change the step's outcome
		err := WriteFlowControl(env.FlowControlFile, res.FlowControl)
		if err != nil {
			logger.Warn("Failed to write flow control", log.Error(err))
		} else {
			logger.Info("Wrote flow control",
				slog.String("path", env.FlowControlFile))
		}
	}

	if len(res.ContextUpdates) > 0 {
		merged := state.Merge(vars, res.ContextUpdates)
		if err := store.Save(ctx, merged); err != nil {
			logger.Error("Failed to save vars", log.Error(err))
			return r.fail(logger, err.Error())
		}
		logger.Info("Updated vars", slog.Any(
			"keys", slices.Sorted(maps.Keys(res.ContextUpdates)),
		))
	}

	if res.HasErrors() {
		logger.Error("Step failed", log.Step(env.StepName))
		return 1
	}
	logger.Info("Step completed", log.Step(env.StepName))
	return 0
}

// fail writes the minimal error-shaped output and returns the failure
// exit code. The write itself is best-effort
func (r *StepRunner) fail(logger *slog.Logger, text string) int {
	err := WriteStepOutput(r.Env.OutputFile, api.ErrorResult(stepSystem, text))
	if err != nil {
		logger.Error("Failed to write error output", log.Error(err))
	}
	return 1
}

func (r *StepRunner) stepInput(
	params map[string]any, vars api.Vars,
) *api.StepInput {
	env := r.Env
	merged := make(map[string]any, len(params)+len(env.StepParams))
	maps.Copy(merged, params)
	maps.Copy(merged, env.StepParams)

	return &api.StepInput{
		StepName:       env.StepName,
		TaskID:         env.TaskID,
		WorkflowName:   env.WorkflowName,
		Params:         merged,
		Vars:           vars.Clone(),
		Attempt:        env.Retries,
		TotalRetries:   env.TotalRetries,
		WorkflowResult: env.WorkflowResult,
	}
}

func (r *StepRunner) stepDeps(logger *slog.Logger) *api.StepDeps {
	environ := r.Environ
	if environ == nil {
		environ = Environ()
	}
	timeout := r.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &api.StepDeps{
		HTTP:    &http.Client{Timeout: timeout},
		Log:     logger.With(log.Step(r.Env.StepName)),
		Env:     environ,
		WorkDir: r.Env.WorkingDir,
	}
}

func (r *StepRunner) store() state.Store {
	if r.Store != nil {
		return r.Store
	}
	return state.NewFileStore(r.Env.VarsFilePath())
}

// logger mirrors step logs to both stderr and a per-step file under
// the working directory. When the file can't be opened, logging falls
// back to stderr alone
func (r *StepRunner) logger() (*slog.Logger, func()) {
	if r.Log != nil {
		return r.Log, func() {}
	}

	env := r.Env
	logsDir := filepath.Join(env.WorkingDir, LogsDirName)
	if err := os.MkdirAll(logsDir, 0o755); err == nil {
		path := filepath.Join(logsDir, env.StepName+".log")
		f, err := os.OpenFile(
			path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644,
		)
		if err == nil {
			logger := log.NewWriterLogger(
				io.MultiWriter(os.Stderr, f),
				taskkit.Name, env.Context, taskkit.Version, r.LogLevel,
			)
			return logger, func() { _ = f.Close() }
		}
	}

	logger := log.NewWriterLogger(
		os.Stderr, taskkit.Name, env.Context, taskkit.Version, r.LogLevel,
	)
	logger.Warn("Step log file unavailable, logging to stderr only")
	return logger, func() {}
}
