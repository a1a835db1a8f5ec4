package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/log"
	"github.com/opsforge/taskkit/pkg/registry"
	"github.com/opsforge/taskkit/pkg/state"
	"github.com/opsforge/taskkit/pkg/util"
	"github.com/opsforge/taskkit/pkg/workflow"
)

type (
	// Local executes an entire workflow graph in one process, in serial
	// topological order. Faults in the run loop itself are captured in
	// the Execution rather than returned, so a run always produces an
	// aggregate record
	Local struct {
		def        *workflow.Definition
		reg        *registry.Registry
		log        *slog.Logger
		client     *http.Client
		store      state.Store
		events     EventSink
		validator  ParamsValidator
		environ    map[string]string
		params     map[string]any
		paramsPath string
		workdir    string
		taskID     string

		httpTimeout time.Duration
		retryDelay  time.Duration

		vars    api.Vars
		flow    map[string]any
		failed  util.Set[string]
		skipped util.Set[string]
	}

	// EventSink receives run progress events. A nil sink disables
	// event emission
	EventSink interface {
		Publish(api.RunEvent)
	}

	// ParamsValidator checks a step's merged params before its handler
	// runs. Diagnostics fail the step without invoking the handler
	ParamsValidator interface {
		Validate(handlerName string, params map[string]any) []string
	}

	// StepStatus records one step's outcome within a run
	StepStatus struct {
		Success bool `json:"success"`
		Skipped bool `json:"skipped"`
	}

	// Execution is the aggregate record of one workflow run, written to
	// the working directory when the run finishes
	Execution struct {
		Result          api.Outcome            `json:"result"`
		TaskID          string                 `json:"task_id"`
		WorkflowName    string                 `json:"workflow_name"`
		Workdir         string                 `json:"workdir"`
		StepResults     map[string]*StepStatus `json:"step_results"`
		DurationSeconds float64                `json:"duration_seconds"`
		Error           string                 `json:"error,omitempty"`
		StartTime       time.Time              `json:"start_time"`
		EndTime         time.Time              `json:"end_time"`
	}
)

// Working directory layout shared by the runners and the tooling that
// collects run artifacts
const (
	StepsDirName        = "steps"
	LogsDirName         = "logs"
	ExecutionResultFile = "execution-result.json"

	// localSystem tags messages the runner synthesizes when a handler
	// faults during a local run
	localSystem = "local-runner"
)

// ErrWorkflowInvalid is raised at construction when a definition's
// dependency references don't hold up
var ErrWorkflowInvalid = errors.New("workflow validation failed")

// NewLocal creates a runner for a normalized workflow definition. It
// fails fast on invalid dependency references and establishes the
// working directory layout
func NewLocal(
	def *workflow.Definition, reg *registry.Registry, opts ...Option,
) (*Local, error) {
	l := &Local{
		def:         def,
		reg:         reg,
		log:         slog.Default(),
		httpTimeout: DefaultHTTPTimeout,
		retryDelay:  DefaultRetryDelay,
		vars:        api.Vars{},
		flow:        map[string]any{},
		failed:      util.Set[string]{},
		skipped:     util.Set[string]{},
	}
	for _, opt := range opts {
		opt(l)
	}

	if errs := def.ValidateDependencies(); len(errs) > 0 {
		return nil, fmt.Errorf(
			"%w: %s", ErrWorkflowInvalid, strings.Join(errs, "; "),
		)
	}

	if l.taskID == "" {
		l.taskID = api.NewTaskID()
	}
	if l.workdir == "" {
		stamp := time.Now().UTC().Format("20060102-150405")
		l.workdir = filepath.Join(
			"workflow-runs", api.SanitizeName(def.Name)+"-"+stamp,
		)
	}
	if l.params == nil {
		params, err := l.loadParams()
		if err != nil {
			return nil, err
		}
		l.params = params
	}
	if l.environ == nil {
		l.environ = Environ()
	}
	if l.client == nil {
		l.client = &http.Client{Timeout: l.httpTimeout}
	}
	if err := l.setupWorkdir(); err != nil {
		return nil, err
	}
	if l.store == nil {
		l.store = state.NewFileStore(filepath.Join(l.workdir, VarsFileName))
	}
	return l, nil
}

// NewLocalFromFile loads a workflow definition from a YAML file and
// creates a runner for it
func NewLocalFromFile(
	path string, reg *registry.Registry, opts ...Option,
) (*Local, error) {
	def, err := workflow.Load(path)
	if err != nil {
		return nil, err
	}
	return NewLocal(def, reg, opts...)
}

// TaskID returns the run identifier
func (l *Local) TaskID() string {
	return l.taskID
}

// Workdir returns the working directory established for the run
func (l *Local) Workdir() string {
	return l.workdir
}

// Definition returns the workflow this runner executes
func (l *Local) Definition() *workflow.Definition {
	return l.def
}

// Run executes the workflow: all non-finalize steps in topological
// order, stopping at the first failure, then every finalize step
// regardless. The aggregate record is always produced; run-level
// faults surface as the Error outcome
func (l *Local) Run(ctx context.Context) *Execution {
	exec := &Execution{
		Result:       api.OutcomeSucceeded,
		TaskID:       l.taskID,
		WorkflowName: l.def.Name,
		Workdir:      l.workdir,
		StepResults:  map[string]*StepStatus{},
		StartTime:    time.Now().UTC(),
	}

	l.log.Info("Starting workflow",
		log.Workflow(l.def.Name),
		log.TaskID(l.taskID),
		slog.String("workdir", l.workdir))
	l.publish(api.EventTypeRunStarted, api.RunStartedEvent{
		TaskID:   l.taskID,
		Workflow: l.def.Name,
		Workdir:  l.workdir,
	})

	if err := l.runSteps(ctx, exec); err != nil {
		l.log.Error("Workflow execution error", log.Error(err))
		exec.Result = api.OutcomeError
		exec.Error = err.Error()
	}

	exec.EndTime = time.Now().UTC()
	exec.DurationSeconds = exec.EndTime.Sub(exec.StartTime).Seconds()

	if err := l.saveExecution(exec); err != nil {
		l.log.Warn("Failed to save execution result", log.Error(err))
	}

	l.log.Info("Workflow completed",
		log.Workflow(l.def.Name),
		log.Outcome(exec.Result),
		slog.Float64("duration_seconds", exec.DurationSeconds))
	l.publish(api.EventTypeRunCompleted, api.RunCompletedEvent{
		TaskID:   l.taskID,
		Workflow: l.def.Name,
		Outcome:  exec.Result,
		Duration: exec.DurationSeconds,
		Error:    exec.Error,
	})
	return exec
}

// Validate checks the workflow without executing it: dependency
// references, handler registration, and cycle freedom
func (l *Local) Validate() []string {
	return ValidateDefinition(l.def, l.reg)
}

// ValidateDefinition checks a definition against a registry without
// constructing a runner. It returns one diagnostic per problem
func ValidateDefinition(
	def *workflow.Definition, reg *registry.Registry,
) []string {
	errs := def.ValidateDependencies()
	for _, step := range def.Steps {
		handlerName := def.HandlerName(step)
		if !reg.Has(handlerName) {
			errs = append(errs, fmt.Sprintf(
				"Handler not found for step '%s': %s", step.Name, handlerName,
			))
		}
	}
	if _, err := def.ExecutionOrder(); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}

func (l *Local) runSteps(ctx context.Context, exec *Execution) error {
	// Reload any existing vars so a resumed run sees prior state, and
	// save straight back so the file exists from the start of the run
	vars, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	l.vars = vars
	if err := l.store.Save(ctx, l.vars); err != nil {
		return err
	}

	nonFinalize, err := l.def.NonFinalizeSteps()
	if err != nil {
		return err
	}
	finalize, err := l.def.FinalizeSteps()
	if err != nil {
		return err
	}

	for _, step := range nonFinalize {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := l.executeStep(ctx, step)
		if err != nil {
			return err
		}
		exec.StepResults[step.Name] = &StepStatus{
			Success: ok,
			Skipped: l.skipped.Contains(step.Name),
		}
		if !ok {
			l.log.Error("Stopping due to step failure", log.Step(step.Name))
			exec.Result = api.OutcomeFailed
			break
		}
	}

	// Finalize steps always run, even after a failure above. Only a
	// canceled run context keeps them from executing
	for _, step := range finalize {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := l.executeStep(ctx, step)
		if err != nil {
			return err
		}
		exec.StepResults[step.Name] = &StepStatus{
			Success: ok,
			Skipped: l.skipped.Contains(step.Name),
		}
	}

	exec.Result = l.outcomeSoFar()
	return nil
}

func (l *Local) executeStep(
	ctx context.Context, step *workflow.Step,
) (bool, error) {
	handlerName := l.def.HandlerName(step)
	l.log.Info("Executing step",
		log.Step(step.Name), slog.String("handler", handlerName))

	handler, err := l.reg.Get(handlerName)
	if err != nil {
		l.log.Error("Handler not found",
			log.Step(step.Name), log.Error(err))
		l.failed.Add(step.Name)
		l.publish(api.EventTypeStepFailed, api.StepFailedEvent{
			TaskID:   l.taskID,
			Workflow: l.def.Name,
			Step:     step.Name,
			Error:    err.Error(),
		})
		return false, nil
	}

	if l.shouldSkip(step) {
		l.log.Info("Skipping step due to flow control", log.Step(step.Name))
		l.skipped.Add(step.Name)
		l.publish(api.EventTypeStepSkipped, api.StepSkippedEvent{
			TaskID:   l.taskID,
			Workflow: l.def.Name,
			Step:     step.Name,
		})
		return true, nil
	}

	merged := l.mergedParams(step)
	if l.validator != nil {
		if diags := l.validator.Validate(handlerName, merged); len(diags) > 0 {
			return l.failParamsGate(ctx, step, diags)
		}
	}

	maxRetries := l.def.RetriesFor(step)
	deps := l.stepDeps()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		input := l.stepInput(step, merged, attempt)

		l.log.Info("Step attempt",
			log.Step(step.Name),
			log.Attempt(attempt+1),
			slog.Int("max_attempts", maxRetries+1))
		l.publish(api.EventTypeStepStarted, api.StepStartedEvent{
			TaskID:   l.taskID,
			Workflow: l.def.Name,
			Step:     step.Name,
			Attempt:  attempt,
		})

		res := invokeStep(ctx, l.log, handler, input, deps, localSystem)

		if err := l.saveStepResult(step, res, attempt); err != nil {
			return false, err
		}
		l.logMessages(ctx, step, res)

		if len(res.ContextUpdates) > 0 {
			l.vars = state.Merge(l.vars, res.ContextUpdates)
			if err := l.store.Save(ctx, l.vars); err != nil {
				return false, err
			}
		}
		if len(res.FlowControl) > 0 {
			maps.Copy(l.flow, res.FlowControl)
		}

		if !res.HasErrors() {
			l.log.Info("Step succeeded", log.Step(step.Name))
			l.publish(api.EventTypeStepCompleted, api.StepCompletedEvent{
				TaskID:   l.taskID,
				Workflow: l.def.Name,
				Step:     step.Name,
				Attempts: attempt + 1,
			})
			return true, nil
		}

		if attempt < maxRetries {
			l.log.Warn("Step failed, retrying", log.Step(step.Name))
			time.Sleep(l.retryDelay)
		} else {
			l.log.Error("Step failed permanently",
				log.Step(step.Name), slog.Int("attempts", maxRetries+1))
		}
	}

	l.failed.Add(step.Name)
	l.publish(api.EventTypeStepFailed, api.StepFailedEvent{
		TaskID:   l.taskID,
		Workflow: l.def.Name,
		Step:     step.Name,
	})
	return false, nil
}

// shouldSkip consults accumulated flow control. The skip-remaining
// signal never suppresses finalize steps; cleanup runs even when the
// rest of the graph is skipped
func (l *Local) shouldSkip(step *workflow.Step) bool {
	if step.Template != workflow.TemplateFinalize &&
		flowTruthy(l.flow[api.FlowSkipRemaining]) {
		return true
	}
	return step.Guard().ShouldSkip(l.flow)
}

func (l *Local) outcomeSoFar() api.Outcome {
	if !l.failed.IsEmpty() || flowTruthy(l.flow[api.FlowMarkFailed]) {
		return api.OutcomeFailed
	}
	return api.OutcomeSucceeded
}

// failParamsGate records a synthesized error result for a step whose
// params failed validation. The handler is never invoked and no
// retries are spent
func (l *Local) failParamsGate(
	ctx context.Context, step *workflow.Step, diags []string,
) (bool, error) {
	res := api.NewResult()
	for _, d := range diags {
		res.AddError(localSystem, d)
	}
	if err := l.saveStepResult(step, res, 0); err != nil {
		return false, err
	}
	l.logMessages(ctx, step, res)
	l.log.Error("Step params failed validation",
		log.Step(step.Name), slog.Int("errors", len(diags)))
	l.failed.Add(step.Name)
	l.publish(api.EventTypeStepFailed, api.StepFailedEvent{
		TaskID:   l.taskID,
		Workflow: l.def.Name,
		Step:     step.Name,
		Error:    strings.Join(diags, "; "),
	})
	return false, nil
}

func (l *Local) mergedParams(step *workflow.Step) map[string]any {
	merged := make(map[string]any, len(l.params)+len(step.Params))
	maps.Copy(merged, l.params)
	maps.Copy(merged, step.Params)
	return merged
}

func (l *Local) stepInput(
	step *workflow.Step, merged map[string]any, attempt int,
) *api.StepInput {
	in := &api.StepInput{
		StepName:     step.Name,
		TaskID:       l.taskID,
		WorkflowName: l.def.Name,
		Params:       merged,
		Vars:         l.vars.Clone(),
		Attempt:      attempt,
		TotalRetries: l.def.DefaultRetries,
	}
	if step.Template == workflow.TemplateFinalize {
		in.WorkflowResult = string(l.outcomeSoFar())
	}
	return in
}

func (l *Local) stepDeps() *api.StepDeps {
	return &api.StepDeps{
		HTTP:    l.client,
		Log:     l.log.With(log.Workflow(l.def.Name)),
		Env:     l.environ,
		WorkDir: l.workdir,
	}
}

func (l *Local) logMessages(
	ctx context.Context, step *workflow.Step, res *api.StepResult,
) {
	for _, m := range res.Messages {
		l.log.Log(ctx, m.Severity.Level(), m.Text,
			log.Step(step.Name), slog.String("system", m.System))
	}
}

func (l *Local) loadParams() (map[string]any, error) {
	if l.paramsPath == "" {
		return map[string]any{}, nil
	}
	if _, err := os.Stat(l.paramsPath); errors.Is(err, fs.ErrNotExist) {
		l.log.Warn("Params file not found",
			slog.String("path", l.paramsPath))
		return map[string]any{}, nil
	}
	return ReadParams(l.paramsPath)
}

func (l *Local) setupWorkdir() error {
	for _, dir := range []string{
		l.workdir,
		filepath.Join(l.workdir, StepsDirName),
		filepath.Join(l.workdir, LogsDirName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %s", ErrWriteFile, err)
		}
	}
	return nil
}

func (l *Local) saveStepResult(
	step *workflow.Step, res *api.StepResult, attempt int,
) error {
	path := filepath.Join(
		l.workdir, StepsDirName, step.Name,
		fmt.Sprintf("result-attempt-%d.json", attempt),
	)
	return WriteStepOutput(path, res)
}

func (l *Local) saveExecution(exec *Execution) error {
	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWriteFile, err)
	}
	return writeFile(filepath.Join(l.workdir, ExecutionResultFile), data)
}

func (l *Local) publish(typ api.EventType, data any) {
	if l.events == nil {
		return
	}
	l.events.Publish(api.NewRunEvent(typ, data))
}

// flowTruthy mirrors the truthiness rules flow-control values follow:
// false, zero, empty string and empty containers read as unset
func flowTruthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}
