package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/opsforge/taskkit/pkg/workflow"
)

// Env is the single step's external configuration, parsed from the
// TASKKIT_* environment variables the orchestrator sets on each step
// container. This is the only place those variables are read
type Env struct {
	// Task identity
	TaskID      string
	TaskType    string
	TaskVariant string

	// Workflow metadata
	WorkflowName string
	Platform     string
	Context      string

	// Filesystem paths
	WorkingDir      string
	ParamsFile      string
	OutputFile      string
	VarsFile        string
	FlowControlFile string

	// Step context
	StepName      string
	StepTemplate  workflow.StepTemplate
	StepParams    map[string]any
	HandlerPrefix string

	// Retry tracking, driven externally by the orchestrator
	Retries      int
	TotalRetries int

	// Populated only for finalize invocations
	WorkflowResult string
}

// Environment variable names
const (
	EnvTaskID      = "TASKKIT_TASK_ID"
	EnvTaskType    = "TASKKIT_TASK_TYPE"
	EnvTaskVariant = "TASKKIT_TASK_VARIANT"

	EnvWorkflowName = "TASKKIT_WORKFLOW_NAME"
	EnvPlatform     = "TASKKIT_PLATFORM"
	EnvContext      = "TASKKIT_CONTEXT"

	EnvWorkingDir      = "TASKKIT_WORKING_DIR"
	EnvParamsFile      = "TASKKIT_PARAMS_FILE"
	EnvOutputFile      = "TASKKIT_OUTPUT_FILE"
	EnvVarsFile        = "TASKKIT_VARS_FILE"
	EnvFlowControlFile = "TASKKIT_FLOW_CONTROL_FILE"

	EnvStepName      = "TASKKIT_STEP_NAME"
	EnvStepTemplate  = "TASKKIT_STEP_TEMPLATE"
	EnvStepParams    = "TASKKIT_STEP_PARAMS"
	EnvHandlerPrefix = "TASKKIT_HANDLER_PREFIX"

	EnvRetries        = "TASKKIT_RETRIES"
	EnvTotalRetries   = "TASKKIT_TOTAL_RETRIES"
	EnvWorkflowResult = "TASKKIT_WORKFLOW_RESULT"
)

const (
	DefaultPlatform        = "homelab"
	DefaultFlowControlFile = "/tmp/flow_control.json"
	DefaultTotalRetries    = 3

	// VarsFileName is the per-run vars file created under the working
	// directory when no explicit path is configured
	VarsFileName = "vars.yaml"
)

// requiredEnv lists the variables without which a step invocation can't
// proceed, in the order they are reported when missing
var requiredEnv = []string{
	EnvStepName,
	EnvTaskID,
	EnvWorkflowName,
	EnvWorkingDir,
	EnvParamsFile,
	EnvOutputFile,
}

// ErrMissingEnv is raised when required environment variables are
// absent. The message lists every missing name
var ErrMissingEnv = errors.New("missing required environment variables")

// LoadEnv parses the TASKKIT_* variables from environ into an Env. A
// nil environ reads the process environment
func LoadEnv(environ map[string]string) (*Env, error) {
	if environ == nil {
		environ = Environ()
	}

	var missing []string
	for _, key := range requiredEnv {
		if environ[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf(
			"%w: %s", ErrMissingEnv, strings.Join(missing, ", "),
		)
	}

	return &Env{
		TaskID:      environ[EnvTaskID],
		TaskType:    environ[EnvTaskType],
		TaskVariant: environ[EnvTaskVariant],

		WorkflowName: environ[EnvWorkflowName],
		Platform:     envDefault(environ, EnvPlatform, DefaultPlatform),
		Context: envDefault(
			environ, EnvContext, workflow.DefaultContext,
		),

		WorkingDir: environ[EnvWorkingDir],
		ParamsFile: environ[EnvParamsFile],
		OutputFile: environ[EnvOutputFile],
		VarsFile:   environ[EnvVarsFile],
		FlowControlFile: envDefault(
			environ, EnvFlowControlFile, DefaultFlowControlFile,
		),

		StepName: environ[EnvStepName],
		StepTemplate: workflow.StepTemplate(envDefault(
			environ, EnvStepTemplate, string(workflow.TemplateAction),
		)),
		StepParams:    parseStepParams(environ[EnvStepParams]),
		HandlerPrefix: environ[EnvHandlerPrefix],

		Retries:      envInt(environ, EnvRetries, 0),
		TotalRetries: envInt(environ, EnvTotalRetries, DefaultTotalRetries),

		WorkflowResult: environ[EnvWorkflowResult],
	}, nil
}

// HandlerName derives the registry lookup key the same way the graph
// model does: prefix joined to the step name, or the bare step name
func (e *Env) HandlerName() string {
	if e.HandlerPrefix != "" {
		return e.HandlerPrefix + "-" + e.StepName
	}
	return e.StepName
}

// VarsFilePath returns the explicit vars file when configured, or the
// default location under the working directory
func (e *Env) VarsFilePath() string {
	if e.VarsFile != "" {
		return e.VarsFile
	}
	return filepath.Join(e.WorkingDir, VarsFileName)
}

// IsFirstAttempt reports whether this is the step's first execution
func (e *Env) IsFirstAttempt() bool {
	return e.Retries == 0
}

// IsFinalize reports whether this invocation runs a finalize step
func (e *Env) IsFinalize() bool {
	return e.StepTemplate == workflow.TemplateFinalize
}

// Environ captures the process environment as a map
func Environ() map[string]string {
	environ := os.Environ()
	res := make(map[string]string, len(environ))
	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok {
			res[key] = value
		}
	}
	return res
}

func envDefault(environ map[string]string, key, def string) string {
	if v := environ[key]; v != "" {
		return v
	}
	return def
}

// envInt parses an integer variable. An absent variable yields the
// default; a present but unparsable value yields zero
func envInt(environ map[string]string, key string, def int) int {
	raw, ok := environ[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// parseStepParams decodes the JSON object carried in the step-params
// variable. Anything other than a valid object yields empty params
func parseStepParams(raw string) map[string]any {
	if raw == "" || !gjson.Valid(raw) {
		return map[string]any{}
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return map[string]any{}
	}
	if m, ok := parsed.Value().(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
