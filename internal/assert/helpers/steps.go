package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsforge/taskkit/pkg/registry"
	"github.com/opsforge/taskkit/pkg/workflow"
)

// NewStep creates an action step depending on the named steps
func NewStep(name string, depends ...string) *workflow.Step {
	return &workflow.Step{
		Name:    name,
		Depends: depends,
	}
}

// NewStepWithTemplate creates a step of the given template kind
func NewStepWithTemplate(
	name string, template workflow.StepTemplate, depends ...string,
) *workflow.Step {
	step := NewStep(name, depends...)
	step.Template = template
	return step
}

// NewGuardedStep creates an action step with a flow-control condition
func NewGuardedStep(name, whenFlowControl string) *workflow.Step {
	step := NewStep(name)
	step.WhenFlowControl = whenFlowControl
	return step
}

// NewDefinition creates a normalized workflow definition from prepared
// steps
func NewDefinition(t *testing.T, steps ...*workflow.Step) *workflow.Definition {
	t.Helper()
	def := &workflow.Definition{
		Name:           "test-workflow",
		Platform:       "homelab",
		DefaultRetries: workflow.DefaultRetries,
		TimeoutSeconds: workflow.DefaultTimeoutSeconds,
		Steps:          steps,
	}
	require.NoError(t, def.Normalize())
	return def
}

// NewRegistry creates a registry preloaded with a handler for each
// named step
func NewRegistry(t *testing.T, def *workflow.Definition) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, step := range def.Steps {
		require.NoError(t, reg.Register(def.HandlerName(step), OKHandler()))
	}
	return reg
}
