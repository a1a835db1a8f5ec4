package workflow_test

import (
	"testing"

	"github.com/opsforge/taskkit/internal/assert"
	"github.com/opsforge/taskkit/internal/assert/helpers"
	"github.com/opsforge/taskkit/pkg/workflow"
)

func TestNormalizeDefaults(t *testing.T) {
	as := assert.New(t)

	def := &workflow.Definition{
		Name:     "sample",
		Platform: "homelab",
		Steps: []*workflow.Step{
			{Name: "plain"},
			{Name: "ending", Template: workflow.TemplateFinalize},
		},
	}
	as.Require.NoError(def.Normalize())

	as.Equal(workflow.DefaultContext, def.Context)
	as.Equal(workflow.TemplateAction, def.Steps[0].Template)
	as.Equal(workflow.TemplateFinalize, def.Steps[1].Template)
}

func TestNormalizeUnknownTemplate(t *testing.T) {
	as := assert.New(t)

	def := &workflow.Definition{
		Name:     "sample",
		Platform: "homelab",
		Steps: []*workflow.Step{
			{Name: "odd", Template: "bogus"},
		},
	}
	err := def.Normalize()
	as.ErrorIs(err, workflow.ErrUnknownTemplate)
	as.Contains(err.Error(), "odd")
}

func TestNormalizeBadGuard(t *testing.T) {
	as := assert.New(t)

	def := &workflow.Definition{
		Name:     "sample",
		Platform: "homelab",
		Steps: []*workflow.Step{
			{Name: "guarded", WhenFlowControl: "just_a_key"},
		},
	}
	err := def.Normalize()
	as.ErrorIs(err, workflow.ErrInvalidGuard)
	as.Contains(err.Error(), "guarded")
}

func TestHandlerName(t *testing.T) {
	as := assert.New(t)

	step := helpers.NewStep("check-dns")

	bare := &workflow.Definition{Name: "wf", Platform: "homelab"}
	as.Equal("check-dns", bare.HandlerName(step))

	prefixed := &workflow.Definition{
		Name:          "wf",
		Platform:      "homelab",
		HandlerPrefix: "smoke-test",
	}
	as.Equal("smoke-test-check-dns", prefixed.HandlerName(step))
}

func TestRetriesFor(t *testing.T) {
	as := assert.New(t)

	def := &workflow.Definition{
		Name:           "wf",
		Platform:       "homelab",
		DefaultRetries: 5,
	}

	tests := []struct {
		name     string
		template workflow.StepTemplate
		expected int
	}{
		{"action_retries", workflow.TemplateAction, 5},
		{"fanout_source_retries", workflow.TemplateFanoutSource, 5},
		{"init_never_retries", workflow.TemplateInit, 0},
		{"finalize_never_retries", workflow.TemplateFinalize, 0},
		{"no_retry_never_retries", workflow.TemplateNoRetry, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(*testing.T) {
			step := helpers.NewStepWithTemplate("s", tt.template)
			as.Equal(tt.expected, def.RetriesFor(step))
		})
	}
}

func TestValidateDependencies(t *testing.T) {
	as := assert.New(t)

	good := helpers.NewDefinition(t,
		helpers.NewStep("first"),
		helpers.NewStep("second", "first"),
	)
	as.Empty(good.ValidateDependencies())

	bad := helpers.NewDefinition(t,
		helpers.NewStep("first", "ghost"),
		helpers.NewStep("second", "phantom", "first"),
	)
	diags := bad.ValidateDependencies()
	as.Require.Len(diags, 2)
	as.Equal("Step 'first' depends on unknown step 'ghost'", diags[0])
	as.Equal("Step 'second' depends on unknown step 'phantom'", diags[1])
}

func TestStepByName(t *testing.T) {
	as := assert.New(t)

	def := helpers.NewDefinition(t,
		helpers.NewStep("first"),
		helpers.NewStep("second"),
	)
	as.Equal("second", def.StepByName("second").Name)
	as.Nil(def.StepByName("missing"))
}

func TestStepPartitions(t *testing.T) {
	as := assert.New(t)

	def := helpers.NewDefinition(t,
		helpers.NewStepWithTemplate("setup", workflow.TemplateInit),
		helpers.NewStep("work", "setup"),
		helpers.NewStepWithTemplate("report", workflow.TemplateFinalize,
			"work"),
	)

	regular, err := def.NonFinalizeSteps()
	as.Require.NoError(err)
	as.Require.Len(regular, 2)
	as.Equal("setup", regular[0].Name)
	as.Equal("work", regular[1].Name)

	final, err := def.FinalizeSteps()
	as.Require.NoError(err)
	as.Require.Len(final, 1)
	as.Equal("report", final[0].Name)
}
