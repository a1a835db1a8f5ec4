package workflow

import (
	"errors"
	"fmt"

	"github.com/opsforge/taskkit/pkg/util"
)

type (
	// Step is a single step in a workflow. Its name doubles as the
	// basis for the registry lookup key, and its dependencies are the
	// names of steps that must complete before it runs
	Step struct {
		Name            string         `yaml:"name" json:"name"`
		Depends         []string       `yaml:"depends,omitempty" json:"depends,omitempty"`
		Template        StepTemplate   `yaml:"template,omitempty" json:"template,omitempty"`
		Params          map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
		WhenFlowControl string         `yaml:"when_flow_control,omitempty" json:"when_flow_control,omitempty"`

		guard *Guard
	}

	// Definition is a complete workflow loaded from YAML. Once
	// normalized it is read-only for the duration of a run
	Definition struct {
		Name           string  `yaml:"name" json:"name"`
		Platform       string  `yaml:"platform" json:"platform"`
		HandlerPrefix  string  `yaml:"handler_prefix,omitempty" json:"handler_prefix,omitempty"`
		Context        string  `yaml:"context,omitempty" json:"context,omitempty"`
		Steps          []*Step `yaml:"steps,omitempty" json:"steps,omitempty"`
		DefaultRetries int     `yaml:"default_retries,omitempty" json:"default_retries,omitempty"`
		TimeoutSeconds int     `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	}
)

const (
	// DefaultContext tags runs that execute outside an orchestrator
	DefaultContext = "local"

	// DefaultRetries applies when a definition doesn't specify one
	DefaultRetries = 3

	// DefaultTimeoutSeconds is the informational wall-clock budget
	// applied when a definition doesn't specify one
	DefaultTimeoutSeconds = 3600
)

// ErrUnknownTemplate is raised when a step names a template that isn't
// one of the known kinds
var ErrUnknownTemplate = errors.New("unknown step template")

// Normalize applies defaults to fields the source left empty, checks
// every step's template, and parses guard expressions so they aren't
// re-parsed on every evaluation. It must be called once before a
// Definition is used
func (d *Definition) Normalize() error {
	if d.Context == "" {
		d.Context = DefaultContext
	}
	for _, s := range d.Steps {
		if s.Template == "" {
			s.Template = TemplateAction
		}
		if !s.Template.Valid() {
			return fmt.Errorf(
				"%w: %q in step %q", ErrUnknownTemplate, s.Template, s.Name,
			)
		}
		guard, err := ParseGuard(s.WhenFlowControl)
		if err != nil {
			return fmt.Errorf("step %q: %w", s.Name, err)
		}
		s.guard = guard
	}
	return nil
}

// HandlerName returns the registry lookup key for a step: the handler
// prefix joined to the step name, or the bare step name when no prefix
// is configured
func (d *Definition) HandlerName(s *Step) string {
	if d.HandlerPrefix != "" {
		return d.HandlerPrefix + "-" + s.Name
	}
	return s.Name
}

// StepByName returns the named step, or nil when absent
func (d *Definition) StepByName(name string) *Step {
	for _, s := range d.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// RetriesFor returns the retry ceiling for a step: zero for templates
// that never retry, otherwise the workflow's default retry count
func (d *Definition) RetriesFor(s *Step) int {
	if !s.Template.Retryable() {
		return 0
	}
	return d.DefaultRetries
}

// ValidateDependencies returns one diagnostic per dependency that names
// a step not present in the definition. An empty result means the
// dependency references are valid
func (d *Definition) ValidateDependencies() []string {
	names := util.Set[string]{}
	for _, s := range d.Steps {
		names.Add(s.Name)
	}

	var errs []string
	for _, s := range d.Steps {
		for _, dep := range s.Depends {
			if !names.Contains(dep) {
				errs = append(errs, fmt.Sprintf(
					"Step '%s' depends on unknown step '%s'", s.Name, dep,
				))
			}
		}
	}
	return errs
}

// NonFinalizeSteps returns the steps that aren't finalize steps, in
// execution order
func (d *Definition) NonFinalizeSteps() ([]*Step, error) {
	return d.stepsWhere(func(s *Step) bool {
		return s.Template != TemplateFinalize
	})
}

// FinalizeSteps returns the finalize steps, in execution order
func (d *Definition) FinalizeSteps() ([]*Step, error) {
	return d.stepsWhere(func(s *Step) bool {
		return s.Template == TemplateFinalize
	})
}

func (d *Definition) stepsWhere(pred func(*Step) bool) ([]*Step, error) {
	ordered, err := d.ExecutionOrder()
	if err != nil {
		return nil, err
	}
	var res []*Step
	for _, s := range ordered {
		if pred(s) {
			res = append(res, s)
		}
	}
	return res, nil
}

// Guard returns the step's parsed flow-control condition, or nil when
// the step has none. Populated by Definition.Normalize
func (s *Step) Guard() *Guard {
	return s.guard
}
