package workflow

// StepTemplate controls how the runner treats a step
type StepTemplate string

const (
	// TemplateInit runs first and never retries, typically validating
	// params and seeding vars
	TemplateInit StepTemplate = "init"

	// TemplateAction is the standard step kind, retried on failure up
	// to the workflow's default retry count
	TemplateAction StepTemplate = "action"

	// TemplateFinalize always runs at the end of a workflow, even when
	// earlier steps failed, and never retries
	TemplateFinalize StepTemplate = "finalize"

	// TemplateFanoutSource produces a list for parallel fan-out and
	// retries like an action
	TemplateFanoutSource StepTemplate = "fanout-source"

	// TemplateNoRetry is an action that must not be retried on failure
	TemplateNoRetry StepTemplate = "no-retry"
)

// Retryable returns true for templates whose failures are retried up
// to the workflow's default retry count
func (t StepTemplate) Retryable() bool {
	switch t {
	case TemplateInit, TemplateFinalize, TemplateNoRetry:
		return false
	default:
		return true
	}
}

// Valid returns true if the template is one of the known kinds
func (t StepTemplate) Valid() bool {
	switch t {
	case TemplateInit, TemplateAction, TemplateFinalize,
		TemplateFanoutSource, TemplateNoRetry:
		return true
	default:
		return false
	}
}
