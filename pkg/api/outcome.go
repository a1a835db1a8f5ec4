package api

// Outcome is the terminal status of a workflow run
type Outcome string

const (
	// OutcomeSucceeded means every non-skipped step completed
	OutcomeSucceeded Outcome = "Succeeded"

	// OutcomeFailed means a step exhausted its retries or flow control
	// marked the run as failed
	OutcomeFailed Outcome = "Failed"

	// OutcomeError means the run itself faulted before or between steps,
	// as opposed to a step failing on its own terms
	OutcomeError Outcome = "Error"
)

// Success returns true for the one outcome that counts as a pass
func (o Outcome) Success() bool {
	return o == OutcomeSucceeded
}
