// Package runner executes workflow steps through two front-ends that
// share one per-step contract
//
// Local runs an entire graph in one process: it resolves topological
// order, manages retries, persists accumulated vars after every step,
// and always runs finalize steps no matter what failed before them.
// StepRunner executes exactly one step from externally supplied
// configuration and file-based state, trusting the orchestrator to
// invoke it once per attempt in the correct order. Both convert any
// handler fault into an error-carrying result rather than crashing
package runner
