// Package taskkit is a workflow execution engine for short-lived,
// container-based automation pipelines
//
// A workflow is a directed acyclic graph of named steps. The same per-step
// semantics are provided by two front-ends: a local runner that executes an
// entire graph in one process, and a single-step runner that executes exactly
// one step per container invocation from environment-supplied configuration
// and file-based state
package taskkit

// Name and Version identify the engine in logs and notifications
const (
	Name    = "taskkit"
	Version = "0.4.0"
)
