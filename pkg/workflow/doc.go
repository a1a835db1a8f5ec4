// Package workflow models a pipeline as a directed acyclic graph of
// named steps
//
// A Definition is loaded from YAML, validated, and then read-only for
// the duration of a run. Steps carry a template that controls retry
// behavior, static params merged into each handler invocation, and an
// optional guard expression evaluated against flow-control state. The
// execution order is a deterministic topological sort with ties broken
// by ascending step name
package workflow
