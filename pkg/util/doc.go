// Package util provides small generic helpers shared across the
// engine, currently a set implementation for tracking step names
// during a run
package util
