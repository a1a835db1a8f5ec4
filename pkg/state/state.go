// Package state persists the shared variables accumulated across step
// executions within one run
//
// The vars file is the only resource shared between separately
// scheduled step containers, so every Save must be atomic: a reader
// must never observe a partially written state. Both backends treat
// absent state as empty vars rather than an error, which is what a
// run's very first step sees, and both read a stored document that is
// not a mapping as empty vars
package state

import (
	"context"
	"errors"
	"maps"

	"github.com/opsforge/taskkit/pkg/api"
)

// Store loads and saves a run's shared vars
type Store interface {
	Load(ctx context.Context) (api.Vars, error)
	Save(ctx context.Context, vars api.Vars) error
}

var (
	ErrLoadVars = errors.New("failed to load vars")
	ErrSaveVars = errors.New("failed to save vars")
)

// Merge overlays src onto dst, with src winning on key collisions, and
// returns dst. A nil dst is promoted to an empty map first
func Merge(dst, src api.Vars) api.Vars {
	if dst == nil {
		dst = api.Vars{}
	}
	maps.Copy(dst, src)
	return dst
}
