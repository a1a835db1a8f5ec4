package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/log"
)

// ErrHandlerPanicked is raised when a step handler panics instead of
// returning
var ErrHandlerPanicked = errors.New("step handler panicked")

// safeInvoke runs a handler and converts a panic into an ordinary
// error, so a misbehaving handler can never take down the runner
func safeInvoke(
	ctx context.Context, h api.Handler, in *api.StepInput, deps *api.StepDeps,
) (res *api.StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return h(ctx, in, deps)
}

// invokeStep wraps safeInvoke with the error-downgrade contract both
// runners share: a handler fault becomes a result carrying one error
// message attributed to system, never a propagated failure
func invokeStep(
	ctx context.Context, logger *slog.Logger, h api.Handler,
	in *api.StepInput, deps *api.StepDeps, system string,
) *api.StepResult {
	res, err := safeInvoke(ctx, h, in, deps)
	if err != nil {
		logger.Error("Step handler failed",
			log.Step(in.StepName), log.Error(err))
		return api.ErrorResult(system, err.Error())
	}
	if res == nil {
		return api.NewResult()
	}
	return res
}
