package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsforge/taskkit"
	"github.com/opsforge/taskkit/internal/config"
	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/log"
	"github.com/opsforge/taskkit/pkg/runner"
)

func (a *app) stepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "step",
		Short: "Execute a single step from the environment",
		Long: "Step executes exactly one workflow step, configured " +
			"entirely through TASKKIT_* environment variables and " +
			"file-based state. It is the entrypoint for per-step " +
			"container invocations.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := runner.LoadEnv(nil)
			if err != nil {
				reportEnvFailure(err)
				return &ExitError{Code: 1}
			}

			r := &runner.StepRunner{
				Env:         env,
				Registry:    a.reg,
				LogLevel:    levelFor(a.cfg.LogLevel),
				HTTPTimeout: a.cfg.HTTPTimeout(),
			}
			if a.cfg.StoreBackend == config.StoreRedis {
				store, closer := a.redisStore(env.TaskID)
				defer closer()
				r.Store = store
			}

			if code := r.Run(cmd.Context()); code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
}

// reportEnvFailure preserves the output contract as far as possible
// when the environment itself is invalid: if the output path is known,
// an error result is written there before the process exits nonzero
func reportEnvFailure(err error) {
	slog.Error("Invalid step environment", log.Error(err))
	out := os.Getenv(runner.EnvOutputFile)
	if out == "" {
		return
	}
	res := api.ErrorResult(taskkit.Name, err.Error())
	if werr := runner.WriteStepOutput(out, res); werr != nil {
		slog.Error("Failed to write step output", log.Error(werr))
	}
}
