// Package cli implements the taskkit command line interface: workflow
// execution, single-step execution for container entrypoints, and the
// supporting inspection commands
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/opsforge/taskkit"
	"github.com/opsforge/taskkit/internal/config"
	"github.com/opsforge/taskkit/pkg/log"
	"github.com/opsforge/taskkit/pkg/registry"
	"github.com/opsforge/taskkit/pkg/state"
	"github.com/opsforge/taskkit/pkg/steps/smoketest"
)

type (
	// app carries the state shared by every subcommand: the loaded
	// configuration and the handler registry
	app struct {
		cfg *config.Config
		reg *registry.Registry

		logLevel string
	}

	// ExitError carries a specific process exit code through cobra's
	// error plumbing without printing anything further
	ExitError struct {
		Code int
	}
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the command line interface and returns the process
// exit code. SIGINT and SIGTERM cancel the command context so an
// interrupted run still writes its execution record
func Execute() int {
	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	if err := New().ExecuteContext(ctx); err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return exit.Code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// New builds the taskkit command tree
func New() *cobra.Command {
	a := &app{
		cfg: config.NewDefaultConfig(),
		reg: registry.New(),
	}

	root := &cobra.Command{
		Use:     taskkit.Name,
		Short:   "Workflow execution engine for container-based pipelines",
		Version: taskkit.Version,

		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(
		&a.logLevel, "log-level", "",
		"log level (debug, info, warn, error)",
	)

	root.AddCommand(
		a.runCmd(),
		a.stepCmd(),
		a.validateCmd(),
		a.handlersCmd(),
	)
	return root
}

// setup loads configuration, installs the process logger, and
// registers the built-in step handlers
func (a *app) setup() error {
	if err := a.cfg.LoadFromEnv(); err != nil {
		return err
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}

	level := levelFor(a.cfg.LogLevel)
	logger := log.NewWithLevel(
		taskkit.Name, os.Getenv("ENV"), taskkit.Version, level,
	)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	return smoketest.Register(a.reg)
}

// levelFor maps a configured level name to its slog level, falling
// back to info for anything unrecognized
func levelFor(name string) slog.Level {
	if level, ok := logLevels[name]; ok {
		return level
	}
	return slog.LevelInfo
}

// redisStore builds the shared vars store for a run. The key scopes
// vars to the task so concurrent runs don't collide
func (a *app) redisStore(taskID string) (*state.RedisStore, func()) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPass,
		DB:       a.cfg.RedisDB,
	})
	key := fmt.Sprintf("%s:vars:%s", a.cfg.RedisPrefix, taskID)
	return state.NewRedisStore(rdb, key), func() {
		_ = rdb.Close()
	}
}
