package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/opsforge/taskkit/internal/archive"
	"github.com/opsforge/taskkit/internal/config"
	"github.com/opsforge/taskkit/internal/events"
	"github.com/opsforge/taskkit/internal/notify"
	"github.com/opsforge/taskkit/internal/schema"
	"github.com/opsforge/taskkit/pkg/api"
	"github.com/opsforge/taskkit/pkg/log"
	"github.com/opsforge/taskkit/pkg/runner"
)

// ErrQueryNotFound is raised when a --query path matches nothing in
// the execution result
var ErrQueryNotFound = errors.New("no value at query path")

func (a *app) runCmd() *cobra.Command {
	var (
		paramsFile string
		workdir    string
		taskID     string
		storeName  string
		redisAddr  string
		schemaDir  string
		archiveURL string
		notifyURL  string
		query      string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Execute a workflow in-process",
		Long: "Run executes every step of a workflow definition in one " +
			"process, in dependency order, and writes the run artifacts " +
			"to the working directory.",
		Example: `  taskkit run smoke-test.yaml --params params.json
  taskkit run deploy.yaml --store redis --redis-addr localhost:6379
  taskkit run smoke-test.yaml --query result`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.applyRunFlags(storeName, redisAddr, schemaDir,
				archiveURL, notifyURL)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			if taskID == "" {
				taskID = api.NewTaskID()
			}

			opts := []runner.Option{
				runner.WithTaskID(taskID),
				runner.WithHTTPTimeout(a.cfg.HTTPTimeout()),
				runner.WithRetryDelay(a.cfg.RetryDelay()),
			}
			if paramsFile != "" {
				opts = append(opts, runner.WithParamsFile(paramsFile))
			}
			if workdir != "" {
				opts = append(opts, runner.WithWorkdir(workdir))
			}
			if a.cfg.SchemaDir != "" {
				opts = append(opts,
					runner.WithValidator(schema.New(a.cfg.SchemaDir)))
			}
			if a.cfg.StoreBackend == config.StoreRedis {
				store, closer := a.redisStore(taskID)
				defer closer()
				opts = append(opts, runner.WithStore(store))
			}

			queue := a.eventQueue()
			opts = append(opts, runner.WithEvents(queue))

			local, err := runner.NewLocalFromFile(args[0], a.reg, opts...)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			queue.Start()
			exec := local.Run(ctx)
			queue.Flush()

			if a.cfg.ArchiveURL != "" {
				// Archive on a fresh context so a run timeout doesn't
				// also starve the upload
				a.archiveRun(context.WithoutCancel(cmd.Context()), exec)
			}
			if query != "" {
				if err := printQuery(cmd, exec, query); err != nil {
					return err
				}
			}

			if exec.Result != api.OutcomeSucceeded {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&paramsFile, "params", "",
		"JSON file of workflow parameters")
	flags.StringVar(&workdir, "workdir", "",
		"working directory for run artifacts (default generated)")
	flags.StringVar(&taskID, "task-id", "",
		"task identifier for the run (default generated)")
	flags.StringVar(&storeName, "store", "",
		"vars store backend (file, redis)")
	flags.StringVar(&redisAddr, "redis-addr", "",
		"redis address for the redis store")
	flags.StringVar(&schemaDir, "schemas", "",
		"directory of handler params schemas")
	flags.StringVar(&archiveURL, "archive", "",
		"bucket URL for archiving run artifacts")
	flags.StringVar(&notifyURL, "notify", "",
		"webhook URL for the completion notification")
	flags.StringVar(&query, "query", "",
		"print a path from the execution result to stdout")
	flags.DurationVar(&timeout, "timeout", 0,
		"overall time limit for the run (0 means no limit)")
	return cmd
}

// applyRunFlags overlays command line flags onto the loaded
// configuration. Flags win over environment variables
func (a *app) applyRunFlags(
	storeName, redisAddr, schemaDir, archiveURL, notifyURL string,
) {
	if storeName != "" {
		a.cfg.StoreBackend = storeName
	}
	if redisAddr != "" {
		a.cfg.RedisAddr = redisAddr
	}
	if schemaDir != "" {
		a.cfg.SchemaDir = schemaDir
	}
	if archiveURL != "" {
		a.cfg.ArchiveURL = archiveURL
	}
	if notifyURL != "" {
		a.cfg.WebhookURL = notifyURL
	}
}

// eventQueue assembles the run event pipeline: a debug trace of every
// event, plus the webhook reporter when a URL is configured
func (a *app) eventQueue() *events.Queue {
	handlers := []events.Handler{
		events.Trace(slog.Default()),
	}
	if a.cfg.WebhookURL != "" {
		reporter := notify.NewRunReporter(
			notify.NewWebhook(a.cfg.WebhookURL),
		)
		handlers = append(handlers, reporter.HandleEvents)
	}
	return events.NewQueue(
		events.Fanout(handlers...), events.DefaultBatchSize,
	)
}

// archiveRun uploads the run's artifacts to the configured bucket.
// Archiving is best effort and never changes the run outcome
func (a *app) archiveRun(ctx context.Context, ex *runner.Execution) {
	arch, bucket, err := archive.Open(
		ctx, a.cfg.ArchiveURL, a.cfg.ArchivePrefix,
	)
	if err != nil {
		slog.Warn("Failed to open archive bucket", log.Error(err))
		return
	}
	defer func() {
		_ = bucket.Close()
	}()

	if err := arch.ArchiveRun(ctx, ex); err != nil {
		slog.Warn("Failed to archive run artifacts", log.Error(err))
		return
	}
	slog.Info("Run artifacts archived",
		slog.String("bucket", a.cfg.ArchiveURL),
		log.TaskID(ex.TaskID))
}

// printQuery writes one value from the execution result to stdout,
// addressed by a gjson path
func printQuery(cmd *cobra.Command, ex *runner.Execution, path string) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return err
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return fmt.Errorf("%w: %s", ErrQueryNotFound, path)
	}
	cmd.Println(res.String())
	return nil
}
