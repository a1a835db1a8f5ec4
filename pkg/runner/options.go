package runner

import (
	"log/slog"
	"time"

	"github.com/opsforge/taskkit/pkg/state"
)

// Option adjusts how a Local runner is constructed
type Option func(*Local)

const (
	// DefaultHTTPTimeout bounds the HTTP client handed to step handlers
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultRetryDelay is the pause between failed attempts
	DefaultRetryDelay = time.Second
)

// WithTaskID fixes the run identifier instead of generating one
func WithTaskID(id string) Option {
	return func(l *Local) {
		l.taskID = id
	}
}

// WithWorkdir fixes the working directory instead of deriving a
// timestamped one under workflow-runs
func WithWorkdir(path string) Option {
	return func(l *Local) {
		l.workdir = path
	}
}

// WithParams supplies workflow parameters directly
func WithParams(params map[string]any) Option {
	return func(l *Local) {
		l.params = params
	}
}

// WithParamsFile loads workflow parameters from a JSON file. A missing
// file is treated as empty parameters
func WithParamsFile(path string) Option {
	return func(l *Local) {
		l.paramsPath = path
	}
}

// WithStore replaces the vars store. The default persists to the vars
// file under the working directory
func WithStore(s state.Store) Option {
	return func(l *Local) {
		l.store = s
	}
}

// WithLogger replaces the runner's logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Local) {
		l.log = logger
	}
}

// WithHTTPTimeout adjusts the timeout of the HTTP client handed to
// step handlers
func WithHTTPTimeout(d time.Duration) Option {
	return func(l *Local) {
		l.httpTimeout = d
	}
}

// WithRetryDelay adjusts the pause between failed attempts
func WithRetryDelay(d time.Duration) Option {
	return func(l *Local) {
		l.retryDelay = d
	}
}

// WithEnviron fixes the environment handed to step handlers instead of
// capturing the process environment
func WithEnviron(environ map[string]string) Option {
	return func(l *Local) {
		l.environ = environ
	}
}

// WithEvents attaches a sink that receives run progress events
func WithEvents(sink EventSink) Option {
	return func(l *Local) {
		l.events = sink
	}
}

// WithValidator gates each step's merged params through a validator
// before the handler runs
func WithValidator(v ParamsValidator) Option {
	return func(l *Local) {
		l.validator = v
	}
}
