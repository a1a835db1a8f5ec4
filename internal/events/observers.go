package events

import (
	"log/slog"

	"github.com/opsforge/taskkit/pkg/api"
)

// Trace returns a handler that logs every run event at debug level,
// showing the stream exactly as observers receive it
func Trace(logger *slog.Logger) Handler {
	return func(batch []api.RunEvent) error {
		for _, ev := range batch {
			logger.Debug("Run event",
				slog.String("event_type", string(ev.Type)),
				slog.Time("time", ev.Time),
				slog.Any("data", ev.Data))
		}
		return nil
	}
}
