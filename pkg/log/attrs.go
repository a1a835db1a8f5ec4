package log

import "log/slog"

func TaskID[T ~string](id T) slog.Attr {
	return slog.String("task_id", string(id))
}

func Workflow[T ~string](name T) slog.Attr {
	return slog.String("workflow", string(name))
}

func Step[T ~string](name T) slog.Attr {
	return slog.String("step", string(name))
}

func Outcome[T ~string](outcome T) slog.Attr {
	return slog.String("outcome", string(outcome))
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
