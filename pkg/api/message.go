package api

import (
	"log/slog"
	"time"
)

type (
	// Severity classifies a diagnostic message. Only error-severity
	// messages mark a step attempt as failed; the remaining levels affect
	// logging verbosity only
	Severity string

	// Message is a single diagnostic emitted by a step handler
	Message struct {
		System    string         `json:"system"`
		Severity  Severity       `json:"severity"`
		Text      string         `json:"text"`
		Timestamp string         `json:"timestamp"`
		Data      map[string]any `json:"data,omitempty"`
	}
)

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DefaultSystem tags messages whose origin was not specified
const DefaultSystem = "internal"

// NewMessage creates a timestamped message from the given system
func NewMessage(system string, severity Severity, text string) *Message {
	if system == "" {
		system = DefaultSystem
	}
	return &Message{
		System:    system,
		Severity:  severity,
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// WithData attaches structured data to the message
func (m *Message) WithData(data map[string]any) *Message {
	m.Data = data
	return m
}

// Level maps a severity onto the slog level used when relaying the
// message to the runner's logger
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
