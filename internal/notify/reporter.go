package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsforge/taskkit/pkg/api"
)

// RunReporter watches a run's event stream and posts one completion
// notification when the run finishes. Failed step names seen along
// the way are included in the report
type RunReporter struct {
	hook   *Webhook
	failed []string
}

const (
	colorSucceeded = "#2ecc71"
	colorFailed    = "#e74c3c"
	colorError     = "#e67e22"
)

// NewRunReporter creates a reporter that delivers through the webhook
func NewRunReporter(hook *Webhook) *RunReporter {
	return &RunReporter{hook: hook}
}

// HandleEvents consumes a batch of run events. It matches the run
// event queue's handler contract
func (r *RunReporter) HandleEvents(batch []api.RunEvent) error {
	for _, ev := range batch {
		switch data := ev.Data.(type) {
		case api.StepFailedEvent:
			r.failed = append(r.failed, data.Step)
		case api.RunCompletedEvent:
			if err := r.report(data); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *RunReporter) report(data api.RunCompletedEvent) error {
	p := Payload{
		Message: fmt.Sprintf(
			"Workflow '%s' finished: %s", data.Workflow, data.Outcome,
		),
		Title: fmt.Sprintf("Workflow %s", data.Outcome),
		Color: outcomeColor(data.Outcome),
		Fields: []Field{
			{Name: "Task ID", Value: data.TaskID, Inline: true},
			{
				Name:   "Duration",
				Value:  fmt.Sprintf("%.1fs", data.Duration),
				Inline: true,
			},
		},
	}
	if len(r.failed) > 0 {
		p.Fields = append(p.Fields, Field{
			Name:  "Failed steps",
			Value: strings.Join(r.failed, ", "),
		})
	}
	if data.Error != "" {
		p.Fields = append(p.Fields, Field{Name: "Error", Value: data.Error})
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return r.hook.Send(ctx, p)
}

func outcomeColor(o api.Outcome) string {
	switch o {
	case api.OutcomeSucceeded:
		return colorSucceeded
	case api.OutcomeFailed:
		return colorFailed
	default:
		return colorError
	}
}
