package cli

import (
	"github.com/spf13/cobra"

	"github.com/opsforge/taskkit/pkg/runner"
	"github.com/opsforge/taskkit/pkg/workflow"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Check a workflow definition without executing it",
		Long: "Validate loads a workflow definition and reports unknown " +
			"dependencies, unregistered handlers, and dependency cycles.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := workflow.Load(args[0])
			if err != nil {
				return err
			}

			diags := runner.ValidateDefinition(def, a.reg)
			if len(diags) == 0 {
				cmd.Printf("Workflow '%s' is valid (%d steps)\n",
					def.Name, len(def.Steps))
				return nil
			}
			for _, d := range diags {
				cmd.Println(d)
			}
			return &ExitError{Code: 1}
		},
	}
}
