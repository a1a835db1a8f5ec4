package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) handlersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List the registered step handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range a.reg.Names() {
				cmd.Println(name)
			}
			return nil
		},
	}
}
