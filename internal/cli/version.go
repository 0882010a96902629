package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/tutorapi"
)

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// needs neither configuration nor a session
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.out, tutorapi.GetVersion())
			return nil
		},
	}
}
