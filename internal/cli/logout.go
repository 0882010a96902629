package cli

import "github.com/spf13/cobra"

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove stored tokens",
		Long: `The logout command notifies the server that the session is over, best effort,
and always removes the locally stored tokens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			a.success("Logged out")
			return nil
		},
	}
}
