package cli

import "github.com/spf13/cobra"

const defaultProfileEndpoint = "/auth/me/"

func newWhoamiCommand(a *app) *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.client.IsAuthenticated() {
				a.info("Not logged in. Run 'tutorctl login' to get started.")
				return nil
			}

			resp := a.client.Get(cmd.Context(), endpoint)
			if !resp.Success {
				return resp.Err()
			}
			a.info("Current user: %s", displayName(resp.Data, "unknown"))
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", defaultProfileEndpoint, "profile endpoint")
	return cmd
}
