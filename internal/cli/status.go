package cli

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/tutorapi"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authenticated := "no"
			if a.client.IsAuthenticated() {
				authenticated = "yes"
			}

			expires := "-"
			if access, _ := a.client.Tokens(); access != "" {
				if exp, ok := tutorapi.TokenExpiry(access); ok {
					expires = exp.UTC().Format(time.RFC3339)
				} else {
					expires = "unknown"
				}
			}

			return pterm.DefaultTable.
				WithHasHeader().
				WithWriter(a.out).
				WithData(pterm.TableData{
					{"Setting", "Value"},
					{"Environment", a.cfg.Env},
					{"API URL", a.cfg.APIURL},
					{"WebSocket URL", a.cfg.WSURL},
					{"Token store", a.backend},
					{"Authenticated", authenticated},
					{"Token expires", expires},
				}).
				Render()
		},
	}
}
