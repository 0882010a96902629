package cli

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `The login command exchanges a username and password for a session and stores
the returned tokens. Missing credentials are prompted for interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if username == "" {
				if username, err = pterm.DefaultInteractiveTextInput.Show("Username"); err != nil {
					return errors.Wrap(err, "read username")
				}
			}
			if password == "" {
				if password, err = pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password"); err != nil {
					return errors.Wrap(err, "read password")
				}
			}

			resp := a.client.Login(cmd.Context(), username, password)
			if !resp.Success {
				return resp.Err()
			}

			a.success("Logged in as %s", displayName(resp.Data, username))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

// displayName picks a user name out of a login or profile payload.
func displayName(data json.RawMessage, fallback string) string {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		User     *struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fallback
	}
	switch {
	case payload.User != nil && payload.User.Username != "":
		return payload.User.Username
	case payload.User != nil && payload.User.Email != "":
		return payload.User.Email
	case payload.Username != "":
		return payload.Username
	case payload.Email != "":
		return payload.Email
	}
	return fallback
}
