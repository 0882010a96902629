package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/tutorapi"
)

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <endpoint>",
		Short: "Fetch an endpoint and print its data as JSON",
		Example: `  tutorctl get /courses/
  tutorctl get "/lessons/?course=12"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp := a.client.Request(cmd.Context(), args[0], tutorapi.RequestOptions{Method: http.MethodGet})
			if !resp.Success {
				return resp.Err()
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, resp.Data, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(resp.Data)
			}
			fmt.Fprintln(a.out, pretty.String())
			return nil
		},
	}
}
