package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func abortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abort <session-id>",
		Short: "Abort a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return abortSession(args[0])
		},
	}
	return cmd
}

func abortSession(id string) error {
	client := newAPIClient()
	data, status, err := client.do(http.MethodPost, "/sessions/"+url.PathEscape(id)+"/abort", nil)
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		return fmt.Errorf("abort session: server returned %d: %s", status, data)
	}
	fmt.Println("session aborted")
	return nil
}
