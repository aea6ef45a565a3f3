package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func notifyCmd() *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "notify <session-id>",
		Short: "Send a notification to a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return notifySession(args[0], payload)
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "notification payload (sent as a JSON string)")
	return cmd
}

func notifySession(id, payload string) error {
	client := newAPIClient()
	body := struct {
		Payload string `json:"payload"`
	}{Payload: payload}

	data, status, err := client.do(http.MethodPost, "/sessions/"+url.PathEscape(id)+"/notify", body)
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		return fmt.Errorf("notify session: server returned %d: %s", status, data)
	}
	fmt.Println("notification accepted")
	return nil
}
