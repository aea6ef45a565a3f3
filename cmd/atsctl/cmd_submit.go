package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/omnilab/atsconsole/internal/session"
)

func submitCmd() *cobra.Command {
	var id string
	var properties map[string]string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create a new session",
		RunE: func(_ *cobra.Command, _ []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			return submitSession(id, properties)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "session id")
	cmd.Flags().StringToStringVar(&properties, "property", nil, "initial property key=value, repeatable")
	return cmd
}

func submitSession(id string, properties map[string]string) error {
	client := newAPIClient()
	data, status, err := client.do(http.MethodPost, "/sessions", session.NewConfig(id, properties))
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("create session: server returned %d: %s", status, data)
	}
	fmt.Println(string(data))
	return nil
}
