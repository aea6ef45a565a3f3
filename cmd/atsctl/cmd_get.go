package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func getCmd() *cobra.Command {
	var fields string

	cmd := &cobra.Command{
		Use:   "get <session-id>",
		Short: "Fetch a session's detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return getSession(args[0], fields)
		},
	}
	cmd.Flags().StringVar(&fields, "fields", "", "comma-separated field mask (output.session_property,output.plugin_error,output.plugin_output)")
	return cmd
}

func getSession(id, fields string) error {
	client := newAPIClient()
	path := "/sessions/" + url.PathEscape(id) + "/detail"
	if fields != "" {
		path += "?fields=" + url.QueryEscape(strings.TrimSpace(fields))
	}

	data, status, err := client.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("get session: server returned %d: %s", status, data)
	}
	fmt.Println(string(data))
	return nil
}
