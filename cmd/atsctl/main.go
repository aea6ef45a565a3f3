// Command atsctl is a thin operator CLI for the console's HTTP control
// surface: submit a session, inspect its detail, notify it, or abort it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	authToken string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atsctl",
		Short: "Operator CLI for the ATS console",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "console base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("ATSCTL_TOKEN"), "auth token (defaults to ATSCTL_TOKEN)")

	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(abortCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
