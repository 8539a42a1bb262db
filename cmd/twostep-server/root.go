package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd creates the root command for the twostep server CLI.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "twostep-server",
		Short: "Two-step authentication service",
		Long: `twostep-server exposes the two-step authentication engine over HTTP:
password identification, single-use challenge verification, and user
registration with generated secrets.`,
	}

	cmd.AddCommand(newServeCmd())

	return cmd
}
