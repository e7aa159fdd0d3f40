// Package cmd implements the atendai command-line interface.
//
// Subcommands:
//   - serve:   run the webhook HTTP server (the inbound pipeline)
//   - migrate: apply database migrations and exit
//   - version: print build information
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "atendai",
	Short: "atendai - AI attendant backend for CRM conversations",
	Long: `atendai answers inbound CRM chat messages with retrieval-augmented
generation. It batches rapid-fire messages per conversation, retrieves
knowledge-base context, and drives a tool-calling generation loop
against the CRM before dispatching a single reply per burst.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
