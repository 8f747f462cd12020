package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit <lead-id>",
	Short: "Audit one lead's website and rescore it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		lead, err := env.Enricher.AuditLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "audit")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lead)
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
