package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/enrich"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute score and tier for every lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Rescoring never crawls, so the orchestrator needs no crawler.
		changed, err := enrich.New(st, nil).RescoreAll(ctx)
		if err != nil {
			return eris.Wrap(err, "rescore")
		}

		zap.L().Info("rescore complete", zap.Int("changed", changed))
		fmt.Fprintf(os.Stdout, "Rescored leads: %d changed.\n", changed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rescoreCmd)
}
