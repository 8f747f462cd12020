package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/export"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate lead statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		jobID, _ := cmd.Flags().GetString("job")
		stats, err := st.Stats(ctx, jobID)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		return export.Stats(os.Stdout, format, stats)
	},
}

func init() {
	statsCmd.Flags().String("job", "", "restrict stats to one search job")
	addFormatFlag(statsCmd)
	rootCmd.AddCommand(statsCmd)
}
