package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/enrich"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <job-id>",
	Short: "Enrich the pending leads of a search job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Enricher.RunJob(ctx, args[0])
		if sum != nil {
			formatSummary(os.Stdout, sum)
		}
		if err != nil {
			return eris.Wrap(err, "enrich")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}

// formatSummary writes an enrichment run summary to w.
func formatSummary(out io.Writer, s *enrich.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Job:\t%s\n", s.JobID)
	_, _ = fmt.Fprintf(w, "Pending:\t%d\n", s.Pending)
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "  Enriched:\t%d\n", s.Enriched)
	_, _ = fmt.Fprintf(w, "  Reused:\t%d\n", s.Reused)
	_, _ = fmt.Fprintf(w, "  Fresh:\t%d\n", s.Fresh)
	_, _ = fmt.Fprintf(w, "  No website:\t%d\n", s.NoWebsite)
	_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", s.Failed)
	if s.Errors > 0 {
		_, _ = fmt.Fprintf(w, "Errors:\t%d\n", s.Errors)
	}
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", s.Duration.Round(100*time.Millisecond))
	_ = w.Flush()
}
