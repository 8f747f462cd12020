package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/discovery"
	"github.com/sells-group/leadgen/internal/export"
	"github.com/sells-group/leadgen/internal/model"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Discover businesses for a query and location",
	Long:  "Creates a search job, stores every new place as a lead, and optionally enriches the job's leads.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		query, _ := cmd.Flags().GetString("query")
		location, _ := cmd.Flags().GetString("location")
		radius, _ := cmd.Flags().GetInt("radius")
		maxResults, _ := cmd.Flags().GetInt("max")
		withEnrichment, _ := cmd.Flags().GetBool("enrich")

		job, err := env.Discovery.Run(ctx, discovery.SearchRequest{
			Query:      query,
			Location:   location,
			RadiusKM:   radius,
			MaxResults: maxResults,
		}, withEnrichment)
		if job != nil {
			if perr := export.Jobs(os.Stdout, format, []model.SearchJob{*job}); perr != nil {
				return perr
			}
		}
		if err != nil {
			return eris.Wrap(err, "search")
		}

		zap.L().Info("search complete",
			zap.String("job_id", job.ID),
			zap.Int("total_found", job.TotalFound),
			zap.Int("enriched_count", job.EnrichedCount),
		)
		if format == export.FormatTable {
			fmt.Fprintf(os.Stderr, "Job %s: %d leads found, %d enriched.\n", job.ID, job.TotalFound, job.EnrichedCount)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("query", "", "business type to search for (e.g. \"plumbers\")")
	searchCmd.Flags().String("location", "", "city and state to search in (e.g. \"Austin, TX\")")
	searchCmd.Flags().Int("radius", 0, "search radius in km (default from config)")
	searchCmd.Flags().Int("max", 0, "maximum results to keep (default from config)")
	searchCmd.Flags().Bool("enrich", false, "enrich discovered leads after the search")
	addFormatFlag(searchCmd)
	_ = searchCmd.MarkFlagRequired("query")
	_ = searchCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(searchCmd)
}
