package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/export"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads with filters and sorting",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		filter, err := leadFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")
		out, err := openOutput(outPath, format)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		st, err := openStore(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, total, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if err := export.Leads(out, format, leads); err != nil {
			return err
		}
		if format == export.FormatTable || outPath != "" {
			fmt.Fprintf(os.Stderr, "Showing %d of %d leads.\n", len(leads), total)
		}
		return nil
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show full details of a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lead)
	},
}

// leadFilterFromFlags builds a LeadFilter from the leads command flags.
func leadFilterFromFlags(cmd *cobra.Command) (store.LeadFilter, error) {
	f := cmd.Flags()
	jobID, _ := f.GetString("job")
	tier, _ := f.GetString("tier")
	status, _ := f.GetString("status")
	outreach, _ := f.GetString("outreach")
	category, _ := f.GetString("category")
	city, _ := f.GetString("city")
	state, _ := f.GetString("state")
	minScore, _ := f.GetInt("min-score")
	sortBy, _ := f.GetString("sort")
	dir, _ := f.GetString("dir")
	limit, _ := f.GetInt("limit")
	offset, _ := f.GetInt("offset")

	key, err := store.ParseSortKey(sortBy)
	if err != nil {
		return store.LeadFilter{}, err
	}
	sortDir, err := store.ParseSortDir(dir)
	if err != nil {
		return store.LeadFilter{}, err
	}
	if limit < 0 || offset < 0 {
		return store.LeadFilter{}, eris.New("--limit and --offset must not be negative")
	}

	return store.LeadFilter{
		JobID:            jobID,
		Tier:             model.Tier(tier),
		EnrichmentStatus: model.EnrichmentStatus(status),
		OutreachStatus:   model.OutreachStatus(outreach),
		Category:         category,
		City:             city,
		State:            state,
		MinScore:         minScore,
		Sort:             key,
		Dir:              sortDir,
		Limit:            limit,
		Offset:           offset,
	}, nil
}

func init() {
	f := leadsCmd.Flags()
	f.String("job", "", "only leads from this search job")
	f.String("tier", "", "filter by tier (hot, warm, cold, unscored)")
	f.String("status", "", "filter by enrichment status (pending, crawling, enriched, failed)")
	f.String("outreach", "", "filter by outreach status")
	f.String("category", "", "filter by category")
	f.String("city", "", "filter by city")
	f.String("state", "", "filter by state")
	f.Int("min-score", 0, "minimum lead score")
	f.String("sort", "score", "sort key (score, name, created, rating, reviews, audit_score, city)")
	f.String("dir", "desc", "sort direction (asc, desc)")
	f.Int("limit", 100, "max number of leads to return")
	f.Int("offset", 0, "number of leads to skip")
	f.String("format", "table", "output format (table, json, yaml, xlsx)")
	f.String("out", "", "write output to this file instead of stdout")

	leadsCmd.AddCommand(leadsShowCmd)
	rootCmd.AddCommand(leadsCmd)
}
