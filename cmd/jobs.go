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

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List search jobs",
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

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			Status: model.JobStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(jobs) == 0 && format == export.FormatTable {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}
		return export.Jobs(os.Stdout, format, jobs)
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show full details of a search job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	jobsCmd.Flags().String("status", "", "filter by job status (pending, running, complete, failed)")
	jobsCmd.Flags().Int("limit", 50, "max number of jobs to display")
	addFormatFlag(jobsCmd)

	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}
