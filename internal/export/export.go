// Package export renders leads, jobs, and stats for the command line.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat validates a --format value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want table, json, yaml, or xlsx)", s)
	}
}

// leadColumns is the column order shared by the table and spreadsheet outputs.
var leadColumns = []string{
	"ID", "NAME", "CATEGORY", "CITY", "STATE", "PHONE", "WEBSITE", "PLATFORM",
	"EMAILS", "SCORE", "TIER", "AUDIT", "ENRICHMENT", "OUTREACH", "RATING", "REVIEWS",
}

// leadRow flattens a lead into leadColumns order.
func leadRow(l *model.Lead) []string {
	audit := ""
	if l.AuditScore != nil {
		audit = strconv.Itoa(*l.AuditScore)
	}
	return []string{
		l.ID,
		l.Name,
		l.Category,
		l.City,
		l.State,
		l.Phone,
		l.Website,
		l.Platform,
		strings.Join(l.Emails, ";"),
		strconv.Itoa(l.LeadScore),
		string(l.LeadTier),
		audit,
		string(l.EnrichmentStatus),
		string(l.OutreachStatus),
		strconv.FormatFloat(l.Rating, 'f', 1, 64),
		strconv.Itoa(l.ReviewCount),
	}
}

// Leads writes leads to w in the given format.
func Leads(w io.Writer, f Format, leads []model.Lead) error {
	if leads == nil {
		leads = []model.Lead{}
	}
	switch f {
	case FormatJSON:
		return writeJSON(w, leads)
	case FormatYAML:
		return writeYAML(w, leads)
	case FormatXLSX:
		return LeadsXLSX(w, leads)
	default:
		return leadsTable(w, leads)
	}
}

func leadsTable(out io.Writer, leads []model.Lead) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCITY\tSCORE\tTIER\tAUDIT\tPLATFORM\tENRICHMENT")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t-----\t----\t-----\t--------\t----------")
	for i := range leads {
		l := &leads[i]
		audit := "-"
		if l.AuditScore != nil {
			audit = strconv.Itoa(*l.AuditScore)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			truncateID(l.ID),
			truncate(l.Name, 30),
			l.City,
			l.LeadScore,
			l.LeadTier,
			audit,
			dash(l.Platform),
			l.EnrichmentStatus,
		)
	}
	return eris.Wrap(w.Flush(), "export: flush table")
}

// Jobs writes search jobs to w. Spreadsheet output is not supported for jobs.
func Jobs(out io.Writer, f Format, jobs []model.SearchJob) error {
	if jobs == nil {
		jobs = []model.SearchJob{}
	}
	switch f {
	case FormatJSON:
		return writeJSON(out, jobs)
	case FormatYAML:
		return writeYAML(out, jobs)
	case FormatXLSX:
		return eris.New("export: xlsx is only supported for leads")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUERY\tLOCATION\tSTATUS\tFOUND\tENRICHED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t--------\t------\t-----\t--------\t-------")
	for _, j := range jobs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(j.ID),
			truncate(j.Query, 30),
			truncate(j.Location, 30),
			j.Status,
			j.TotalFound,
			j.EnrichedCount,
			j.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return eris.Wrap(w.Flush(), "export: flush table")
}

// Stats writes aggregate lead statistics to w.
func Stats(out io.Writer, f Format, s *store.Stats) error {
	switch f {
	case FormatJSON:
		return writeJSON(out, s)
	case FormatYAML:
		return writeYAML(out, s)
	case FormatXLSX:
		return eris.New("export: xlsx is only supported for leads")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total leads:\t%d\n", s.TotalLeads)
	_, _ = fmt.Fprintf(w, "Enriched:\t%d\n", s.Enriched)
	_, _ = fmt.Fprintf(w, "With website:\t%d\n", s.WithWebsite)
	_, _ = fmt.Fprintf(w, "Without website:\t%d\n", s.WithoutWebsite)
	_, _ = fmt.Fprintf(w, "Hot / warm / cold:\t%d / %d / %d\n", s.Hot, s.Warm, s.Cold)
	_, _ = fmt.Fprintf(w, "Unscored:\t%d\n", s.Unscored)
	_, _ = fmt.Fprintf(w, "Contacted:\t%d\n", s.Contacted)
	_, _ = fmt.Fprintf(w, "Won / lost:\t%d / %d\n", s.Won, s.Lost)
	_, _ = fmt.Fprintf(w, "Avg lead score:\t%.1f\n", s.AvgLeadScore)
	if len(s.TopCategories) > 0 {
		_, _ = fmt.Fprintln(w, "Top categories:")
		for _, c := range s.TopCategories {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", dash(c.Category), c.Count)
		}
	}
	return eris.Wrap(w.Flush(), "export: flush table")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "export: encode json")
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return eris.Wrap(enc.Close(), "export: close yaml encoder")
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
