package export

import (
	"bytes"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

func sampleLeads() []model.Lead {
	a := model.NewLead("Acme Plumbing")
	a.ID = "0f1e2d3c-aaaa-bbbb-cccc-000000000001"
	a.City = "Austin"
	a.State = "TX"
	a.Category = "plumber"
	a.Website = "https://acme.example"
	a.Platform = "wix"
	a.Emails = []string{"info@acme.example", "sales@acme.example"}
	a.LeadScore = 55
	a.LeadTier = model.TierHot
	score := 42
	a.AuditScore = &score
	a.Rating = 4.5
	a.ReviewCount = 12

	b := model.NewLead("Bare Bones Roofing With A Very Long Business Name")
	b.ID = "short"
	b.LeadScore = 20
	b.LeadTier = model.TierCold
	return []model.Lead{*a, *b}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"": FormatTable, "table": FormatTable, " JSON ": FormatJSON, "yaml": FormatYAML, "xlsx": FormatXLSX,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestLeads_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Leads(&buf, FormatTable, sampleLeads()))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "0f1e2d3c")
	assert.NotContains(t, out, "0f1e2d3c-aaaa")
	assert.Contains(t, out, "Acme Plumbing")
	assert.Contains(t, out, "Bare Bones Roofing With A V...")
	assert.Contains(t, out, "wix")
}

func TestLeads_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Leads(&buf, FormatJSON, sampleLeads()))

	var got []model.Lead
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Acme Plumbing", got[0].Name)
	assert.Equal(t, 55, got[0].LeadScore)
}

func TestLeads_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Leads(&buf, FormatJSON, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestLeads_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Leads(&buf, FormatYAML, sampleLeads()))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Acme Plumbing", got[0]["name"])
	assert.Equal(t, "hot", got[0]["lead_tier"])
}

func TestLeads_XLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Leads(&buf, FormatXLSX, sampleLeads()))

	rows, err := ReadLeadsXLSX(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, leadColumns, rows[0])
	assert.Equal(t, "Acme Plumbing", rows[1][1])
	assert.Equal(t, "info@acme.example;sales@acme.example", rows[1][8])

	score, err := strconv.ParseFloat(rows[1][9], 64)
	require.NoError(t, err)
	assert.InDelta(t, 55, score, 0.001)

	// Missing audit score stays blank rather than zero.
	assert.Equal(t, "", rows[2][11])
}

func TestReadLeadsXLSX_Invalid(t *testing.T) {
	_, err := ReadLeadsXLSX([]byte("not a workbook"))
	assert.Error(t, err)
}

func TestJobs(t *testing.T) {
	jobs := []model.SearchJob{{
		ID: "job-123456789", Query: "dentists", Location: "Boise, ID",
		Status: model.JobStatusComplete, TotalFound: 14, EnrichedCount: 12,
		CreatedAt: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	require.NoError(t, Jobs(&buf, FormatTable, jobs))
	assert.Contains(t, buf.String(), "job-1234")
	assert.Contains(t, buf.String(), "2026-05-01 09:30")

	buf.Reset()
	require.NoError(t, Jobs(&buf, FormatJSON, nil))
	assert.Equal(t, "[]\n", buf.String())

	assert.Error(t, Jobs(&buf, FormatXLSX, jobs))
}

func TestStats(t *testing.T) {
	s := &store.Stats{
		TotalLeads: 10, Enriched: 8, WithWebsite: 7, WithoutWebsite: 3,
		Hot: 2, Warm: 3, Cold: 4, Unscored: 1, AvgLeadScore: 37.5,
		TopCategories: []store.CategoryCount{{Category: "plumber", Count: 6}},
	}

	var buf bytes.Buffer
	require.NoError(t, Stats(&buf, FormatTable, s))
	out := buf.String()
	assert.Contains(t, out, "Total leads:")
	assert.Contains(t, out, "2 / 3 / 4")
	assert.Contains(t, out, "37.5")
	assert.Contains(t, out, "plumber")

	buf.Reset()
	require.NoError(t, Stats(&buf, FormatYAML, s))
	assert.Contains(t, buf.String(), "total_leads: 10")

	assert.Error(t, Stats(&buf, FormatXLSX, s))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "-", dash(""))
}
