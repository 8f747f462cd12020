package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/export"
	"github.com/sells-group/leadgen/internal/store"
)

// useConfig loads the default config from an empty temp dir with env
// overrides and installs it as the command config.
func useConfig(t *testing.T, env map[string]string) {
	t.Helper()
	dir := t.TempDir()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	for k, v := range env {
		t.Setenv(k, v)
	}

	c, err := config.Load()
	require.NoError(t, err)

	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
}

func TestPipelineEnv_Close_Nil(t *testing.T) {
	pe := &pipelineEnv{}
	assert.NotPanics(t, func() { pe.Close() })
}

func TestInitStore_SQLite(t *testing.T) {
	useConfig(t, nil)
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "leads.db")

	st, err := openStore(context.Background(), "migrate")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	assert.IsType(t, &store.SQLiteStore{}, st)
}

func TestInitStore_Memory(t *testing.T) {
	useConfig(t, map[string]string{"LEADGEN_STORE_DRIVER": "memory"})

	st, err := initStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, st)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "oracle"}}
	t.Cleanup(func() { cfg = nil })

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitPipeline_SearchNeedsProvider(t *testing.T) {
	useConfig(t, map[string]string{"LEADGEN_STORE_DRIVER": "memory"})

	env, err := initPipeline(context.Background(), "search")
	assert.Nil(t, env)
	require.Error(t, err)
}

func TestInitPipeline_SyntheticSearch(t *testing.T) {
	useConfig(t, map[string]string{
		"LEADGEN_STORE_DRIVER":        "memory",
		"LEADGEN_DISCOVERY_SYNTHETIC": "true",
	})

	env, err := initPipeline(context.Background(), "search")
	require.NoError(t, err)
	t.Cleanup(env.Close)

	require.NotNil(t, env.Discovery)
	require.NotNil(t, env.Enricher)
	assert.NotNil(t, env.Pages, "page cache is on by default")
}

func TestInitPipeline_EnrichSkipsDiscovery(t *testing.T) {
	useConfig(t, map[string]string{
		"LEADGEN_STORE_DRIVER":         "memory",
		"LEADGEN_CRAWL_CACHE_TTL_MINS": "0",
	})

	env, err := initPipeline(context.Background(), "enrich")
	require.NoError(t, err)
	t.Cleanup(env.Close)

	assert.Nil(t, env.Discovery)
	assert.Nil(t, env.Pages)
}

func TestSearchCommand_Synthetic(t *testing.T) {
	useConfig(t, nil)
	t.Setenv("LEADGEN_STORE_DRIVER", "memory")
	t.Setenv("LEADGEN_DISCOVERY_SYNTHETIC", "true")
	t.Setenv("LEADGEN_LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"search", "--query", "plumbers", "--location", "Austin, TX", "--format", "json"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())
}

func TestFormatSummary(t *testing.T) {
	var buf bytes.Buffer
	formatSummary(&buf, &enrich.Summary{
		JobID: "job-1", Pending: 12, Processed: 12, Enriched: 9, Failed: 1, NoWebsite: 2,
		Duration: 1540 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "Processed:")
	assert.Contains(t, out, "1.5s")
	assert.NotContains(t, out, "Errors:")
}

func TestOpenOutput(t *testing.T) {
	_, err := openOutput("", export.FormatXLSX)
	require.Error(t, err)

	w, err := openOutput("", export.FormatJSON)
	require.NoError(t, err)
	assert.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "leads.xlsx")
	w, err = openOutput(path, export.FormatXLSX)
	require.NoError(t, err)
	require.NoError(t, export.Leads(w, export.FormatXLSX, nil))
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestLeadFilterFromFlags(t *testing.T) {
	require.NoError(t, leadsCmd.Flags().Set("tier", "hot"))
	require.NoError(t, leadsCmd.Flags().Set("min-score", "35"))
	require.NoError(t, leadsCmd.Flags().Set("dir", "asc"))
	t.Cleanup(func() {
		_ = leadsCmd.Flags().Set("tier", "")
		_ = leadsCmd.Flags().Set("min-score", "0")
		_ = leadsCmd.Flags().Set("dir", "desc")
	})

	f, err := leadFilterFromFlags(leadsCmd)
	require.NoError(t, err)
	assert.Equal(t, "hot", string(f.Tier))
	assert.Equal(t, 35, f.MinScore)
	assert.Equal(t, store.SortScore, f.Sort)
	assert.Equal(t, store.SortAsc, f.Dir)
	assert.Equal(t, 100, f.Limit)

	require.NoError(t, leadsCmd.Flags().Set("sort", "bogus"))
	t.Cleanup(func() { _ = leadsCmd.Flags().Set("sort", "score") })
	_, err = leadFilterFromFlags(leadsCmd)
	assert.Error(t, err)
}
