package main

import (
	"context"

	"github.com/sells-group/leadgen/internal/audit"
	"github.com/sells-group/leadgen/internal/cache"
	"github.com/sells-group/leadgen/internal/crawl"
	"github.com/sells-group/leadgen/internal/discovery"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/store"
)

// pipelineEnv holds the store and services used by the search, enrich,
// audit, rescore, and serve commands.
type pipelineEnv struct {
	Store     store.Store
	Discovery *discovery.Service // nil unless the mode discovers
	Enricher  *enrich.Orchestrator
	Pages     *cache.TTL[string, *crawl.Page] // nil when caching is disabled
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline opens the store and builds the services needed by mode.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	st, err := openStore(ctx, mode)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	fetcher, pages := buildFetcher()
	env.Pages = pages
	crawler := crawl.New(fetcher,
		crawl.WithMaxSubpages(cfg.Crawl.MaxSubpages),
		crawl.WithPoliteness(cfg.Crawl.Politeness()),
	)
	env.Enricher = enrich.New(st, crawler,
		enrich.WithConcurrency(cfg.Enrich.Concurrency),
		enrich.WithFreshnessWindow(cfg.Enrich.FreshnessWindow()),
		enrich.WithAuditor(audit.New(fetcher)),
	)

	if mode == "search" || mode == "serve" {
		provider, err := discovery.NewProvider(cfg.Google, cfg.Discovery)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Discovery = discovery.NewService(st, provider,
			discovery.WithEnricher(env.Enricher),
			discovery.WithDefaults(cfg.Discovery.DefaultMaxResults, cfg.Discovery.DefaultRadiusKM),
		)
	}

	return env, nil
}

// buildFetcher returns the HTTP fetcher shared by the crawler and the
// auditor, wrapped in a page cache when crawl.cache_ttl_mins is positive.
func buildFetcher() (crawl.Fetcher, *cache.TTL[string, *crawl.Page]) {
	var fetcher crawl.Fetcher = crawl.NewHTTPFetcher(
		crawl.WithUserAgent(cfg.Crawl.UserAgent),
		crawl.WithMaxBody(int64(cfg.Crawl.MaxBodyKB)*1024),
		crawl.WithTimeout(cfg.Crawl.Timeout()),
	)
	if ttl := cfg.Crawl.CacheTTL(); ttl > 0 {
		pages := cache.NewTTL[string, *crawl.Page](ttl)
		return crawl.NewCachingFetcher(fetcher, pages), pages
	}
	return fetcher, nil
}
