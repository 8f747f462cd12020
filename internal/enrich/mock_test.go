package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/leadgen/internal/audit"
	"github.com/sells-group/leadgen/internal/crawl"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// mockCrawler returns canned results per URL and tracks concurrency.
type mockCrawler struct {
	results map[string]*crawl.Result
	delay   time.Duration
	panicOn string

	mu     sync.Mutex
	calls  []string
	active atomic.Int64
	peak   atomic.Int64
}

func (m *mockCrawler) Crawl(ctx context.Context, url string) *crawl.Result {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.mu.Unlock()

	if url == m.panicOn {
		panic("parser exploded")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}
	if r, ok := m.results[url]; ok {
		return r
	}
	return okResult(url)
}

func (m *mockCrawler) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func okResult(url string) *crawl.Result {
	return &crawl.Result{
		URL:          url,
		FinalURL:     url,
		StatusCode:   200,
		Platform:     "wix",
		Emails:       []string{"owner@biz.example"},
		Phones:       []string{"(512) 555-0100"},
		Socials:      model.Socials{Facebook: "https://facebook.com/biz"},
		HasSSL:       true,
		PagesFetched: 2,
	}
}

func failedResult(url string) *crawl.Result {
	return &crawl.Result{URL: url, Emails: []string{}, Phones: []string{}, Error: "failed to load homepage: connection refused"}
}

// mockAuditor returns a fixed audit result.
type mockAuditor struct {
	result *audit.Result
	calls  int
}

func (m *mockAuditor) Audit(_ context.Context, url string) *audit.Result {
	m.calls++
	r := *m.result
	r.URL = url
	return &r
}

// flakyStore fails UpdateScores or Begin on demand.
type flakyStore struct {
	*store.MemoryStore
	beginErr  error
	scoresErr error
}

func (f *flakyStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.MemoryStore.Begin(ctx)
}

func (f *flakyStore) UpdateScores(ctx context.Context, u []store.ScoreUpdate) error {
	if f.scoresErr != nil {
		return f.scoresErr
	}
	return f.MemoryStore.UpdateScores(ctx, u)
}

var errBoom = errors.New("boom")
