package crawl

import (
	"context"
	"sync"
)

// stubFetcher serves canned pages keyed by URL and records every call.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]*Page
	errs  map[string]error
	calls []string
}

func (s *stubFetcher) Fetch(_ context.Context, rawURL string) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rawURL)
	if err, ok := s.errs[rawURL]; ok {
		return nil, err
	}
	if p, ok := s.pages[rawURL]; ok {
		cp := *p
		cp.URL = rawURL
		if cp.FinalURL == "" {
			cp.FinalURL = rawURL
		}
		return &cp, nil
	}
	return &Page{URL: rawURL, FinalURL: rawURL, StatusCode: 404}, nil
}
