package crawl

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/cache"
)

const (
	// DefaultUserAgent identifies the crawler to site operators.
	DefaultUserAgent = "Mozilla/5.0 (compatible; LeadgenBot/1.0)"
	// DefaultMaxBody caps how much of a response body is read.
	DefaultMaxBody = 512 * 1024
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 15 * time.Second
)

// Page is one fetched document. A Page is returned for any HTTP response;
// callers check StatusCode.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
	BlockType  BlockType
}

// OK reports whether the page was served with 200.
func (p *Page) OK() bool {
	return p != nil && p.StatusCode == http.StatusOK
}

// Content returns the body as a string.
func (p *Page) Content() string {
	return string(p.Body)
}

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// HTTPFetcher fetches pages with net/http. Redirects are followed.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBody caps the number of body bytes read per page.
func WithMaxBody(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher with sensible defaults.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBody,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch issues a GET for rawURL. Only transport failures are returned as
// errors; HTTP error statuses come back as a Page.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, eris.Wrap(err, "crawl: read body")
	}

	page := &Page{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	page.BlockType = ClassifyBlock(page)
	return page, nil
}

// CachingFetcher serves repeated URLs from an expiring cache. Only 200
// pages are cached.
type CachingFetcher struct {
	next  Fetcher
	pages *cache.TTL[string, *Page]
}

// NewCachingFetcher wraps next with the given page cache.
func NewCachingFetcher(next Fetcher, pages *cache.TTL[string, *Page]) *CachingFetcher {
	return &CachingFetcher{next: next, pages: pages}
}

// Fetch implements Fetcher.
func (c *CachingFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if p, ok := c.pages.Get(rawURL); ok {
		return p, nil
	}
	p, err := c.next.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if p.OK() {
		c.pages.Put(rawURL, p)
	}
	return p, nil
}

// NormalizeURL prefixes bare domains with https:// and ensures a path.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("crawl: empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrap(err, "crawl: parse url")
	}
	if u.Host == "" {
		return "", eris.Errorf("crawl: no host in %q", raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
