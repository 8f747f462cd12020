// Package crawl fetches a business website's homepage and a few contact
// pages and aggregates the contact signals found on them.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/extract"
	"github.com/sells-group/leadgen/internal/metrics"
	"github.com/sells-group/leadgen/internal/model"
)

const (
	// DefaultMaxSubpages is the number of contact pages visited per site.
	DefaultMaxSubpages = 3
	// DefaultPoliteness is the pause before each subpage fetch.
	DefaultPoliteness = time.Second
)

// Result aggregates everything learned from one website.
type Result struct {
	URL          string        `json:"url"`
	FinalURL     string        `json:"final_url,omitempty"`
	StatusCode   int           `json:"status_code"`
	Platform     string        `json:"platform,omitempty"`
	Emails       []string      `json:"emails"`
	Phones       []string      `json:"phones"`
	Socials      model.Socials `json:"socials"`
	HasSSL       bool          `json:"has_ssl"`
	BlockType    BlockType     `json:"block_type,omitempty"`
	PagesFetched int           `json:"pages_fetched"`
	Error        string        `json:"error,omitempty"`
}

// Failed reports whether the homepage could not be loaded.
func (r *Result) Failed() bool { return r.Error != "" }

// Blocked reports whether bot protection was detected on the homepage.
func (r *Result) Blocked() bool { return r.BlockType != BlockNone }

// Crawler visits a homepage and its contact pages.
type Crawler struct {
	fetcher     Fetcher
	maxSubpages int
	politeness  time.Duration
	wait        func(ctx context.Context, d time.Duration) error
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxSubpages sets how many contact pages are visited.
func WithMaxSubpages(n int) Option {
	return func(c *Crawler) {
		if n >= 0 {
			c.maxSubpages = n
		}
	}
}

// WithPoliteness sets the delay before each subpage fetch.
func WithPoliteness(d time.Duration) Option {
	return func(c *Crawler) {
		if d >= 0 {
			c.politeness = d
		}
	}
}

// New creates a Crawler backed by f.
func New(f Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:     f,
		maxSubpages: DefaultMaxSubpages,
		politeness:  DefaultPoliteness,
		wait:        sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Crawl fetches the homepage of rawURL, then up to the configured number of
// contact pages. It never returns an error; a homepage failure is reported
// in Result.Error and no subpages are visited.
func (c *Crawler) Crawl(ctx context.Context, rawURL string) *Result {
	start := time.Now()
	defer func() { metrics.ObserveCrawl(time.Since(start)) }()

	res := &Result{URL: rawURL, Emails: []string{}, Phones: []string{}}
	log := zap.L().With(zap.String("url", rawURL))

	target, err := NormalizeURL(rawURL)
	if err != nil {
		res.Error = fmt.Sprintf("invalid url: %v", err)
		return res
	}

	home, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		metrics.ObservePage("homepage", "error")
		res.Error = fmt.Sprintf("failed to load homepage: %v", err)
		return res
	}
	res.StatusCode = home.StatusCode
	res.FinalURL = home.FinalURL
	res.BlockType = home.BlockType
	if !home.OK() {
		metrics.ObservePage("homepage", "status")
		res.Error = fmt.Sprintf("failed to load homepage: status %d", home.StatusCode)
		return res
	}
	metrics.ObservePage("homepage", "ok")
	res.PagesFetched = 1

	final := home.FinalURL
	if final == "" {
		final = target
	}
	base, err := url.Parse(final)
	if err != nil {
		base, _ = url.Parse(target)
	}
	res.FinalURL = final
	res.HasSSL = base != nil && base.Scheme == "https"

	content := home.Content()
	res.Platform = extract.Platform(content)
	found := extract.All(content)
	emails := found.Emails
	phones := found.Phones
	res.Socials = found.Socials

	for _, link := range ContactPages(home.Body, base, c.maxSubpages) {
		if err := c.wait(ctx, c.politeness); err != nil {
			log.Debug("crawl: stopped before subpages", zap.Error(err))
			break
		}
		page, err := c.fetcher.Fetch(ctx, link)
		if err != nil || !page.OK() {
			metrics.ObservePage("subpage", "skipped")
			log.Debug("crawl: subpage skipped", zap.String("subpage", link), zap.Error(err))
			continue
		}
		metrics.ObservePage("subpage", "ok")
		res.PagesFetched++

		sub := extract.All(page.Content())
		emails = append(emails, sub.Emails...)
		phones = append(phones, sub.Phones...)
		res.Socials.Merge(sub.Socials)
	}

	res.Emails = extract.CleanEmails(emails)
	res.Phones = extract.CleanPhones(phones)
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
