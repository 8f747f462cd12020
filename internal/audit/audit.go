// Package audit grades a business website against a fixed checklist of
// local-business best practices.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/crawl"
	"github.com/sells-group/leadgen/internal/extract"
	"github.com/sells-group/leadgen/internal/metrics"
	"github.com/sells-group/leadgen/internal/model"
)

// MaxFixes is the number of recommendations returned per audit.
const MaxFixes = 5

// Rubric weights.
const (
	pointsSSL         = 25
	pointsEmail       = 20
	pointsPhone       = 15
	pointsMeta        = 10
	pointsMetaOptimal = 5
	pointsTitle       = 10
	pointsViewport    = 10
	pointsSocials     = 5
)

// auditedSocials are the platforms counted toward social presence.
var auditedSocials = []string{model.Facebook, model.Instagram, model.LinkedIn, model.Twitter}

// Result is the outcome of auditing one URL.
type Result struct {
	URL        string   `json:"url"`
	FinalURL   string   `json:"final_url,omitempty"`
	StatusCode int      `json:"status_code"`
	Score      int      `json:"score"`
	Grade      string   `json:"grade"`
	Summary    string   `json:"summary"`
	Fixes      []string `json:"fixes"`

	HasSSL                bool `json:"has_ssl"`
	HasEmail              bool `json:"has_email"`
	HasPhone              bool `json:"has_phone"`
	HasMetaDescription    bool `json:"has_meta_description"`
	MetaDescriptionLength int  `json:"meta_description_length"`
	HasViewport           bool `json:"has_viewport"`
	TitleLength           int  `json:"title_length"`
	SocialCount           int  `json:"social_count"`

	// Err is set when the page could not be fetched or parsed.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the audit could not inspect the page.
func (r *Result) Failed() bool {
	return r.Err != "" || (r.StatusCode != 0 && r.StatusCode != 200)
}

// Auditor fetches a page once and scores it.
type Auditor struct {
	fetcher crawl.Fetcher
}

// New creates an Auditor that fetches pages with f.
func New(f crawl.Fetcher) *Auditor {
	return &Auditor{fetcher: f}
}

// Audit fetches rawURL and scores it. It never returns an error: failures
// yield a zero score, grade F, and a summary describing what went wrong.
func (a *Auditor) Audit(ctx context.Context, rawURL string) *Result {
	target, err := crawl.NormalizeURL(rawURL)
	if err != nil {
		return failed(rawURL, err)
	}

	page, err := a.fetcher.Fetch(ctx, target)
	if err != nil {
		metrics.ObservePage("audit", "error")
		zap.L().Debug("audit: fetch failed", zap.String("url", target), zap.Error(err))
		return failed(rawURL, err)
	}
	if !page.OK() {
		metrics.ObservePage("audit", "status")
		return &Result{
			URL:        rawURL,
			FinalURL:   page.FinalURL,
			StatusCode: page.StatusCode,
			Grade:      Grade(0),
			Summary:    fmt.Sprintf("Website returned status %d", page.StatusCode),
			Fixes:      []string{},
		}
	}
	metrics.ObservePage("audit", "ok")

	final := page.FinalURL
	if final == "" {
		final = target
	}
	res, err := Inspect(final, page.Body)
	if err != nil {
		return failed(rawURL, err)
	}
	res.URL = rawURL
	res.StatusCode = page.StatusCode
	return res
}

// Inspect scores an already fetched page served from pageURL.
func Inspect(pageURL string, body []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	content := string(body)

	res := &Result{URL: pageURL, FinalURL: pageURL}
	if u, err := url.Parse(pageURL); err == nil {
		res.HasSSL = u.Scheme == "https"
	}
	res.HasEmail = len(extract.Emails(content)) > 0
	res.HasPhone = len(extract.Phones(content)) > 0

	if desc, ok := metaContent(doc, "description"); ok && desc != "" {
		res.HasMetaDescription = true
		res.MetaDescriptionLength = utf8.RuneCountInString(desc)
	}
	_, res.HasViewport = metaContent(doc, "viewport")
	res.TitleLength = utf8.RuneCountInString(strings.TrimSpace(doc.Find("title").First().Text()))
	res.SocialCount = extract.Socials(content).Count(auditedSocials...)

	res.Score = Score(res)
	res.Grade = Grade(res.Score)
	res.Summary = Summary(res)
	res.Fixes = Fixes(res)
	return res, nil
}

// metaContent returns the content of the first <meta name=...> tag whose
// name matches case-insensitively, and whether such a tag exists.
func metaContent(doc *goquery.Document, name string) (string, bool) {
	var (
		content string
		found   bool
	)
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), name) {
			return true
		}
		found = true
		content = strings.TrimSpace(s.AttrOr("content", ""))
		return false
	})
	return content, found
}

func failed(rawURL string, err error) *Result {
	return &Result{
		URL:     rawURL,
		Grade:   Grade(0),
		Summary: fmt.Sprintf("Audit failed: %v", err),
		Fixes:   []string{},
		Err:     err.Error(),
	}
}

// Score applies the rubric to the inspected signals, capped at 100.
func Score(r *Result) int {
	score := 0
	if r.HasSSL {
		score += pointsSSL
	}
	if r.HasEmail {
		score += pointsEmail
	}
	if r.HasPhone {
		score += pointsPhone
	}
	if r.HasMetaDescription {
		score += pointsMeta
		if r.MetaDescriptionLength >= 120 && r.MetaDescriptionLength <= 160 {
			score += pointsMetaOptimal
		}
	}
	if r.TitleLength >= 30 && r.TitleLength <= 60 {
		score += pointsTitle
	}
	if r.HasViewport {
		score += pointsViewport
	}
	if r.SocialCount >= 2 {
		score += pointsSocials
	}
	return min(score, 100)
}

// Grade converts a 0-100 score to a letter grade.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// Summary lists the missing best practices in a single sentence.
func Summary(r *Result) string {
	var issues []string
	if !r.HasSSL {
		issues = append(issues, "no SSL certificate")
	}
	if !r.HasEmail {
		issues = append(issues, "no email contact")
	}
	if !r.HasPhone {
		issues = append(issues, "no phone number")
	}
	if !r.HasMetaDescription {
		issues = append(issues, "missing meta description")
	}
	if !r.HasViewport {
		issues = append(issues, "not mobile-optimized")
	}
	if r.SocialCount == 0 {
		issues = append(issues, "no social media links")
	}
	if len(issues) == 0 {
		return "Website follows most best practices"
	}
	return "Issues found: " + strings.Join(issues, ", ")
}

// Fixes returns up to MaxFixes recommendations, most important first.
func Fixes(r *Result) []string {
	fixes := []string{}
	if !r.HasSSL {
		fixes = append(fixes, "Install SSL certificate (critical for trust and SEO)")
	}
	if !r.HasEmail {
		fixes = append(fixes, "Add contact email address to website")
	}
	if !r.HasPhone {
		fixes = append(fixes, "Display phone number prominently")
	}
	if !r.HasViewport {
		fixes = append(fixes, "Add viewport meta tag for mobile optimization")
	}
	if !r.HasMetaDescription {
		fixes = append(fixes, "Add meta description for better search results")
	}
	if r.SocialCount == 0 {
		fixes = append(fixes, "Link to social media profiles")
	}
	switch {
	case r.TitleLength == 0:
		fixes = append(fixes, "Add a page title")
	case r.TitleLength > 60:
		fixes = append(fixes, "Shorten page title for better SEO")
	case r.TitleLength < 30:
		fixes = append(fixes, "Lengthen page title to 30-60 characters")
	}
	if len(fixes) > MaxFixes {
		fixes = fixes[:MaxFixes]
	}
	return fixes
}
