package crawl

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ContactKeywords are the path fragments that mark a page as likely to
// carry contact or ownership details.
var ContactKeywords = []string{
	"contact", "about", "team", "about-us", "contact-us",
	"meet-the-team", "staff", "people", "our-team",
}

// ContactPages returns up to limit distinct same-site links from body whose
// path contains a contact keyword, in document order. The page itself is
// never returned.
func ContactPages(body []byte, base *url.URL, limit int) []string {
	if limit <= 0 || base == nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	self := stripFragment(*base)
	seen := map[string]bool{self: true}
	var links []string

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		lowerHref := strings.ToLower(href)
		if strings.HasPrefix(lowerHref, "javascript:") ||
			strings.HasPrefix(lowerHref, "mailto:") ||
			strings.HasPrefix(lowerHref, "tel:") {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		if !SameSite(abs.Host, base.Host) {
			return true
		}
		if !hasContactKeyword(abs.Path) {
			return true
		}

		normalized := stripFragment(*abs)
		if seen[normalized] {
			return true
		}
		seen[normalized] = true
		links = append(links, normalized)
		return len(links) < limit
	})

	return links
}

// SameSite compares hosts ignoring case and a leading "www.".
func SameSite(a, b string) bool {
	return trimWWW(a) == trimWWW(b)
}

func trimWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func hasContactKeyword(path string) bool {
	p := strings.ToLower(path)
	for _, kw := range ContactKeywords {
		if strings.Contains(p, "/"+kw) {
			return true
		}
	}
	return false
}

func stripFragment(u url.URL) string {
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
