package crawl

import (
	"bytes"
	"net/http"
	"strings"
)

// BlockType names what stood between the crawler and a business's real
// content.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	// BlockParked is a registrar parking or hosting-suspended page served
	// in place of the business site.
	BlockParked BlockType = "parked"
)

const (
	// challengePageLimit bounds the body size at which captcha markers count
	// as a challenge page. Larger pages usually embed a captcha widget on a
	// contact form.
	challengePageLimit = 10 * 1024
	// shellPageLimit bounds the body size of a JS-only shell.
	shellPageLimit = 2000
	// parkedPageLimit bounds the body size of a parking page.
	parkedPageLimit = 32 * 1024
)

// bodyRule flags a page whose lower-cased body contains every marker in all.
type bodyRule struct {
	block BlockType
	limit int
	all   []string
}

// bodyRules are checked in order; the first match wins.
var bodyRules = []bodyRule{
	{BlockCloudflare, 0, []string{"checking your browser"}},
	{BlockCloudflare, 0, []string{"cf-browser-verification"}},
	{BlockCloudflare, 0, []string{"cloudflare", "challenge"}},
	{BlockParked, parkedPageLimit, []string{"this domain", "for sale"}},
	{BlockParked, parkedPageLimit, []string{"domain is parked"}},
	{BlockParked, parkedPageLimit, []string{"account has been suspended"}},
	{BlockParked, parkedPageLimit, []string{"parkingcrew"}},
	{BlockParked, parkedPageLimit, []string{"sedoparking"}},
	{BlockJSShell, shellPageLimit, []string{"<noscript", "javascript"}},
	{BlockJSShell, shellPageLimit, []string{`meta http-equiv="refresh"`}},
}

// ClassifyBlock reports what kind of block, if any, p represents.
func ClassifyBlock(p *Page) BlockType {
	if p == nil {
		return BlockNone
	}
	if edgeBlocked(p.StatusCode, p.Header) {
		return BlockCloudflare
	}

	lower := bytes.ToLower(p.Body)
	for _, r := range bodyRules {
		if r.limit > 0 && len(lower) >= r.limit {
			continue
		}
		if containsAll(lower, r.all) {
			return r.block
		}
	}

	// A 200 page may legitimately carry a captcha widget; error pages and
	// small bodies mentioning one are challenges.
	if (p.StatusCode != http.StatusOK || len(lower) < challengePageLimit) &&
		bytes.Contains(lower, []byte("captcha")) {
		return BlockCaptcha
	}
	return BlockNone
}

// edgeBlocked reports a Cloudflare edge refusal from the status and headers.
func edgeBlocked(status int, h http.Header) bool {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return false
	}
	return h.Get("Cf-Ray") != "" || h.Get("Cf-Cache-Status") != "" ||
		strings.EqualFold(h.Get("Server"), "cloudflare")
}

func containsAll(body []byte, markers []string) bool {
	for _, m := range markers {
		if !bytes.Contains(body, []byte(m)) {
			return false
		}
	}
	return true
}
