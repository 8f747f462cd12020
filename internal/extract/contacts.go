// Package extract pulls contact signals (emails, phone numbers, social
// profiles) and site-builder fingerprints out of raw page content.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/leadgen/internal/model"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	digitRe = regexp.MustCompile(`\D`)
)

// socialPatterns has one pattern per platform, in model.SocialPlatforms order.
var socialPatterns = []struct {
	platform string
	re       *regexp.Regexp
}{
	{model.Facebook, regexp.MustCompile(`https?://(?:www\.)?facebook\.com/[a-zA-Z0-9._\-]+/?`)},
	{model.Instagram, regexp.MustCompile(`https?://(?:www\.)?instagram\.com/[a-zA-Z0-9._\-]+/?`)},
	{model.LinkedIn, regexp.MustCompile(`https?://(?:www\.)?linkedin\.com/(?:company|in)/[a-zA-Z0-9._\-]+/?`)},
	{model.Twitter, regexp.MustCompile(`https?://(?:www\.)?(?:twitter|x)\.com/[a-zA-Z0-9._\-]+/?`)},
	{model.TikTok, regexp.MustCompile(`https?://(?:www\.)?tiktok\.com/@[a-zA-Z0-9._\-]+/?`)},
	{model.YouTube, regexp.MustCompile(`https?://(?:www\.)?youtube\.com/(?:@|channel/|c/)[a-zA-Z0-9._\-]+/?`)},
	{model.Yelp, regexp.MustCompile(`https?://(?:www\.)?yelp\.com/biz/[a-zA-Z0-9._\-]+/?`)},
}

// socialNonProfiles are share widgets and tracking pixels that match the
// profile patterns but never identify a business.
var socialNonProfiles = map[string][]string{
	model.Facebook: {"/tr", "/sharer", "/sharer.php", "/plugins", "/dialog"},
	model.Twitter:  {"/intent", "/share", "/home"},
}

// junkEmailDomains are tracking, CMS, and infrastructure domains that show
// up in page source but never belong to the business.
var junkEmailDomains = []string{
	"example.com",
	"sentry.io",
	"wixpress.com",
	"googleapis.com",
	"w3.org",
	"schema.org",
	"gravatar.com",
	"wordpress.org",
}

// assetRe matches a static-asset filename such as "logo@2x.png" split at the @.
var assetRe = regexp.MustCompile(`(?i)\.(?:png|jpe?g|gif|svg|webp|js|css)$`)

// Emails returns the business email addresses found in content: lower-cased,
// deduplicated, sorted, with junk domains and asset filenames removed.
func Emails(content string) []string {
	return CleanEmails(emailRe.FindAllString(content, -1))
}

// CleanEmails normalizes and filters raw email matches.
func CleanEmails(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		e = strings.ToLower(strings.TrimSpace(e))
		at := strings.LastIndex(e, "@")
		if at <= 0 || at == len(e)-1 {
			continue
		}
		local, domain := e[:at], e[at+1:]
		if isJunkDomain(domain) || looksLikeAsset(local) || looksLikeAsset(domain) {
			continue
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}

func isJunkDomain(domain string) bool {
	for _, d := range junkEmailDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func looksLikeAsset(s string) bool {
	return assetRe.MatchString(s)
}

// Phones returns US phone numbers found in content, formatted as
// (NNN) NNN-NNNN, deduplicated and sorted.
func Phones(content string) []string {
	return CleanPhones(phoneRe.FindAllString(content, -1))
}

// CleanPhones normalizes raw phone matches. Eleven-digit numbers with a
// leading country code of 1 are trimmed; anything that is not ten digits
// afterwards is dropped.
func CleanPhones(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		formatted, ok := FormatPhone(p)
		if !ok || seen[formatted] {
			continue
		}
		seen[formatted] = true
		out = append(out, formatted)
	}
	sort.Strings(out)
	return out
}

// FormatPhone renders a raw phone string as (NNN) NNN-NNNN.
func FormatPhone(raw string) (string, bool) {
	digits := digitRe.ReplaceAllString(raw, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:], true
}

// Socials returns the first profile URL per platform found in content,
// with any trailing slash removed.
func Socials(content string) model.Socials {
	var s model.Socials
	for _, sp := range socialPatterns {
		for _, m := range sp.re.FindAllString(content, -1) {
			m = strings.TrimRight(m, "/")
			if isNonProfile(sp.platform, m) {
				continue
			}
			s.Set(sp.platform, m)
			break
		}
	}
	return s
}

func isNonProfile(platform, link string) bool {
	lower := strings.ToLower(link)
	for _, suffix := range socialNonProfiles[platform] {
		if strings.HasSuffix(lower, ".com"+suffix) {
			return true
		}
	}
	return false
}

// Contacts is everything extracted from one page.
type Contacts struct {
	Emails  []string
	Phones  []string
	Socials model.Socials
}

// All runs every contact extractor over content.
func All(content string) Contacts {
	return Contacts{
		Emails:  Emails(content),
		Phones:  Phones(content),
		Socials: Socials(content),
	}
}
