package extract

import "strings"

// PlatformCustom is reported when no site-builder signature matches.
const PlatformCustom = "custom"

// platformSignatures is checked in order; the first match wins.
var platformSignatures = []struct {
	name       string
	signatures []string
}{
	{"squarespace", []string{"squarespace.com", "static1.squarespace.com"}},
	{"wix", []string{"wixsite.com", "parastorage.com", "wix.com"}},
	{"wordpress", []string{"wp-content", "wp-includes", "wordpress"}},
	{"shopify", []string{"cdn.shopify.com", "myshopify.com"}},
	{"webflow", []string{"webflow.com", "assets-global.website-files.com"}},
	{"godaddy", []string{"godaddy.com", "secureserver.net"}},
	{"weebly", []string{"weebly.com"}},
}

// Platform classifies the site builder behind a page from its source.
func Platform(content string) string {
	lower := strings.ToLower(content)
	for _, p := range platformSignatures {
		for _, sig := range p.signatures {
			if strings.Contains(lower, sig) {
				return p.name
			}
		}
	}
	return PlatformCustom
}
