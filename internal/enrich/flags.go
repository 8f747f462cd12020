package enrich

import (
	"github.com/sells-group/leadgen/internal/crawl"
	"github.com/sells-group/leadgen/internal/extract"
)

// Crawl-derived audit flags.
const (
	FlagNoEmail        = "no_email"
	FlagNoPhone        = "no_phone"
	FlagNoSSL          = "no_ssl"
	FlagNoSocials      = "no_socials"
	FlagMinimalSocials = "minimal_socials"
	FlagParkedDomain   = "parked_domain"
	flagPlatformPrefix = "platform:"
	flagBlockPrefix    = "bot_protection:"
)

// Flags derives a short list of audit-lite flags from a crawl.
func Flags(res *crawl.Result) []string {
	flags := []string{}
	if res.Platform != "" && res.Platform != extract.PlatformCustom {
		flags = append(flags, flagPlatformPrefix+res.Platform)
	}
	if len(res.Emails) == 0 {
		flags = append(flags, FlagNoEmail)
	}
	if len(res.Phones) == 0 {
		flags = append(flags, FlagNoPhone)
	}
	if !res.HasSSL {
		flags = append(flags, FlagNoSSL)
	}
	switch res.Socials.Count() {
	case 0:
		flags = append(flags, FlagNoSocials)
	case 1:
		flags = append(flags, FlagMinimalSocials)
	}
	switch {
	case res.BlockType == crawl.BlockParked:
		flags = append(flags, FlagParkedDomain)
	case res.Blocked():
		flags = append(flags, flagBlockPrefix+string(res.BlockType))
	}
	return flags
}
