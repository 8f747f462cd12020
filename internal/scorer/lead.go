package scorer

import (
	"strings"

	"github.com/sells-group/leadgen/internal/model"
)

// Rules holds the lead scoring weights and thresholds.
type Rules struct {
	NoWebsite        int
	BadWebsite       int
	MediocreWebsite  int
	HasEmail         int
	HasPhone         int
	HighRating       int
	ManyReviews      int
	HasSocials       int
	UpgradePlatform  int
	BadAuditBelow    int
	MediocreBelow    int
	MinRating        float64
	MinReviews       int
	MinSocials       int
	HotAt            int
	WarmAt           int
	ColdAt           int
	UpgradePlatforms []string
}

// DefaultRules returns the production scoring rubric. A lead with a website
// tops out at 65 (failing audit on an upgrade platform plus every contact
// and reputation signal); a lead without one tops out at 55, short of hot.
func DefaultRules() Rules {
	return Rules{
		NoWebsite:        25,
		BadWebsite:       20,
		MediocreWebsite:  10,
		HasEmail:         10,
		HasPhone:         5,
		HighRating:       5,
		ManyReviews:      5,
		HasSocials:       5,
		UpgradePlatform:  15,
		BadAuditBelow:    60,
		MediocreBelow:    75,
		MinRating:        4.0,
		MinReviews:       50,
		MinSocials:       2,
		HotAt:            60,
		WarmAt:           35,
		ColdAt:           15,
		UpgradePlatforms: []string{"wix", "weebly", "godaddy", "squarespace"},
	}
}

// scoredSocials are the platforms that count toward social presence.
var scoredSocials = []string{model.Facebook, model.Instagram, model.LinkedIn, model.Twitter}

var defaultRules = DefaultRules()

// Score computes a lead's score and tier with the default rules. It has no
// side effects.
func Score(l *model.Lead) (int, model.Tier) {
	return defaultRules.Score(l)
}

// Apply recomputes and stores l's score and tier. It reports whether
// either value changed.
func Apply(l *model.Lead) bool {
	score, tier := Score(l)
	changed := l.LeadScore != score || l.LeadTier != tier
	l.LeadScore = score
	l.LeadTier = tier
	return changed
}

// Score computes a lead's score and tier under r.
func (r Rules) Score(l *model.Lead) (int, model.Tier) {
	score := 0

	switch {
	case !l.HasWebsite || l.Website == "":
		score += r.NoWebsite
	case l.AuditScore != nil && *l.AuditScore < r.BadAuditBelow:
		score += r.BadWebsite
	case l.AuditScore != nil && *l.AuditScore < r.MediocreBelow:
		score += r.MediocreWebsite
	}

	if len(l.Emails) > 0 {
		score += r.HasEmail
	}
	if l.HasPhone() {
		score += r.HasPhone
	}
	if l.Rating >= r.MinRating {
		score += r.HighRating
	}
	if l.ReviewCount >= r.MinReviews {
		score += r.ManyReviews
	}
	if l.Socials.Count(scoredSocials...) >= r.MinSocials {
		score += r.HasSocials
	}
	if r.isUpgradePlatform(l.Platform) {
		score += r.UpgradePlatform
	}

	return score, r.Tier(score)
}

// Tier maps a score to its bucket.
func (r Rules) Tier(score int) model.Tier {
	switch {
	case score >= r.HotAt:
		return model.TierHot
	case score >= r.WarmAt:
		return model.TierWarm
	case score >= r.ColdAt:
		return model.TierCold
	default:
		return model.TierUnscored
	}
}

func (r Rules) isUpgradePlatform(platform string) bool {
	p := strings.ToLower(strings.TrimSpace(platform))
	if p == "" {
		return false
	}
	for _, up := range r.UpgradePlatforms {
		if p == up {
			return true
		}
	}
	return false
}
