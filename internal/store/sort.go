package store

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// SortKey is the closed set of lead orderings. Each key maps to exactly one
// column, so user input never reaches SQL text.
type SortKey string

const (
	SortScore      SortKey = "score"
	SortName       SortKey = "name"
	SortCreated    SortKey = "created"
	SortRating     SortKey = "rating"
	SortReviews    SortKey = "reviews"
	SortAuditScore SortKey = "audit_score"
	SortCity       SortKey = "city"
)

// SortKeys lists every valid key.
var SortKeys = []SortKey{SortScore, SortName, SortCreated, SortRating, SortReviews, SortAuditScore, SortCity}

// SortDir is the ordering direction.
type SortDir string

const (
	SortDesc SortDir = "desc"
	SortAsc  SortDir = "asc"
)

// sortColumns maps keys to SQL expressions. audit_score is coalesced so
// unaudited leads sort below every audited one on both backends.
var sortColumns = map[SortKey]string{
	SortScore:      "lead_score",
	SortName:       "name",
	SortCreated:    "created_at",
	SortRating:     "rating",
	SortReviews:    "review_count",
	SortAuditScore: "COALESCE(audit_score, -1)",
	SortCity:       "city",
}

// ParseSortKey validates s. An empty string yields SortScore.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortScore, nil
	}
	for _, k := range SortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", eris.Errorf("store: unknown sort key %q", s)
}

// ParseSortDir validates s. An empty string yields SortDesc.
func ParseSortDir(s string) (SortDir, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc":
		return SortDesc, nil
	case "asc":
		return SortAsc, nil
	default:
		return "", eris.Errorf("store: unknown sort direction %q", s)
	}
}

// orderBy renders the ORDER BY clause for a filter, with id as a stable
// tie-breaker.
func orderBy(key SortKey, dir SortDir) string {
	col, ok := sortColumns[key]
	if !ok {
		col = sortColumns[SortScore]
	}
	d := "DESC"
	if dir == SortAsc {
		d = "ASC"
	}
	return " ORDER BY " + col + " " + d + ", id ASC"
}

// lessFunc returns the in-memory comparator for key, honoring dir, with id
// as the tie-breaker.
func lessFunc(key SortKey, dir SortDir) func(a, b *model.Lead) bool {
	var cmp func(a, b *model.Lead) int
	switch key {
	case SortName:
		cmp = func(a, b *model.Lead) int { return strings.Compare(a.Name, b.Name) }
	case SortCreated:
		cmp = func(a, b *model.Lead) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortRating:
		cmp = func(a, b *model.Lead) int { return compareFloat(a.Rating, b.Rating) }
	case SortReviews:
		cmp = func(a, b *model.Lead) int { return a.ReviewCount - b.ReviewCount }
	case SortAuditScore:
		cmp = func(a, b *model.Lead) int { return auditOrDefault(a) - auditOrDefault(b) }
	case SortCity:
		cmp = func(a, b *model.Lead) int { return strings.Compare(a.City, b.City) }
	default:
		cmp = func(a, b *model.Lead) int { return a.LeadScore - b.LeadScore }
	}
	return func(a, b *model.Lead) bool {
		c := cmp(a, b)
		if dir != SortAsc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func auditOrDefault(l *model.Lead) int {
	if l.AuditScore == nil {
		return -1
	}
	return *l.AuditScore
}
