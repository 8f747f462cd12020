package store

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

const jobColumns = `id, query, location, radius_km, max_results, status, total_found, enriched_count, error_message, created_at, updated_at`

const leadColumns = `id, search_job_id, place_id, name, address, city, state, zip, phone, maps_url,
	rating, review_count, category, types, latitude, longitude, opening_hours,
	website, has_website, website_status, platform, emails, phones, socials, owner_name,
	audit_score, audit_grade, audit_summary, audit_fixes, audit_flags, audited_at,
	enrichment_status, audit_status, outreach_status, lead_score, lead_tier,
	notes, tags, created_at, updated_at`

// leadUpdateColumns are the columns UpdateLead overwrites (everything but
// id, place_id, and created_at).
var leadUpdateColumns = []string{
	"search_job_id", "name", "address", "city", "state", "zip", "phone", "maps_url",
	"rating", "review_count", "category", "types", "latitude", "longitude", "opening_hours",
	"website", "has_website", "website_status", "platform", "emails", "phones", "socials", "owner_name",
	"audit_score", "audit_grade", "audit_summary", "audit_fixes", "audit_flags", "audited_at",
	"enrichment_status", "audit_status", "outreach_status", "lead_score", "lead_tier",
	"notes", "tags", "updated_at",
}

type scannable interface {
	Scan(dest ...any) error
}

func jobArgs(j *model.SearchJob) []any {
	return []any{
		j.ID, j.Query, j.Location, j.RadiusKM, j.MaxResults, string(j.Status),
		j.TotalFound, j.EnrichedCount, j.ErrorMessage, j.CreatedAt, j.UpdatedAt,
	}
}

func scanJob(row scannable) (*model.SearchJob, error) {
	var j model.SearchJob
	err := row.Scan(&j.ID, &j.Query, &j.Location, &j.RadiusKM, &j.MaxResults, &j.Status,
		&j.TotalFound, &j.EnrichedCount, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return &j, nil
}

// leadJSON holds the JSON-encoded collection columns of a lead.
type leadJSON struct {
	types, emails, phones, socials, fixes, flags, tags string
	hours                                              any
}

func encodeLead(l *model.Lead) (leadJSON, error) {
	var enc leadJSON
	var err error
	for _, f := range []struct {
		dst *string
		v   any
	}{
		{&enc.types, nonNil(l.Types)},
		{&enc.emails, nonNil(l.Emails)},
		{&enc.phones, nonNil(l.Phones)},
		{&enc.socials, l.Socials},
		{&enc.fixes, nonNil(l.AuditFixes)},
		{&enc.flags, nonNil(l.AuditFlags)},
		{&enc.tags, nonNil(l.Tags)},
	} {
		var b []byte
		if b, err = json.Marshal(f.v); err != nil {
			return enc, eris.Wrap(err, "store: marshal lead")
		}
		*f.dst = string(b)
	}
	if len(l.OpeningHours) > 0 {
		enc.hours = string(l.OpeningHours)
	}
	return enc, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// leadArgs returns values in leadColumns order.
func leadArgs(l *model.Lead) ([]any, error) {
	enc, err := encodeLead(l)
	if err != nil {
		return nil, err
	}
	return []any{
		l.ID, l.SearchJobID, l.PlaceID, l.Name, l.Address, l.City, l.State, l.Zip, l.Phone, l.MapsURL,
		l.Rating, l.ReviewCount, l.Category, enc.types, l.Latitude, l.Longitude, enc.hours,
		l.Website, l.HasWebsite, l.WebsiteStatus, l.Platform, enc.emails, enc.phones, enc.socials, l.OwnerName,
		l.AuditScore, l.AuditGrade, l.AuditSummary, enc.fixes, enc.flags, l.AuditedAt,
		string(l.EnrichmentStatus), string(l.AuditStatus), string(l.OutreachStatus), l.LeadScore, string(l.LeadTier),
		l.Notes, enc.tags, l.CreatedAt, l.UpdatedAt,
	}, nil
}

// leadUpdateArgs returns values in leadUpdateColumns order.
func leadUpdateArgs(l *model.Lead) ([]any, error) {
	enc, err := encodeLead(l)
	if err != nil {
		return nil, err
	}
	return []any{
		l.SearchJobID, l.Name, l.Address, l.City, l.State, l.Zip, l.Phone, l.MapsURL,
		l.Rating, l.ReviewCount, l.Category, enc.types, l.Latitude, l.Longitude, enc.hours,
		l.Website, l.HasWebsite, l.WebsiteStatus, l.Platform, enc.emails, enc.phones, enc.socials, l.OwnerName,
		l.AuditScore, l.AuditGrade, l.AuditSummary, enc.fixes, enc.flags, l.AuditedAt,
		string(l.EnrichmentStatus), string(l.AuditStatus), string(l.OutreachStatus), l.LeadScore, string(l.LeadTier),
		l.Notes, enc.tags, l.UpdatedAt,
	}, nil
}

func scanLead(row scannable) (*model.Lead, error) {
	var (
		l                                                  model.Lead
		types, emails, phones, socials, fixes, flags, tags []byte
		hours                                              []byte
	)
	err := row.Scan(
		&l.ID, &l.SearchJobID, &l.PlaceID, &l.Name, &l.Address, &l.City, &l.State, &l.Zip, &l.Phone, &l.MapsURL,
		&l.Rating, &l.ReviewCount, &l.Category, &types, &l.Latitude, &l.Longitude, &hours,
		&l.Website, &l.HasWebsite, &l.WebsiteStatus, &l.Platform, &emails, &phones, &socials, &l.OwnerName,
		&l.AuditScore, &l.AuditGrade, &l.AuditSummary, &fixes, &flags, &l.AuditedAt,
		&l.EnrichmentStatus, &l.AuditStatus, &l.OutreachStatus, &l.LeadScore, &l.LeadTier,
		&l.Notes, &tags, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{types, &l.Types},
		{emails, &l.Emails},
		{phones, &l.Phones},
		{socials, &l.Socials},
		{fixes, &l.AuditFixes},
		{flags, &l.AuditFlags},
		{tags, &l.Tags},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal lead %s", l.ID)
		}
	}
	if len(hours) > 0 {
		l.OpeningHours = append(json.RawMessage(nil), hours...)
	}
	l.Emails = nonNil(l.Emails)
	l.Phones = nonNil(l.Phones)
	l.Tags = nonNil(l.Tags)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	if l.AuditedAt != nil {
		t := l.AuditedAt.UTC()
		l.AuditedAt = &t
	}
	return &l, nil
}

// leadWhere renders the WHERE clause for a filter using ? placeholders.
func leadWhere(f LeadFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if f.JobID != "" {
		add("search_job_id = ?", f.JobID)
	}
	if f.PlaceID != "" {
		add("place_id = ?", f.PlaceID)
	}
	if f.Tier != "" {
		add("lead_tier = ?", string(f.Tier))
	}
	if f.EnrichmentStatus != "" {
		add("enrichment_status = ?", string(f.EnrichmentStatus))
	}
	if f.OutreachStatus != "" {
		add("outreach_status = ?", string(f.OutreachStatus))
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.City != "" {
		add("LOWER(city) = LOWER(?)", f.City)
	}
	if f.State != "" {
		add("UPPER(state) = UPPER(?)", f.State)
	}
	if f.MinScore > 0 {
		add("lead_score >= ?", f.MinScore)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const statsQuery = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN enrichment_status = 'enriched' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN has_website THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN lead_tier = 'hot' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN lead_tier = 'warm' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN lead_tier = 'cold' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN outreach_status IN ('contacted', 'in_progress') THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN outreach_status = 'won' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN outreach_status = 'lost' THEN 1 ELSE 0 END), 0),
	COALESCE(AVG(lead_score), 0)
FROM leads`

const categoriesQuery = `SELECT category, COUNT(*) AS n FROM leads WHERE category <> ''%s
GROUP BY category ORDER BY n DESC, category ASC LIMIT %d`

func scanStats(row scannable, st *Stats) error {
	return row.Scan(&st.TotalLeads, &st.Enriched, &st.WithWebsite, &st.Hot, &st.Warm, &st.Cold,
		&st.Contacted, &st.Won, &st.Lost, &st.AvgLeadScore)
}

// finishStats fills the derived counters.
func finishStats(st *Stats) {
	st.WithoutWebsite = st.TotalLeads - st.WithWebsite
	st.Unscored = st.TotalLeads - st.Hot - st.Warm - st.Cold
	if st.TopCategories == nil {
		st.TopCategories = []CategoryCount{}
	}
}

type twinKey struct {
	column, value string
}

// twinKeys lists the non-empty lookup keys for FindEnrichedTwin, strongest
// first.
func twinKeys(placeID, website string) []twinKey {
	var keys []twinKey
	if placeID != "" {
		keys = append(keys, twinKey{"place_id", placeID})
	}
	if website != "" {
		keys = append(keys, twinKey{"website", website})
	}
	return keys
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func setClause(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = ?"
	}
	return strings.Join(parts, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
