package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied to every pooled connection through the DSN, so
// they hold no matter which connection database/sql hands out. Transactions
// take the write lock up front to avoid upgrade deadlocks between workers.
var sqlitePragmas = []string{
	"_pragma=journal_mode(WAL)",
	"_pragma=busy_timeout(5000)",
	"_pragma=synchronous(NORMAL)",
	"_pragma=foreign_keys(ON)",
	"_txlock=immediate",
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(sqlitePragmas, "&")
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS search_jobs (
	id             TEXT PRIMARY KEY,
	query          TEXT NOT NULL,
	location       TEXT NOT NULL,
	radius_km      INTEGER NOT NULL DEFAULT 25,
	max_results    INTEGER NOT NULL DEFAULT 60,
	status         TEXT NOT NULL DEFAULT 'pending',
	total_found    INTEGER NOT NULL DEFAULT 0,
	enriched_count INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id                TEXT PRIMARY KEY,
	search_job_id     TEXT REFERENCES search_jobs(id) ON DELETE SET NULL,
	place_id          TEXT UNIQUE,
	name              TEXT NOT NULL,
	address           TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	zip               TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	maps_url          TEXT NOT NULL DEFAULT '',
	rating            REAL NOT NULL DEFAULT 0,
	review_count      INTEGER NOT NULL DEFAULT 0,
	category          TEXT NOT NULL DEFAULT '',
	types             TEXT NOT NULL DEFAULT '[]',
	latitude          REAL NOT NULL DEFAULT 0,
	longitude         REAL NOT NULL DEFAULT 0,
	opening_hours     TEXT,
	website           TEXT NOT NULL DEFAULT '',
	has_website       INTEGER NOT NULL DEFAULT 0,
	website_status    INTEGER NOT NULL DEFAULT 0,
	platform          TEXT NOT NULL DEFAULT '',
	emails            TEXT NOT NULL DEFAULT '[]',
	phones            TEXT NOT NULL DEFAULT '[]',
	socials           TEXT NOT NULL DEFAULT '{}',
	owner_name        TEXT NOT NULL DEFAULT '',
	audit_score       INTEGER,
	audit_grade       TEXT NOT NULL DEFAULT '',
	audit_summary     TEXT NOT NULL DEFAULT '',
	audit_fixes       TEXT NOT NULL DEFAULT '[]',
	audit_flags       TEXT NOT NULL DEFAULT '[]',
	audited_at        DATETIME,
	enrichment_status TEXT NOT NULL DEFAULT 'pending',
	audit_status      TEXT NOT NULL DEFAULT 'pending',
	outreach_status   TEXT NOT NULL DEFAULT 'none',
	lead_score        INTEGER NOT NULL DEFAULT 0,
	lead_tier         TEXT NOT NULL DEFAULT 'unscored',
	notes             TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_search_jobs_status ON search_jobs(status);
CREATE INDEX IF NOT EXISTS idx_leads_job ON leads(search_job_id, enrichment_status);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(lead_score);
CREATE INDEX IF NOT EXISTS idx_leads_tier ON leads(lead_tier);
CREATE INDEX IF NOT EXISTS idx_leads_category ON leads(category);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqlRunner is satisfied by both *sql.DB and *sql.Tx.
type sqlRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Jobs ---

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.SearchJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_jobs (`+jobColumns+`) VALUES (`+placeholders(11)+`)`,
		jobArgs(job)...,
	)
	return eris.Wrapf(err, "sqlite: insert job %s", job.ID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.SearchJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM search_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.SearchJob, error) {
	query := `SELECT ` + jobColumns + ` FROM search_jobs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close() //nolint:errcheck

	jobs := []model.SearchJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.SearchJob) error {
	job.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_jobs SET status = ?, total_found = ?, enriched_count = ?, error_message = ?, updated_at = ?
		 WHERE id = ?`,
		string(job.Status), job.TotalFound, job.EnrichedCount, job.ErrorMessage, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

// --- Leads ---

func (s *SQLiteStore) InsertLead(ctx context.Context, lead *model.Lead) (bool, error) {
	args, err := leadArgs(lead)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`) VALUES (`+placeholders(40)+`)
		 ON CONFLICT (place_id) DO NOTHING`,
		args...,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert lead %s", lead.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) PlaceIDExists(ctx context.Context, placeID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE place_id = ?`, placeID).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: place id exists %s", placeID)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return sqliteGetLead(ctx, s.db, id)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, int, error) {
	where, args := leadWhere(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count leads")
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + where + orderBy(filter.Sort, filter.Dir) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.limit(), filter.Offset)...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	leads := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, total, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) ListJobLeadIDs(ctx context.Context, jobID string, status model.EnrichmentStatus) ([]string, error) {
	query := `SELECT id FROM leads WHERE search_job_id = ?`
	args := []any{jobID}
	if status != "" {
		query += ` AND enrichment_status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list lead ids for job %s", jobID)
	}
	defer rows.Close() //nolint:errcheck

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list lead ids iterate")
}

// UpdateScores writes every score change in one transaction.
func (s *SQLiteStore) UpdateScores(ctx context.Context, updates []ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin update scores")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `UPDATE leads SET lead_score = ?, lead_tier = ?, updated_at = ? WHERE id = ?`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare update scores")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.Score, string(u.Tier), now, u.LeadID); err != nil {
			return eris.Wrapf(err, "sqlite: update score %s", u.LeadID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit update scores")
}

func (s *SQLiteStore) Stats(ctx context.Context, jobID string) (*Stats, error) {
	var (
		where   string
		catCond string
		args    []any
	)
	if jobID != "" {
		where = ` WHERE search_job_id = ?`
		catCond = ` AND search_job_id = ?`
		args = append(args, jobID)
	}

	st := &Stats{}
	if err := scanStats(s.db.QueryRowContext(ctx, statsQuery+where, args...), st); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(categoriesQuery, catCond, topCategoryLimit), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top categories")
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category")
		}
		st.TopCategories = append(st.TopCategories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: top categories iterate")
	}
	finishStats(st)
	return st, nil
}

// --- Unit of work ---

func (s *SQLiteStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	return &sqliteUnit{tx: tx}, nil
}

type sqliteUnit struct {
	tx   *sql.Tx
	done bool
}

func (u *sqliteUnit) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return sqliteGetLead(ctx, u.tx, id)
}

func (u *sqliteUnit) FindEnrichedTwin(ctx context.Context, placeID, website, excludeID string) (*model.Lead, error) {
	for _, key := range twinKeys(placeID, website) {
		row := u.tx.QueryRowContext(ctx,
			`SELECT `+leadColumns+` FROM leads
			 WHERE `+key.column+` = ? AND id <> ? AND enrichment_status = ?
			 ORDER BY updated_at DESC LIMIT 1`,
			key.value, excludeID, string(model.EnrichmentEnriched),
		)
		l, err := scanLead(row)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: find enriched twin by %s", key.column)
		}
		return l, nil
	}
	return nil, nil
}

func (u *sqliteUnit) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	args, err := leadUpdateArgs(lead)
	if err != nil {
		return err
	}
	res, err := u.tx.ExecContext(ctx,
		`UPDATE leads SET `+setClause(leadUpdateColumns)+` WHERE id = ?`,
		append(args, lead.ID)...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	return checkRowsAffected(res, "lead", lead.ID)
}

func (u *sqliteUnit) Commit(_ context.Context) error {
	u.done = true
	return eris.Wrap(u.tx.Commit(), "sqlite: commit")
}

func (u *sqliteUnit) Rollback(_ context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	return eris.Wrap(u.tx.Rollback(), "sqlite: rollback")
}

// helpers

func sqliteGetLead(ctx context.Context, q sqlRunner, id string) (*model.Lead, error) {
	row := q.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
