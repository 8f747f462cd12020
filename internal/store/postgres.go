package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/db"
	"github.com/sells-group/leadgen/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
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
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
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
	rating            DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count      INTEGER NOT NULL DEFAULT 0,
	category          TEXT NOT NULL DEFAULT '',
	types             JSONB NOT NULL DEFAULT '[]',
	latitude          DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
	opening_hours     JSONB,
	website           TEXT NOT NULL DEFAULT '',
	has_website       BOOLEAN NOT NULL DEFAULT false,
	website_status    INTEGER NOT NULL DEFAULT 0,
	platform          TEXT NOT NULL DEFAULT '',
	emails            JSONB NOT NULL DEFAULT '[]',
	phones            JSONB NOT NULL DEFAULT '[]',
	socials           JSONB NOT NULL DEFAULT '{}',
	owner_name        TEXT NOT NULL DEFAULT '',
	audit_score       INTEGER,
	audit_grade       TEXT NOT NULL DEFAULT '',
	audit_summary     TEXT NOT NULL DEFAULT '',
	audit_fixes       JSONB NOT NULL DEFAULT '[]',
	audit_flags       JSONB NOT NULL DEFAULT '[]',
	audited_at        TIMESTAMPTZ,
	enrichment_status TEXT NOT NULL DEFAULT 'pending',
	audit_status      TEXT NOT NULL DEFAULT 'pending',
	outreach_status   TEXT NOT NULL DEFAULT 'none',
	lead_score        INTEGER NOT NULL DEFAULT 0,
	lead_tier         TEXT NOT NULL DEFAULT 'unscored',
	notes             TEXT NOT NULL DEFAULT '',
	tags              JSONB NOT NULL DEFAULT '[]',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_search_jobs_status ON search_jobs(status);
CREATE INDEX IF NOT EXISTS idx_leads_job ON leads(search_job_id, enrichment_status);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(lead_score DESC);
CREATE INDEX IF NOT EXISTS idx_leads_tier ON leads(lead_tier);
CREATE INDEX IF NOT EXISTS idx_leads_category ON leads(category);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// pgRunner is satisfied by both db.Pool and pgx.Tx.
type pgRunner interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.SearchJob) error {
	_, err := s.pool.Exec(ctx,
		rebind(`INSERT INTO search_jobs (`+jobColumns+`) VALUES (`+placeholders(11)+`)`),
		jobArgs(job)...,
	)
	return eris.Wrapf(err, "postgres: insert job %s", job.ID)
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.SearchJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM search_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.SearchJob, error) {
	query := `SELECT ` + jobColumns + ` FROM search_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	jobs := []model.SearchJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.SearchJob) error {
	job.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE search_jobs SET status = $1, total_found = $2, enriched_count = $3, error_message = $4, updated_at = $5
		 WHERE id = $6`,
		string(job.Status), job.TotalFound, job.EnrichedCount, job.ErrorMessage, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", job.ID)
	}
	return nil
}

// --- Leads ---

func (s *PostgresStore) InsertLead(ctx context.Context, lead *model.Lead) (bool, error) {
	args, err := leadArgs(lead)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		rebind(`INSERT INTO leads (`+leadColumns+`) VALUES (`+placeholders(40)+`)
		 ON CONFLICT (place_id) DO NOTHING`),
		args...,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert lead %s", lead.ID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) PlaceIDExists(ctx context.Context, placeID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE place_id = $1)`, placeID).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: place id exists %s", placeID)
	}
	return exists, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return pgGetLead(ctx, s.pool, id, "")
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, int, error) {
	where, args := leadWhere(filter)

	var total int
	if err := s.pool.QueryRow(ctx, rebind(`SELECT COUNT(*) FROM leads`+where), args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count leads")
	}

	query := rebind(`SELECT ` + leadColumns + ` FROM leads` + where + orderBy(filter.Sort, filter.Dir) + ` LIMIT ? OFFSET ?`)
	rows, err := s.pool.Query(ctx, query, append(args, filter.limit(), filter.Offset)...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, total, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) ListJobLeadIDs(ctx context.Context, jobID string, status model.EnrichmentStatus) ([]string, error) {
	query := `SELECT id FROM leads WHERE search_job_id = $1`
	args := []any{jobID}
	if status != "" {
		query += ` AND enrichment_status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list lead ids for job %s", jobID)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list lead ids iterate")
}

// UpdateScores stages every change with COPY and applies it in a single
// UPDATE ... FROM.
func (s *PostgresStore) UpdateScores(ctx context.Context, updates []ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, len(updates))
	for i, u := range updates {
		rows[i] = []any{u.LeadID, u.Score, string(u.Tier), now}
	}
	_, err := db.BulkUpdate(ctx, s.pool, db.UpdateConfig{
		Table:   "leads",
		Key:     "id",
		Columns: []string{"lead_score", "lead_tier", "updated_at"},
	}, rows)
	return eris.Wrap(err, "postgres: update scores")
}

func (s *PostgresStore) Stats(ctx context.Context, jobID string) (*Stats, error) {
	var (
		where   string
		catCond string
		args    []any
	)
	if jobID != "" {
		where = ` WHERE search_job_id = $1`
		catCond = ` AND search_job_id = $1`
		args = append(args, jobID)
	}

	st := &Stats{}
	if err := scanStats(s.pool.QueryRow(ctx, statsQuery+where, args...), st); err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(categoriesQuery, catCond, topCategoryLimit), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top categories")
	}
	defer rows.Close()
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category")
		}
		st.TopCategories = append(st.TopCategories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: top categories iterate")
	}
	finishStats(st)
	return st, nil
}

// --- Unit of work ---

func (s *PostgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	return &pgUnit{tx: tx}, nil
}

type pgUnit struct {
	tx   pgx.Tx
	done bool
}

// GetLead reads the lead with a row lock held until Commit or Rollback, so
// concurrent enrichers of the same lead serialize on it.
func (u *pgUnit) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return pgGetLead(ctx, u.tx, id, " FOR UPDATE")
}

func (u *pgUnit) FindEnrichedTwin(ctx context.Context, placeID, website, excludeID string) (*model.Lead, error) {
	for _, key := range twinKeys(placeID, website) {
		row := u.tx.QueryRow(ctx,
			`SELECT `+leadColumns+` FROM leads
			 WHERE `+key.column+` = $1 AND id <> $2 AND enrichment_status = $3
			 ORDER BY updated_at DESC LIMIT 1`,
			key.value, excludeID, string(model.EnrichmentEnriched),
		)
		l, err := scanLead(row)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: find enriched twin by %s", key.column)
		}
		return l, nil
	}
	return nil, nil
}

func (u *pgUnit) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	args, err := leadUpdateArgs(lead)
	if err != nil {
		return err
	}
	tag, err := u.tx.Exec(ctx,
		rebind(`UPDATE leads SET `+setClause(leadUpdateColumns)+` WHERE id = ?`),
		append(args, lead.ID)...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", lead.ID)
	}
	return nil
}

func (u *pgUnit) Commit(ctx context.Context) error {
	u.done = true
	return eris.Wrap(u.tx.Commit(ctx), "postgres: commit")
}

func (u *pgUnit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	return eris.Wrap(u.tx.Rollback(ctx), "postgres: rollback")
}

func pgGetLead(ctx context.Context, q pgRunner, id, lock string) (*model.Lead, error) {
	row := q.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`+lock, id)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}
