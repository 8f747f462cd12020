package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpdateConfig describes a keyed bulk update.
type UpdateConfig struct {
	Table   string   // target table, optionally schema-qualified
	Key     string   // column matched between target and staged rows
	Columns []string // columns overwritten from the staged rows
}

// BulkUpdate overwrites Columns on existing rows of Table in one round trip:
//  1. stage rows (key first, then Columns) in a temp table via COPY
//  2. UPDATE target FROM the temp table joined on Key
//
// Rows whose key does not exist are ignored. The temp table is dropped on
// commit.
func BulkUpdate(ctx context.Context, pool Pool, cfg UpdateConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if cfg.Key == "" {
		return 0, eris.New("db: update: no key column specified")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: update: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: update: begin tx")
	}

	n, err := bulkUpdateTx(ctx, tx, cfg, rows)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: update: commit tx")
	}
	return n, nil
}

func bulkUpdateTx(ctx context.Context, tx pgx.Tx, cfg UpdateConfig, rows [][]any) (int64, error) {
	staged := "_tmp_update_" + strings.ReplaceAll(cfg.Table, ".", "_")
	allCols := append([]string{cfg.Key}, cfg.Columns...)

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WITH NO DATA",
		pgx.Identifier{staged}.Sanitize(),
		quoteAndJoin(allCols),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: update: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{staged}, allCols, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: update: COPY into temp table for %s", cfg.Table)
	}

	setClauses := make([]string, len(cfg.Columns))
	for i, col := range cfg.Columns {
		c := pgx.Identifier{col}.Sanitize()
		setClauses[i] = fmt.Sprintf("%s = s.%s", c, c)
	}
	key := pgx.Identifier{cfg.Key}.Sanitize()
	updateSQL := fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM %s AS s WHERE t.%s = s.%s",
		sanitizeTable(cfg.Table),
		strings.Join(setClauses, ", "),
		pgx.Identifier{staged}.Sanitize(),
		key, key,
	)

	tag, err := tx.Exec(ctx, updateSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: update: UPDATE FROM for %s", cfg.Table)
	}
	return tag.RowsAffected(), nil
}

// sanitizeTable handles schema-qualified table names like "public.leads".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
