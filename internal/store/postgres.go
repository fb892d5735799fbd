package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/db"
	"github.com/sells-group/leadscore/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for
// the hottest per-record operations.
var preparedStatements = map[string]string{
	"get_record":    `SELECT ` + recordColumns + ` FROM business_records WHERE id = $1`,
	"update_status": `UPDATE business_records SET analysis_status = $1, updated_at = now() WHERE id = $2`,
	"update_scores": `UPDATE business_records SET website_quality_score = $1, digital_presence_score = $2, seo_score = $3, overall_score = $4, analysis_status = $5, last_analyzed_at = COALESCE($6, last_analyzed_at), updated_at = now() WHERE id = $7`,
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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
CREATE TABLE IF NOT EXISTS searches (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id       TEXT NOT NULL,
	location      TEXT NOT NULL,
	industry      TEXT NOT NULL,
	radius_miles  DOUBLE PRECISION NOT NULL DEFAULT 0,
	results_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS business_records (
	id                     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	search_id              TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
	position               INTEGER NOT NULL DEFAULT 0,
	business_name          TEXT NOT NULL CHECK (business_name <> ''),
	address                TEXT NOT NULL DEFAULT '',
	phone                  TEXT NOT NULL DEFAULT '',
	email                  TEXT NOT NULL DEFAULT '',
	website                TEXT NOT NULL DEFAULT '',
	google_place_id        TEXT NOT NULL DEFAULT '',
	website_quality_score  INTEGER NOT NULL DEFAULT 0 CHECK (website_quality_score BETWEEN 0 AND 40),
	digital_presence_score INTEGER NOT NULL DEFAULT 0 CHECK (digital_presence_score BETWEEN 0 AND 30),
	seo_score              INTEGER NOT NULL DEFAULT 0 CHECK (seo_score BETWEEN 0 AND 30),
	overall_score          INTEGER CHECK (overall_score BETWEEN 0 AND 100),
	analysis_status        TEXT NOT NULL DEFAULT 'pending',
	last_analyzed_at       TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rate_limits (
	key      TEXT PRIMARY KEY,
	count    INTEGER NOT NULL,
	reset_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_searches_user_id ON searches(user_id);
CREATE INDEX IF NOT EXISTS idx_records_search_status ON business_records(search_id, analysis_status);
CREATE INDEX IF NOT EXISTS idx_records_search_rank ON business_records(search_id, overall_score DESC NULLS LAST, position);
CREATE INDEX IF NOT EXISTS idx_rate_limits_reset_at ON rate_limits(reset_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) CreateSearch(ctx context.Context, search *model.Search) error {
	if search.CreatedAt.IsZero() {
		search.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO searches (id, user_id, location, industry, radius_miles, results_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		search.ID, search.UserID, search.Location, search.Industry, search.RadiusMiles, search.ResultsCount, search.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert search %s", search.ID)
}

func (s *PostgresStore) GetSearch(ctx context.Context, searchID string) (*model.Search, error) {
	var m model.Search
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, location, industry, radius_miles, results_count, created_at FROM searches WHERE id = $1`,
		searchID,
	).Scan(&m.ID, &m.UserID, &m.Location, &m.Industry, &m.RadiusMiles, &m.ResultsCount, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: search %s", searchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get search %s", searchID)
	}
	return &m, nil
}

var insertColumns = []string{
	"id", "search_id", "position", "business_name", "address", "phone", "email", "website",
	"google_place_id", "website_quality_score", "digital_presence_score", "seo_score",
	"overall_score", "analysis_status", "last_analyzed_at", "created_at", "updated_at",
}

// InsertRecords bulk-loads records with COPY inside a transaction so a
// search's records appear all at once.
func (s *PostgresStore) InsertRecords(ctx context.Context, records []model.BusinessRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := validateRecords(records); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordArgs(r, now))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin insert records")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := db.CopyFromTx(ctx, tx, "business_records", insertColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert records")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit insert records")
	}
	return n, nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, recordID string) (*model.BusinessRecord, error) {
	r, err := scanPgRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM business_records WHERE id = $1`, recordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: record %s", recordID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", recordID)
	}
	return r, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, searchID string, opts ListOpts) ([]model.BusinessRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM business_records WHERE search_id = $1`
	args := []any{searchID}
	argIdx := 2

	if opts.MinScore > 0 {
		query += fmt.Sprintf(` AND overall_score >= $%d`, argIdx)
		args = append(args, opts.MinScore)
		argIdx++
	}
	if opts.Status != "" {
		query += fmt.Sprintf(` AND analysis_status = $%d`, argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	query += ` ORDER BY overall_score DESC NULLS LAST, position ASC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
		args = append(args, opts.Limit, opts.Offset)
	}

	return s.queryRecords(ctx, "list records", query, args...)
}

// pgPageWindow returns the CTE body selecting the ids and statuses of the
// records a scope covers. Its parameters start at $1.
func pgPageWindow(scope model.Scope) (string, []any) {
	if !scope.IsPage() {
		return `SELECT id, analysis_status FROM business_records WHERE search_id = $1`, []any{scope.SearchID}
	}
	return `SELECT id, analysis_status FROM business_records WHERE search_id = $1
		ORDER BY overall_score DESC NULLS LAST, position ASC LIMIT $2 OFFSET $3`,
		[]any{scope.SearchID, scope.Limit(), scope.Offset()}
}

func (s *PostgresStore) SelectEligible(ctx context.Context, scope model.Scope) ([]model.BusinessRecord, error) {
	window, args := pgPageWindow(scope)
	query := `WITH page_window AS (` + window + `)
		SELECT ` + recordColumns + ` FROM business_records
		WHERE id IN (SELECT id FROM page_window WHERE analysis_status IN ('pending', 'basic_complete'))`

	records, err := s.queryRecords(ctx, "select eligible", query, args...)
	if err != nil {
		return nil, err
	}
	sortForScope(records, scope)
	return records, nil
}

// ClaimEligible moves every eligible record of the scope to analyzing in one
// statement. Rows locked by a concurrent claim are skipped, so overlapping
// batches never share a record.
func (s *PostgresStore) ClaimEligible(ctx context.Context, scope model.Scope) ([]model.BusinessRecord, error) {
	window, args := pgPageWindow(scope)
	query := `WITH page_window AS (` + window + `),
		claimable AS (
			SELECT r.id FROM business_records r
			JOIN page_window w ON w.id = r.id
			WHERE r.analysis_status IN ('pending', 'basic_complete')
			FOR UPDATE OF r SKIP LOCKED
		)
		UPDATE business_records b SET analysis_status = 'analyzing', updated_at = now()
		FROM claimable c
		WHERE b.id = c.id AND b.analysis_status IN ('pending', 'basic_complete')
		RETURNING ` + prefixedRecordColumns("b")

	records, err := s.queryRecords(ctx, "claim eligible", query, args...)
	if err != nil {
		return nil, err
	}
	sortForScope(records, scope)
	return records, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, recordID string, status model.AnalysisStatus) error {
	if !status.Valid() {
		return eris.Errorf("postgres: invalid status %q", status)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE business_records SET analysis_status = $1, updated_at = now() WHERE id = $2`,
		string(status), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", recordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "record %s", recordID)
	}
	return nil
}

func (s *PostgresStore) UpdateScores(ctx context.Context, recordID string, scores model.Scores, status model.AnalysisStatus, analyzedAt time.Time) error {
	if !status.Valid() {
		return eris.Errorf("postgres: invalid status %q", status)
	}
	var lastAnalyzed *time.Time
	if status == model.StatusComplete {
		t := analyzedAt.UTC()
		lastAnalyzed = &t
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE business_records SET website_quality_score = $1, digital_presence_score = $2, seo_score = $3, overall_score = $4, analysis_status = $5, last_analyzed_at = COALESCE($6, last_analyzed_at), updated_at = now() WHERE id = $7`,
		scores.WebsiteQuality, scores.DigitalPresence, scores.SEO, scores.Overall,
		string(status), lastAnalyzed, recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update scores %s", recordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "record %s", recordID)
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, scope model.Scope) (model.StatusCounts, error) {
	window, args := pgPageWindow(scope)
	rows, err := s.pool.Query(ctx,
		`WITH page_window AS (`+window+`)
		 SELECT analysis_status, COUNT(*) FROM page_window GROUP BY analysis_status`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := model.StatusCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.AnalysisStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count by status iterate")
}

func (s *PostgresStore) HitRateLimit(ctx context.Context, key string, window time.Duration, now time.Time) (RateWindow, error) {
	var rw RateWindow
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rate_limits (key, count, reset_at) VALUES ($1, 1, $2)
		 ON CONFLICT (key) DO UPDATE SET
			count = CASE WHEN rate_limits.reset_at <= $3 THEN 1 ELSE rate_limits.count + 1 END,
			reset_at = CASE WHEN rate_limits.reset_at <= $3 THEN EXCLUDED.reset_at ELSE rate_limits.reset_at END
		 RETURNING count, reset_at`,
		key, now.Add(window).UTC(), now.UTC(),
	).Scan(&rw.Count, &rw.ResetAt)
	if err != nil {
		return RateWindow{}, eris.Wrapf(err, "postgres: hit rate limit %s", key)
	}
	return rw, nil
}

func (s *PostgresStore) PeekRateLimit(ctx context.Context, key string, now time.Time) (RateWindow, bool, error) {
	var rw RateWindow
	err := s.pool.QueryRow(ctx,
		`SELECT count, reset_at FROM rate_limits WHERE key = $1 AND reset_at > $2`,
		key, now.UTC(),
	).Scan(&rw.Count, &rw.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RateWindow{}, false, nil
	}
	if err != nil {
		return RateWindow{}, false, eris.Wrapf(err, "postgres: peek rate limit %s", key)
	}
	return rw, true, nil
}

func (s *PostgresStore) DeleteExpiredRateLimits(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rate_limits WHERE reset_at <= $1`, now.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired rate limits")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) queryRecords(ctx context.Context, op, query string, args ...any) ([]model.BusinessRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	var records []model.BusinessRecord
	for rows.Next() {
		r, err := scanPgRecord(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: %s scan", op)
		}
		records = append(records, *r)
	}
	return records, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func prefixedRecordColumns(alias string) string {
	out := ""
	for i, c := range insertColumns {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}

func scanPgRecord(row pgx.Row) (*model.BusinessRecord, error) {
	var r model.BusinessRecord
	var status string
	err := row.Scan(
		&r.ID, &r.SearchID, &r.Position, &r.Name, &r.Address, &r.Phone, &r.Email, &r.Website,
		&r.GooglePlaceID, &r.WebsiteQualityScore, &r.DigitalPresenceScore, &r.SEOScore,
		&r.OverallScore, &status, &r.LastAnalyzedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.AnalysisStatus = model.AnalysisStatus(status)
	return &r, nil
}
