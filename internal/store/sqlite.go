package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadscore/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer keeps the claim UPDATE serialized with every other write.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Rate-limit reset times are stored as unix milliseconds so the window
// comparison in the upsert is numeric.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	location      TEXT NOT NULL,
	industry      TEXT NOT NULL,
	radius_miles  REAL NOT NULL DEFAULT 0,
	results_count INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS business_records (
	id                     TEXT PRIMARY KEY,
	search_id              TEXT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
	position               INTEGER NOT NULL DEFAULT 0,
	business_name          TEXT NOT NULL,
	address                TEXT NOT NULL DEFAULT '',
	phone                  TEXT NOT NULL DEFAULT '',
	email                  TEXT NOT NULL DEFAULT '',
	website                TEXT NOT NULL DEFAULT '',
	google_place_id        TEXT NOT NULL DEFAULT '',
	website_quality_score  INTEGER NOT NULL DEFAULT 0,
	digital_presence_score INTEGER NOT NULL DEFAULT 0,
	seo_score              INTEGER NOT NULL DEFAULT 0,
	overall_score          INTEGER,
	analysis_status        TEXT NOT NULL DEFAULT 'pending',
	last_analyzed_at       DATETIME,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rate_limits (
	key      TEXT PRIMARY KEY,
	count    INTEGER NOT NULL,
	reset_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_searches_user_id ON searches(user_id);
CREATE INDEX IF NOT EXISTS idx_records_search_status ON business_records(search_id, analysis_status);
CREATE INDEX IF NOT EXISTS idx_records_search_rank ON business_records(search_id, overall_score DESC, position);
CREATE INDEX IF NOT EXISTS idx_rate_limits_reset_at ON rate_limits(reset_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSearch(ctx context.Context, search *model.Search) error {
	if search.CreatedAt.IsZero() {
		search.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (id, user_id, location, industry, radius_miles, results_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		search.ID, search.UserID, search.Location, search.Industry, search.RadiusMiles, search.ResultsCount, search.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert search %s", search.ID)
}

func (s *SQLiteStore) GetSearch(ctx context.Context, searchID string) (*model.Search, error) {
	var m model.Search
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, location, industry, radius_miles, results_count, created_at FROM searches WHERE id = ?`,
		searchID,
	).Scan(&m.ID, &m.UserID, &m.Location, &m.Industry, &m.RadiusMiles, &m.ResultsCount, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: search %s", searchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get search %s", searchID)
	}
	return &m, nil
}

func (s *SQLiteStore) InsertRecords(ctx context.Context, records []model.BusinessRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := validateRecords(records); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert records")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO business_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert record")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, recordArgs(r, now)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert record %s", r.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert records")
	}
	return int64(len(records)), nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, recordID string) (*model.BusinessRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM business_records WHERE id = ?`, recordID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: record %s", recordID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", recordID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, searchID string, opts ListOpts) ([]model.BusinessRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM business_records WHERE search_id = ?`
	args := []any{searchID}

	if opts.MinScore > 0 {
		query += ` AND overall_score >= ?`
		args = append(args, opts.MinScore)
	}
	if opts.Status != "" {
		query += ` AND analysis_status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY overall_score DESC NULLS LAST, position ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	return s.queryRecords(ctx, "list records", query, args...)
}

// sqlitePageWindow returns the subquery selecting the ids and statuses of the
// records a scope covers.
func sqlitePageWindow(scope model.Scope) (string, []any) {
	if !scope.IsPage() {
		return `SELECT id, analysis_status FROM business_records WHERE search_id = ?`, []any{scope.SearchID}
	}
	return `SELECT id, analysis_status FROM business_records WHERE search_id = ?
		ORDER BY overall_score DESC NULLS LAST, position ASC LIMIT ? OFFSET ?`,
		[]any{scope.SearchID, scope.Limit(), scope.Offset()}
}

func (s *SQLiteStore) SelectEligible(ctx context.Context, scope model.Scope) ([]model.BusinessRecord, error) {
	window, args := sqlitePageWindow(scope)
	query := `SELECT ` + recordColumns + ` FROM business_records
		WHERE id IN (SELECT id FROM (` + window + `) WHERE analysis_status IN (?, ?))`
	args = append(args, string(model.StatusPending), string(model.StatusBasicComplete))

	records, err := s.queryRecords(ctx, "select eligible", query, args...)
	if err != nil {
		return nil, err
	}
	sortForScope(records, scope)
	return records, nil
}

// ClaimEligible moves every eligible record of the scope to analyzing in one
// statement and returns only the rows it transitioned.
func (s *SQLiteStore) ClaimEligible(ctx context.Context, scope model.Scope) ([]model.BusinessRecord, error) {
	window, windowArgs := sqlitePageWindow(scope)
	query := `UPDATE business_records SET analysis_status = ?, updated_at = ?
		WHERE id IN (SELECT id FROM (` + window + `) WHERE analysis_status IN (?, ?))
		AND analysis_status IN (?, ?)
		RETURNING ` + recordColumns

	args := []any{string(model.StatusAnalyzing), time.Now().UTC()}
	args = append(args, windowArgs...)
	args = append(args,
		string(model.StatusPending), string(model.StatusBasicComplete),
		string(model.StatusPending), string(model.StatusBasicComplete),
	)

	records, err := s.queryRecords(ctx, "claim eligible", query, args...)
	if err != nil {
		return nil, err
	}
	sortForScope(records, scope)
	return records, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, recordID string, status model.AnalysisStatus) error {
	if !status.Valid() {
		return eris.Errorf("sqlite: invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE business_records SET analysis_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", recordID)
	}
	return checkRowsAffected(res, "record", recordID)
}

func (s *SQLiteStore) UpdateScores(ctx context.Context, recordID string, scores model.Scores, status model.AnalysisStatus, analyzedAt time.Time) error {
	if !status.Valid() {
		return eris.Errorf("sqlite: invalid status %q", status)
	}
	var lastAnalyzed any
	if status == model.StatusComplete {
		lastAnalyzed = analyzedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE business_records SET
			website_quality_score = ?, digital_presence_score = ?, seo_score = ?, overall_score = ?,
			analysis_status = ?, last_analyzed_at = COALESCE(?, last_analyzed_at), updated_at = ?
		 WHERE id = ?`,
		scores.WebsiteQuality, scores.DigitalPresence, scores.SEO, scores.Overall,
		string(status), lastAnalyzed, time.Now().UTC(), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update scores %s", recordID)
	}
	return checkRowsAffected(res, "record", recordID)
}

func (s *SQLiteStore) CountByStatus(ctx context.Context, scope model.Scope) (model.StatusCounts, error) {
	window, args := sqlitePageWindow(scope)
	rows, err := s.db.QueryContext(ctx,
		`SELECT analysis_status, COUNT(*) FROM (`+window+`) GROUP BY analysis_status`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close()

	counts := model.StatusCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[model.AnalysisStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count by status iterate")
}

func (s *SQLiteStore) HitRateLimit(ctx context.Context, key string, window time.Duration, now time.Time) (RateWindow, error) {
	nowMs := now.UnixMilli()
	var rw RateWindow
	var resetMs int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO rate_limits (key, count, reset_at) VALUES (?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET
			count = CASE WHEN rate_limits.reset_at <= ? THEN 1 ELSE rate_limits.count + 1 END,
			reset_at = CASE WHEN rate_limits.reset_at <= ? THEN excluded.reset_at ELSE rate_limits.reset_at END
		 RETURNING count, reset_at`,
		key, now.Add(window).UnixMilli(), nowMs, nowMs,
	).Scan(&rw.Count, &resetMs)
	if err != nil {
		return RateWindow{}, eris.Wrapf(err, "sqlite: hit rate limit %s", key)
	}
	rw.ResetAt = time.UnixMilli(resetMs).UTC()
	return rw, nil
}

func (s *SQLiteStore) PeekRateLimit(ctx context.Context, key string, now time.Time) (RateWindow, bool, error) {
	var rw RateWindow
	var resetMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count, reset_at FROM rate_limits WHERE key = ? AND reset_at > ?`,
		key, now.UnixMilli(),
	).Scan(&rw.Count, &resetMs)
	if errors.Is(err, sql.ErrNoRows) {
		return RateWindow{}, false, nil
	}
	if err != nil {
		return RateWindow{}, false, eris.Wrapf(err, "sqlite: peek rate limit %s", key)
	}
	rw.ResetAt = time.UnixMilli(resetMs).UTC()
	return rw, true, nil
}

func (s *SQLiteStore) DeleteExpiredRateLimits(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE reset_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired rate limits")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) queryRecords(ctx context.Context, op, query string, args ...any) ([]model.BusinessRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close()

	var records []model.BusinessRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s scan", op)
		}
		records = append(records, *r)
	}
	return records, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

// helpers

func recordArgs(r model.BusinessRecord, now time.Time) []any {
	status := r.AnalysisStatus
	if status == "" {
		status = model.StatusPending
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	var overall any
	if r.OverallScore != nil {
		overall = *r.OverallScore
	}
	var lastAnalyzed any
	if r.LastAnalyzedAt != nil {
		lastAnalyzed = r.LastAnalyzedAt.UTC()
	}
	return []any{
		r.ID, r.SearchID, r.Position, r.Name, r.Address, r.Phone, r.Email, r.Website,
		r.GooglePlaceID, r.WebsiteQualityScore, r.DigitalPresenceScore, r.SEOScore,
		overall, string(status), lastAnalyzed, created, now,
	}
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

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.BusinessRecord, error) {
	var r model.BusinessRecord
	var status string
	var overall sql.NullInt64
	var lastAnalyzed sql.NullTime

	err := row.Scan(
		&r.ID, &r.SearchID, &r.Position, &r.Name, &r.Address, &r.Phone, &r.Email, &r.Website,
		&r.GooglePlaceID, &r.WebsiteQualityScore, &r.DigitalPresenceScore, &r.SEOScore,
		&overall, &status, &lastAnalyzed, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.AnalysisStatus = model.AnalysisStatus(status)
	if overall.Valid {
		v := int(overall.Int64)
		r.OverallScore = &v
	}
	if lastAnalyzed.Valid {
		t := lastAnalyzed.Time
		r.LastAnalyzedAt = &t
	}
	return &r, nil
}
