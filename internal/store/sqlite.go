package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/trackscout/internal/model"
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
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS score_results (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	isrc        TEXT NOT NULL,
	artist_name TEXT NOT NULL,
	tier        TEXT NOT NULL,
	total       REAL NOT NULL,
	breakdown   TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS failure_reports (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	isrc       TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_score_results_run_id ON score_results(run_id);
CREATE INDEX IF NOT EXISTS idx_score_results_tier ON score_results(tier);
CREATE INDEX IF NOT EXISTS idx_score_results_isrc ON score_results(isrc);
CREATE INDEX IF NOT EXISTS idx_failure_reports_run_id ON failure_reports(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveResult(ctx context.Context, runID string, b *model.ScoreBreakdown) error {
	if b == nil {
		return eris.New("sqlite: nil breakdown")
	}
	breakdownJSON, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal breakdown")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO score_results (id, run_id, isrc, artist_name, tier, total, breakdown, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, b.ISRC, b.ArtistName, string(b.Tier), b.TotalScore,
		string(breakdownJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert result %s", b.ISRC)
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]StoredResult, error) {
	query := `SELECT id, run_id, breakdown, created_at FROM score_results WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, string(filter.Tier))
	}
	if filter.MinTotal > 0 {
		query += ` AND total >= ?`
		args = append(args, filter.MinTotal)
	}
	query += ` ORDER BY total DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		var r StoredResult
		var breakdownJSON string
		if err := rows.Scan(&r.ID, &r.RunID, &breakdownJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		if err := json.Unmarshal([]byte(breakdownJSON), &r.Breakdown); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal breakdown")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

func (s *SQLiteStore) SaveFailure(ctx context.Context, runID string, f model.FailureReport) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failure_reports (id, run_id, isrc, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, f.ISRC, f.Reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert failure %s", f.ISRC)
}

func (s *SQLiteStore) ListFailures(ctx context.Context, runID string) ([]model.FailureReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT isrc, reason FROM failure_reports WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list failures")
	}
	defer rows.Close()

	var out []model.FailureReport
	for rows.Next() {
		var f model.FailureReport
		if err := rows.Scan(&f.ISRC, &f.Reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failure")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate failures")
}
