package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/trackscout/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, so tests can substitute
// a mock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"insert_result": `INSERT INTO score_results (id, run_id, isrc, artist_name, tier, total, breakdown, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"insert_failure": `INSERT INTO failure_reports (id, run_id, isrc, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
	"list_failures": `SELECT isrc, reason FROM failure_reports WHERE run_id = $1 ORDER BY created_at`,
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
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS score_results (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id      TEXT NOT NULL,
	isrc        TEXT NOT NULL,
	artist_name TEXT NOT NULL,
	tier        TEXT NOT NULL,
	total       DOUBLE PRECISION NOT NULL,
	breakdown   JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS failure_reports (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL,
	isrc       TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_score_results_run_id ON score_results(run_id);
CREATE INDEX IF NOT EXISTS idx_score_results_tier ON score_results(tier);
CREATE INDEX IF NOT EXISTS idx_score_results_isrc ON score_results(isrc);
CREATE INDEX IF NOT EXISTS idx_failure_reports_run_id ON failure_reports(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, runID string, b *model.ScoreBreakdown) error {
	if b == nil {
		return eris.New("postgres: nil breakdown")
	}
	breakdownJSON, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal breakdown")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO score_results (id, run_id, isrc, artist_name, tier, total, breakdown, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), runID, b.ISRC, b.ArtistName, string(b.Tier), b.TotalScore,
		breakdownJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert result %s", b.ISRC)
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]StoredResult, error) {
	query := `SELECT id, run_id, breakdown, created_at::text FROM score_results WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.RunID != "" {
		query += ` AND run_id = ` + arg(filter.RunID)
	}
	if filter.Tier != "" {
		query += ` AND tier = ` + arg(string(filter.Tier))
	}
	if filter.MinTotal > 0 {
		query += ` AND total >= ` + arg(filter.MinTotal)
	}
	query += ` ORDER BY total DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		var r StoredResult
		var breakdownJSON []byte
		if err := rows.Scan(&r.ID, &r.RunID, &breakdownJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		if err := json.Unmarshal(breakdownJSON, &r.Breakdown); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal breakdown")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate results")
}

func (s *PostgresStore) SaveFailure(ctx context.Context, runID string, f model.FailureReport) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO failure_reports (id, run_id, isrc, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), runID, f.ISRC, f.Reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert failure %s", f.ISRC)
}

func (s *PostgresStore) ListFailures(ctx context.Context, runID string) ([]model.FailureReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT isrc, reason FROM failure_reports WHERE run_id = $1 ORDER BY created_at`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failures")
	}
	defer rows.Close()

	var out []model.FailureReport
	for rows.Next() {
		var f model.FailureReport
		if err := rows.Scan(&f.ISRC, &f.Reason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate failures")
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
