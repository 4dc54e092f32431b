package store

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tmirko/flight-price-tracker/internal/db"
	"github.com/tmirko/flight-price-tracker/internal/model"
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

	maxConns := int32(4)
	minConns := int32(1)
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
CREATE TABLE IF NOT EXISTS search_runs (
	run_id                     TEXT NOT NULL,
	run_date                   TEXT NOT NULL,
	observed_at_utc            TEXT NOT NULL,
	route                      TEXT NOT NULL,
	origin                     TEXT NOT NULL,
	destination                TEXT NOT NULL,
	outbound_date              TEXT NOT NULL,
	currency                   TEXT NOT NULL,
	cheapest_price             DOUBLE PRECISION,
	error                      TEXT,
	serpapi_params             TEXT NOT NULL,
	evidence_json_path         TEXT,
	evidence_sha256            TEXT,
	serpapi_search_metadata_id TEXT
);

CREATE TABLE IF NOT EXISTS offers (
	run_id           TEXT NOT NULL,
	run_date         TEXT NOT NULL,
	observed_at_utc  TEXT NOT NULL,
	route            TEXT NOT NULL,
	outbound_date    TEXT NOT NULL,
	rank             INTEGER NOT NULL,
	price            DOUBLE PRECISION NOT NULL,
	currency         TEXT NOT NULL,
	bucket           TEXT NOT NULL,
	airlines         TEXT,
	depart_time      TEXT,
	arrive_time      TEXT,
	duration_minutes INTEGER,
	stops            INTEGER
);

CREATE INDEX IF NOT EXISTS idx_search_runs_route_observed ON search_runs(route, observed_at_utc);
CREATE INDEX IF NOT EXISTS idx_offers_run_id ON offers(run_id);
`

// Ping checks connectivity to the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
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

func (s *PostgresStore) AppendSearchRuns(ctx context.Context, runs []model.SearchRun) error {
	rows := make([][]any, len(runs))
	for i, r := range runs {
		rows[i] = searchRunValues(r)
	}
	_, err := db.CopyFrom(ctx, s.pool, "search_runs", searchRunColumns, rows)
	return eris.Wrap(err, "postgres: append search runs")
}

func (s *PostgresStore) AppendOffers(ctx context.Context, offers []model.OfferRow) error {
	rows := make([][]any, len(offers))
	for i, o := range offers {
		rows[i] = offerValues(o)
	}
	_, err := db.CopyFrom(ctx, s.pool, "offers", offerColumns, rows)
	return eris.Wrap(err, "postgres: append offers")
}

func (s *PostgresStore) PriceObservations(ctx context.Context, route string) ([]model.PriceObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT route, observed_at_utc, outbound_date, cheapest_price FROM search_runs WHERE route = $1`,
		route,
	)
	if db.IsUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: price observations")
	}
	defer rows.Close()

	var out []model.PriceObservation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		if db.IsUndefinedTable(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: price observations iterate")
	}
	return out, nil
}

func (s *PostgresStore) ListSearchRuns(ctx context.Context, filter RunFilter) ([]model.SearchRun, error) {
	query := `SELECT ` + strings.Join(searchRunColumns, ", ") + ` FROM search_runs WHERE 1=1`
	var args []any

	if filter.Route != "" {
		args = append(args, filter.Route)
		query += ` AND route = $1`
	}
	query += ` ORDER BY observed_at_utc DESC, outbound_date ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit)
	if len(args) == 1 {
		query += ` LIMIT $1`
	} else {
		query += ` LIMIT $2`
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if db.IsUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list search runs")
	}
	defer rows.Close()
	return collectSearchRuns(rows, "postgres")
}

func (s *PostgresStore) LatestPrices(ctx context.Context, route string) ([]model.SearchRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(searchRunColumns, ", ")+` FROM search_runs
		 WHERE route = $1 AND cheapest_price IS NOT NULL
		   AND observed_at_utc = (SELECT MAX(observed_at_utc) FROM search_runs WHERE route = $1)
		 ORDER BY outbound_date ASC`,
		route,
	)
	if db.IsUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest prices")
	}
	defer rows.Close()
	return collectSearchRuns(rows, "postgres")
}
