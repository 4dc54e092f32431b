package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tmirko/flight-price-tracker/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The parent directory is created when missing.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create dir %s", dir)
		}
	}
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
CREATE TABLE IF NOT EXISTS search_runs (
	run_id                     TEXT NOT NULL,
	run_date                   TEXT NOT NULL,
	observed_at_utc            TEXT NOT NULL,
	route                      TEXT NOT NULL,
	origin                     TEXT NOT NULL,
	destination                TEXT NOT NULL,
	outbound_date              TEXT NOT NULL,
	currency                   TEXT NOT NULL,
	cheapest_price             REAL,
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
	price            REAL NOT NULL,
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendSearchRuns(ctx context.Context, runs []model.SearchRun) error {
	rows := make([][]any, len(runs))
	for i, r := range runs {
		rows[i] = searchRunValues(r)
	}
	return s.insertAll(ctx, "search_runs", searchRunColumns, rows)
}

func (s *SQLiteStore) AppendOffers(ctx context.Context, offers []model.OfferRow) error {
	rows := make([][]any, len(offers))
	for i, o := range offers {
		rows[i] = offerValues(o)
	}
	return s.insertAll(ctx, "offers", offerColumns, rows)
}

// insertAll writes rows in a single transaction.
func (s *SQLiteStore) insertAll(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin tx for %s", table)
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+table+` (`+strings.Join(columns, ", ")+`) VALUES (`+placeholders+`)`,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", table)
		}
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit %s", table)
}

func (s *SQLiteStore) PriceObservations(ctx context.Context, route string) ([]model.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT route, observed_at_utc, outbound_date, cheapest_price FROM search_runs WHERE route = ?`,
		route,
	)
	if isNoSuchTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: price observations")
	}
	defer rows.Close()

	var out []model.PriceObservation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: price observations iterate")
}

func (s *SQLiteStore) ListSearchRuns(ctx context.Context, filter RunFilter) ([]model.SearchRun, error) {
	query := `SELECT ` + strings.Join(searchRunColumns, ", ") + ` FROM search_runs WHERE 1=1`
	var args []any

	if filter.Route != "" {
		query += ` AND route = ?`
		args = append(args, filter.Route)
	}
	query += ` ORDER BY observed_at_utc DESC, outbound_date ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if isNoSuchTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list search runs")
	}
	defer rows.Close()
	return collectSearchRuns(rows, "sqlite")
}

func (s *SQLiteStore) LatestPrices(ctx context.Context, route string) ([]model.SearchRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strings.Join(searchRunColumns, ", ")+` FROM search_runs
		 WHERE route = ? AND cheapest_price IS NOT NULL
		   AND observed_at_utc = (SELECT MAX(observed_at_utc) FROM search_runs WHERE route = ?)
		 ORDER BY outbound_date ASC`,
		route, route,
	)
	if isNoSuchTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest prices")
	}
	defer rows.Close()
	return collectSearchRuns(rows, "sqlite")
}

// helpers

func isNoSuchTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

type rowIterator interface {
	scannable
	Next() bool
	Err() error
}

func collectSearchRuns(rows rowIterator, driver string) ([]model.SearchRun, error) {
	var runs []model.SearchRun
	for rows.Next() {
		r, err := scanSearchRun(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan search run", driver)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrapf(rows.Err(), "%s: search runs iterate", driver)
}

func scanObservation(row scannable) (model.PriceObservation, error) {
	var o model.PriceObservation
	var price sql.NullFloat64
	if err := row.Scan(&o.Route, &o.ObservedAt, &o.OutboundDate, &price); err != nil {
		return o, err
	}
	if price.Valid {
		o.CheapestPrice = &price.Float64
	}
	return o, nil
}

func scanSearchRun(row scannable) (model.SearchRun, error) {
	var r model.SearchRun
	var observedAt string
	var price sql.NullFloat64
	var errText, evidencePath, evidenceSHA, metadataID sql.NullString

	err := row.Scan(
		&r.RunID, &r.RunDate, &observedAt, &r.Route, &r.Origin, &r.Destination,
		&r.OutboundDate, &r.Currency, &price, &errText, &r.Params,
		&evidencePath, &evidenceSHA, &metadataID,
	)
	if err != nil {
		return r, err
	}

	if t, err := time.Parse(time.RFC3339Nano, observedAt); err == nil {
		r.ObservedAt = t.UTC()
	}
	if price.Valid {
		r.CheapestPrice = &price.Float64
	}
	r.Error = nullString(errText)
	r.EvidencePath = nullString(evidencePath)
	r.EvidenceSHA256 = nullString(evidenceSHA)
	r.SearchMetadataID = nullString(metadataID)
	return r, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
