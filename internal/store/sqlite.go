package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ccyingfu/q-alpha/internal/backtest"
	"github.com/ccyingfu/q-alpha/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ AssetStore = (*SQLiteStore)(nil)
var _ StrategyStore = (*SQLiteStore)(nil)
var _ MarketStore = (*SQLiteStore)(nil)
var _ ResultStore = (*SQLiteStore)(nil)
var _ backtest.BarSource = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS strategies (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	name                TEXT NOT NULL UNIQUE,
	description         TEXT NOT NULL DEFAULT '',
	allocation          TEXT NOT NULL,
	rebalance_type      TEXT NOT NULL DEFAULT 'yearly',
	rebalance_threshold REAL,
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS market_daily (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
	date     TEXT NOT NULL,
	open     REAL NOT NULL,
	high     REAL NOT NULL,
	low      REAL NOT NULL,
	close    REAL NOT NULL,
	volume   REAL NOT NULL,
	UNIQUE (asset_id, date)
);

CREATE TABLE IF NOT EXISTS backtest_results (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_id      INTEGER NOT NULL REFERENCES strategies(id) ON DELETE CASCADE,
	start_date       TEXT NOT NULL,
	end_date         TEXT NOT NULL,
	initial_capital  REAL NOT NULL,
	total_return     REAL NOT NULL,
	annual_return    REAL NOT NULL,
	max_drawdown     REAL NOT NULL,
	volatility       REAL NOT NULL,
	sharpe_ratio     REAL,
	sortino_ratio    REAL,
	calmar_ratio     REAL,
	rebalance_count  INTEGER NOT NULL DEFAULT 0,
	equity_curve     TEXT NOT NULL,
	drawdown_curve   TEXT NOT NULL,
	benchmark_curves TEXT NOT NULL,
	created_at       TEXT NOT NULL
);
`

// SQLiteStore implements AssetStore, StrategyStore, MarketStore, and
// ResultStore backed by a SQLite database. It also serves daily bars to the
// backtest engine.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// ---------------------------------------------------------------------------
// AssetStore implementation
// ---------------------------------------------------------------------------

// CreateAsset inserts a new asset and fills in its ID and timestamps.
func (s *SQLiteStore) CreateAsset(ctx context.Context, a *domain.Asset) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (code, name, type, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Code, a.Name, string(a.Type), a.Description, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("inserting asset %q: %w", a.Code, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func scanAsset(row interface{ Scan(...any) error }) (*domain.Asset, error) {
	var a domain.Asset
	var typ, created, updated string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &typ, &a.Description, &created, &updated)
	if err != nil {
		return nil, err
	}
	a.Type = domain.AssetType(typ)
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return &a, nil
}

const assetColumns = `id, code, name, type, description, created_at, updated_at`

// GetAsset retrieves a single asset by its ID.
func (s *SQLiteStore) GetAsset(ctx context.Context, id int64) (*domain.Asset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetAssetByCode retrieves a single asset by its market code.
func (s *SQLiteStore) GetAssetByCode(ctx context.Context, code string) (*domain.Asset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE code = ?`, code)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAssets returns all assets ordered by code. If assetType is non-empty,
// only assets of that type are returned.
func (s *SQLiteStore) ListAssets(ctx context.Context, assetType string) ([]domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	var args []any
	if assetType != "" {
		query += ` WHERE type = ?`
		args = append(args, assetType)
	}
	query += ` ORDER BY code`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// UpdateAsset persists changes to an existing asset.
func (s *SQLiteStore) UpdateAsset(ctx context.Context, a *domain.Asset) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET code = ?, name = ?, type = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		a.Code, a.Name, string(a.Type), a.Description, formatTime(now), a.ID)
	if err != nil {
		return fmt.Errorf("updating asset %d: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	a.UpdatedAt = now
	return nil
}

// DeleteAsset removes an asset. Its market data rows cascade.
func (s *SQLiteStore) DeleteAsset(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting asset %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// StrategyStore implementation
// ---------------------------------------------------------------------------

const strategyColumns = `id, name, description, allocation, rebalance_type, rebalance_threshold, created_at, updated_at`

// CreateStrategy inserts a new strategy and fills in its ID and timestamps.
func (s *SQLiteStore) CreateStrategy(ctx context.Context, st *domain.Strategy) error {
	alloc, err := json.Marshal(st.Allocation)
	if err != nil {
		return fmt.Errorf("encoding allocation: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO strategies (name, description, allocation, rebalance_type, rebalance_threshold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.Name, st.Description, string(alloc), string(st.RebalanceType),
		st.RebalanceThreshold, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("inserting strategy %q: %w", st.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = id
	st.CreatedAt = now
	st.UpdatedAt = now
	return nil
}

func scanStrategy(row interface{ Scan(...any) error }) (*domain.Strategy, error) {
	var st domain.Strategy
	var alloc, typ, created, updated string
	var threshold sql.NullFloat64
	err := row.Scan(&st.ID, &st.Name, &st.Description, &alloc, &typ, &threshold, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(alloc), &st.Allocation); err != nil {
		return nil, fmt.Errorf("decoding allocation for strategy %d: %w", st.ID, err)
	}
	st.RebalanceType = domain.RebalanceType(typ)
	if threshold.Valid {
		st.RebalanceThreshold = &threshold.Float64
	}
	st.CreatedAt = parseTime(created)
	st.UpdatedAt = parseTime(updated)
	return &st, nil
}

// GetStrategy retrieves a single strategy by its ID.
func (s *SQLiteStore) GetStrategy(ctx context.Context, id int64) (*domain.Strategy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+strategyColumns+` FROM strategies WHERE id = ?`, id)
	st, err := scanStrategy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return st, err
}

// GetStrategyByName retrieves a single strategy by its unique name.
func (s *SQLiteStore) GetStrategyByName(ctx context.Context, name string) (*domain.Strategy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+strategyColumns+` FROM strategies WHERE name = ?`, name)
	st, err := scanStrategy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return st, err
}

// ListStrategies returns all strategies ordered by name.
func (s *SQLiteStore) ListStrategies(ctx context.Context) ([]domain.Strategy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strategyColumns+` FROM strategies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing strategies: %w", err)
	}
	defer rows.Close()

	var strategies []domain.Strategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, *st)
	}
	return strategies, rows.Err()
}

// UpdateStrategy persists changes to an existing strategy.
func (s *SQLiteStore) UpdateStrategy(ctx context.Context, st *domain.Strategy) error {
	alloc, err := json.Marshal(st.Allocation)
	if err != nil {
		return fmt.Errorf("encoding allocation: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`UPDATE strategies SET name = ?, description = ?, allocation = ?,
		 rebalance_type = ?, rebalance_threshold = ?, updated_at = ?
		 WHERE id = ?`,
		st.Name, st.Description, string(alloc), string(st.RebalanceType),
		st.RebalanceThreshold, formatTime(now), st.ID)
	if err != nil {
		return fmt.Errorf("updating strategy %d: %w", st.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	st.UpdatedAt = now
	return nil
}

// DeleteStrategy removes a strategy. Its backtest results cascade.
func (s *SQLiteStore) DeleteStrategy(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM strategies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting strategy %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// MarketStore implementation
// ---------------------------------------------------------------------------

// UpsertBars inserts bars for an asset, replacing rows on date conflicts.
func (s *SQLiteStore) UpsertBars(ctx context.Context, assetID int64, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO market_daily (asset_id, date, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (asset_id, date) DO UPDATE SET
		   open = excluded.open, high = excluded.high, low = excluded.low,
		   close = excluded.close, volume = excluded.volume`)
	if err != nil {
		return fmt.Errorf("preparing bar upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, assetID, b.Date.String(),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("upserting bar %s: %w", b.Date, err)
		}
	}
	return tx.Commit()
}

// DeleteBars removes all bars for an asset.
func (s *SQLiteStore) DeleteBars(ctx context.Context, assetID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM market_daily WHERE asset_id = ?`, assetID)
	if err != nil {
		return fmt.Errorf("deleting bars for asset %d: %w", assetID, err)
	}
	return nil
}

// LatestBarDate returns the date of the most recent bar for an asset, or a
// zero Date if none exist.
func (s *SQLiteStore) LatestBarDate(ctx context.Context, assetID int64) (domain.Date, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM market_daily WHERE asset_id = ?`, assetID).Scan(&latest)
	if err != nil {
		return domain.Date{}, fmt.Errorf("querying latest bar date: %w", err)
	}
	if !latest.Valid {
		return domain.Date{}, nil
	}
	return domain.ParseDate(latest.String)
}

// DailyBars returns bars for the given asset code within [start, end],
// ordered by date. An unknown code yields *backtest.AssetNotFoundError.
func (s *SQLiteStore) DailyBars(ctx context.Context, code string, start, end domain.Date) ([]domain.Bar, error) {
	asset, err := s.GetAssetByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, &backtest.AssetNotFoundError{Code: code}
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, open, high, low, close, volume FROM market_daily
		 WHERE asset_id = ? AND date >= ? AND date <= ?
		 ORDER BY date`,
		asset.ID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("querying bars for %q: %w", code, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var date string
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Code = code
		b.Date, err = domain.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parsing bar date %q: %w", date, err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ---------------------------------------------------------------------------
// ResultStore implementation
// ---------------------------------------------------------------------------

const resultColumns = `id, strategy_id, start_date, end_date, initial_capital,
	total_return, annual_return, max_drawdown, volatility,
	sharpe_ratio, sortino_ratio, calmar_ratio, rebalance_count,
	equity_curve, drawdown_curve, benchmark_curves, created_at`

// SaveResult inserts a new backtest result and fills in its ID.
func (s *SQLiteStore) SaveResult(ctx context.Context, r *domain.BacktestResult) error {
	equity, err := json.Marshal(r.EquityCurve)
	if err != nil {
		return fmt.Errorf("encoding equity curve: %w", err)
	}
	drawdown, err := json.Marshal(r.DrawdownCurve)
	if err != nil {
		return fmt.Errorf("encoding drawdown curve: %w", err)
	}
	benchmarks, err := json.Marshal(r.BenchmarkCurves)
	if err != nil {
		return fmt.Errorf("encoding benchmark curves: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO backtest_results (strategy_id, start_date, end_date, initial_capital,
		   total_return, annual_return, max_drawdown, volatility,
		   sharpe_ratio, sortino_ratio, calmar_ratio, rebalance_count,
		   equity_curve, drawdown_curve, benchmark_curves, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StrategyID, r.StartDate.String(), r.EndDate.String(), r.InitialCapital,
		r.Metrics.TotalReturn, r.Metrics.AnnualReturn, r.Metrics.MaxDrawdown, r.Metrics.Volatility,
		r.Metrics.SharpeRatio, r.Metrics.SortinoRatio, r.Metrics.CalmarRatio, r.Metrics.RebalanceCount,
		string(equity), string(drawdown), string(benchmarks), formatTime(now))
	if err != nil {
		return fmt.Errorf("inserting backtest result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	r.CreatedAt = now
	return nil
}

func scanResult(row interface{ Scan(...any) error }) (*domain.BacktestResult, error) {
	var r domain.BacktestResult
	var startDate, endDate, equity, drawdown, benchmarks, created string
	var sharpe, sortino, calmar sql.NullFloat64
	err := row.Scan(&r.ID, &r.StrategyID, &startDate, &endDate, &r.InitialCapital,
		&r.Metrics.TotalReturn, &r.Metrics.AnnualReturn, &r.Metrics.MaxDrawdown, &r.Metrics.Volatility,
		&sharpe, &sortino, &calmar, &r.Metrics.RebalanceCount,
		&equity, &drawdown, &benchmarks, &created)
	if err != nil {
		return nil, err
	}
	if r.StartDate, err = domain.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("parsing start date: %w", err)
	}
	if r.EndDate, err = domain.ParseDate(endDate); err != nil {
		return nil, fmt.Errorf("parsing end date: %w", err)
	}
	if sharpe.Valid {
		r.Metrics.SharpeRatio = &sharpe.Float64
	}
	if sortino.Valid {
		r.Metrics.SortinoRatio = &sortino.Float64
	}
	if calmar.Valid {
		r.Metrics.CalmarRatio = &calmar.Float64
	}
	if err := json.Unmarshal([]byte(equity), &r.EquityCurve); err != nil {
		return nil, fmt.Errorf("decoding equity curve: %w", err)
	}
	if err := json.Unmarshal([]byte(drawdown), &r.DrawdownCurve); err != nil {
		return nil, fmt.Errorf("decoding drawdown curve: %w", err)
	}
	if err := json.Unmarshal([]byte(benchmarks), &r.BenchmarkCurves); err != nil {
		return nil, fmt.Errorf("decoding benchmark curves: %w", err)
	}
	r.CreatedAt = parseTime(created)
	return &r, nil
}

// GetResult retrieves a single result by its ID.
func (s *SQLiteStore) GetResult(ctx context.Context, id int64) (*domain.BacktestResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM backtest_results WHERE id = ?`, id)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListResults returns results ordered by creation time, newest first. If
// strategyID is non-zero, only that strategy's results are returned.
func (s *SQLiteStore) ListResults(ctx context.Context, strategyID int64) ([]domain.BacktestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM backtest_results`
	var args []any
	if strategyID != 0 {
		query += ` WHERE strategy_id = ?`
		args = append(args, strategyID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing backtest results: %w", err)
	}
	defer rows.Close()

	var results []domain.BacktestResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// DeleteResult removes a single result.
func (s *SQLiteStore) DeleteResult(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM backtest_results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting backtest result %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteResults removes a batch of results and reports how many rows existed.
func (s *SQLiteStore) DeleteResults(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM backtest_results WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting backtest results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
