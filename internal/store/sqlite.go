package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"quotex-trader/internal/models"
)

// SQLiteJournal implements Journal on a local SQLite file.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens or creates the journal database.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		request_id INTEGER NOT NULL,
		ticket TEXT,
		asset TEXT NOT NULL,
		amount REAL NOT NULL,
		direction TEXT NOT NULL,
		duration INTEGER NOT NULL,
		expiration INTEGER NOT NULL,
		open_price REAL NOT NULL,
		status TEXT NOT NULL,
		outcome TEXT,
		profit REAL,
		is_demo INTEGER NOT NULL DEFAULT 1,
		placed_at DATETIME NOT NULL,
		settled_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset TEXT NOT NULL,
		period INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		ticks INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(asset, period, timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_orders_asset ON orders(asset);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
	CREATE INDEX IF NOT EXISTS idx_candles_asset_period ON candles(asset, period);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// LogOrder records a newly acknowledged order.
func (j *SQLiteJournal) LogOrder(ctx context.Context, order *models.Order, demo bool) error {
	isDemo := 0
	if demo {
		isDemo = 1
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO orders (id, request_id, ticket, asset, amount, direction, duration, expiration, open_price, status, is_demo, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, order.ID, order.RequestID, order.Ticket, order.Asset, order.Amount, string(order.Direction), order.Duration, order.Expiration, order.OpenPrice, string(order.Status), isDemo, order.PlacedAt)
	if err != nil {
		return fmt.Errorf("failed to log order: %w", err)
	}
	return nil
}

// SettleOrder records a settlement against a logged order.
func (j *SQLiteJournal) SettleOrder(ctx context.Context, result models.TradeResult) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, outcome = ?, profit = ?, settled_at = ? WHERE id = ?
	`, string(models.OrderSettled), string(result.Outcome), result.Profit, time.Now(), result.OrderID)
	if err != nil {
		return fmt.Errorf("failed to settle order: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("order not found: %s", result.OrderID)
	}
	return nil
}

// ListOrders retrieves journal entries matching the filter, newest first.
func (j *SQLiteJournal) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := `SELECT id, request_id, ticket, asset, amount, direction, duration, expiration, open_price, status, COALESCE(profit, 0), placed_at FROM orders WHERE 1=1`
	args := []interface{}{}

	if filter.Asset != "" {
		query += " AND asset = ?"
		args = append(args, filter.Asset)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Demo != nil {
		isDemo := 0
		if *filter.Demo {
			isDemo = 1
		}
		query += " AND is_demo = ?"
		args = append(args, isDemo)
	}
	if !filter.StartDate.IsZero() {
		query += " AND placed_at >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND placed_at <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY placed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var direction, status string
		if err := rows.Scan(&o.ID, &o.RequestID, &o.Ticket, &o.Asset, &o.Amount, &direction, &o.Duration, &o.Expiration, &o.OpenPrice, &status, &o.Profit, &o.PlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Direction = models.Direction(direction)
		o.Status = models.OrderStatus(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetStats summarizes settled orders matching the filter.
func (j *SQLiteJournal) GetStats(ctx context.Context, filter OrderFilter) (Stats, error) {
	query := `
		SELECT
			COUNT(*),
			SUM(CASE WHEN outcome = 'win' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'loss' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'doji' THEN 1 ELSE 0 END),
			COALESCE(SUM(profit), 0)
		FROM orders WHERE status = 'SETTLED'`
	args := []interface{}{}

	if filter.Asset != "" {
		query += " AND asset = ?"
		args = append(args, filter.Asset)
	}
	if filter.Demo != nil {
		isDemo := 0
		if *filter.Demo {
			isDemo = 1
		}
		query += " AND is_demo = ?"
		args = append(args, isDemo)
	}
	if !filter.StartDate.IsZero() {
		query += " AND placed_at >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND placed_at <= ?"
		args = append(args, filter.EndDate)
	}

	var stats Stats
	var wins, losses, dojis sql.NullInt64
	err := j.db.QueryRowContext(ctx, query, args...).Scan(&stats.Total, &wins, &losses, &dojis, &stats.Profit)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	stats.Wins = int(wins.Int64)
	stats.Losses = int(losses.Int64)
	stats.Dojis = int(dojis.Int64)
	if decided := stats.Wins + stats.Losses; decided > 0 {
		stats.WinRate = float64(stats.Wins) / float64(decided) * 100
	}
	return stats, nil
}

// SaveCandles caches sealed candles for an asset and period.
func (j *SQLiteJournal) SaveCandles(ctx context.Context, asset string, period int64, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (asset, period, timestamp, open, high, low, close, ticks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, asset, period, c.Time, c.Open, c.High, c.Low, c.Close, c.Ticks); err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCandles retrieves cached candles in [from, to], ascending.
func (j *SQLiteJournal) GetCandles(ctx context.Context, asset string, period int64, from, to int64) ([]models.Candle, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, ticks
		FROM candles
		WHERE asset = ? AND period = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, asset, period, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Ticks); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

var _ Journal = (*SQLiteJournal)(nil)
