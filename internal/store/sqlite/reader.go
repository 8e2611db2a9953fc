package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"advchart/internal/indicator"
	"advchart/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read access to candle history and saved layouts.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	return &Reader{db: db}, nil
}

// ReadTFCandles reads candles for exchange:token at tf strictly after
// afterTS (unix seconds), oldest first.
func (r *Reader) ReadTFCandles(ctx context.Context, exchange, token string, tf int, afterTS int64) ([]model.TFCandle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT token, exchange, tf, ts, open, high, low, close, volume, count
		FROM candles_tf
		WHERE exchange = ? AND token = ? AND tf = ? AND ts > ?
		ORDER BY ts ASC
	`, exchange, token, tf, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles_tf: %w", err)
	}
	return scanCandles(rows)
}

// LatestTFCandles returns the newest limit candles, oldest first.
func (r *Reader) LatestTFCandles(ctx context.Context, exchange, token string, tf, limit int) ([]model.TFCandle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT token, exchange, tf, ts, open, high, low, close, volume, count
		FROM (
			SELECT * FROM candles_tf
			WHERE exchange = ? AND token = ? AND tf = ?
			ORDER BY ts DESC
			LIMIT ?
		)
		ORDER BY ts ASC
	`, exchange, token, tf, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query latest candles_tf: %w", err)
	}
	return scanCandles(rows)
}

func scanCandles(rows *sql.Rows) ([]model.TFCandle, error) {
	defer rows.Close()

	var candles []model.TFCandle
	for rows.Next() {
		var c model.TFCandle
		var tsUnix int64
		var volume, count sql.NullInt64
		if err := rows.Scan(&c.Token, &c.Exchange, &c.TF, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &volume, &count); err != nil {
			return nil, fmt.Errorf("sqlite scan candles_tf: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		c.Volume = volume.Int64
		c.Count = int(count.Int64)
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// ReadLayout loads the newest saved layout for key. Returns nil, nil when
// none exists.
func (r *Reader) ReadLayout(ctx context.Context, key string) ([]indicator.Instance, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `
		SELECT data FROM chart_layouts
		WHERE key = ?
		ORDER BY id DESC
		LIMIT 1
	`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read layout: %w", err)
	}

	var list []indicator.Instance
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	return list, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}

// LayoutStore serves layouts from SQLite when Redis is not configured.
type LayoutStore struct {
	W *Writer
	R *Reader
}

// Load returns the newest layout for key.
func (s LayoutStore) Load(ctx context.Context, key string) ([]indicator.Instance, error) {
	return s.R.ReadLayout(ctx, key)
}

// Save appends a layout version for key.
func (s LayoutStore) Save(ctx context.Context, key string, list []indicator.Instance) error {
	return s.W.SaveLayout(ctx, key, list)
}
