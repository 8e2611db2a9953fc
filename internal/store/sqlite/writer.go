package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"advchart/internal/indicator"
	"advchart/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond

	// layoutHistory is how many saved layouts are kept per chart.
	layoutHistory = 10
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/chart.db"
	Logger *slog.Logger
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("sqlite opened", slog.String("path", cfg.DBPath))
	return &Writer{db: db, log: log, now: time.Now}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles_tf (
			token      TEXT    NOT NULL,
			exchange   TEXT    NOT NULL,
			tf         INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			open       INTEGER NOT NULL,
			high       INTEGER NOT NULL,
			low        INTEGER NOT NULL,
			close      INTEGER NOT NULL,
			volume     INTEGER,
			count      INTEGER,
			PRIMARY KEY (exchange, token, tf, ts)
		);

		CREATE TABLE IF NOT EXISTS chart_layouts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			key        TEXT    NOT NULL,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chart_layouts_key ON chart_layouts (key, id);
	`)
	return err
}

// RunTFCandles persists closed candles from tfCandleCh in batched
// transactions. Forming candles are skipped. Flushes every batchSize candles
// or every flushDelay, whichever comes first. Blocks until ctx is cancelled
// or the channel is closed.
func (w *Writer) RunTFCandles(ctx context.Context, tfCandleCh <-chan model.TFCandle) {
	batch := make([]model.TFCandle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.InsertTFCandles(batch); err != nil {
			w.log.Error("tf batch insert failed", slog.Int("count", len(batch)), slog.Any("error", err))
		} else {
			w.log.Debug("tf batch committed", slog.Int("count", len(batch)), slog.Duration("took", time.Since(start)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case tfc, ok := <-tfCandleCh:
			if !ok {
				flush()
				return
			}
			if tfc.Forming {
				continue
			}
			batch = append(batch, tfc)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// InsertTFCandles upserts candles in a single transaction.
func (w *Writer) InsertTFCandles(candles []model.TFCandle) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles_tf (token, exchange, tf, ts, open, high, low, close, volume, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(c.Token, c.Exchange, c.TF, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume, c.Count)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// SaveLayout appends a layout version for key and prunes all but the newest
// few. Data series are not stored.
func (w *Writer) SaveLayout(ctx context.Context, key string, list []indicator.Instance) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}

	_, err = w.db.ExecContext(ctx,
		`INSERT INTO chart_layouts (key, data, created_at) VALUES (?, ?, ?)`,
		key, string(data), w.now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert layout: %w", err)
	}

	_, err = w.db.ExecContext(ctx, `
		DELETE FROM chart_layouts
		WHERE key = ? AND id NOT IN (
			SELECT id FROM chart_layouts WHERE key = ? ORDER BY id DESC LIMIT ?
		)`, key, key, layoutHistory)
	if err != nil {
		w.log.Warn("prune layouts failed", slog.String("key", key), slog.Any("error", err))
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
