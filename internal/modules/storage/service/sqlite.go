package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"liquidation_bot/internal/models"

	_ "github.com/glebarez/go-sqlite"
	"github.com/pkg/errors"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS order_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		currency TEXT NOT NULL,
		order_type TEXT NOT NULL,
		state TEXT NOT NULL,
		submitted TEXT NOT NULL,
		executed TEXT NOT NULL,
		proceeds TEXT NOT NULL,
		avg_price TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		reason TEXT NOT NULL,
		ts INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS sweeps (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		trigger TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		success INTEGER NOT NULL,
		total_processed INTEGER NOT NULL,
		successful_sales INTEGER NOT NULL,
		failed_sales INTEGER NOT NULL,
		proceeds TEXT NOT NULL,
		message TEXT NOT NULL,
		payload BLOB NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS sweeps_started_idx ON sweeps (started_at);`,
}

// SQLite — журнал в локальном файле.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create journal dir")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// один писатель: трекеры пишут из разных горутин
	db.SetMaxOpenConns(1)

	for _, stmt := range append([]string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"}, sqliteSchema...) {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "exec %q", stmt)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveOrderReport(ctx context.Context, r models.OrderReport) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "sqlite.SaveOrderReport")
		}
	}()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO order_reports
			(order_id, symbol, currency, order_type, state, submitted, executed, proceeds, avg_price, attempts, reason, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OrderID, r.Symbol, r.Currency, string(r.Type), string(r.State),
		r.Submitted.String(), r.ExecutedQuantity.String(), r.Proceeds.String(), r.AvgPrice.String(),
		r.Attempts, r.Reason, r.Timestamp.UnixMilli(),
	)
	return err
}

func (s *SQLite) SaveSweep(ctx context.Context, r models.SweepResult) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "sqlite.SaveSweep")
		}
	}()

	payload, err := encodeSweep(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sweeps
			(id, account, trigger, started_at, finished_at, success, total_processed, successful_sales, failed_sales, proceeds, message, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at=excluded.finished_at, success=excluded.success, total_processed=excluded.total_processed,
			successful_sales=excluded.successful_sales, failed_sales=excluded.failed_sales,
			proceeds=excluded.proceeds, message=excluded.message, payload=excluded.payload`,
		r.ID, r.Account, r.Trigger, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), r.Success,
		r.TotalProcessed, r.SuccessfulSales, r.FailedSales, r.Proceeds.String(), r.Message, payload,
	)
	return err
}

func (s *SQLite) RecentSweeps(ctx context.Context, limit int) (out []models.SweepResult, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "sqlite.RecentSweeps")
		}
	}()

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM sweeps ORDER BY started_at DESC, id DESC LIMIT ?`, recentLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		r, err := decodeSweep(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
