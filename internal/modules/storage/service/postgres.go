package service

import (
	"context"

	"liquidation_bot/internal/models"
	"liquidation_bot/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS order_reports (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		currency TEXT NOT NULL,
		order_type TEXT NOT NULL,
		state TEXT NOT NULL,
		submitted NUMERIC NOT NULL,
		executed NUMERIC NOT NULL,
		proceeds NUMERIC NOT NULL,
		avg_price NUMERIC NOT NULL,
		attempts INTEGER NOT NULL,
		reason TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sweeps (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		trigger TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		success BOOLEAN NOT NULL,
		total_processed INTEGER NOT NULL,
		successful_sales INTEGER NOT NULL,
		failed_sales INTEGER NOT NULL,
		proceeds NUMERIC NOT NULL,
		message TEXT NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sweeps_started_idx ON sweeps (started_at)`,
}

// Postgres — журнал в PostgreSQL через пул pgx.
type Postgres struct {
	db *db.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open journal db")
	}
	if err := pool.Migrate(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "migrate journal schema")
	}
	return &Postgres{db: pool}, nil
}

func (p *Postgres) SaveOrderReport(ctx context.Context, r models.OrderReport) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.SaveOrderReport")
		}
	}()

	_, err = p.db.Conn().Exec(ctx, `
		INSERT INTO order_reports
			(order_id, symbol, currency, order_type, state, submitted, executed, proceeds, avg_price, attempts, reason, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.OrderID, r.Symbol, r.Currency, string(r.Type), string(r.State),
		r.Submitted.String(), r.ExecutedQuantity.String(), r.Proceeds.String(), r.AvgPrice.String(),
		r.Attempts, r.Reason, r.Timestamp,
	)
	return err
}

// SaveSweep — upsert по id свипа.
func (p *Postgres) SaveSweep(ctx context.Context, r models.SweepResult) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.SaveSweep")
		}
	}()

	payload, err := encodeSweep(r)
	if err != nil {
		return err
	}

	return p.db.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO sweeps
				(id, account, trigger, started_at, finished_at, success, total_processed, successful_sales, failed_sales, proceeds, message, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				finished_at = EXCLUDED.finished_at, success = EXCLUDED.success,
				total_processed = EXCLUDED.total_processed, successful_sales = EXCLUDED.successful_sales,
				failed_sales = EXCLUDED.failed_sales, proceeds = EXCLUDED.proceeds,
				message = EXCLUDED.message, payload = EXCLUDED.payload`,
			r.ID, r.Account, r.Trigger, r.StartedAt, r.FinishedAt, r.Success,
			r.TotalProcessed, r.SuccessfulSales, r.FailedSales, r.Proceeds.String(), r.Message, string(payload),
		)
		return err
	})
}

func (p *Postgres) RecentSweeps(ctx context.Context, limit int) (out []models.SweepResult, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.RecentSweeps")
		}
	}()

	rows, err := p.db.Conn().Query(ctx,
		`SELECT payload::text FROM sweeps ORDER BY started_at DESC, id DESC LIMIT $1`, recentLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		r, err := decodeSweep([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
