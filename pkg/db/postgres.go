package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier — то, что умеют и пул, и транзакция.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const defaultMaxConns = 4

// Pool — пул pgx с транзакциями read committed.
type Pool struct {
	pool *pgxpool.Pool
}

// Open разбирает dsn, поднимает пул и проверяет соединение.
// Трекеры пишут редко, поэтому пул маленький, если dsn не задаёт pool_max_conns.
func Open(ctx context.Context, dsn string) (*Pool, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if !strings.Contains(dsn, "pool_max_conns") {
		conf.MaxConns = defaultMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{pool: pool}, nil
}

func (p *Pool) Conn() Querier { return p.pool }

// InTx выполняет fn в одной транзакции; ошибка или паника откатывают её.
func (p *Pool) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}

// Migrate применяет DDL одной транзакцией.
func (p *Pool) Migrate(ctx context.Context, stmts []string) error {
	return p.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Pool) Close() { p.pool.Close() }
