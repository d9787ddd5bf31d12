package service

import (
	"context"

	"liquidation_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Journal — история ордеров и свипов.
type Journal interface {
	SaveOrderReport(ctx context.Context, r models.OrderReport) error
	SaveSweep(ctx context.Context, r models.SweepResult) error
	RecentSweeps(ctx context.Context, limit int) ([]models.SweepResult, error)
	Close() error
}

const defaultRecent = 5

func recentLimit(n int) int {
	if n <= 0 {
		return defaultRecent
	}
	return n
}

func encodeSweep(r models.SweepResult) ([]byte, error) {
	b, err := sonic.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshal sweep")
	}
	return b, nil
}

func decodeSweep(b []byte) (models.SweepResult, error) {
	var r models.SweepResult
	if err := sonic.Unmarshal(b, &r); err != nil {
		return r, errors.Wrap(err, "unmarshal sweep")
	}
	return r, nil
}
