package storage

import (
	"context"
	"fmt"
	"strings"

	"liquidation_bot/internal/modules/config"
	"liquidation_bot/internal/modules/storage/service"
	"liquidation_bot/internal/runner"
	"liquidation_bot/pkg/logger"

	"go.uber.org/fx"
)

// NewJournal выбирает драйвер журнала по конфигу.
func NewJournal(ctx context.Context, cfg *config.Config) (service.Journal, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "", "sqlite":
		j, err := service.NewSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite journal: %w", err)
		}
		logger.Info("[STORAGE] sqlite journal at %s", cfg.Storage.Path)
		return j, nil
	case "postgres":
		j, err := service.NewPostgres(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres journal: %w", err)
		}
		logger.Info("[STORAGE] postgres journal")
		return j, nil
	case "memory":
		logger.Warn("[STORAGE] memory journal, history is lost on restart")
		return service.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			NewJournal,
			// адаптер: журнал -> runner.Journal
			func(j service.Journal) runner.Journal { return j },
		),
		fx.Invoke(func(lc fx.Lifecycle, j service.Journal) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return j.Close()
				},
			})
		}),
	)
}
