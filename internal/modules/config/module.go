package config

import (
	"context"

	"liquidation_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module регистрирует *Config как fx-провайдер и поднимает логгер с уровнем из конфига.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *Config) error {
			if err := logger.Init(cfg.Log.Level); err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					logger.Sync()
					return nil
				},
			})
			return nil
		}),
	)
}
