package tracing

import (
	"context"

	"liquidation_bot/internal/modules/config"
	"liquidation_bot/pkg/logger"
	"liquidation_bot/pkg/tracing"

	"go.uber.org/fx"
)

const serviceName = "liquidation_bot"

// Module включает jaeger, если tracing.enabled; иначе глобальный трейсер остаётся noop.
func Module() fx.Option {
	return fx.Module("tracing",
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			if !cfg.Tracing.Enabled {
				return nil
			}
			tracing.SetServiceName(serviceName)
			_, closeFn, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Tracing.Host,
				Port: cfg.Tracing.Port,
			})
			if err != nil {
				return err
			}
			logger.Info("[TRACING] jaeger agent %s:%d", cfg.Tracing.Host, cfg.Tracing.Port)
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeFn()
					return nil
				},
			})
			return nil
		}),
	)
}
