package tickerws

import (
	"context"

	health "liquidation_bot/internal/modules/health/service"
	"liquidation_bot/internal/modules/tickerws/service"
	"liquidation_bot/internal/runner"
	"liquidation_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module поднимает стрим тикеров; без ws_url цены берутся только из REST.
func Module() fx.Option {
	return fx.Module("tickerws",
		fx.Provide(
			service.NewPriceCache,
			func(s *health.State) service.Status { return s },
			service.NewStream,
			func(c *service.PriceCache) runner.PriceSource { return c },
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Stream) {
			if !s.Enabled() {
				logger.Info("[WS] ws_url not set, ticker stream disabled")
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						s.Run(ctx)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
