package runner

import (
	"context"

	"liquidation_bot/internal/modules/config"
	exchange "liquidation_bot/internal/modules/exchange/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(c *exchange.Client) Gateway { return c },
			func(cfg *config.Config, gw Gateway) *MarketCache {
				return NewMarketCache(gw, cfg.Sweep.MarketRefreshCooldown)
			},
			func(cfg *config.Config, gw Gateway, n Notifier, j Journal) *Tracker {
				return NewTracker(gw, n, j, TrackerConfig{
					PollInterval: cfg.Sweep.PollInterval,
					PollAttempts: cfg.Sweep.PollAttempts,
					MaxInFlight:  cfg.Sweep.MaxInFlight,
				})
			},
			func(cfg *config.Config, c *exchange.Client, mc *MarketCache, tr *Tracker, p PriceSource, a Advisor, n Notifier, j Journal) *Engine {
				return NewEngine(EngineConfigFrom(cfg), c, mc, tr, c.Limiter(), p, a, n, j)
			},
			func(cfg *config.Config, e *Engine) *Manager {
				return NewManager(cfg.Exchange.Account, e, cfg.Sweep.Interval, cfg.Sweep.RunOnStart)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					m.Start(context.Background())
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return m.Stop(ctx)
				},
			})
		}),
	)
}
