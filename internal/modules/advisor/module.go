package advisor

import (
	"liquidation_bot/internal/modules/advisor/service"
	"liquidation_bot/internal/modules/config"
	"liquidation_bot/internal/runner"
	"liquidation_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module отдаёт runner.Advisor; при выключенном советнике — nil.
func Module() fx.Option {
	return fx.Module("advisor",
		fx.Provide(
			func(cfg *config.Config) runner.Advisor {
				if !cfg.Advisor.Enabled {
					logger.Info("[ADVISOR] disabled, order type from config")
					return nil
				}
				logger.Info("[ADVISOR] %s, apply_hint=%t", cfg.Advisor.Model, cfg.Advisor.ApplyHint)
				return service.NewClient(cfg)
			},
		),
	)
}
