package main

import (
	"context"
	"log"

	"liquidation_bot/internal/modules/advisor"
	"liquidation_bot/internal/modules/config"
	"liquidation_bot/internal/modules/exchange"
	"liquidation_bot/internal/modules/health"
	"liquidation_bot/internal/modules/storage"
	telegram "liquidation_bot/internal/modules/telegram_bot"
	"liquidation_bot/internal/modules/tickerws"
	"liquidation_bot/internal/modules/tracing"
	"liquidation_bot/internal/runner"
	"liquidation_bot/pkg/logger"

	"go.uber.org/fx"
)

func main() {
	logger.SetServiceName("liquidation_bot")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			// health спрашивает состояние свипов у менеджера
			func(m *runner.Manager) health.SweepStatus { return m },
		),
		config.Module(),
		tracing.Module(),
		storage.Module(),
		exchange.Module(),
		health.Module(),
		tickerws.Module(),
		advisor.Module(),
		runner.Module(),
		telegram.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
