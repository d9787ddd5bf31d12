package telegram

import (
	"context"

	"liquidation_bot/internal/modules/config"
	storage "liquidation_bot/internal/modules/storage/service"
	"liquidation_bot/internal/modules/telegram_bot/service"
	"liquidation_bot/internal/notify"
	"liquidation_bot/internal/runner"
	"liquidation_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		// 1. Бот; без токена — nil, работаем только в лог
		fx.Provide(
			func(cfg *config.Config, j storage.Journal) (*service.Telegram, error) {
				if cfg.Telegram.Token == "" {
					logger.Warn("[TG] token not set, notifications go to log only")
					return nil, nil
				}
				return service.NewTelegram(cfg, j)
			},
		),

		// 2. Адаптер: бот + лог -> runner.Notifier
		fx.Provide(
			func(t *service.Telegram) runner.Notifier {
				if t == nil {
					return notify.NewStdout()
				}
				return notify.Multi{notify.NewStdout(), t}
			},
		),

		// 3. Команды чата и long polling
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram, m *runner.Manager) {
				if t == nil {
					return
				}
				t.Attach(m)
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						t.Start(context.Background())
						return nil
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
