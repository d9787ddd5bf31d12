package service

import (
	"context"
	"errors"
	"strings"

	"liquidation_bot/internal/runner"
	"liquidation_bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const recentSweeps = 3

const helpText = "🤖 Бот продаёт остатки альткоинов в стейблкоин.\n\n" +
	"/sweep — запустить свип сейчас\n" +
	"/balances — что будет продано (без ордеров)\n" +
	"/status — последние свипы и ордера в работе\n" +
	"/help — эта справка"

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	// чужие чаты молча игнорируем
	if !t.authorized(chatID) {
		logger.Warn("[TG] ignored message from unauthorized chat %d", chatID)
		return
	}
	if !msg.IsCommand() || t.sweeps == nil {
		return
	}

	var err error
	switch msg.Command() {
	case "start", "help":
		err = t.Send(chatID, helpText)
	case "sweep":
		err = t.handleSweep(ctx, chatID)
	case "balances":
		err = t.handleBalances(ctx, chatID)
	case "status":
		err = t.handleStatus(ctx, chatID)
	default:
		err = t.Send(chatID, "Не знаю такую команду, см. /help")
	}
	if err != nil {
		logger.Error("[TG] /%s error: %v", msg.Command(), err)
	}
}

// /sweep — свип идёт в фоне, итог приходит через NotifySweep.
func (t *Telegram) handleSweep(ctx context.Context, chatID int64) error {
	if t.sweeps.Busy() {
		return t.Send(chatID, "⏳ Свип уже идёт, дождись итогов")
	}
	if err := t.Send(chatID, "▶️ Свип запущен"); err != nil {
		return err
	}

	go func() {
		_, err := t.sweeps.RunSweep(context.WithoutCancel(ctx), runner.TriggerManual)
		switch {
		case errors.Is(err, runner.ErrSweepInProgress):
			_ = t.Send(chatID, "⏳ Свип уже идёт, дождись итогов")
		case err != nil:
			_ = t.SendF(chatID, "❌ Свип не удался: %v", err)
		}
	}()
	return nil
}

func (t *Telegram) handleBalances(ctx context.Context, chatID int64) error {
	plan, err := t.sweeps.Preview(ctx)
	if err != nil {
		return t.SendF(chatID, "❗️ Не удалось получить балансы: %v", err)
	}
	return t.Send(chatID, formatPlan(plan, t.quote))
}

func (t *Telegram) handleStatus(ctx context.Context, chatID int64) error {
	var b strings.Builder

	if t.sweeps.Busy() {
		b.WriteString("🔄 Свип идёт прямо сейчас\n\n")
	}

	recent, err := t.history.RecentSweeps(ctx, recentSweeps)
	if err != nil {
		logger.Warn("[TG] journal read failed: %v", err)
	}
	if len(recent) == 0 {
		// журнал пуст или недоступен: берём последний свип из памяти
		if last, ok := t.sweeps.LastSweep(); ok {
			recent = append(recent, last)
		}
	}
	b.WriteString(formatStatus(recent, t.sweeps.InFlight(), t.quote))

	return t.Send(chatID, b.String())
}
