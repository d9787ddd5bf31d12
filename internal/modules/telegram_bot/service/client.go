package service

import (
	"context"
	"fmt"
	"sync"

	"liquidation_bot/internal/helper"
	"liquidation_bot/internal/models"
	"liquidation_bot/internal/modules/config"
	"liquidation_bot/internal/runner"
	"liquidation_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// лимит длины одного сообщения Telegram
const messageLimit = 4096

// botAPI — часть tgbot.BotAPI, которой пользуется бот; подменяется в тестах.
type botAPI interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// Sweeps — то, что бот дергает у менеджера свипов.
type Sweeps interface {
	RunSweep(ctx context.Context, trigger string) (models.SweepResult, error)
	Preview(ctx context.Context) (runner.Plan, error)
	LastSweep() (models.SweepResult, bool)
	InFlight() []models.OrderRecord
	Busy() bool
}

// History — последние свипы из журнала.
type History interface {
	RecentSweeps(ctx context.Context, limit int) ([]models.SweepResult, error)
}

// Telegram — чат-бот и нотифайер в одном.
type Telegram struct {
	bot     botAPI
	chats   []int64
	allowed map[int64]struct{}
	sweeps  Sweeps
	history History
	quote   string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTelegram — менеджер свипов подключается позже через Attach: он сам зависит от нотифайера.
func NewTelegram(cfg *config.Config, history History) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info("[TG] authorized as @%s", b.Self.UserName)
	return newTelegram(b, cfg.Telegram.ChatIDs, cfg.Exchange.QuoteCurrency, nil, history), nil
}

// Attach подключает менеджер свипов; вызывается до Start.
func (t *Telegram) Attach(sweeps Sweeps) {
	t.sweeps = sweeps
}

func newTelegram(bot botAPI, chats []int64, quote string, sweeps Sweeps, history History) *Telegram {
	allowed := make(map[int64]struct{}, len(chats))
	for _, id := range chats {
		allowed[id] = struct{}{}
	}
	return &Telegram{
		bot:     bot,
		chats:   chats,
		allowed: allowed,
		sweeps:  sweeps,
		history: history,
		quote:   helper.NormCurrency(quote),
	}
}

func (t *Telegram) authorized(chatID int64) bool {
	_, ok := t.allowed[chatID]
	return ok
}

// Send режет длинный текст по строкам и шлёт частями.
func (t *Telegram) Send(chatID int64, text string) error {
	for _, part := range helper.SplitText(text, messageLimit) {
		if _, err := t.bot.Send(tgbot.NewMessage(chatID, part)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) SendF(chatID int64, format string, args ...any) error {
	return t.Send(chatID, fmt.Sprintf(format, args...))
}

// Broadcast — всем настроенным чатам.
func (t *Telegram) Broadcast(text string) {
	for _, id := range t.chats {
		if err := t.Send(id, text); err != nil {
			logger.Warn("[TG] send to %d failed: %v", id, err)
		}
	}
}

// Start — long polling в отдельной горутине.
func (t *Telegram) Start(parent context.Context) {
	if t.sweeps == nil {
		logger.Warn("[TG] no sweep manager attached, commands disabled")
	}
	ctx, cancel := context.WithCancel(parent)

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}
	updates := t.bot.GetUpdatesChan(u)

	t.mu.Lock()
	t.cancel = cancel
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, upd)
			}
		}
	}()
}

func (t *Telegram) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()
	if cancel == nil {
		return
	}

	t.bot.StopReceivingUpdates()
	cancel()
	<-done
}
