package service

import (
	"context"

	"liquidation_bot/internal/models"
)

// NotifyOrder — итог по ордеру во все чаты.
func (t *Telegram) NotifyOrder(_ context.Context, r models.OrderReport) {
	t.Broadcast(formatOrderReport(r, t.quote))
}

// NotifySweep — итог свипа во все чаты.
func (t *Telegram) NotifySweep(_ context.Context, r models.SweepResult) {
	t.Broadcast(formatSweep(r, t.quote))
}
