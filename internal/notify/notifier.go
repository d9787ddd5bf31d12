package notify

import (
	"context"
	"strings"

	"liquidation_bot/internal/models"
	"liquidation_bot/pkg/logger"
)

type Notifier interface {
	NotifyOrder(ctx context.Context, r models.OrderReport)
	NotifySweep(ctx context.Context, r models.SweepResult)
}

// Multi — рассылка по нескольким нотифайерам по порядку.
type Multi []Notifier

func (m Multi) NotifyOrder(ctx context.Context, r models.OrderReport) {
	for _, n := range m {
		n.NotifyOrder(ctx, r)
	}
}

func (m Multi) NotifySweep(ctx context.Context, r models.SweepResult) {
	for _, n := range m {
		n.NotifySweep(ctx, r)
	}
}

// Stdout — пишет итоги в лог. Используется, когда чат не настроен.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) NotifyOrder(_ context.Context, r models.OrderReport) {
	logger.Info("[NOTIFY] order %s %s %s: executed=%s proceeds=%s avg=%s %s",
		r.OrderID, r.Symbol, r.State, r.ExecutedQuantity, r.Proceeds, r.AvgPrice, r.Reason)
}

func (s *Stdout) NotifySweep(_ context.Context, r models.SweepResult) {
	skipped := make([]string, 0, len(r.Skipped))
	for _, sk := range r.Skipped {
		skipped = append(skipped, sk.Currency+": "+sk.Reason)
	}
	logger.Info("[NOTIFY] sweep %s (%s) success=%t processed=%d ok=%d failed=%d proceeds=%s skipped=[%s] %s",
		r.ID, r.Trigger, r.Success, r.TotalProcessed, r.SuccessfulSales, r.FailedSales,
		r.Proceeds, strings.Join(skipped, "; "), r.Message)
}
