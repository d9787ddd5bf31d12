package runner

import (
	"context"
	"time"

	"liquidation_bot/internal/models"

	"github.com/shopspring/decimal"
)

// Gateway — вызовы биржи, которые нужны движку.
type Gateway interface {
	MarketLister
	OrderAPI
	Balances(ctx context.Context) ([]models.Balance, error)
	Tickers(ctx context.Context) (map[string]models.Ticker, error)
	Ticker(ctx context.Context, symbol string) (models.Ticker, error)
	Depth(ctx context.Context, symbol string, limit int) (models.Depth, error)
}

type MarketLister interface {
	Markets(ctx context.Context) ([]models.MarketRule, error)
}

type OrderAPI interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.ExchangeOrder, error)
	Order(ctx context.Context, id string) (models.ExchangeOrder, error)
	OrderTrades(ctx context.Context, id string) ([]models.Fill, error)
}

// Notifier получает копии итогов; вызывается ровно один раз на ордер.
type Notifier interface {
	NotifyOrder(ctx context.Context, r models.OrderReport)
	NotifySweep(ctx context.Context, r models.SweepResult)
}

// Journal — хранилище истории.
type Journal interface {
	SaveOrderReport(ctx context.Context, r models.OrderReport) error
	SaveSweep(ctx context.Context, r models.SweepResult) error
}

// PriceSource — кэш цен из стрима; ok=false, если цены нет или она старше maxAge.
type PriceSource interface {
	Price(symbol string, maxAge time.Duration) (decimal.Decimal, bool)
}

// Advisor — необязательная подсказка по стратегии продажи.
type Advisor interface {
	Advise(ctx context.Context, req models.AdviceRequest) (models.Advice, error)
}
