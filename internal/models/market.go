package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Balance — свободный остаток по валюте. Перечитывается каждый свип.
type Balance struct {
	Currency string
	Free     decimal.Decimal
	Locked   decimal.Decimal
}

// MarketRule — ограничения биржи по символу. Неизменяемо после загрузки.
type MarketRule struct {
	Symbol      string
	Base        string
	Quote       string
	MinQuantity decimal.Decimal
	// Step — явный шаг объёма; если нулевой, шаг = 10^-Precision
	Step        decimal.Decimal
	Precision   int32
	MinNotional decimal.Decimal
	State       string
}

// QuantityStep возвращает шаг объёма для правила.
func (r MarketRule) QuantityStep() decimal.Decimal {
	if r.Step.IsPositive() {
		return r.Step
	}
	return decimal.New(1, -r.Precision)
}

// Tradable — рынок включён на бирже.
func (r MarketRule) Tradable() bool {
	s := strings.ToLower(strings.TrimSpace(r.State))
	return s == "" || s == "enabled" || s == "active" || s == "live"
}

// Ticker — лучшая цена и 24h-статистика.
type Ticker struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Last   decimal.Decimal
	Low    decimal.Decimal
	High   decimal.Decimal
	Volume decimal.Decimal
	At     time.Time
}

// SellPrice — цена, по которой оцениваем продажу: bid, иначе last.
func (t Ticker) SellPrice() decimal.Decimal {
	if t.Bid.IsPositive() {
		return t.Bid
	}
	return t.Last
}

// PriceLevel — один уровень стакана.
type PriceLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

type Depth struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// PriorityScore — результат ранжирования, живёт один свип.
type PriorityScore struct {
	Currency     string
	Balance      decimal.Decimal
	Price        decimal.Decimal
	EstimatedUSD decimal.Decimal
	Rank         int
}
