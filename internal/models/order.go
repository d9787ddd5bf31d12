package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideSell Side = "sell"
	SideBuy  Side = "buy"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

// OrderRequest — одна попытка продажи. Создаётся один раз, не меняется.
type OrderRequest struct {
	Symbol   string
	Currency string
	Side     Side
	Type     OrderType
	Quantity decimal.Decimal
	// Price задаётся только для limit
	Price *decimal.Decimal
}

// OrderState — состояние ордера у нас на клиенте.
type OrderState string

const (
	OrderSubmitting OrderState = "SUBMITTING"
	OrderOpen       OrderState = "OPEN"
	OrderFilled     OrderState = "FILLED"
	OrderCancelled  OrderState = "CANCELLED"
	OrderTimedOut   OrderState = "TIMED_OUT"
	OrderRejected   OrderState = "REJECTED"
)

func (s OrderState) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderTimedOut, OrderRejected:
		return true
	}
	return false
}

// allowed — допустимые переходы; из терминальных переходов нет.
var allowed = map[OrderState][]OrderState{
	OrderSubmitting: {OrderOpen, OrderRejected},
	OrderOpen:       {OrderFilled, OrderCancelled, OrderTimedOut, OrderRejected},
}

// ErrIllegalTransition — попытка немонотонного перехода.
type ErrIllegalTransition struct {
	From, To OrderState
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal order transition %s -> %s", e.From, e.To)
}

// OrderRecord — ордер под наблюдением трекера. State меняет только трекер.
type OrderRecord struct {
	OrderID           string
	Symbol            string
	Currency          string
	SubmittedQuantity decimal.Decimal
	Type              OrderType
	State             OrderState
	CreatedAt         time.Time
}

// NewOrderRecord — запись в состоянии SUBMITTING.
func NewOrderRecord(req OrderRequest, now time.Time) *OrderRecord {
	return &OrderRecord{
		Symbol:            req.Symbol,
		Currency:          req.Currency,
		SubmittedQuantity: req.Quantity,
		Type:              req.Type,
		State:             OrderSubmitting,
		CreatedAt:         now,
	}
}

// Transition переводит запись в next, если переход разрешён.
func (r *OrderRecord) Transition(next OrderState) error {
	for _, s := range allowed[r.State] {
		if s == next {
			r.State = next
			return nil
		}
	}
	return &ErrIllegalTransition{From: r.State, To: next}
}

// Snapshot — копия записи для передачи наружу.
func (r *OrderRecord) Snapshot() OrderRecord {
	return *r
}

// ExchangeOrder — ордер как его видит биржа.
type ExchangeOrder struct {
	ID             string
	Symbol         string
	Side           Side
	Type           OrderType
	State          string
	Volume         decimal.Decimal
	Remaining      decimal.Decimal
	ExecutedVolume decimal.Decimal
	AvgPrice       decimal.Decimal
	CreatedAt      time.Time
}

// Биржевые статусы ордера.
const (
	ExchangeStatePending = "pending"
	ExchangeStateWait    = "wait"
	ExchangeStateDone    = "done"
	ExchangeStateCancel  = "cancel"
	ExchangeStateReject  = "reject"
)

// Fill — одна сделка по ордеру.
type Fill struct {
	ID       string
	OrderID  string
	Price    decimal.Decimal
	Amount   decimal.Decimal
	Total    decimal.Decimal
	Executed time.Time
}

// Notional — сумма сделки в котируемой валюте.
func (f Fill) Notional() decimal.Decimal {
	if f.Total.IsPositive() {
		return f.Total
	}
	return f.Amount.Mul(f.Price)
}

// OrderReport — итог по ордеру в терминальном состоянии.
type OrderReport struct {
	OrderID          string          `json:"order_id"`
	Symbol           string          `json:"symbol"`
	Currency         string          `json:"currency"`
	Type             OrderType       `json:"type"`
	Submitted        decimal.Decimal `json:"submitted_quantity"`
	ExecutedQuantity decimal.Decimal `json:"executed_quantity"`
	Proceeds         decimal.Decimal `json:"proceeds"`
	AvgPrice         decimal.Decimal `json:"avg_price"`
	State            OrderState      `json:"state"`
	Attempts         int             `json:"attempts"`
	Reason           string          `json:"reason,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}
