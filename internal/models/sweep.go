package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SkipReason — почему валюта не продавалась в этом свипе.
type SkipReason struct {
	Currency string `json:"currency"`
	Reason   string `json:"reason"`
}

// FailedSale — попытка продажи, которая не закончилась FILLED.
type FailedSale struct {
	Currency string     `json:"currency"`
	Symbol   string     `json:"symbol,omitempty"`
	OrderID  string     `json:"order_id,omitempty"`
	State    OrderState `json:"state,omitempty"`
	Reason   string     `json:"reason"`
}

// SweepResult — агрегат по одному свипу.
type SweepResult struct {
	ID              string          `json:"id"`
	Account         string          `json:"account"`
	Trigger         string          `json:"trigger"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	TotalProcessed  int             `json:"total_processed"`
	SuccessfulSales int             `json:"successful_sales"`
	FailedSales     int             `json:"failed_sales"`
	Proceeds        decimal.Decimal `json:"proceeds"`
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	Skipped         []SkipReason    `json:"skipped,omitempty"`
	Failures        []FailedSale    `json:"failures,omitempty"`
	Orders          []OrderReport   `json:"orders,omitempty"`
}
