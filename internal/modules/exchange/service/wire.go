package service

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// num — число, которое биржа отдаёт то строкой, то числом. null и "" читаются как ноль.
type num struct{ decimal.Decimal }

func (n *num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" || string(b) == `""` {
		n.Decimal = decimal.Zero
		return nil
	}
	if b[0] != '"' && b[0] != '-' && (b[0] < '0' || b[0] > '9') {
		return fmt.Errorf("unexpected numeric value %s", b)
	}
	return n.Decimal.UnmarshalJSON(b)
}

// flexID — id ордера/сделки: число или строка.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*f = ""
	case b[0] == '"':
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*f = flexID(s)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*f = flexID(b)
	default:
		return fmt.Errorf("unexpected id value %s", b)
	}
	return nil
}

// flexTime — unix-секунды или RFC3339.
type flexTime struct{ time.Time }

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if sec, err := strconv.ParseFloat(s, 64); err == nil {
		t.Time = time.Unix(int64(sec), 0).UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("unexpected time value %q", s)
	}
	t.Time = parsed.UTC()
	return nil
}

type wireBalance struct {
	Currency string `json:"currency"`
	Balance  num    `json:"balance"`
	Locked   num    `json:"locked"`
}

type wireMarket struct {
	ID              string `json:"id"`
	Symbol          string `json:"symbol"`
	BaseUnit        string `json:"base_unit"`
	QuoteUnit       string `json:"quote_unit"`
	MinAmount       num    `json:"min_amount"`
	AmountPrecision int32  `json:"amount_precision"`
	AmountStep      num    `json:"amount_step"`
	MinNotional     num    `json:"min_notional"`
	State           string `json:"state"`
}

func (m wireMarket) symbol() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Symbol
}

type wireTickerBody struct {
	Buy    num `json:"buy"`
	Sell   num `json:"sell"`
	Low    num `json:"low"`
	High   num `json:"high"`
	Last   num `json:"last"`
	Vol    num `json:"vol"`
	Volume num `json:"volume"`
}

type wireTicker struct {
	At     flexTime       `json:"at"`
	Ticker wireTickerBody `json:"ticker"`
}

type wireDepth struct {
	Timestamp flexTime `json:"timestamp"`
	Asks      [][]num  `json:"asks"`
	Bids      [][]num  `json:"bids"`
}

type wireOrder struct {
	ID              flexID   `json:"id"`
	Market          string   `json:"market"`
	Side            string   `json:"side"`
	OrdType         string   `json:"ord_type"`
	State           string   `json:"state"`
	Price           num      `json:"price"`
	AvgPrice        num      `json:"avg_price"`
	Volume          num      `json:"volume"`
	OriginVolume    num      `json:"origin_volume"`
	RemainingVolume num      `json:"remaining_volume"`
	ExecutedVolume  num      `json:"executed_volume"`
	CreatedAt       flexTime `json:"created_at"`
}

type wireTrade struct {
	ID        flexID   `json:"id"`
	OrderID   flexID   `json:"order_id"`
	Price     num      `json:"price"`
	Amount    num      `json:"amount"`
	Total     num      `json:"total"`
	CreatedAt flexTime `json:"created_at"`
}
