package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"liquidation_bot/internal/models"
)

func errEmptyField(name string) error {
	return fmt.Errorf("required field %q is empty", name)
}

// Markets — правила по всем символам биржи.
func (c *Client) Markets(ctx context.Context) ([]models.MarketRule, error) {
	const path = "/public/markets"

	var raw []wireMarket
	if err := c.getInto(ctx, path, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]models.MarketRule, 0, len(raw))
	for _, m := range raw {
		sym := strings.ToLower(m.symbol())
		if sym == "" {
			return nil, &GatewayError{Kind: DecodeFailure, Op: http.MethodGet + " " + path, Err: errEmptyField("id")}
		}
		out = append(out, models.MarketRule{
			Symbol:      sym,
			Base:        strings.ToLower(m.BaseUnit),
			Quote:       strings.ToLower(m.QuoteUnit),
			MinQuantity: m.MinAmount.Decimal,
			Step:        m.AmountStep.Decimal,
			Precision:   m.AmountPrecision,
			MinNotional: m.MinNotional.Decimal,
			State:       m.State,
		})
	}
	return out, nil
}

// Tickers — тикеры всех рынков одним запросом, ключ — символ.
func (c *Client) Tickers(ctx context.Context) (map[string]models.Ticker, error) {
	var raw map[string]wireTicker
	if err := c.getInto(ctx, "/public/markets/tickers", nil, &raw); err != nil {
		return nil, err
	}

	out := make(map[string]models.Ticker, len(raw))
	for sym, t := range raw {
		sym = strings.ToLower(sym)
		out[sym] = t.model(sym)
	}
	return out, nil
}

// Ticker — свежий тикер одного рынка.
func (c *Client) Ticker(ctx context.Context, symbol string) (models.Ticker, error) {
	symbol = strings.ToLower(symbol)

	var raw wireTicker
	if err := c.getInto(ctx, "/public/markets/"+url.PathEscape(symbol)+"/tickers", nil, &raw); err != nil {
		return models.Ticker{}, err
	}
	return raw.model(symbol), nil
}

// Depth — стакан до limit уровней.
func (c *Client) Depth(ctx context.Context, symbol string, limit int) (models.Depth, error) {
	symbol = strings.ToLower(symbol)

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var raw wireDepth
	if err := c.getInto(ctx, "/public/markets/"+url.PathEscape(symbol)+"/depth", q, &raw); err != nil {
		return models.Depth{}, err
	}

	return models.Depth{
		Bids: levels(raw.Bids),
		Asks: levels(raw.Asks),
	}, nil
}

func levels(in [][]num) []models.PriceLevel {
	out := make([]models.PriceLevel, 0, len(in))
	for _, l := range in {
		if len(l) < 2 {
			continue
		}
		out = append(out, models.PriceLevel{Price: l[0].Decimal, Amount: l[1].Decimal})
	}
	return out
}

func (t wireTicker) model(symbol string) models.Ticker {
	vol := t.Ticker.Volume.Decimal
	if vol.IsZero() {
		vol = t.Ticker.Vol.Decimal
	}
	return models.Ticker{
		Symbol: symbol,
		Bid:    t.Ticker.Buy.Decimal,
		Ask:    t.Ticker.Sell.Decimal,
		Last:   t.Ticker.Last.Decimal,
		Low:    t.Ticker.Low.Decimal,
		High:   t.Ticker.High.Decimal,
		Volume: vol,
		At:     t.At.Time,
	}
}
