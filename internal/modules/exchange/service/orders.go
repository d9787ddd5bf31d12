package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"liquidation_bot/internal/models"
)

// PlaceOrder отправляет ордер. Повторов нет: ошибка уходит вызывающему.
func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.ExchangeOrder, error) {
	const path = "/market/orders"
	op := http.MethodPost + " " + path

	if !req.Quantity.IsPositive() {
		return models.ExchangeOrder{}, &GatewayError{Kind: DecodeFailure, Op: op, Err: errors.New("order volume must be positive")}
	}

	body := map[string]string{
		"market":   strings.ToLower(req.Symbol),
		"side":     string(req.Side),
		"volume":   req.Quantity.String(),
		"ord_type": string(req.Type),
	}
	if req.Type == models.OrderTypeLimit {
		if req.Price == nil || !req.Price.IsPositive() {
			return models.ExchangeOrder{}, &GatewayError{Kind: DecodeFailure, Op: op, Err: errors.New("limit order requires price")}
		}
		body["price"] = req.Price.String()
	}

	raw, err := c.Post(ctx, path, body)
	if err != nil {
		return models.ExchangeOrder{}, err
	}

	var w wireOrder
	if err := decode(op, raw, &w); err != nil {
		return models.ExchangeOrder{}, err
	}
	if w.ID == "" {
		return models.ExchangeOrder{}, &GatewayError{Kind: DecodeFailure, Op: op, Body: truncate(string(raw), 256), Err: errEmptyField("id")}
	}
	return w.model(), nil
}

// Order — текущее состояние ордера на бирже.
func (c *Client) Order(ctx context.Context, id string) (models.ExchangeOrder, error) {
	path := "/market/orders/" + url.PathEscape(id)

	var w wireOrder
	if err := c.getInto(ctx, path, nil, &w); err != nil {
		return models.ExchangeOrder{}, err
	}
	if w.ID == "" {
		w.ID = flexID(id)
	}
	return w.model(), nil
}

// OrderTrades — сделки по ордеру. Чужие сделки в ответе отбрасываются.
func (c *Client) OrderTrades(ctx context.Context, id string) ([]models.Fill, error) {
	q := url.Values{}
	q.Set("order_id", id)

	var raw []wireTrade
	if err := c.getInto(ctx, "/market/trades", q, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Fill, 0, len(raw))
	for _, t := range raw {
		if t.OrderID != "" && string(t.OrderID) != id {
			continue
		}
		out = append(out, models.Fill{
			ID:       string(t.ID),
			OrderID:  id,
			Price:    t.Price.Decimal,
			Amount:   t.Amount.Decimal,
			Total:    t.Total.Decimal,
			Executed: t.CreatedAt.Time,
		})
	}
	return out, nil
}

func (w wireOrder) model() models.ExchangeOrder {
	vol := w.Volume.Decimal
	if vol.IsZero() {
		vol = w.OriginVolume.Decimal
	}
	return models.ExchangeOrder{
		ID:             string(w.ID),
		Symbol:         strings.ToLower(w.Market),
		Side:           models.Side(strings.ToLower(w.Side)),
		Type:           models.OrderType(strings.ToLower(w.OrdType)),
		State:          strings.ToLower(w.State),
		Volume:         vol,
		Remaining:      w.RemainingVolume.Decimal,
		ExecutedVolume: w.ExecutedVolume.Decimal,
		AvgPrice:       w.AvgPrice.Decimal,
		CreatedAt:      w.CreatedAt.Time,
	}
}
