package service

import (
	"context"
	"net/http"
	"strings"

	"liquidation_bot/internal/models"
)

// Balances — все остатки аккаунта.
func (c *Client) Balances(ctx context.Context) ([]models.Balance, error) {
	const path = "/account/balances"

	var raw []wireBalance
	if err := c.getInto(ctx, path, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Balance, 0, len(raw))
	for _, b := range raw {
		cur := strings.ToLower(strings.TrimSpace(b.Currency))
		if cur == "" {
			return nil, &GatewayError{Kind: DecodeFailure, Op: http.MethodGet + " " + path, Err: errEmptyField("currency")}
		}
		out = append(out, models.Balance{
			Currency: cur,
			Free:     b.Balance.Decimal,
			Locked:   b.Locked.Decimal,
		})
	}
	return out, nil
}
