package runner

import (
	"sort"

	"liquidation_bot/internal/models"

	"github.com/shopspring/decimal"
)

// PriceLookup — цена валюты в котируемой (≈USD); ok=false если неизвестна.
type PriceLookup func(currency string) (decimal.Decimal, bool)

// Score ранжирует остатки по убыванию оценки в USD, при равенстве по коду валюты.
// Нулевые остатки и валюты без цены отбрасываются.
func Score(balances []models.Balance, price PriceLookup) []models.PriorityScore {
	out := make([]models.PriorityScore, 0, len(balances))
	for _, b := range balances {
		if !b.Free.IsPositive() {
			continue
		}
		p, ok := price(b.Currency)
		if !ok || !p.IsPositive() {
			continue
		}
		out = append(out, models.PriorityScore{
			Currency:     b.Currency,
			Balance:      b.Free,
			Price:        p,
			EstimatedUSD: b.Free.Mul(p),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].EstimatedUSD.Cmp(out[j].EstimatedUSD); c != 0 {
			return c > 0
		}
		return out[i].Currency < out[j].Currency
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
