package runner

import (
	"errors"
	"fmt"

	"liquidation_bot/internal/helper"
	"liquidation_bot/internal/models"

	"github.com/shopspring/decimal"
)

var ErrTooSmall = errors.New("quantity too small")

// TooSmallError — объём после округления не проходит минимумы рынка.
type TooSmallError struct {
	Symbol      string
	Raw         decimal.Decimal
	Normalized  decimal.Decimal
	MinQuantity decimal.Decimal
	Notional    decimal.Decimal
	MinNotional decimal.Decimal
}

func (e *TooSmallError) Error() string {
	if e.MinNotional.IsPositive() && e.Notional.LessThan(e.MinNotional) {
		return fmt.Sprintf("%s: notional %s below min %s (qty %s)",
			e.Symbol, e.Notional.StringFixed(4), e.MinNotional, e.Normalized)
	}
	return fmt.Sprintf("%s: quantity %s below min %s (raw %s)",
		e.Symbol, e.Normalized, e.MinQuantity, e.Raw)
}

func (e *TooSmallError) Is(target error) bool { return target == ErrTooSmall }

// Normalize приводит raw к шагу рынка, округляя только вниз.
// Результат никогда не превышает raw.
func Normalize(raw decimal.Decimal, rule models.MarketRule, price decimal.Decimal) (decimal.Decimal, error) {
	q := helper.RoundDownToStep(raw, rule.QuantityStep())
	notional := q.Mul(price)

	if !q.IsPositive() || q.LessThan(rule.MinQuantity) ||
		(rule.MinNotional.IsPositive() && notional.LessThan(rule.MinNotional)) {
		return decimal.Zero, &TooSmallError{
			Symbol:      rule.Symbol,
			Raw:         raw,
			Normalized:  q,
			MinQuantity: rule.MinQuantity,
			Notional:    notional,
			MinNotional: rule.MinNotional,
		}
	}
	return q, nil
}

// ClampToMinimum поднимает объём до минимума рынка (кратного шагу),
// только если его покрывает свободный остаток free.
func ClampToMinimum(free decimal.Decimal, rule models.MarketRule, price decimal.Decimal) (decimal.Decimal, error) {
	step := rule.QuantityStep()

	target := rule.MinQuantity
	if rule.MinNotional.IsPositive() && price.IsPositive() {
		if need := rule.MinNotional.Div(price); need.GreaterThan(target) {
			target = need
		}
	}
	target = helper.RoundUpToStep(target, step)

	if !target.IsPositive() || target.GreaterThan(free) {
		return decimal.Zero, &TooSmallError{
			Symbol:      rule.Symbol,
			Raw:         free,
			Normalized:  target,
			MinQuantity: rule.MinQuantity,
			Notional:    target.Mul(price),
			MinNotional: rule.MinNotional,
		}
	}
	return target, nil
}
