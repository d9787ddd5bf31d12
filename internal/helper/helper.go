package helper

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormCurrency — тикер валюты в нижнем регистре без пробелов.
func NormCurrency(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// MarketSymbol — символ рынка "<base><quote>", например nockusdt.
func MarketSymbol(base, quote string) string {
	return NormCurrency(base) + NormCurrency(quote)
}

// RoundDownToStep — наибольшее кратное step, не превышающее v. Никогда не округляет вверх.
func RoundDownToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	out := v.Div(step).Floor().Mul(step)
	// деление с ограниченной точностью может дать лишний шаг
	for out.GreaterThan(v) {
		out = out.Sub(step)
	}
	return out
}

// RoundUpToStep — наименьшее кратное step, не меньшее v.
func RoundUpToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	out := v.Div(step).Ceil().Mul(step)
	for out.LessThan(v) {
		out = out.Add(step)
	}
	return out
}

// StepDecimals — число знаков после запятой у шага (0.0001 -> 4).
func StepDecimals(step decimal.Decimal) int32 {
	if !step.IsPositive() {
		return 0
	}
	if e := step.Exponent(); e < 0 {
		return -e
	}
	return 0
}

// SplitText режет текст на куски не длиннее limit рун, по возможности по переводам строк.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var out []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
