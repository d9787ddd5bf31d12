package runner

import (
	"errors"
	"testing"

	"liquidation_bot/internal/models"

	"github.com/shopspring/decimal"
)

func TestNormalize_FloorNeverRoundsUp(t *testing.T) {
	rule := models.MarketRule{Symbol: "nockusdt", MinQuantity: d("0.01"), Precision: 4}

	got, err := Normalize(d("177.83966849"), rule, d("0.14"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !got.Equal(d("177.8396")) {
		t.Fatalf("got %s, want 177.8396", got)
	}
}

func TestNormalize_Properties(t *testing.T) {
	raws := []string{"0.123456789", "1", "99.99999", "177.83966849", "5000.00005", "0.0199"}
	for _, precision := range []int32{0, 2, 4, 8} {
		rule := models.MarketRule{Symbol: "x", Precision: precision}
		step := rule.QuantityStep()
		for _, raw := range raws {
			q, err := Normalize(d(raw), rule, d("1"))
			if err != nil {
				if !errors.Is(err, ErrTooSmall) {
					t.Fatalf("unexpected error %v", err)
				}
				continue
			}
			if q.GreaterThan(d(raw)) {
				t.Errorf("precision %d: %s > %s", precision, q, raw)
			}
			if !q.Mod(step).IsZero() {
				t.Errorf("precision %d: %s is not a multiple of %s", precision, q, step)
			}
		}
	}
}

func TestNormalize_ExplicitStep(t *testing.T) {
	rule := models.MarketRule{Symbol: "x", Step: d("0.5"), Precision: 8}
	got, err := Normalize(d("3.99"), rule, d("1"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !got.Equal(d("3.5")) {
		t.Fatalf("got %s", got)
	}
}

func TestNormalize_TooSmall(t *testing.T) {
	cases := map[string]struct {
		raw   string
		price string
		rule  models.MarketRule
	}{
		"below min quantity": {"0.00999", "10", models.MarketRule{MinQuantity: d("0.01"), Precision: 4}},
		"floors to zero":     {"0.00009", "10", models.MarketRule{Precision: 4}},
		"below min notional": {"10", "0.05", models.MarketRule{MinQuantity: d("1"), Precision: 2, MinNotional: d("1")}},
	}
	for name, tc := range cases {
		_, err := Normalize(d(tc.raw), tc.rule, d(tc.price))
		if !errors.Is(err, ErrTooSmall) {
			t.Errorf("%s: expected ErrTooSmall, got %v", name, err)
		}
		var tse *TooSmallError
		if !errors.As(err, &tse) {
			t.Errorf("%s: expected *TooSmallError", name)
		}
	}
}

func TestClampToMinimum(t *testing.T) {
	rule := models.MarketRule{Symbol: "x", MinQuantity: d("0.015"), Precision: 2}

	// минимум не кратен шагу: поднимаем до 0.02, если хватает остатка
	got, err := ClampToMinimum(d("0.0199"), rule, d("100"))
	if !errors.Is(err, ErrTooSmall) {
		t.Fatalf("0.02 exceeds free 0.0199, expected ErrTooSmall, got %s %v", got, err)
	}

	got, err = ClampToMinimum(d("0.025"), rule, d("100"))
	if err != nil {
		t.Fatalf("ClampToMinimum: %v", err)
	}
	if !got.Equal(d("0.02")) {
		t.Fatalf("got %s, want 0.02", got)
	}

	// min notional 5 при цене 2 требует 2.5 -> 2.5 при шаге 0.01
	rule = models.MarketRule{Symbol: "x", MinQuantity: d("1"), Precision: 2, MinNotional: d("5")}
	got, err = ClampToMinimum(d("3"), rule, d("2"))
	if err != nil {
		t.Fatalf("ClampToMinimum: %v", err)
	}
	if !got.Equal(d("2.5")) || got.GreaterThan(d("3")) {
		t.Fatalf("got %s", got)
	}

	if _, err := ClampToMinimum(decimal.Zero, models.MarketRule{Precision: 2}, d("1")); !errors.Is(err, ErrTooSmall) {
		t.Fatalf("zero minimum must not produce an order, got %v", err)
	}
}
