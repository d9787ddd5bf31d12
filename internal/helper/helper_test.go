package helper

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRoundDownToStep(t *testing.T) {
	cases := []struct {
		v, step, want string
	}{
		{"177.83966849", "0.0001", "177.8396"},
		{"174.80966849", "0.0001", "174.8096"},
		{"0.99999999", "0.01", "0.99"},
		{"5", "1", "5"},
		{"12.345", "0.005", "12.345"},
		{"0.3", "0.1", "0.3"},
	}
	for _, tc := range cases {
		got := RoundDownToStep(d(tc.v), d(tc.step))
		if !got.Equal(d(tc.want)) {
			t.Errorf("RoundDownToStep(%s, %s) = %s, want %s", tc.v, tc.step, got, tc.want)
		}
		if got.GreaterThan(d(tc.v)) {
			t.Errorf("result %s exceeds input %s", got, tc.v)
		}
	}
}

func TestRoundUpToStep(t *testing.T) {
	if got := RoundUpToStep(d("0.101"), d("0.01")); !got.Equal(d("0.11")) {
		t.Fatalf("got %s", got)
	}
	if got := RoundUpToStep(d("3"), decimal.Zero); !got.Equal(d("3")) {
		t.Fatalf("zero step must be identity, got %s", got)
	}
}

func TestStepDecimals(t *testing.T) {
	if n := StepDecimals(d("0.0001")); n != 4 {
		t.Fatalf("got %d", n)
	}
	if n := StepDecimals(d("10")); n != 0 {
		t.Fatalf("got %d", n)
	}
}

func TestMarketSymbol(t *testing.T) {
	if s := MarketSymbol(" NOCK", "USDT "); s != "nockusdt" {
		t.Fatalf("got %q", s)
	}
}

func TestSplitText(t *testing.T) {
	line := strings.Repeat("x", 30) + "\n"
	text := strings.Repeat(line, 10)

	parts := SplitText(text, 100)
	if strings.Join(parts, "") != text {
		t.Fatal("split lost content")
	}
	for _, p := range parts {
		if len([]rune(p)) > 100 {
			t.Fatalf("part too long: %d", len(p))
		}
		if !strings.HasSuffix(p, "\n") {
			t.Fatalf("expected split on newline, got %q", p)
		}
	}

	if got := SplitText("short", 100); len(got) != 1 || got[0] != "short" {
		t.Fatalf("got %v", got)
	}
}
