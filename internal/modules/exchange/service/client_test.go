package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"liquidation_bot/internal/models"
	"liquidation_bot/pkg/ratelimit"

	"github.com/shopspring/decimal"
)

func TestSign_KnownVector(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	const want = "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"

	got := sign("key", "The quick brown fox ", "jumps over the lazy dog")
	if got != want {
		t.Fatalf("sign = %s, want %s", got, want)
	}
}

func TestNonce_StrictlyIncreasing(t *testing.T) {
	c := New("http://x", "k", "s", time.Second, nil)
	fixed := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return fixed }

	a, b := c.nonce(), c.nonce()
	if a != "1700000000000" || b != "1700000000001" {
		t.Fatalf("nonces = %s, %s", a, b)
	}
}

func newFakeExchange(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key", "test-secret", 5*time.Second, nil), srv
}

func TestClient_SignsEveryRequest(t *testing.T) {
	var seen []string
	c, _ := newFakeExchange(t, func(w http.ResponseWriter, r *http.Request) {
		nonce := r.Header.Get("X-Auth-Nonce")
		if r.Header.Get("X-Auth-Apikey") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("X-Auth-Signature") != sign("test-secret", nonce, "test-key") {
			t.Errorf("bad signature for nonce %s", nonce)
		}
		seen = append(seen, nonce)
		_, _ = io.WriteString(w, `[]`)
	})

	for i := 0; i < 2; i++ {
		if _, err := c.Balances(context.Background()); err != nil {
			t.Fatalf("Balances: %v", err)
		}
	}
	if len(seen) != 2 || seen[0] == seen[1] {
		t.Fatalf("expected two distinct nonces, got %v", seen)
	}
}

func TestClient_Balances_StringAndNumber(t *testing.T) {
	c, _ := newFakeExchange(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/peatio/account/balances" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `[{"currency":"NOCK","balance":"177.83966849","locked":0},{"currency":"usdt","balance":12.5,"locked":"1"}]`)
	})

	got, err := c.Balances(context.Background())
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Currency != "nock" || !got[0].Free.Equal(decimal.RequireFromString("177.83966849")) {
		t.Fatalf("unexpected first balance %+v", got[0])
	}
	if !got[1].Free.Equal(decimal.RequireFromString("12.5")) || !got[1].Locked.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected second balance %+v", got[1])
	}
}

func TestClient_RejectsUnknownShape(t *testing.T) {
	c, _ := newFakeExchange(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"currency":"nock","balance":"1"}]}`)
	})

	_, err := c.Balances(context.Background())
	if !IsKind(err, DecodeFailure) {
		t.Fatalf("expected DecodeFailure, got %v", err)
	}
}

func TestClient_ErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"errors":["authz.invalid_signature"]}`, AuthFailure},
		{"forbidden", http.StatusForbidden, `{}`, AuthFailure},
		{"server error", http.StatusBadGateway, `bad gateway`, HTTPStatusFailure},
		{"not json", http.StatusOK, `<html>`, DecodeFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newFakeExchange(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.Markets(context.Background())
			if !IsKind(err, tc.kind) {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
		})
	}
}

func TestClient_TooManyRequests(t *testing.T) {
	c, _ := newFakeExchange(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.Tickers(context.Background())
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, "k", "s", time.Second, nil)
	_, err := c.Balances(context.Background())
	if !IsKind(err, TransportFailure) {
		t.Fatalf("expected TransportFailure, got %v", err)
	}
}

func TestClient_LocalLimiter(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "s", time.Second, ratelimit.New(1, 0))
	if _, err := c.Balances(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := c.Balances(context.Background())
	if !IsKind(err, RateLimited) {
		t.Fatalf("expected RateLimited, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("denied call reached the server: calls=%d", calls)
	}
}

func TestClient_MissingCredentials(t *testing.T) {
	c := New("http://127.0.0.1:1", "", "", time.Second, nil)
	_, err := c.Balances(context.Background())
	if !IsKind(err, AuthFailure) {
		t.Fatalf("expected AuthFailure, got %v", err)
	}
}

func TestClient_MarketsAndTickers(t *testing.T) {
	c, _ := newFakeExchange(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/peatio/public/markets":
			_, _ = io.WriteString(w, `[{"id":"nockusdt","base_unit":"nock","quote_unit":"usdt","state":"enabled","min_amount":"1","amount_precision":4}]`)
		case "/api/v2/peatio/public/markets/tickers":
			_, _ = io.WriteString(w, `{"nockusdt":{"at":1700000000,"ticker":{"buy":"0.14","sell":"0.15","last":"0.145","vol":"1000"}}}`)
		case "/api/v2/peatio/public/markets/nockusdt/tickers":
			_, _ = io.WriteString(w, `{"at":"1700000000","ticker":{"buy":0.141,"sell":0.15,"last":0.145,"volume":"2000"}}`)
		case "/api/v2/peatio/public/markets/nockusdt/depth":
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %s", r.URL.Query().Get("limit"))
			}
			_, _ = io.WriteString(w, `{"asks":[["0.15","10"]],"bids":[["0.14","20"],["0.13","5"]]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	markets, err := c.Markets(ctx)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if len(markets) != 1 || markets[0].Symbol != "nockusdt" || markets[0].Precision != 4 {
		t.Fatalf("unexpected markets %+v", markets)
	}
	if !markets[0].QuantityStep().Equal(decimal.RequireFromString("0.0001")) {
		t.Fatalf("step = %s", markets[0].QuantityStep())
	}

	all, err := c.Tickers(ctx)
	if err != nil {
		t.Fatalf("Tickers: %v", err)
	}
	if tk := all["nockusdt"]; !tk.Bid.Equal(decimal.RequireFromString("0.14")) || !tk.Volume.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected bulk ticker %+v", tk)
	}

	one, err := c.Ticker(ctx, "NOCKUSDT")
	if err != nil {
		t.Fatalf("Ticker: %v", err)
	}
	if !one.SellPrice().Equal(decimal.RequireFromString("0.141")) || one.At.Unix() != 1700000000 {
		t.Fatalf("unexpected ticker %+v", one)
	}

	depth, err := c.Depth(ctx, "nockusdt", 5)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if len(depth.Bids) != 2 || len(depth.Asks) != 1 {
		t.Fatalf("unexpected depth %+v", depth)
	}
}

func TestClient_OrderLifecycle(t *testing.T) {
	c, _ := newFakeExchange(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v2/peatio/market/orders":
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"volume":"174.8096"`) || !strings.Contains(string(body), `"ord_type":"market"`) {
				t.Errorf("unexpected order body %s", body)
			}
			if strings.Contains(string(body), `"price"`) {
				t.Errorf("market order must not carry price: %s", body)
			}
			_, _ = io.WriteString(w, `{"id":42,"market":"nockusdt","side":"sell","ord_type":"market","state":"wait","volume":"174.8096","remaining_volume":"174.8096","executed_volume":"0"}`)
		case r.URL.Path == "/api/v2/peatio/market/orders/42":
			_, _ = io.WriteString(w, `{"id":"42","market":"nockusdt","state":"done","volume":"174.8096","remaining_volume":"0","executed_volume":"174.8096","avg_price":"0.14"}`)
		case r.URL.Path == "/api/v2/peatio/market/trades":
			if r.URL.Query().Get("order_id") != "42" {
				t.Errorf("order_id = %s", r.URL.Query().Get("order_id"))
			}
			_, _ = io.WriteString(w, `[{"id":1,"order_id":42,"price":"0.14","amount":"100","total":"14.0"},{"id":2,"order_id":42,"price":"0.1396","amount":"74.8096","total":"10.47"},{"id":3,"order_id":77,"price":"1","amount":"1","total":"1"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	placed, err := c.PlaceOrder(ctx, models.OrderRequest{
		Symbol:   "nockusdt",
		Currency: "nock",
		Side:     models.SideSell,
		Type:     models.OrderTypeMarket,
		Quantity: decimal.RequireFromString("174.8096"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if placed.ID != "42" || placed.State != models.ExchangeStateWait {
		t.Fatalf("unexpected placed order %+v", placed)
	}

	got, err := c.Order(ctx, "42")
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got.State != models.ExchangeStateDone || !got.ExecutedVolume.Equal(decimal.RequireFromString("174.8096")) {
		t.Fatalf("unexpected order %+v", got)
	}

	fills, err := c.OrderTrades(ctx, "42")
	if err != nil {
		t.Fatalf("OrderTrades: %v", err)
	}
	if len(fills) != 2 {
		t.Fatalf("expected foreign trade filtered out, got %d fills", len(fills))
	}
}

func TestClient_LimitOrderRequiresPrice(t *testing.T) {
	c := New("http://127.0.0.1:1", "k", "s", time.Second, nil)
	_, err := c.PlaceOrder(context.Background(), models.OrderRequest{
		Symbol:   "nockusdt",
		Side:     models.SideSell,
		Type:     models.OrderTypeLimit,
		Quantity: decimal.NewFromInt(1),
	})
	if err == nil {
		t.Fatal("expected error for limit order without price")
	}
}
