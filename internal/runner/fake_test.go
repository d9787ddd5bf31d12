package runner

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"liquidation_bot/internal/models"
	exchange "liquidation_bot/internal/modules/exchange/service"
	"liquidation_bot/pkg/ratelimit"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type pollStep struct {
	state string
	err   error
}

// fakeGateway — биржа в памяти со сценариями опроса по символу.
type fakeGateway struct {
	mu sync.Mutex

	// общий с движком лимитер; каждый вызов стоит один запрос, как в настоящем клиенте
	limiter *ratelimit.Window
	calls   []string

	balances    []models.Balance
	balancesErr error

	markets     []models.MarketRule
	marketErrs  []error
	marketCalls int

	tickers   map[string]models.Ticker
	tickerErr map[string]error
	bulkErr   error

	placeErr   error
	placeState string
	placed     []models.OrderRequest
	nextID     int
	symbolOf   map[string]string

	script    map[string][]pollStep
	fills     map[string][]models.Fill
	tradesErr error
	polls     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		tickers:   map[string]models.Ticker{},
		tickerErr: map[string]error{},
		symbolOf:  map[string]string{},
		script:    map[string][]pollStep{},
		fills:     map[string][]models.Fill{},
	}
}

// spendLocked списывает запрос из окна.
func (g *fakeGateway) spendLocked(op string) error {
	if !g.limiter.Reserve(1) {
		return &exchange.GatewayError{Kind: exchange.RateLimited, Op: op, Err: errors.New("local request budget exhausted")}
	}
	g.calls = append(g.calls, op)
	return nil
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) Balances(context.Context) ([]models.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.spendLocked("balances"); err != nil {
		return nil, err
	}
	return append([]models.Balance(nil), g.balances...), g.balancesErr
}

func (g *fakeGateway) Markets(context.Context) ([]models.MarketRule, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marketCalls++
	if err := g.spendLocked("markets"); err != nil {
		return nil, err
	}
	if len(g.marketErrs) > 0 {
		err := g.marketErrs[0]
		g.marketErrs = g.marketErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]models.MarketRule(nil), g.markets...), nil
}

func (g *fakeGateway) Tickers(context.Context) (map[string]models.Ticker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.spendLocked("tickers"); err != nil {
		return nil, err
	}
	if g.bulkErr != nil {
		return nil, g.bulkErr
	}
	out := make(map[string]models.Ticker, len(g.tickers))
	for k, v := range g.tickers {
		out[k] = v
	}
	return out, nil
}

func (g *fakeGateway) Ticker(_ context.Context, symbol string) (models.Ticker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.spendLocked("ticker " + symbol); err != nil {
		return models.Ticker{}, err
	}
	if err := g.tickerErr[symbol]; err != nil {
		return models.Ticker{}, err
	}
	t, ok := g.tickers[symbol]
	if !ok {
		return models.Ticker{}, errors.New("unknown symbol")
	}
	return t, nil
}

func (g *fakeGateway) Depth(context.Context, string, int) (models.Depth, error) {
	return models.Depth{
		Bids: []models.PriceLevel{{Price: d("0.14"), Amount: d("100")}},
		Asks: []models.PriceLevel{{Price: d("0.15"), Amount: d("50")}},
	}, nil
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req models.OrderRequest) (models.ExchangeOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.spendLocked("order " + req.Symbol); err != nil {
		return models.ExchangeOrder{}, err
	}
	g.placed = append(g.placed, req)
	if g.placeErr != nil {
		return models.ExchangeOrder{}, g.placeErr
	}
	g.nextID++
	id := strconv.Itoa(g.nextID)
	g.symbolOf[id] = req.Symbol

	state := g.placeState
	if state == "" {
		state = models.ExchangeStateWait
	}
	return models.ExchangeOrder{ID: id, Symbol: req.Symbol, State: state, Volume: req.Quantity}, nil
}

func (g *fakeGateway) Order(_ context.Context, id string) (models.ExchangeOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.spendLocked("poll " + id); err != nil {
		return models.ExchangeOrder{}, err
	}
	g.polls++

	sym := g.symbolOf[id]
	steps := g.script[sym]
	if len(steps) == 0 {
		return models.ExchangeOrder{ID: id, Symbol: sym, State: models.ExchangeStateWait}, nil
	}
	step := steps[0]
	if len(steps) > 1 {
		g.script[sym] = steps[1:]
	}
	if step.err != nil {
		return models.ExchangeOrder{}, step.err
	}
	return models.ExchangeOrder{ID: id, Symbol: sym, State: step.state}, nil
}

func (g *fakeGateway) OrderTrades(_ context.Context, id string) ([]models.Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.spendLocked("trades " + id); err != nil {
		return nil, err
	}
	if g.tradesErr != nil {
		return nil, g.tradesErr
	}
	return g.fills[g.symbolOf[id]], nil
}

func (g *fakeGateway) placedRequests() []models.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.OrderRequest(nil), g.placed...)
}

// recorder — Notifier и Journal одновременно.
type recorder struct {
	mu      sync.Mutex
	orders  []models.OrderReport
	perID   map[string]int
	sweeps  []models.SweepResult
	journal []models.OrderReport
}

func newRecorder() *recorder { return &recorder{perID: map[string]int{}} }

func (r *recorder) NotifyOrder(_ context.Context, rep models.OrderReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, rep)
	r.perID[rep.OrderID]++
}

func (r *recorder) NotifySweep(_ context.Context, res models.SweepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps = append(r.sweeps, res)
}

func (r *recorder) SaveOrderReport(_ context.Context, rep models.OrderReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal = append(r.journal, rep)
	return nil
}

func (r *recorder) SaveSweep(context.Context, models.SweepResult) error { return nil }

func (r *recorder) notifications() []models.OrderReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.OrderReport(nil), r.orders...)
}

func fastTracker(gw OrderAPI, rec *recorder, attempts, inFlight int) *Tracker {
	return NewTracker(gw, rec, rec, TrackerConfig{
		PollInterval: time.Millisecond,
		PollAttempts: attempts,
		MaxInFlight:  inFlight,
	})
}

func testEngineConfig() EngineConfig {
	return EngineConfig{
		Account:     "test",
		Quote:       "usdt",
		MinSellUSD:  d("1"),
		Allow:       map[string]struct{}{},
		Deny:        map[string]struct{}{},
		OrderType:   models.OrderTypeMarket,
		PriceMaxAge: time.Minute,
	}
}

func newTestEngine(gw *fakeGateway, rec *recorder, cfg EngineConfig) *Engine {
	tr := fastTracker(gw, rec, 5, 3)
	return NewEngine(cfg, gw, NewMarketCache(gw, time.Minute), tr, gw.limiter, nil, nil, rec, rec)
}

func nockRule() models.MarketRule {
	return models.MarketRule{Symbol: "nockusdt", Base: "nock", Quote: "usdt", MinQuantity: d("0.01"), Precision: 4, State: "enabled"}
}
