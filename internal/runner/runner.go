package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"liquidation_bot/internal/helper"
	"liquidation_bot/internal/models"
	"liquidation_bot/internal/modules/config"
	"liquidation_bot/pkg/logger"
	"liquidation_bot/pkg/ratelimit"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

// запросов к бирже на одну валюту: правила, тикер, ордер
const perCurrencyCost = 3

const depthLevels = 20

// EngineConfig — параметры свипа в виде готовых значений.
type EngineConfig struct {
	Account     string
	Quote       string
	MinSellUSD  decimal.Decimal
	Allow       map[string]struct{}
	Deny        map[string]struct{}
	OrderType   models.OrderType
	ClampToMin  bool
	RequireAll  bool
	ApplyHint   bool
	PriceMaxAge time.Duration
}

func EngineConfigFrom(cfg *config.Config) EngineConfig {
	return EngineConfig{
		Account:     cfg.Exchange.Account,
		Quote:       helper.NormCurrency(cfg.Exchange.QuoteCurrency),
		MinSellUSD:  decimal.NewFromFloat(cfg.Sweep.MinSellUSD),
		Allow:       toSet(cfg.Sweep.Allow),
		Deny:        toSet(cfg.Sweep.Deny),
		OrderType:   models.OrderType(cfg.Sweep.OrderType),
		ClampToMin:  cfg.Sweep.ClampToMin,
		RequireAll:  cfg.Sweep.SuccessPolicy == "all",
		ApplyHint:   cfg.Advisor.ApplyHint,
		PriceMaxAge: 2 * time.Minute,
	}
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[helper.NormCurrency(s)] = struct{}{}
	}
	return out
}

// Engine — один свип: остатки -> ранжирование -> нормализация -> ордера -> итог.
type Engine struct {
	gw       Gateway
	markets  *MarketCache
	tracker  *Tracker
	limiter  *ratelimit.Window
	prices   PriceSource
	advisor  Advisor
	notifier Notifier
	journal  Journal
	cfg      EngineConfig
	now      func() time.Time
}

func NewEngine(
	cfg EngineConfig,
	gw Gateway,
	markets *MarketCache,
	tracker *Tracker,
	limiter *ratelimit.Window,
	prices PriceSource,
	advisor Advisor,
	notifier Notifier,
	journal Journal,
) *Engine {
	if !cfg.OrderType.Valid() {
		cfg.OrderType = models.OrderTypeMarket
	}
	return &Engine{
		gw:       gw,
		markets:  markets,
		tracker:  tracker,
		limiter:  limiter,
		prices:   prices,
		advisor:  advisor,
		notifier: notifier,
		journal:  journal,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Plan — отранжированные кандидаты и причины пропуска до размещения ордеров.
type Plan struct {
	Balances []models.Balance
	Scores   []models.PriorityScore
	Skipped  []models.SkipReason
}

// Preview — сухой прогон без ордеров.
func (e *Engine) Preview(ctx context.Context) (Plan, error) {
	return e.plan(ctx)
}

func (e *Engine) plan(ctx context.Context) (Plan, error) {
	balances, err := e.gw.Balances(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("fetch balances: %w", err)
	}

	p := Plan{Balances: balances}
	eligible := make([]models.Balance, 0, len(balances))
	for _, b := range balances {
		if reason := e.ineligible(b); reason != "" {
			p.Skipped = append(p.Skipped, models.SkipReason{Currency: b.Currency, Reason: reason})
			continue
		}
		eligible = append(eligible, b)
	}

	lookup := e.priceLookup(ctx)
	scored := Score(eligible, lookup)

	have := make(map[string]struct{}, len(scored))
	for _, s := range scored {
		have[s.Currency] = struct{}{}
	}
	for _, b := range eligible {
		if _, ok := have[b.Currency]; !ok {
			p.Skipped = append(p.Skipped, models.SkipReason{Currency: b.Currency, Reason: "price unknown"})
		}
	}

	for _, s := range scored {
		if e.cfg.MinSellUSD.IsPositive() && s.EstimatedUSD.LessThan(e.cfg.MinSellUSD) {
			p.Skipped = append(p.Skipped, models.SkipReason{
				Currency: s.Currency,
				Reason:   fmt.Sprintf("estimated $%s below min $%s", s.EstimatedUSD.StringFixed(2), e.cfg.MinSellUSD.StringFixed(2)),
			})
			continue
		}
		p.Scores = append(p.Scores, s)
	}
	for i := range p.Scores {
		p.Scores[i].Rank = i + 1
	}
	return p, nil
}

func (e *Engine) ineligible(b models.Balance) string {
	cur := helper.NormCurrency(b.Currency)
	switch {
	case !b.Free.IsPositive():
		return "zero balance"
	case cur == e.cfg.Quote:
		return "quote currency"
	}
	if _, deny := e.cfg.Deny[cur]; deny {
		return "deny list"
	}
	if len(e.cfg.Allow) > 0 {
		if _, ok := e.cfg.Allow[cur]; !ok {
			return "not in allow list"
		}
	}
	return ""
}

// priceLookup: сначала кэш стрима, при первом промахе один общий запрос тикеров.
func (e *Engine) priceLookup(ctx context.Context) PriceLookup {
	var (
		bulk    map[string]models.Ticker
		fetched bool
	)
	return func(currency string) (decimal.Decimal, bool) {
		sym := helper.MarketSymbol(currency, e.cfg.Quote)
		if e.prices != nil {
			if p, ok := e.prices.Price(sym, e.cfg.PriceMaxAge); ok && p.IsPositive() {
				return p, true
			}
		}
		if !fetched {
			fetched = true
			t, err := e.gw.Tickers(ctx)
			if err != nil {
				logger.Warn("[SWEEP] bulk tickers: %v", err)
			}
			bulk = t
		}
		t, ok := bulk[sym]
		if !ok {
			return decimal.Zero, false
		}
		p := t.SellPrice()
		return p, p.IsPositive()
	}
}

// Sweep — один полный цикл ликвидации. Ошибка возвращается только если
// не удалось получить остатки; всё остальное попадает в SweepResult.
func (e *Engine) Sweep(ctx context.Context, trigger string) (models.SweepResult, error) {
	res := models.SweepResult{
		ID:        uuid.NewString(),
		Account:   e.cfg.Account,
		Trigger:   trigger,
		StartedAt: e.now(),
		Proceeds:  decimal.Zero,
	}
	logger.Info("[SWEEP] %s start (%s)", res.ID, trigger)

	p, err := e.plan(ctx)
	if err != nil {
		logger.Error("[SWEEP] %s aborted: %v", res.ID, err)
		res.Message = "sweep aborted: " + err.Error()
		e.complete(&res)
		return res, err
	}
	res.Skipped = append(res.Skipped, p.Skipped...)

	var (
		failures error
		pending  []<-chan models.OrderReport
	)

	for i, s := range p.Scores {
		if ctx.Err() != nil {
			for _, rest := range p.Scores[i:] {
				res.Skipped = append(res.Skipped, models.SkipReason{Currency: rest.Currency, Reason: "sweep cancelled"})
			}
			break
		}
		if !e.limiter.AdmitN(perCurrencyCost, perCurrencyCost) {
			logger.Warn("[SWEEP] %s request budget exhausted, deferring %d currencies", res.ID, len(p.Scores)-i)
			for _, rest := range p.Scores[i:] {
				res.Skipped = append(res.Skipped, models.SkipReason{Currency: rest.Currency, Reason: "rate limit budget exhausted"})
			}
			break
		}

		res.TotalProcessed++
		ch, skip, err := e.sell(ctx, s)
		switch {
		case err != nil:
			logger.Warn("[SWEEP] %s %s failed: %v", res.ID, s.Currency, err)
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", s.Currency, err))
			res.Failures = append(res.Failures, models.FailedSale{
				Currency: s.Currency,
				Symbol:   helper.MarketSymbol(s.Currency, e.cfg.Quote),
				Reason:   err.Error(),
			})
		case skip != "":
			logger.Info("[SWEEP] %s %s skipped: %s", res.ID, s.Currency, skip)
			res.Skipped = append(res.Skipped, models.SkipReason{Currency: s.Currency, Reason: skip})
		default:
			pending = append(pending, ch)
		}
	}

	// трекер всегда присылает отчёт, в том числе при остановке
	for _, ch := range pending {
		r := <-ch
		res.Orders = append(res.Orders, r)
		if r.State == models.OrderFilled {
			res.SuccessfulSales++
			res.Proceeds = res.Proceeds.Add(r.Proceeds)
			continue
		}
		reason := r.Reason
		if reason == "" {
			reason = strings.ToLower(string(r.State))
		}
		failures = multierror.Append(failures, fmt.Errorf("%s: order %s %s", r.Currency, r.OrderID, r.State))
		res.Failures = append(res.Failures, models.FailedSale{
			Currency: r.Currency,
			Symbol:   r.Symbol,
			OrderID:  r.OrderID,
			State:    r.State,
			Reason:   reason,
		})
	}
	res.FailedSales = len(res.Failures)

	res.Success = e.successful(res)
	res.Message = summary(res, failures)
	e.complete(&res)
	return res, nil
}

// sell готовит и отправляет ордер по одной валюте.
// skip != "" — не ошибка, валюта просто не подходит в этом цикле.
func (e *Engine) sell(ctx context.Context, s models.PriorityScore) (<-chan models.OrderReport, string, error) {
	rule, err := e.markets.FindByBase(ctx, s.Currency, e.cfg.Quote)
	if err != nil {
		if errors.Is(err, ErrMarketsUnavailable) {
			return nil, "", fmt.Errorf("market rules: %w", err)
		}
		return nil, fmt.Sprintf("no %s/%s market", s.Currency, e.cfg.Quote), nil
	}
	if !rule.Tradable() {
		return nil, fmt.Sprintf("market %s is %s", rule.Symbol, rule.State), nil
	}

	ticker, err := e.gw.Ticker(ctx, rule.Symbol)
	if err != nil {
		return nil, "", fmt.Errorf("ticker: %w", err)
	}
	price := ticker.SellPrice()
	if !price.IsPositive() {
		return nil, "", fmt.Errorf("ticker: no bid for %s", rule.Symbol)
	}

	qty, err := Normalize(s.Balance, rule, price)
	if errors.Is(err, ErrTooSmall) && e.cfg.ClampToMin {
		qty, err = ClampToMinimum(s.Balance, rule, price)
	}
	if err != nil {
		return nil, err.Error(), nil
	}

	req := models.OrderRequest{
		Symbol:   rule.Symbol,
		Currency: s.Currency,
		Side:     models.SideSell,
		Type:     e.orderType(ctx, s, rule, ticker),
		Quantity: qty,
	}
	if req.Type == models.OrderTypeLimit {
		bid := ticker.Bid
		if !bid.IsPositive() {
			bid = price
		}
		req.Price = &bid
	}

	ch, err := e.tracker.Submit(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("submit: %w", err)
	}
	return ch, "", nil
}

// orderType — тип из конфига; подсказка советника применяется только market|limit.
func (e *Engine) orderType(ctx context.Context, s models.PriorityScore, rule models.MarketRule, t models.Ticker) models.OrderType {
	def := e.cfg.OrderType
	if e.advisor == nil {
		return def
	}

	req := models.AdviceRequest{
		Currency:     s.Currency,
		Balance:      s.Balance.InexactFloat64(),
		CurrentPrice: t.SellPrice().InexactFloat64(),
		Volume24h:    t.Volume.InexactFloat64(),
	}
	if t.Last.IsPositive() {
		req.Volatility = t.High.Sub(t.Low).Div(t.Last).InexactFloat64()
	}
	if t.Ask.IsPositive() && t.Bid.IsPositive() {
		req.Spread = t.Ask.Sub(t.Bid).InexactFloat64()
	}
	if depth, err := e.gw.Depth(ctx, rule.Symbol, depthLevels); err == nil {
		req.BidDepth = sumLevels(depth.Bids, depthLevels).InexactFloat64()
		req.AskDepth = sumLevels(depth.Asks, depthLevels).InexactFloat64()
	}

	advice, err := e.advisor.Advise(ctx, req)
	if err != nil {
		logger.Debug("[SWEEP] %s no advice: %v", s.Currency, err)
		return def
	}
	logger.Info("[SWEEP] %s advisor: %s (%.2f) %s", s.Currency, advice.Strategy, advice.Confidence, advice.Reasoning)

	if !e.cfg.ApplyHint {
		return def
	}
	switch advice.Strategy {
	case models.StrategyMarket:
		return models.OrderTypeMarket
	case models.StrategyLimit:
		return models.OrderTypeLimit
	default:
		return def
	}
}

func sumLevels(levels []models.PriceLevel, n int) decimal.Decimal {
	sum := decimal.Zero
	for i, l := range levels {
		if i >= n {
			break
		}
		sum = sum.Add(l.Amount)
	}
	return sum
}

func (e *Engine) successful(res models.SweepResult) bool {
	if e.cfg.RequireAll {
		return res.FailedSales == 0
	}
	return res.SuccessfulSales > 0 || res.FailedSales == 0
}

func summary(res models.SweepResult, failures error) string {
	msg := fmt.Sprintf("processed %d: sold %d, failed %d, skipped %d, proceeds %s",
		res.TotalProcessed, res.SuccessfulSales, res.FailedSales, len(res.Skipped), res.Proceeds.StringFixed(4))
	if res.TotalProcessed == 0 && res.FailedSales == 0 {
		msg = "nothing to sell; " + msg
	}
	if failures != nil {
		msg += "; " + strings.ReplaceAll(strings.TrimSpace(failures.Error()), "\n", " ")
	}
	return msg
}

func (e *Engine) complete(res *models.SweepResult) {
	res.FinishedAt = e.now()
	logger.Info("[SWEEP] %s done success=%t: %s", res.ID, res.Success, res.Message)

	// итог передаём копией, у получателей своя жизнь
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if e.journal != nil {
		if err := e.journal.SaveSweep(ctx, *res); err != nil {
			logger.Error("[SWEEP] journal sweep %s: %v", res.ID, err)
		}
	}
	if e.notifier != nil {
		e.notifier.NotifySweep(ctx, *res)
	}
}

// InFlight — ордера под наблюдением трекера.
func (e *Engine) InFlight() []models.OrderRecord { return e.tracker.InFlight() }

// Shutdown останавливает трекер с дренажом.
func (e *Engine) Shutdown(ctx context.Context) error { return e.tracker.Shutdown(ctx) }
