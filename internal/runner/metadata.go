package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"liquidation_bot/internal/helper"
	"liquidation_bot/internal/models"
	"liquidation_bot/pkg/logger"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	// ErrMarketsUnavailable — список рынков не загрузился; тоже NotFound, но временно
	ErrMarketsUnavailable = fmt.Errorf("%w: market list unavailable", ErrMarketNotFound)
)

// MarketCache — правила рынков, загружаются целиком и индексируются по символу.
// Если список недоступен, отдаём ErrMarketNotFound, а не правило "по умолчанию".
type MarketCache struct {
	src      MarketLister
	cooldown time.Duration
	now      func() time.Time

	mu          sync.RWMutex
	bySymbol    map[string]models.MarketRule
	loadedAt    time.Time
	lastAttempt time.Time
}

func NewMarketCache(src MarketLister, cooldown time.Duration) *MarketCache {
	return &MarketCache{src: src, cooldown: cooldown, now: time.Now}
}

// RulesFor — правило по символу (регистр не важен).
// Промах по загруженному кэшу перезагружает список не чаще раза в cooldown.
func (c *MarketCache) RulesFor(ctx context.Context, symbol string) (models.MarketRule, error) {
	sym := helper.NormCurrency(symbol)

	c.mu.RLock()
	rule, ok := c.bySymbol[sym]
	loaded := c.bySymbol != nil
	last := c.lastAttempt
	c.mu.RUnlock()

	if ok {
		return rule, nil
	}
	if loaded && c.now().Sub(last) < c.cooldown {
		return models.MarketRule{}, fmt.Errorf("%w: %s", ErrMarketNotFound, sym)
	}

	if err := c.Refresh(ctx); err != nil {
		return models.MarketRule{}, fmt.Errorf("%w: %s: %w", ErrMarketsUnavailable, sym, err)
	}

	c.mu.RLock()
	rule, ok = c.bySymbol[sym]
	c.mu.RUnlock()
	if !ok {
		return models.MarketRule{}, fmt.Errorf("%w: %s", ErrMarketNotFound, sym)
	}
	return rule, nil
}

// FindByBase ищет рынок base/quote: сначала по склеенному символу, потом перебором.
func (c *MarketCache) FindByBase(ctx context.Context, base, quote string) (models.MarketRule, error) {
	rule, err := c.RulesFor(ctx, helper.MarketSymbol(base, quote))
	if err == nil || errors.Is(err, ErrMarketsUnavailable) || !c.Loaded() {
		return rule, err
	}

	base, quote = helper.NormCurrency(base), helper.NormCurrency(quote)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.bySymbol {
		if r.Base == base && r.Quote == quote {
			return r, nil
		}
	}
	return models.MarketRule{}, err
}

// Refresh перечитывает весь список. При ошибке старый индекс остаётся.
func (c *MarketCache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.lastAttempt = c.now()
	c.mu.Unlock()

	rules, err := c.src.Markets(ctx)
	if err != nil {
		logger.Warn("[MARKETS] refresh failed: %v", err)
		return err
	}

	idx := make(map[string]models.MarketRule, len(rules))
	for _, r := range rules {
		idx[helper.NormCurrency(r.Symbol)] = r
	}

	c.mu.Lock()
	c.bySymbol = idx
	c.loadedAt = c.now()
	c.mu.Unlock()

	logger.Info("[MARKETS] loaded %d markets", len(idx))
	return nil
}

// Invalidate сбрасывает индекс; следующий RulesFor загрузит список заново.
func (c *MarketCache) Invalidate() {
	c.mu.Lock()
	c.bySymbol = nil
	c.mu.Unlock()
}

func (c *MarketCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bySymbol != nil
}
