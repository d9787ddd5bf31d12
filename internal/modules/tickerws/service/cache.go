package service

import (
	"sync"
	"time"

	"liquidation_bot/internal/helper"

	"github.com/shopspring/decimal"
)

type quote struct {
	bid  decimal.Decimal
	last decimal.Decimal
	at   time.Time
}

// PriceCache — последние цены из стрима по символу.
type PriceCache struct {
	mu     sync.RWMutex
	quotes map[string]quote
	now    func() time.Time
}

func NewPriceCache() *PriceCache {
	return &PriceCache{
		quotes: make(map[string]quote),
		now:    time.Now,
	}
}

// Update кладёт цену; нулевые bid и last игнорируются.
func (c *PriceCache) Update(symbol string, bid, last decimal.Decimal) {
	if !bid.IsPositive() && !last.IsPositive() {
		return
	}
	c.mu.Lock()
	c.quotes[helper.NormCurrency(symbol)] = quote{bid: bid, last: last, at: c.now()}
	c.mu.Unlock()
}

// Price — bid, иначе last; ok=false, если цены нет или она старше maxAge.
func (c *PriceCache) Price(symbol string, maxAge time.Duration) (decimal.Decimal, bool) {
	c.mu.RLock()
	q, ok := c.quotes[helper.NormCurrency(symbol)]
	c.mu.RUnlock()
	if !ok {
		return decimal.Zero, false
	}
	if maxAge > 0 && c.now().Sub(q.at) > maxAge {
		return decimal.Zero, false
	}
	if q.bid.IsPositive() {
		return q.bid, true
	}
	return q.last, true
}

func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
