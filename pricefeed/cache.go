package pricefeed

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/metrics"
)

const confirmedHistoryCap = 50

// PriceCache stores the latest ledger-confirmed quote per pair plus a short
// rolling history. Only quotes that came out of a produced block land here.
type PriceCache struct {
	mu      sync.RWMutex
	current map[string]Quote
	history map[string][]Quote

	outbox  *Outbox
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewPriceCache returns an empty cache. A nil outbox disables confirmations.
func NewPriceCache(outbox *Outbox, log *zap.Logger, m *metrics.Metrics) *PriceCache {
	return &PriceCache{
		current: make(map[string]Quote),
		history: make(map[string][]Quote),
		outbox:  outbox,
		log:     log,
		metrics: m,
	}
}

// Record stores q as the confirmed price for its pair, observed in the block
// at height, and raises a price-confirmed notification.
func (c *PriceCache) Record(q Quote, height uint64) {
	c.mu.Lock()
	c.current[q.Pair] = q
	c.history[q.Pair] = appendCapped(c.history[q.Pair], q, confirmedHistoryCap)
	c.mu.Unlock()

	c.metrics.PriceConfirmed(q.Pair, q.Price)
	c.log.Info("block price updated",
		zap.String("pair", q.Pair),
		zap.Float64("price", q.Price),
		zap.Uint64("height", height))

	if c.outbox != nil {
		c.outbox.Publish(Confirmation{Pair: q.Pair, Quote: q, Height: height})
	}
}

func (c *PriceCache) Current(pair string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.current[pair]
	return q, ok
}

// ConfirmedPrice satisfies the order book's price source.
func (c *PriceCache) ConfirmedPrice(pair string) (float64, bool) {
	q, ok := c.Current(pair)
	return q.Price, ok
}

func (c *PriceCache) History(pair string) []Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Quote(nil), c.history[pair]...)
}

// All returns the current confirmed quote of every pair, sorted by pair.
func (c *PriceCache) All() []Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Quote, 0, len(c.current))
	for _, q := range c.current {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}
