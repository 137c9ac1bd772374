package pricefeed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PriceFeed is the minimal spot-price contract.
type PriceFeed interface {
	GetSpot(ctx context.Context, market string) (float64, error)
}

// Quote is one reference price observation for a pair.
type Quote struct {
	Pair       string    `json:"pair"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
	Volume24h  float64   `json:"volume_24h"`
	Change24h  float64   `json:"change_24h"`
	Confidence float64   `json:"confidence"`
}

const (
	oracleHistoryCap = 100
	minPrice         = 0.0001
	volumeVariation  = 0.1
)

// Seed configures one oracle feed.
type Seed struct {
	Pair       string
	Price      float64
	BaseVolume float64
	Confidence float64
	Volatility float64
}

type feed struct {
	current    Quote
	history    []Quote
	volatility float64
	baseVolume float64
}

// Oracle produces unconfirmed quotes by a bounded random walk. Each quote is
// handed to publish, which forwards it to the ledger.
type Oracle struct {
	mu        sync.RWMutex
	feeds     map[string]*feed
	pairs     []string
	rng       *rand.Rand
	dampening float64
	publish   func(Quote)
	now       func() time.Time
	log       *zap.Logger
}

func NewOracle(seeds []Seed, dampening float64, rng *rand.Rand, publish func(Quote), log *zap.Logger) *Oracle {
	o := &Oracle{
		feeds:     make(map[string]*feed, len(seeds)),
		rng:       rng,
		dampening: dampening,
		publish:   publish,
		now:       time.Now,
		log:       log,
	}
	for _, s := range seeds {
		q := Quote{
			Pair:       s.Pair,
			Price:      s.Price,
			ObservedAt: o.now(),
			Volume24h:  s.BaseVolume,
			Confidence: s.Confidence,
		}
		o.feeds[s.Pair] = &feed{
			current:    q,
			history:    []Quote{q},
			volatility: s.Volatility,
			baseVolume: s.BaseVolume,
		}
		o.pairs = append(o.pairs, s.Pair)
	}
	sort.Strings(o.pairs)
	return o
}

// Tick advances every feed one step and publishes the new quotes.
func (o *Oracle) Tick(context.Context) error {
	for _, q := range o.step() {
		o.log.Info("oracle price update",
			zap.String("pair", q.Pair),
			zap.Float64("price", q.Price),
			zap.Float64("change_24h", q.Change24h))
		if o.publish != nil {
			o.publish(q)
		}
	}
	return nil
}

func (o *Oracle) step() []Quote {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Quote, 0, len(o.pairs))
	for _, pair := range o.pairs {
		f := o.feeds[pair]
		q := o.next(f)
		f.current = q
		f.history = appendCapped(f.history, q, oracleHistoryCap)
		out = append(out, q)
	}
	return out
}

func (o *Oracle) next(f *feed) Quote {
	old := f.current.Price
	step := o.rng.Float64()*2 - 1
	price := math.Max(minPrice, old*(1+f.volatility*step*o.dampening))
	price = round(price, 6)

	volume := f.baseVolume * (1 + (o.rng.Float64()-0.5)*volumeVariation*2)
	return Quote{
		Pair:       f.current.Pair,
		Price:      price,
		ObservedAt: o.now(),
		Volume24h:  math.Floor(volume),
		Change24h:  round((price-old)/old*100, 4),
		Confidence: 0.95 + o.rng.Float64()*0.05,
	}
}

func (o *Oracle) Current(pair string) (Quote, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, ok := o.feeds[pair]
	if !ok {
		return Quote{}, false
	}
	return f.current, true
}

func (o *Oracle) All() []Quote {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Quote, 0, len(o.pairs))
	for _, pair := range o.pairs {
		out = append(out, o.feeds[pair].current)
	}
	return out
}

func (o *Oracle) History(pair string) []Quote {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, ok := o.feeds[pair]
	if !ok {
		return nil
	}
	return append([]Quote(nil), f.history...)
}

// GetSpot returns the latest unconfirmed oracle price.
func (o *Oracle) GetSpot(_ context.Context, market string) (float64, error) {
	q, ok := o.Current(market)
	if !ok {
		return 0, fmt.Errorf("oracle: unsupported market: %s", market)
	}
	return q.Price, nil
}

func appendCapped(history []Quote, q Quote, limit int) []Quote {
	history = append(history, q)
	if len(history) > limit {
		history = append([]Quote(nil), history[len(history)-limit:]...)
	}
	return history
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
