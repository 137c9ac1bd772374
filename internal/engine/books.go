package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/metrics"
)

// PriceSource yields the last ledger-confirmed price of a pair.
type PriceSource interface {
	ConfirmedPrice(pair string) (float64, bool)
}

// Rejection reasons, also used as metric labels.
const (
	RejectNoPrice   = "no_confirmed_price"
	RejectBand      = "outside_price_band"
	RejectDuplicate = "duplicate_id"
	RejectCancel    = "cancel_unsupported"
)

// Books owns every pair's order book, the order index and the match log.
type Books struct {
	mu sync.RWMutex

	prices PriceSource
	band   decimal.Decimal

	books   map[string]*OrderBook
	orders  map[string]*Order
	placed  []string // order ids in admission order
	matches map[string][]MatchEvent

	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewBooks(prices PriceSource, band float64, log *zap.Logger, m *metrics.Metrics) *Books {
	return &Books{
		prices:  prices,
		band:    decimal.NewFromFloat(band),
		books:   make(map[string]*OrderBook),
		orders:  make(map[string]*Order),
		matches: make(map[string][]MatchEvent),
		now:     time.Now,
		log:     log,
		metrics: m,
	}
}

// Admit places ev in its pair's book if its price is within the band of the
// confirmed quote. Rejected events are logged and dropped; the return value
// only reports whether the order now rests in a book.
func (b *Books) Admit(ev OrderEvent) bool {
	if ev.Type == CmdCancel {
		b.reject(ev, RejectCancel)
		return false
	}

	ref, ok := b.prices.ConfirmedPrice(ev.Pair)
	if !ok || ref <= 0 {
		b.reject(ev, RejectNoPrice)
		return false
	}
	refPrice := decimal.NewFromFloat(ref)
	deviation := ev.Price.Sub(refPrice).Abs().Div(refPrice)
	if deviation.GreaterThan(b.band) {
		b.log.Warn("order price outside band",
			zap.String("order_id", ev.ID),
			zap.String("price", ev.Price.String()),
			zap.Float64("confirmed", ref),
			zap.String("deviation_pct", deviation.Mul(decimal.NewFromInt(100)).StringFixed(2)))
		b.metrics.OrderRejected(RejectBand)
		return false
	}

	b.mu.Lock()
	o, placed := b.place(ev)
	b.mu.Unlock()
	if !placed {
		b.reject(ev, RejectDuplicate)
		return false
	}

	b.metrics.OrderAdmitted(ev.Pair)
	b.log.Debug("order admitted",
		zap.String("order_id", o.ID),
		zap.String("pair", o.Pair),
		zap.String("side", string(o.Side)),
		zap.String("quantity", o.Quantity.String()),
		zap.String("price", o.Price.String()))
	return true
}

// place must be called with b.mu held.
func (b *Books) place(ev OrderEvent) (*Order, bool) {
	if _, dup := b.orders[ev.ID]; dup {
		return nil, false
	}
	o := &Order{
		ID:          ev.ID,
		Owner:       ev.Owner,
		Pair:        ev.Pair,
		Side:        ev.Side,
		Quantity:    ev.Quantity,
		Price:       ev.Price,
		Remaining:   ev.Quantity,
		Status:      StatusOpen,
		PlacedAt:    ev.PlacedAt,
		BlockHeight: ev.BlockHeight,
	}
	book, ok := b.books[ev.Pair]
	if !ok {
		book = NewOrderBook(ev.Pair)
		b.books[ev.Pair] = book
	}
	book.AddOrder(o, b.now())
	b.orders[o.ID] = o
	b.placed = append(b.placed, o.ID)
	return o, true
}

func (b *Books) reject(ev OrderEvent, reason string) {
	b.metrics.OrderRejected(reason)
	b.log.Warn("order rejected",
		zap.String("order_id", ev.ID),
		zap.String("pair", ev.Pair),
		zap.String("command", ev.Type.String()),
		zap.String("reason", reason))
}

// MatchPass runs one matching pass over pair and appends the results to the
// match log.
func (b *Books) MatchPass(pair string, height uint64) []MatchEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	book, ok := b.books[pair]
	if !ok {
		return nil
	}
	events := NewMatcher(book).Pass(b.now(), height)
	if len(events) == 0 {
		b.log.Debug("no crossing levels", zap.String("pair", pair))
		return nil
	}
	b.matches[pair] = append(b.matches[pair], events...)

	for _, ev := range events {
		qty, _ := ev.Quantity.Float64()
		b.metrics.Matched(pair, qty)
		b.log.Info("match",
			zap.String("pair", pair),
			zap.String("quantity", ev.Quantity.String()),
			zap.String("price", ev.Price.String()),
			zap.String("buyer", ev.BuyOrder.Owner),
			zap.String("seller", ev.SellOrder.Owner))
	}
	return events
}

func (b *Books) Get(pair string) (BookView, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	book, ok := b.books[pair]
	if !ok {
		return BookView{}, false
	}
	return book.View(), true
}

// GetAll returns every book sorted by pair.
func (b *Books) GetAll() []BookView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BookView, 0, len(b.books))
	for _, book := range b.books {
		out = append(out, book.View())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}

func (b *Books) Order(id string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders returns every admitted order in admission order.
func (b *Books) Orders() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Order, 0, len(b.placed))
	for _, id := range b.placed {
		out = append(out, *b.orders[id])
	}
	return out
}

func (b *Books) Matches(pair string) []MatchEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]MatchEvent(nil), b.matches[pair]...)
}

// StatusCounts tallies admitted orders by status.
func (b *Books) StatusCounts() map[Status]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[Status]int)
	for _, o := range b.orders {
		out[o.Status]++
	}
	return out
}
