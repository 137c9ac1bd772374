package engine

import (
	"container/list"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// priceLevel holds FIFO orders for one price.
type priceLevel struct {
	price    decimal.Decimal
	quantity decimal.Decimal // sum of remaining over orders
	orders   *list.List      // of *Order, oldest first
}

// OrderBook is the resting state of one pair. Best levels sit at index 0.
type OrderBook struct {
	pair string

	bids []*priceLevel // sorted desc
	asks []*priceLevel // sorted asc

	lastUpdated time.Time
}

func NewOrderBook(pair string) *OrderBook {
	return &OrderBook{
		pair: pair,
		bids: make([]*priceLevel, 0),
		asks: make([]*priceLevel, 0),
	}
}

// AddOrder appends o to the back of its price level, creating the level in
// sorted position when it does not exist yet.
func (ob *OrderBook) AddOrder(o *Order, now time.Time) {
	var lvl *priceLevel
	if o.Side == SideBuy {
		lvl, ob.bids = findOrInsert(ob.bids, o.Price, func(l *priceLevel) bool {
			return l.price.LessThanOrEqual(o.Price)
		})
	} else {
		lvl, ob.asks = findOrInsert(ob.asks, o.Price, func(l *priceLevel) bool {
			return l.price.GreaterThanOrEqual(o.Price)
		})
	}
	lvl.orders.PushBack(o)
	lvl.quantity = lvl.quantity.Add(o.Remaining)
	ob.lastUpdated = now
}

// findOrInsert locates price in levels, where atOrPast reports whether a
// level sorts at or after price.
func findOrInsert(levels []*priceLevel, price decimal.Decimal, atOrPast func(*priceLevel) bool) (*priceLevel, []*priceLevel) {
	i := sort.Search(len(levels), func(i int) bool { return atOrPast(levels[i]) })
	if i < len(levels) && levels[i].price.Equal(price) {
		return levels[i], levels
	}
	lvl := &priceLevel{price: price, orders: list.New()}
	levels = append(levels, nil)
	copy(levels[i+1:], levels[i:])
	levels[i] = lvl
	return lvl, levels
}

func (ob *OrderBook) bestBid() *priceLevel {
	if len(ob.bids) == 0 {
		return nil
	}
	return ob.bids[0]
}

func (ob *OrderBook) bestAsk() *priceLevel {
	if len(ob.asks) == 0 {
		return nil
	}
	return ob.asks[0]
}

func (ob *OrderBook) removeBestBid() {
	ob.bids = ob.bids[1:]
}

func (ob *OrderBook) removeBestAsk() {
	ob.asks = ob.asks[1:]
}

// LevelView is a read-only copy of a price level.
type LevelView struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   []Order         `json:"orders"`
}

type BookView struct {
	Pair        string      `json:"pair"`
	Bids        []LevelView `json:"bids"`
	Asks        []LevelView `json:"asks"`
	LastUpdated time.Time   `json:"last_updated"`
}

func (ob *OrderBook) View() BookView {
	return BookView{
		Pair:        ob.pair,
		Bids:        viewLevels(ob.bids),
		Asks:        viewLevels(ob.asks),
		LastUpdated: ob.lastUpdated,
	}
}

func viewLevels(levels []*priceLevel) []LevelView {
	out := make([]LevelView, 0, len(levels))
	for _, l := range levels {
		v := LevelView{Price: l.price, Quantity: l.quantity, Orders: make([]Order, 0, l.orders.Len())}
		for e := l.orders.Front(); e != nil; e = e.Next() {
			v.Orders = append(v.Orders, *e.Value.(*Order))
		}
		out = append(out, v)
	}
	return out
}
