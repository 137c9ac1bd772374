package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchEvent records one fill between a resting buy and a resting sell.
// Order snapshots are taken right after the fill.
type MatchEvent struct {
	Pair        string          `json:"pair"`
	BuyOrder    Order           `json:"buy_order"`
	SellOrder   Order           `json:"sell_order"`
	Quantity    decimal.Decimal `json:"matched_quantity"`
	Price       decimal.Decimal `json:"matched_price"`
	MatchedAt   time.Time       `json:"matched_at"`
	BlockHeight uint64          `json:"block_height"`
}

type Matcher struct {
	book *OrderBook
}

func NewMatcher(book *OrderBook) *Matcher {
	return &Matcher{book: book}
}

// Pass crosses the book until the best bid is below the best ask or a side
// runs dry. Fills execute at the sell order's limit price, and a partially
// filled order keeps its place at the head of its level.
func (m *Matcher) Pass(now time.Time, height uint64) []MatchEvent {
	var events []MatchEvent

	for {
		bestBid := m.book.bestBid()
		bestAsk := m.book.bestAsk()
		if bestBid == nil || bestAsk == nil {
			break
		}
		if bestBid.price.LessThan(bestAsk.price) {
			break
		}

		// oldest order on each side
		bidFront := bestBid.orders.Front()
		askFront := bestAsk.orders.Front()
		buy := bidFront.Value.(*Order)
		sell := askFront.Value.(*Order)

		qty := decimal.Min(buy.Remaining, sell.Remaining)

		buy.fill(qty)
		sell.fill(qty)
		bestBid.quantity = bestBid.quantity.Sub(qty)
		bestAsk.quantity = bestAsk.quantity.Sub(qty)

		events = append(events, MatchEvent{
			Pair:        m.book.pair,
			BuyOrder:    *buy,
			SellOrder:   *sell,
			Quantity:    qty,
			Price:       sell.Price,
			MatchedAt:   now,
			BlockHeight: height,
		})

		if buy.Status == StatusFilled {
			bestBid.orders.Remove(bidFront)
		}
		if bestBid.orders.Len() == 0 {
			m.book.removeBestBid()
		}
		if sell.Status == StatusFilled {
			bestAsk.orders.Remove(askFront)
		}
		if bestAsk.orders.Len() == 0 {
			m.book.removeBestAsk()
		}
	}

	if len(events) > 0 {
		m.book.lastUpdated = now
	}
	return events
}
