package engine

import (
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sumRemaining(ob *OrderBook) decimal.Decimal {
	total := decimal.Zero
	for _, side := range [][]*priceLevel{ob.bids, ob.asks} {
		for _, l := range side {
			for e := l.orders.Front(); e != nil; e = e.Next() {
				total = total.Add(e.Value.(*Order).Remaining)
			}
		}
	}
	return total
}

func assertNoCross(t *testing.T, ob *OrderBook) {
	t.Helper()
	bid, ask := ob.bestBid(), ob.bestAsk()
	if bid != nil && ask != nil && !bid.price.LessThan(ask.price) {
		t.Fatalf("book still crossed: bid %s ask %s", bid.price, ask.price)
	}
}

func TestFullFill(t *testing.T) {
	ob := NewOrderBook(testPair)
	sell := newTestOrder("o1", SideSell, "7.45", "1")
	buy := newTestOrder("o2", SideBuy, "7.45", "1")
	ob.AddOrder(sell, time.Now())
	ob.AddOrder(buy, time.Now())

	events := NewMatcher(ob).Pass(time.Now(), 1)

	if len(events) != 1 {
		t.Fatalf("expected one match, got %d", len(events))
	}
	if len(ob.asks) != 0 || len(ob.bids) != 0 {
		t.Fatalf("expected empty book")
	}
	if sell.Status != StatusFilled || buy.Status != StatusFilled {
		t.Fatalf("expected both filled, got %s/%s", sell.Status, buy.Status)
	}
}

func TestPartialFillKeepsHead(t *testing.T) {
	ob := NewOrderBook(testPair)
	b1 := newTestOrder("b1", SideBuy, "7.50", "5")
	b2 := newTestOrder("b2", SideBuy, "7.50", "5")
	s1 := newTestOrder("s1", SideSell, "7.40", "2")
	ob.AddOrder(b1, time.Now())
	ob.AddOrder(b2, time.Now())
	ob.AddOrder(s1, time.Now())

	events := NewMatcher(ob).Pass(time.Now(), 1)
	if len(events) != 1 {
		t.Fatalf("expected one match, got %d", len(events))
	}
	if b1.Status != StatusPartiallyFilled || !b1.Remaining.Equal(d("3")) {
		t.Fatalf("b1 should be partially filled with 3 left, got %s %s", b1.Status, b1.Remaining)
	}
	if ob.bids[0].orders.Front().Value.(*Order) != b1 {
		t.Fatalf("partially filled order lost its place at the head")
	}
	if !ob.bids[0].quantity.Equal(d("8")) {
		t.Fatalf("expected level aggregate 8, got %s", ob.bids[0].quantity)
	}

	// a later sell continues with b1 before b2
	s2 := newTestOrder("s2", SideSell, "7.45", "4")
	ob.AddOrder(s2, time.Now())
	events = NewMatcher(ob).Pass(time.Now(), 2)
	if len(events) != 2 {
		t.Fatalf("expected two matches, got %d", len(events))
	}
	if events[0].BuyOrder.ID != "b1" || !events[0].Quantity.Equal(d("3")) {
		t.Fatalf("first fill should finish b1: %+v", events[0])
	}
	if events[1].BuyOrder.ID != "b2" || !events[1].Quantity.Equal(d("1")) {
		t.Fatalf("second fill should hit b2: %+v", events[1])
	}
	if b1.Status != StatusFilled || b2.Status != StatusPartiallyFilled {
		t.Fatalf("unexpected statuses %s %s", b1.Status, b2.Status)
	}
}

func TestMatchPriceIsSellerLimit(t *testing.T) {
	ob := NewOrderBook(testPair)
	ob.AddOrder(newTestOrder("b1", SideBuy, "7.60", "1"), time.Now())
	ob.AddOrder(newTestOrder("s1", SideSell, "7.40", "1"), time.Now())

	events := NewMatcher(ob).Pass(time.Now(), 1)
	if len(events) != 1 || !events[0].Price.Equal(d("7.40")) {
		t.Fatalf("expected execution at the sell price 7.40, got %+v", events)
	}
}

func TestNoMatch(t *testing.T) {
	ob := NewOrderBook(testPair)
	ob.AddOrder(newTestOrder("o1", SideSell, "7.50", "3"), time.Now())
	ob.AddOrder(newTestOrder("o2", SideBuy, "7.40", "1"), time.Now())

	if events := NewMatcher(ob).Pass(time.Now(), 1); len(events) != 0 {
		t.Fatalf("expected no matches, got %d", len(events))
	}
	if len(ob.asks) != 1 || len(ob.bids) != 1 {
		t.Fatalf("expected 1 ask and 1 bid")
	}
}

func TestWalkAcrossLevels(t *testing.T) {
	ob := NewOrderBook(testPair)
	for i := range 10 {
		price := decimal.NewFromFloat(7.40).Add(decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(i))))
		o := newTestOrder("s"+strconv.Itoa(i), SideSell, price.String(), "1")
		ob.AddOrder(o, time.Now())
	}
	ob.AddOrder(newTestOrder("big", SideBuy, "7.44", "10"), time.Now())

	before := sumRemaining(ob)
	events := NewMatcher(ob).Pass(time.Now(), 1)

	if len(events) != 5 {
		t.Fatalf("expected 5 matches, got %d", len(events))
	}
	matched := decimal.Zero
	for i, ev := range events {
		want := decimal.NewFromFloat(7.40).Add(decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(i))))
		if !ev.Price.Equal(want) {
			t.Fatalf("match %d at %s, want %s", i, ev.Price, want)
		}
		matched = matched.Add(ev.Quantity)
	}
	// each unit leaves both a buy and a sell
	if !before.Sub(sumRemaining(ob)).Equal(matched.Mul(decimal.NewFromInt(2))) {
		t.Fatalf("remaining quantity did not drop by the matched amount on each side")
	}
	if len(ob.asks) != 5 {
		t.Fatalf("expected 5 ask levels left, got %d", len(ob.asks))
	}
	if !ob.bids[0].quantity.Equal(d("5")) {
		t.Fatalf("expected 5 left on the bid, got %s", ob.bids[0].quantity)
	}
	assertNoCross(t, ob)
}

func TestPassLeavesNoCross(t *testing.T) {
	ob := NewOrderBook(testPair)
	prices := []string{"7.41", "7.47", "7.43", "7.49", "7.45", "7.42", "7.48"}
	for i, p := range prices {
		side := SideBuy
		if i%2 == 1 {
			side = SideSell
		}
		ob.AddOrder(newTestOrder("o"+strconv.Itoa(i), side, p, strconv.Itoa(i+1)), time.Now())
	}
	NewMatcher(ob).Pass(time.Now(), 1)
	assertNoCross(t, ob)
}
