package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid side %q", s)
	}
}

// Status moves open -> partially_filled -> filled. filled is terminal.
// cancelled is reserved; nothing in the venue cancels orders yet.
type Status string

const (
	StatusOpen            Status = "open"
	StatusPartiallyFilled Status = "partially_filled"
	StatusFilled          Status = "filled"
	StatusCancelled       Status = "cancelled"
)

type Order struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Pair        string          `json:"pair"`
	Side        Side            `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`  // original quantity
	Price       decimal.Decimal `json:"price"`     // limit price
	Remaining   decimal.Decimal `json:"remaining"` // unfilled
	Status      Status          `json:"status"`
	PlacedAt    time.Time       `json:"placed_at"`
	BlockHeight uint64          `json:"block_height"`
}

// fill takes qty off the remaining quantity and advances the status.
func (o *Order) fill(qty decimal.Decimal) {
	o.Remaining = o.Remaining.Sub(qty)
	if o.Remaining.IsZero() {
		o.Status = StatusFilled
		return
	}
	o.Status = StatusPartiallyFilled
}
