package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommandType int

const (
	CmdPlace CommandType = iota
	CmdCancel
)

func (c CommandType) String() string {
	if c == CmdCancel {
		return "cancel"
	}
	return "place"
}

// OrderEvent is an order instruction decoded from a confirmed block.
type OrderEvent struct {
	Type        CommandType
	ID          string // transaction hash, becomes the order id
	Owner       string
	Pair        string
	Side        Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	TargetID    string // used when Type == CmdCancel
	BlockHeight uint64
	PlacedAt    time.Time
}
