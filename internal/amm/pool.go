package amm

import (
	"errors"
	"fmt"
	"time"
)

type PositionStatus string

const (
	PositionActive  PositionStatus = "active"
	PositionRemoved PositionStatus = "removed" // reserved, no withdrawal path yet
)

type EventKind int

const (
	EventAdd EventKind = iota
	EventRemove
)

func (k EventKind) String() string {
	if k == EventRemove {
		return "remove"
	}
	return "add"
}

// LiquidityEvent is a liquidity instruction decoded from a confirmed block.
type LiquidityEvent struct {
	Kind        EventKind
	PositionID  string
	Provider    string
	Pair        string
	AmountA     float64
	AmountB     float64
	LPClaim     float64
	BlockHeight uint64
	At          time.Time
}

type Position struct {
	ID          string         `json:"id"`
	Provider    string         `json:"provider"`
	Pair        string         `json:"pair"`
	AmountA     float64        `json:"amount_a"`
	AmountB     float64        `json:"amount_b"`
	LPClaim     float64        `json:"lp_claim"`
	Status      PositionStatus `json:"status"`
	BlockHeight uint64         `json:"block_height"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Pool is the pooled reserve of one pair. TotalLPClaims always equals the
// sum of the active positions' claims.
type Pool struct {
	Pair          string     `json:"pair"`
	ReserveA      float64    `json:"reserve_a"`
	ReserveB      float64    `json:"reserve_b"`
	TotalLPClaims float64    `json:"total_lp_claims"`
	Positions     []Position `json:"positions"`
	LastUpdated   time.Time  `json:"last_updated"`
}

// Price is reserveA per unit of reserveB.
func (p *Pool) Price() (float64, bool) {
	if p.ReserveB == 0 {
		return 0, false
	}
	return p.ReserveA / p.ReserveB, true
}

func (p *Pool) clone() Pool {
	out := *p
	out.Positions = append([]Position(nil), p.Positions...)
	return out
}

var (
	ErrNonPositiveAmount = errors.New("token amounts must be greater than 0")
	ErrMissingPair       = errors.New("pair is required")
)

// SlippageError rejects a deposit whose claim would fall below the
// caller's minimum.
type SlippageError struct {
	Min float64
	Got float64
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("slippage too high: expected at least %v LP claim, got %v", e.Min, e.Got)
}
