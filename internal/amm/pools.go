package amm

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/ledger"
	"github.com/hakimelghazi/ledger-dex/internal/metrics"
)

// Submitter is the ledger's intake. Submission cannot fail in-process.
type Submitter interface {
	Submit(tx ledger.Transaction) string
	Height() uint64
}

// Pools owns every pair's liquidity pool and the position index.
type Pools struct {
	mu        sync.RWMutex
	pools     map[string]*Pool
	positions map[string]Position
	created   []string // position ids in creation order

	ledger  Submitter
	now     func() time.Time
	newID   func() string
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewPools(l Submitter, log *zap.Logger, m *metrics.Metrics) *Pools {
	return &Pools{
		pools:     make(map[string]*Pool),
		positions: make(map[string]Position),
		ledger:    l,
		now:       time.Now,
		newID:     func() string { return "pos_" + uuid.NewString() },
		log:       log,
		metrics:   m,
	}
}

// ApplyConfirmed folds a confirmed liquidity event into its pool. Remove
// events are logged and ignored.
func (p *Pools) ApplyConfirmed(ev LiquidityEvent) {
	if ev.Kind == EventRemove {
		p.log.Warn("liquidity removal not supported, dropping",
			zap.String("position_id", ev.PositionID),
			zap.String("pair", ev.Pair))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.positions[ev.PositionID]; dup {
		p.log.Warn("duplicate liquidity position, dropping", zap.String("position_id", ev.PositionID))
		return
	}

	pool, ok := p.pools[ev.Pair]
	if !ok {
		pool = &Pool{Pair: ev.Pair}
		p.pools[ev.Pair] = pool
	}
	pos := Position{
		ID:          ev.PositionID,
		Provider:    ev.Provider,
		Pair:        ev.Pair,
		AmountA:     ev.AmountA,
		AmountB:     ev.AmountB,
		LPClaim:     ev.LPClaim,
		Status:      PositionActive,
		BlockHeight: ev.BlockHeight,
		CreatedAt:   ev.At,
	}
	pool.Positions = append(pool.Positions, pos)
	pool.ReserveA += ev.AmountA
	pool.ReserveB += ev.AmountB
	pool.TotalLPClaims += ev.LPClaim
	pool.LastUpdated = p.now()

	p.positions[pos.ID] = pos
	p.created = append(p.created, pos.ID)

	p.log.Debug("pool updated",
		zap.String("pair", ev.Pair),
		zap.Float64("reserve_a", pool.ReserveA),
		zap.Float64("reserve_b", pool.ReserveB),
		zap.Float64("total_lp_claims", pool.TotalLPClaims))
}

type DepositRequest struct {
	Provider string
	Pair     string
	AmountA  float64
	AmountB  float64
	// MinLPClaim, when positive, rejects deposits yielding a smaller claim.
	MinLPClaim float64
}

type DepositReceipt struct {
	PositionID        string  `json:"position_id"`
	Pair              string  `json:"pair"`
	AmountA           float64 `json:"amount_a"`
	AmountB           float64 `json:"amount_b"`
	LPClaim           float64 `json:"lp_claim"`
	ProjectedReserveA float64 `json:"projected_reserve_a"`
	ProjectedReserveB float64 `json:"projected_reserve_b"`
	TxHash            string  `json:"tx_hash"`
	ExpectedHeight    uint64  `json:"expected_height"`
}

// Deposit prices a deposit against the current pool and submits the
// resulting liquidity event to the ledger. Pool state only changes once the
// event comes back in a block.
func (p *Pools) Deposit(req DepositRequest) (DepositReceipt, error) {
	if req.Pair == "" {
		p.metrics.Deposit("rejected")
		return DepositReceipt{}, ErrMissingPair
	}
	if !(req.AmountA > 0) || !(req.AmountB > 0) {
		p.metrics.Deposit("rejected")
		return DepositReceipt{}, ErrNonPositiveAmount
	}

	p.mu.RLock()
	var reserveA, reserveB, total float64
	pool, exists := p.pools[req.Pair]
	if exists {
		reserveA, reserveB, total = pool.ReserveA, pool.ReserveB, pool.TotalLPClaims
	}
	p.mu.RUnlock()

	actualA, actualB, claim := quote(exists, reserveA, reserveB, total, req.AmountA, req.AmountB)

	if req.MinLPClaim > 0 && claim < req.MinLPClaim {
		p.metrics.Deposit("slippage")
		return DepositReceipt{}, &SlippageError{Min: req.MinLPClaim, Got: claim}
	}

	positionID := p.newID()
	payload, err := ledger.NewPayload(ledger.KindAddLiquidity, ledger.LiquidityPayload{
		Pair:       req.Pair,
		AmountA:    actualA,
		AmountB:    actualB,
		LPClaim:    claim,
		PositionID: positionID,
		Provider:   req.Provider,
	})
	if err != nil {
		return DepositReceipt{}, err
	}
	hash := p.ledger.Submit(ledger.Transaction{
		Sender:    req.Provider,
		Recipient: string(ledger.ContractLiquidity),
		Contract:  ledger.ContractLiquidity,
		Payload:   payload,
		Cost:      ledger.CostLiquidity,
	})
	p.metrics.Deposit("accepted")

	p.log.Info("liquidity deposit submitted",
		zap.String("provider", req.Provider),
		zap.String("pair", req.Pair),
		zap.Float64("amount_a", actualA),
		zap.Float64("amount_b", actualB),
		zap.Float64("lp_claim", claim),
		zap.String("tx_hash", hash))

	return DepositReceipt{
		PositionID:        positionID,
		Pair:              req.Pair,
		AmountA:           actualA,
		AmountB:           actualB,
		LPClaim:           claim,
		ProjectedReserveA: reserveA + actualA,
		ProjectedReserveB: reserveB + actualB,
		TxHash:            hash,
		ExpectedHeight:    p.ledger.Height() + 1,
	}, nil
}

// quote trims the deposit to the pool ratio and computes the minted claim.
// The first deposit into a pool sets the ratio and mints sqrt(a*b).
func quote(exists bool, reserveA, reserveB, total, amountA, amountB float64) (actualA, actualB, claim float64) {
	if !exists || reserveA == 0 || reserveB == 0 {
		return amountA, amountB, math.Sqrt(amountA * amountB)
	}

	ratio := reserveA / reserveB
	idealB := amountA / ratio
	idealA := amountB * ratio

	actualA, actualB = amountA, amountB
	if idealB <= amountB {
		actualB = idealB
	} else {
		actualA = idealA
	}

	share := math.Min(actualA/reserveA, actualB/reserveB)
	return actualA, actualB, share * total
}

func (p *Pools) Get(pair string) (Pool, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pool, ok := p.pools[pair]
	if !ok {
		return Pool{}, false
	}
	return pool.clone(), true
}

// GetAll returns every pool sorted by pair.
func (p *Pools) GetAll() []Pool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Pool, 0, len(p.pools))
	for _, pool := range p.pools {
		out = append(out, pool.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}

func (p *Pools) Position(id string) (Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[id]
	return pos, ok
}

// Positions returns every position in creation order.
func (p *Pools) Positions() []Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Position, 0, len(p.created))
	for _, id := range p.created {
		out = append(out, p.positions[id])
	}
	return out
}

type Stats struct {
	Pair          string    `json:"pair"`
	ReserveA      float64   `json:"reserve_a"`
	ReserveB      float64   `json:"reserve_b"`
	TotalLPClaims float64   `json:"total_lp_claims"`
	Price         *float64  `json:"price,omitempty"`
	Positions     int       `json:"positions"`
	LastUpdated   time.Time `json:"last_updated"`
}

func (p *Pools) Stats(pair string) (Stats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pool, ok := p.pools[pair]
	if !ok {
		return Stats{}, false
	}
	s := Stats{
		Pair:          pool.Pair,
		ReserveA:      pool.ReserveA,
		ReserveB:      pool.ReserveB,
		TotalLPClaims: pool.TotalLPClaims,
		Positions:     len(pool.Positions),
		LastUpdated:   pool.LastUpdated,
	}
	if price, ok := pool.Price(); ok {
		s.Price = &price
	}
	return s, true
}

// Price is the pool's reserveA/reserveB ratio. It is independent of the
// order book's clearing price for the same pair.
func (p *Pools) Price(pair string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pool, ok := p.pools[pair]
	if !ok {
		return 0, false
	}
	return pool.Price()
}
