// Package extract turns confirmed blocks into the typed events the order
// books, pools and price cache consume.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/amm"
	"github.com/hakimelghazi/ledger-dex/internal/engine"
	"github.com/hakimelghazi/ledger-dex/internal/ledger"
	"github.com/hakimelghazi/ledger-dex/internal/metrics"
	"github.com/hakimelghazi/ledger-dex/pricefeed"
)

// Batch holds the events of one block, each slice in transaction order.
type Batch struct {
	Height    uint64
	Orders    []engine.OrderEvent
	Liquidity []amm.LiquidityEvent
	Prices    []pricefeed.Quote
}

func (b Batch) Empty() bool {
	return len(b.Orders) == 0 && len(b.Liquidity) == 0 && len(b.Prices) == 0
}

var errMissingPair = errors.New("missing pair")

type Extractor struct {
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(log *zap.Logger, m *metrics.Metrics) *Extractor {
	return &Extractor{log: log, metrics: m}
}

// Classify sorts every transaction of b into at most one event. Transactions
// that match no rule are ignored; ones that match but carry a malformed body
// are logged, counted and skipped without affecting the rest of the block.
func (e *Extractor) Classify(b ledger.Block) Batch {
	out := Batch{Height: b.Height}
	for _, tx := range b.Transactions {
		var err error
		switch {
		case tx.Contract == ledger.ContractOrders &&
			(tx.Payload.Kind == ledger.KindPlaceOrder || tx.Payload.Kind == ledger.KindCancelOrder):
			var ev engine.OrderEvent
			if ev, err = orderEvent(b, tx); err == nil {
				out.Orders = append(out.Orders, ev)
			}
		case tx.Contract == ledger.ContractLiquidity &&
			(tx.Payload.Kind == ledger.KindAddLiquidity || tx.Payload.Kind == ledger.KindRemoveLiquidity):
			var ev amm.LiquidityEvent
			if ev, err = liquidityEvent(b, tx); err == nil {
				out.Liquidity = append(out.Liquidity, ev)
			}
		case tx.Contract == ledger.ContractPriceOracle &&
			tx.Payload.Kind == ledger.KindPriceUpdate &&
			tx.Sender == ledger.OracleSender:
			var q pricefeed.Quote
			if q, err = priceEvent(tx); err == nil {
				out.Prices = append(out.Prices, q)
			}
		default:
			continue
		}
		if err != nil {
			e.metrics.ExtractionFailed(string(tx.Payload.Kind))
			e.log.Warn("skipping malformed transaction",
				zap.Uint64("height", b.Height),
				zap.String("hash", tx.Hash),
				zap.String("kind", string(tx.Payload.Kind)),
				zap.Error(err))
		}
	}
	return out
}

func orderEvent(b ledger.Block, tx ledger.Transaction) (engine.OrderEvent, error) {
	var body ledger.OrderPayload
	if err := tx.Payload.Decode(&body); err != nil {
		return engine.OrderEvent{}, err
	}
	pair := strings.TrimSpace(body.Pair)
	if pair == "" {
		return engine.OrderEvent{}, errMissingPair
	}

	ev := engine.OrderEvent{
		ID:          tx.Hash,
		Owner:       tx.Sender,
		Pair:        pair,
		BlockHeight: b.Height,
		PlacedAt:    b.ProducedAt,
	}
	if tx.Payload.Kind == ledger.KindCancelOrder {
		if body.OrderID == "" {
			return engine.OrderEvent{}, errors.New("cancel without orderId")
		}
		ev.Type = engine.CmdCancel
		ev.TargetID = body.OrderID
		return ev, nil
	}

	side, err := engine.ParseSide(body.Side)
	if err != nil {
		return engine.OrderEvent{}, err
	}
	if !body.Amount.IsPositive() {
		return engine.OrderEvent{}, fmt.Errorf("amount must be positive, got %s", body.Amount)
	}
	if !body.Price.IsPositive() {
		return engine.OrderEvent{}, fmt.Errorf("price must be positive, got %s", body.Price)
	}
	ev.Type = engine.CmdPlace
	ev.Side = side
	ev.Quantity = body.Amount
	ev.Price = body.Price
	return ev, nil
}

func liquidityEvent(b ledger.Block, tx ledger.Transaction) (amm.LiquidityEvent, error) {
	var body ledger.LiquidityPayload
	if err := tx.Payload.Decode(&body); err != nil {
		return amm.LiquidityEvent{}, err
	}
	pair := strings.TrimSpace(body.Pair)
	if pair == "" {
		return amm.LiquidityEvent{}, errMissingPair
	}

	ev := amm.LiquidityEvent{
		Kind:        amm.EventAdd,
		PositionID:  body.PositionID,
		Provider:    body.Provider,
		Pair:        pair,
		AmountA:     body.AmountA,
		AmountB:     body.AmountB,
		LPClaim:     body.LPClaim,
		BlockHeight: b.Height,
		At:          b.ProducedAt,
	}
	if ev.PositionID == "" {
		ev.PositionID = tx.Hash
	}
	if ev.Provider == "" {
		ev.Provider = tx.Sender
	}
	if tx.Payload.Kind == ledger.KindRemoveLiquidity {
		ev.Kind = amm.EventRemove
		return ev, nil
	}
	if !(body.AmountA > 0) || !(body.AmountB > 0) || !(body.LPClaim > 0) {
		return amm.LiquidityEvent{}, fmt.Errorf("non-positive liquidity amounts (%v, %v, lp %v)",
			body.AmountA, body.AmountB, body.LPClaim)
	}
	return ev, nil
}

func priceEvent(tx ledger.Transaction) (pricefeed.Quote, error) {
	var body ledger.PricePayload
	if err := tx.Payload.Decode(&body); err != nil {
		return pricefeed.Quote{}, err
	}
	pair := strings.TrimSpace(body.Pair)
	if pair == "" {
		return pricefeed.Quote{}, errMissingPair
	}
	if !(body.Price > 0) {
		return pricefeed.Quote{}, fmt.Errorf("price must be positive, got %v", body.Price)
	}
	if body.Confidence < 0 || body.Confidence > 1 {
		return pricefeed.Quote{}, fmt.Errorf("confidence %v outside [0,1]", body.Confidence)
	}
	return pricefeed.Quote{
		Pair:       pair,
		Price:      body.Price,
		ObservedAt: body.ObservedAt,
		Volume24h:  body.Volume24h,
		Change24h:  body.Change24h,
		Confidence: body.Confidence,
	}, nil
}
