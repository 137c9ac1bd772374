package venue

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/amm"
	"github.com/hakimelghazi/ledger-dex/internal/config"
	"github.com/hakimelghazi/ledger-dex/internal/engine"
	"github.com/hakimelghazi/ledger-dex/internal/ledger"
	"github.com/hakimelghazi/ledger-dex/internal/metrics"
	"github.com/hakimelghazi/ledger-dex/internal/sched"
)

const pair = "DOT/USDC"

// quiet produces no background traffic.
type quiet struct{}

func (quiet) Generate() []ledger.Transaction { return nil }

func newTestVenue(t *testing.T, traffic ledger.TxSource) (*Venue, *sched.Manual) {
	t.Helper()
	v := New(config.Default(), Deps{
		Log:     zap.NewNop(),
		Metrics: metrics.New(prometheus.NewRegistry()),
		Traffic: traffic,
	})
	s := sched.NewManual()
	v.Register(s)
	v.Start()
	return v, s
}

func submitOrder(t *testing.T, v *Venue, owner, side, amount, price string) string {
	t.Helper()
	payload, err := ledger.NewPayload(ledger.KindPlaceOrder, ledger.OrderPayload{
		Pair:   pair,
		Side:   side,
		Amount: decimal.RequireFromString(amount),
		Price:  decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return v.Ledger.Submit(ledger.Transaction{
		Sender:    owner,
		Recipient: string(ledger.ContractOrders),
		Contract:  ledger.ContractOrders,
		Payload:   payload,
		Cost:      ledger.CostOrder,
	})
}

func submitPrice(t *testing.T, v *Venue, price float64) {
	t.Helper()
	payload, err := ledger.NewPayload(ledger.KindPriceUpdate, ledger.PricePayload{
		Pair: pair, Price: price, Confidence: 0.98,
	})
	require.NoError(t, err)
	v.Ledger.Submit(ledger.Transaction{
		Sender:   ledger.OracleSender,
		Contract: ledger.ContractPriceOracle,
		Payload:  payload,
		Cost:     ledger.CostPrice,
	})
}

func block(t *testing.T, s *sched.Manual) {
	t.Helper()
	require.NoError(t, s.Fire(context.Background(), "ledger"))
	require.NoError(t, s.Fire(context.Background(), "scanner"))
}

func TestOrderBeforeAnyConfirmedPriceIsDropped(t *testing.T) {
	v, s := newTestVenue(t, quiet{})
	id := submitOrder(t, v, "alice", "buy", "10", "7.45")
	block(t, s)

	_, ok := v.Books.Order(id)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), v.Scanner.LastSeenHeight())
}

func TestPricesFoldInBeforeOrdersOfTheSameBlock(t *testing.T) {
	v, s := newTestVenue(t, quiet{})

	// the order is ahead of the price inside the block
	buy := submitOrder(t, v, "alice", "buy", "10", "7.70")
	submitPrice(t, v, 7.45)
	block(t, s)

	q, ok := v.Prices.Current(pair)
	require.True(t, ok)
	assert.Equal(t, 7.45, q.Price)

	o, ok := v.Books.Order(buy)
	require.True(t, ok, "order admitted against the price from its own block")
	assert.Equal(t, engine.StatusOpen, o.Status)

	far := submitOrder(t, v, "bob", "sell", "4", "7.90")
	sell := submitOrder(t, v, "carol", "sell", "4", "7.60")
	block(t, s)

	_, ok = v.Books.Order(far)
	assert.False(t, ok, "outside the 5% band")

	matches := v.Books.Matches(pair)
	require.Len(t, matches, 1)
	assert.Equal(t, buy, matches[0].BuyOrder.ID)
	assert.Equal(t, sell, matches[0].SellOrder.ID)
	assert.True(t, matches[0].Price.Equal(decimal.RequireFromString("7.60")))
	assert.Equal(t, uint64(2), matches[0].BlockHeight)

	o, _ = v.Books.Order(buy)
	assert.Equal(t, engine.StatusPartiallyFilled, o.Status)
	assert.True(t, o.Remaining.Equal(decimal.NewFromInt(6)))

	assert.Equal(t, 1, v.Outbox.Len(), "one confirmation raised")
}

func TestOracleQuoteRoundTripsThroughLedger(t *testing.T) {
	v, s := newTestVenue(t, quiet{})
	require.NoError(t, s.Step(context.Background()))

	oracleQuote, ok := v.Oracle.Current(pair)
	require.True(t, ok)
	confirmed, ok := v.Prices.Current(pair)
	require.True(t, ok)
	assert.Equal(t, oracleQuote.Price, confirmed.Price)

	blk, ok := v.Ledger.Block(1)
	require.True(t, ok)
	require.Len(t, blk.Transactions, 1)
	assert.Equal(t, ledger.OracleSender, blk.Transactions[0].Sender)
}

func TestDepositConfirmsThroughLedger(t *testing.T) {
	v, s := newTestVenue(t, quiet{})

	r, err := v.Deposit(amm.DepositRequest{Provider: "alice", Pair: "A/B", AmountA: 1000, AmountB: 7500})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.ExpectedHeight)
	_, ok := v.Pools.Get("A/B")
	assert.False(t, ok)

	block(t, s)
	pool, ok := v.Pools.Get("A/B")
	require.True(t, ok)
	assert.Equal(t, 1000.0, pool.ReserveA)
	assert.Equal(t, 7500.0, pool.ReserveB)
	pos, ok := v.Pools.Position(r.PositionID)
	require.True(t, ok)
	assert.Equal(t, uint64(1), pos.BlockHeight)

	_, err = v.Deposit(amm.DepositRequest{Pair: "A/B", AmountA: 100, AmountB: 1000, MinLPClaim: 1e6})
	var slip *amm.SlippageError
	assert.ErrorAs(t, err, &slip)
	assert.Zero(t, v.Ledger.Pending())
}

func TestSyntheticRunIsDeterministic(t *testing.T) {
	run := func() []string {
		v, s := newTestVenue(t, nil)
		for range 20 {
			require.NoError(t, s.Step(context.Background()))
		}
		var hashes []string
		for _, b := range v.Ledger.Blocks() {
			for _, tx := range b.Transactions {
				if tx.Sender != ledger.OracleSender {
					hashes = append(hashes, tx.Hash)
				}
			}
		}
		st := v.Status()
		assert.Equal(t, uint64(20), st.LedgerHeight)
		assert.Equal(t, uint64(20), st.ScannerHeight)
		assert.True(t, st.ScannerRunning)
		return hashes
	}
	assert.Equal(t, run(), run())
}

func TestStoppedScannerLeavesBlocksUnprocessed(t *testing.T) {
	v, s := newTestVenue(t, quiet{})
	v.Stop()
	submitPrice(t, v, 7.45)
	block(t, s)

	_, ok := v.Prices.Current(pair)
	assert.False(t, ok)
	assert.Zero(t, v.Scanner.LastSeenHeight())

	v.Start()
	require.NoError(t, s.Fire(context.Background(), "scanner"))
	_, ok = v.Prices.Current(pair)
	assert.True(t, ok)
}
