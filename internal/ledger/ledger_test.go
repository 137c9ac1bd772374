package ledger

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSynth(seed uint64) *Synthesizer {
	return NewSynthesizer(rand.New(rand.NewPCG(seed, seed)), []SynthPair{
		{Name: "DOT/USDC", PriceMin: 7, PriceMax: 8},
	})
}

func priceTx(t *testing.T, pair string, price float64) Transaction {
	t.Helper()
	p, err := NewPayload(KindPriceUpdate, PricePayload{Pair: pair, Price: price, Confidence: 1})
	require.NoError(t, err)
	return Transaction{Sender: OracleSender, Recipient: string(ContractPriceOracle), Contract: ContractPriceOracle, Payload: p, Cost: CostPrice}
}

func TestEmptyLedger(t *testing.T) {
	l := New(nil, zap.NewNop(), nil)
	require.Equal(t, uint64(0), l.Height())
	_, ok := l.Block(0)
	require.False(t, ok)
	_, ok = l.Block(1)
	require.False(t, ok)
	require.Empty(t, l.Blocks())
}

func TestSubmittedTransactionsArePrefixInOrder(t *testing.T) {
	l := New(newTestSynth(7), zap.NewNop(), nil)

	var hashes []string
	for _, price := range []float64{7.1, 7.2, 7.3} {
		hashes = append(hashes, l.Submit(priceTx(t, "DOT/USDC", price)))
	}
	require.Equal(t, 3, l.Pending())

	b := l.Produce()
	require.Equal(t, uint64(1), b.Height)
	require.Equal(t, 0, l.Pending())
	require.GreaterOrEqual(t, len(b.Transactions), 3+1)
	require.LessOrEqual(t, len(b.Transactions), 3+5)
	for i, h := range hashes {
		require.Equal(t, h, b.Transactions[i].Hash)
	}
	for _, tx := range b.Transactions[3:] {
		require.NotEqual(t, ContractPriceOracle, tx.Contract, "synthetic traffic follows submissions")
	}
}

func TestHeightsAndParentLinks(t *testing.T) {
	l := New(newTestSynth(1), zap.NewNop(), nil)
	for range 4 {
		l.Produce()
	}
	require.Equal(t, uint64(4), l.Height())

	blocks := l.Blocks()
	require.Len(t, blocks, 4)
	for i, b := range blocks {
		require.Equal(t, uint64(i+1), b.Height)
		got, ok := l.Block(b.Height)
		require.True(t, ok)
		require.Equal(t, b.Hash, got.Hash)
		if i > 0 {
			require.Equal(t, blocks[i-1].Hash, b.ParentHash)
		}
	}
}

func TestSyntheticCountAndShapes(t *testing.T) {
	s := newTestSynth(99)
	for range 200 {
		txs := s.Generate()
		require.GreaterOrEqual(t, len(txs), 1)
		require.LessOrEqual(t, len(txs), 5)
		for _, tx := range txs {
			switch tx.Contract {
			case ContractOrders:
				var body OrderPayload
				require.NoError(t, tx.Payload.Decode(&body))
				require.Equal(t, KindPlaceOrder, tx.Payload.Kind)
				require.True(t, body.Price.GreaterThanOrEqual(decimal.NewFromInt(7)))
				require.True(t, body.Price.LessThanOrEqual(decimal.NewFromInt(8)))
				require.Contains(t, []string{"buy", "sell"}, body.Side)
			case ContractLiquidity:
				var body LiquidityPayload
				require.NoError(t, tx.Payload.Decode(&body))
				require.GreaterOrEqual(t, body.AmountA, 1000.0)
				require.Less(t, body.AmountB, 1100.0)
			default:
				t.Fatalf("unexpected contract %s", tx.Contract)
			}
		}
	}
}

func TestSeededLedgersAgree(t *testing.T) {
	a := New(newTestSynth(5), zap.NewNop(), nil)
	b := New(newTestSynth(5), zap.NewNop(), nil)
	for range 3 {
		ba, bb := a.Produce(), b.Produce()
		require.Equal(t, len(ba.Transactions), len(bb.Transactions))
		for i := range ba.Transactions {
			require.Equal(t, ba.Transactions[i].Hash, bb.Transactions[i].Hash)
		}
	}
}

func TestDistinctHashesForIdenticalSubmissions(t *testing.T) {
	l := New(nil, zap.NewNop(), nil)
	tx := priceTx(t, "DOT/USDC", 7.45)
	require.NotEqual(t, l.Submit(tx), l.Submit(tx))

	tx.Hash = "0xfeed"
	require.Equal(t, "0xfeed", l.Submit(tx))
}

func TestDecodeEmptyPayload(t *testing.T) {
	var body OrderPayload
	require.Error(t, Payload{Kind: KindPlaceOrder}.Decode(&body))
}

func TestContractCost(t *testing.T) {
	c, ok := ContractLiquidity.Cost()
	require.True(t, ok)
	require.Equal(t, CostLiquidity, c)
	_, ok = Contract("bridge_contract").Cost()
	require.False(t, ok)
}
