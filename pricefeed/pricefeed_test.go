package pricefeed

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOracle(seed uint64, publish func(Quote)) *Oracle {
	return NewOracle([]Seed{
		{Pair: "DOT/USDC", Price: 7.45, BaseVolume: 1_000_000, Confidence: 0.98, Volatility: 0.02},
		{Pair: "ETH/USDC", Price: 3000, BaseVolume: 500_000, Confidence: 0.99, Volatility: 0.03},
	}, 0.1, rand.New(rand.NewPCG(seed, seed)), publish, zap.NewNop())
}

func TestOracleSeedQuotes(t *testing.T) {
	o := newTestOracle(1, nil)
	q, ok := o.Current("DOT/USDC")
	require.True(t, ok)
	require.Equal(t, 7.45, q.Price)
	require.Equal(t, 0.98, q.Confidence)
	require.Len(t, o.History("DOT/USDC"), 1)

	_, ok = o.Current("BTC/USDC")
	require.False(t, ok)
	_, err := o.GetSpot(context.Background(), "BTC/USDC")
	require.Error(t, err)
}

func TestOracleBoundedWalk(t *testing.T) {
	var published []Quote
	o := newTestOracle(3, func(q Quote) { published = append(published, q) })

	prev := 7.45
	for range 500 {
		require.NoError(t, o.Tick(context.Background()))
		q, _ := o.Current("DOT/USDC")
		// volatility 2% damped by 0.1 bounds each step at 0.2%, plus rounding
		require.InDelta(t, prev, q.Price, prev*0.002+1e-6)
		require.InDelta(t, (q.Price-prev)/prev*100, q.Change24h, 1e-3)
		require.GreaterOrEqual(t, q.Confidence, 0.95)
		require.LessOrEqual(t, q.Confidence, 1.0)
		require.GreaterOrEqual(t, q.Volume24h, 900_000.0)
		require.LessOrEqual(t, q.Volume24h, 1_100_000.0)
		prev = q.Price
	}
	require.Len(t, published, 1000, "one quote per pair per tick")
	require.Len(t, o.History("DOT/USDC"), oracleHistoryCap)

	spot, err := o.GetSpot(context.Background(), "DOT/USDC")
	require.NoError(t, err)
	require.Equal(t, prev, spot)
}

func TestOraclePublishesInPairOrder(t *testing.T) {
	var pairs []string
	o := newTestOracle(9, func(q Quote) { pairs = append(pairs, q.Pair) })
	require.NoError(t, o.Tick(context.Background()))
	require.Equal(t, []string{"DOT/USDC", "ETH/USDC"}, pairs)
	require.Len(t, o.All(), 2)
}

func TestOracleSeededRunsAgree(t *testing.T) {
	a, b := newTestOracle(11, nil), newTestOracle(11, nil)
	for range 20 {
		require.NoError(t, a.Tick(context.Background()))
		require.NoError(t, b.Tick(context.Background()))
	}
	qa, _ := a.Current("ETH/USDC")
	qb, _ := b.Current("ETH/USDC")
	require.Equal(t, qa.Price, qb.Price)
}

func TestOraclePriceFloor(t *testing.T) {
	o := NewOracle([]Seed{{Pair: "X/Y", Price: minPrice, BaseVolume: 1, Confidence: 1, Volatility: 0.9}},
		1, rand.New(rand.NewPCG(1, 2)), nil, zap.NewNop())
	for range 50 {
		require.NoError(t, o.Tick(context.Background()))
		q, _ := o.Current("X/Y")
		require.GreaterOrEqual(t, q.Price, minPrice)
	}
}
