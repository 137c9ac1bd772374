package pricefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheRecordAndRead(t *testing.T) {
	c := NewPriceCache(nil, zap.NewNop(), nil)

	_, ok := c.ConfirmedPrice("DOT/USDC")
	require.False(t, ok)

	c.Record(Quote{Pair: "DOT/USDC", Price: 7.45}, 1)
	c.Record(Quote{Pair: "ETH/USDC", Price: 3000}, 1)
	c.Record(Quote{Pair: "DOT/USDC", Price: 7.5}, 2)

	p, ok := c.ConfirmedPrice("DOT/USDC")
	require.True(t, ok)
	require.Equal(t, 7.5, p)
	require.Len(t, c.History("DOT/USDC"), 2)

	all := c.All()
	require.Len(t, all, 2)
	require.Equal(t, "DOT/USDC", all[0].Pair)
	require.Equal(t, "ETH/USDC", all[1].Pair)
}

func TestCacheHistoryCapped(t *testing.T) {
	c := NewPriceCache(nil, zap.NewNop(), nil)
	for i := range 80 {
		c.Record(Quote{Pair: "DOT/USDC", Price: float64(i + 1)}, uint64(i+1))
	}
	h := c.History("DOT/USDC")
	require.Len(t, h, confirmedHistoryCap)
	require.Equal(t, 31.0, h[0].Price)
	require.Equal(t, 80.0, h[len(h)-1].Price)
}

func TestCacheRaisesConfirmations(t *testing.T) {
	box := NewOutbox(time.Millisecond, zap.NewNop())
	c := NewPriceCache(box, zap.NewNop(), nil)

	c.Record(Quote{Pair: "DOT/USDC", Price: 7.45}, 4)
	c.Record(Quote{Pair: "DOT/USDC", Price: 7.46}, 5)
	require.Equal(t, 2, box.Len())

	first, ok := box.peek()
	require.True(t, ok)
	require.Equal(t, uint64(1), first.Seq)
	require.Equal(t, uint64(4), first.Height)
}

func TestOutboxRedeliversUntilAcked(t *testing.T) {
	box := NewOutbox(time.Millisecond, zap.NewNop())
	box.Publish(Confirmation{Pair: "DOT/USDC"})
	box.Publish(Confirmation{Pair: "ETH/USDC"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []uint64
	failures := 2
	done := make(chan struct{})
	go func() {
		defer close(done)
		box.Run(ctx, func(_ context.Context, c Confirmation) error {
			seen = append(seen, c.Seq)
			if c.Seq == 1 && failures > 0 {
				failures--
				return errors.New("bridge unavailable")
			}
			if c.Seq == 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("outbox did not drain")
	}
	require.Equal(t, []uint64{1, 1, 1, 2}, seen)
	require.Equal(t, 0, box.Len())
}

func TestOutboxWaitsForPublish(t *testing.T) {
	box := NewOutbox(time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan Confirmation, 1)
	go box.Run(ctx, func(_ context.Context, c Confirmation) error {
		got <- c
		return nil
	})

	box.Publish(Confirmation{Pair: "DOT/USDC", Height: 9})
	select {
	case c := <-got:
		require.Equal(t, uint64(9), c.Height)
	case <-ctx.Done():
		t.Fatal("confirmation never delivered")
	}
}

func TestOutboxDrainStopsAtFailure(t *testing.T) {
	box := NewOutbox(time.Millisecond, zap.NewNop())
	for _, pair := range []string{"A/B", "C/D", "E/F"} {
		box.Publish(Confirmation{Pair: pair})
	}

	fail := true
	deliver := func(_ context.Context, c Confirmation) error {
		if c.Seq == 2 && fail {
			fail = false
			return errors.New("bridge unavailable")
		}
		return nil
	}

	n, err := box.Drain(context.Background(), deliver)
	require.Error(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 2, box.Len())

	n, err = box.Drain(context.Background(), deliver)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 0, box.Len())
}
