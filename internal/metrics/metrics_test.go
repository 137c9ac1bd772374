package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.BlockProduced([]string{"orders_contract"})
	m.OrderRejected("band")
	m.Matched("DOT/USDC", 1)
	m.Scanned(3)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.BlockProduced([]string{"orders_contract", "orders_contract", "liquidity_contract"})
	m.Matched("DOT/USDC", 2.5)
	m.Matched("DOT/USDC", 1.5)
	m.Scanned(7)

	require.Equal(t, 1.0, testutil.ToFloat64(m.BlocksProduced))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Transactions.WithLabelValues("orders_contract")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Matches.WithLabelValues("DOT/USDC")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.MatchedVolume.WithLabelValues("DOT/USDC")))
	require.Equal(t, 7.0, testutil.ToFloat64(m.ScannerHeight))
}
