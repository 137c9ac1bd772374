// Package metrics holds the Prometheus collectors shared by the venue
// components. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dex"

type Metrics struct {
	BlocksProduced     prometheus.Counter
	Transactions       *prometheus.CounterVec
	ExtractionFailures *prometheus.CounterVec
	OrdersAdmitted     *prometheus.CounterVec
	OrdersRejected     *prometheus.CounterVec
	Matches            *prometheus.CounterVec
	MatchedVolume      *prometheus.CounterVec
	Deposits           *prometheus.CounterVec
	ScannerHeight      prometheus.Gauge
	ConfirmedPrice     *prometheus.GaugeVec
	JournalDropped     prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "blocks_produced_total",
			Help:      "Blocks appended to the ledger.",
		}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Transactions included in produced blocks, by target contract.",
		}, []string{"contract"}),
		ExtractionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "failures_total",
			Help:      "Transactions that matched a classification but carried a malformed payload.",
		}, []string{"kind"}),
		OrdersAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "admitted_total",
			Help:      "Orders admitted into a book.",
		}, []string{"pair"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Order events dropped at admission, by reason.",
		}, []string{"reason"}),
		Matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "matches_total",
			Help:      "Match events produced by matching passes.",
		}, []string{"pair"}),
		MatchedVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "matched_quantity_total",
			Help:      "Sum of matched quantity.",
		}, []string{"pair"}),
		Deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amm",
			Name:      "deposits_total",
			Help:      "Deposit requests by outcome.",
		}, []string{"result"}),
		ScannerHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "height",
			Help:      "Last block height fully processed by the scanner.",
		}),
		ConfirmedPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "confirmed",
			Help:      "Latest ledger-confirmed price per pair.",
		}, []string{"pair"}),
		JournalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "dropped_batches_total",
			Help:      "Match batches not exported because the journal buffer was full.",
		}),
	}
	reg.MustRegister(
		m.BlocksProduced, m.Transactions, m.ExtractionFailures,
		m.OrdersAdmitted, m.OrdersRejected, m.Matches, m.MatchedVolume,
		m.Deposits, m.ScannerHeight, m.ConfirmedPrice, m.JournalDropped,
	)
	return m
}

func (m *Metrics) BlockProduced(contracts []string) {
	if m == nil {
		return
	}
	m.BlocksProduced.Inc()
	for _, c := range contracts {
		m.Transactions.WithLabelValues(c).Inc()
	}
}

func (m *Metrics) ExtractionFailed(kind string) {
	if m == nil {
		return
	}
	m.ExtractionFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) OrderAdmitted(pair string) {
	if m == nil {
		return
	}
	m.OrdersAdmitted.WithLabelValues(pair).Inc()
}

func (m *Metrics) OrderRejected(reason string) {
	if m == nil {
		return
	}
	m.OrdersRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Matched(pair string, qty float64) {
	if m == nil {
		return
	}
	m.Matches.WithLabelValues(pair).Inc()
	m.MatchedVolume.WithLabelValues(pair).Add(qty)
}

func (m *Metrics) Deposit(result string) {
	if m == nil {
		return
	}
	m.Deposits.WithLabelValues(result).Inc()
}

func (m *Metrics) Scanned(height uint64) {
	if m == nil {
		return
	}
	m.ScannerHeight.Set(float64(height))
}

func (m *Metrics) PriceConfirmed(pair string, price float64) {
	if m == nil {
		return
	}
	m.ConfirmedPrice.WithLabelValues(pair).Set(price)
}

func (m *Metrics) JournalDrop() {
	if m == nil {
		return
	}
	m.JournalDropped.Inc()
}
