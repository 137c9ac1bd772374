// Package venue wires the ledger, oracle, scanner, books and pools into one
// pipeline and owns the per-block processing order.
package venue

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/amm"
	"github.com/hakimelghazi/ledger-dex/internal/config"
	"github.com/hakimelghazi/ledger-dex/internal/engine"
	"github.com/hakimelghazi/ledger-dex/internal/extract"
	"github.com/hakimelghazi/ledger-dex/internal/journal"
	"github.com/hakimelghazi/ledger-dex/internal/ledger"
	"github.com/hakimelghazi/ledger-dex/internal/metrics"
	"github.com/hakimelghazi/ledger-dex/internal/scanner"
	"github.com/hakimelghazi/ledger-dex/internal/sched"
	"github.com/hakimelghazi/ledger-dex/pricefeed"
)

const confirmationRetry = 500 * time.Millisecond

// Deps are the optional collaborators of a venue.
type Deps struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics
	// Journal receives every match batch. Nil disables the export.
	Journal *journal.Writer
	// Traffic overrides the synthetic transaction source built from config.
	Traffic ledger.TxSource
}

type Venue struct {
	cfg config.Config

	Ledger  *ledger.Ledger
	Oracle  *pricefeed.Oracle
	Prices  *pricefeed.PriceCache
	Outbox  *pricefeed.Outbox
	Books   *engine.Books
	Pools   *amm.Pools
	Scanner *scanner.Scanner

	extractor *extract.Extractor
	journal   *journal.Writer
	log       *zap.Logger
}

func New(cfg config.Config, deps Deps) *Venue {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := deps.Metrics

	v := &Venue{
		cfg:     cfg,
		journal: deps.Journal,
		log:     log.Named("venue"),
	}

	traffic := deps.Traffic
	if traffic == nil {
		synth := make([]ledger.SynthPair, len(cfg.Pairs))
		for i, p := range cfg.Pairs {
			synth[i] = ledger.SynthPair{Name: p.Name, PriceMin: p.OrderPriceMin, PriceMax: p.OrderPriceMax}
		}
		traffic = ledger.NewSynthesizer(rand.New(rand.NewPCG(cfg.Seed, 1)), synth)
	}
	v.Ledger = ledger.New(traffic, log.Named("ledger"), m)

	seeds := make([]pricefeed.Seed, len(cfg.Pairs))
	for i, p := range cfg.Pairs {
		seeds[i] = pricefeed.Seed{
			Pair:       p.Name,
			Price:      p.InitialPrice,
			BaseVolume: p.BaseVolume,
			Confidence: p.Confidence,
			Volatility: p.Volatility,
		}
	}
	v.Oracle = pricefeed.NewOracle(seeds, cfg.Dampening, rand.New(rand.NewPCG(cfg.Seed, 2)),
		v.submitQuote, log.Named("oracle"))

	v.Outbox = pricefeed.NewOutbox(confirmationRetry, log.Named("outbox"))
	v.Prices = pricefeed.NewPriceCache(v.Outbox, log.Named("prices"), m)
	v.Books = engine.NewBooks(v.Prices, cfg.PriceBand, log.Named("books"), m)
	v.Pools = amm.NewPools(v.Ledger, log.Named("pools"), m)
	v.extractor = extract.New(log.Named("extract"), m)
	v.Scanner = scanner.New(v.Ledger, v, log.Named("scanner"), m)
	return v
}

// submitQuote bridges an oracle quote onto the ledger as a price update from
// the reserved oracle sender.
func (v *Venue) submitQuote(q pricefeed.Quote) {
	payload, err := ledger.NewPayload(ledger.KindPriceUpdate, ledger.PricePayload{
		Pair:       q.Pair,
		Price:      q.Price,
		ObservedAt: q.ObservedAt,
		Volume24h:  q.Volume24h,
		Change24h:  q.Change24h,
		Confidence: q.Confidence,
	})
	if err != nil {
		v.log.Error("encode price update", zap.String("pair", q.Pair), zap.Error(err))
		return
	}
	v.Ledger.Submit(ledger.Transaction{
		Sender:    ledger.OracleSender,
		Recipient: string(ledger.ContractPriceOracle),
		Contract:  ledger.ContractPriceOracle,
		Payload:   payload,
		Cost:      ledger.CostPrice,
	})
}

// HandleBlock runs one block through the pipeline: confirmed prices first,
// then order admission, then liquidity, then one matching pass per pair that
// admitted an order in this block.
func (v *Venue) HandleBlock(_ context.Context, b ledger.Block) error {
	batch := v.extractor.Classify(b)
	if batch.Empty() {
		return nil
	}

	for _, q := range batch.Prices {
		v.Prices.Record(q, b.Height)
	}

	touched := make(map[string]struct{})
	for _, ev := range batch.Orders {
		if v.Books.Admit(ev) {
			touched[ev.Pair] = struct{}{}
		}
	}

	for _, ev := range batch.Liquidity {
		v.Pools.ApplyConfirmed(ev)
	}

	pairs := make([]string, 0, len(touched))
	for pair := range touched {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	for _, pair := range pairs {
		matches := v.Books.MatchPass(pair, b.Height)
		if v.journal != nil {
			v.journal.Enqueue(matches)
		}
	}

	v.log.Debug("block processed",
		zap.Uint64("height", b.Height),
		zap.Int("prices", len(batch.Prices)),
		zap.Int("orders", len(batch.Orders)),
		zap.Int("liquidity", len(batch.Liquidity)),
		zap.Int("matched_pairs", len(pairs)))
	return nil
}

// Register adds the venue's periodic jobs to s. The order matters for
// schedulers that step jobs in sequence: a quote submitted by the oracle is
// folded into the next block, which the scanner then picks up.
func (v *Venue) Register(s sched.Scheduler) {
	s.Every("oracle", v.cfg.OracleInterval, v.Oracle.Tick)
	s.Every("ledger", v.cfg.BlockInterval, v.Ledger.Tick)
	s.Every("scanner", v.cfg.ScanInterval, v.Scanner.Tick)
	s.Every("status", v.cfg.StatusInterval, v.logStatus)
}

func (v *Venue) Start() { v.Scanner.Start() }

func (v *Venue) Stop() { v.Scanner.Stop() }

func (v *Venue) Deposit(req amm.DepositRequest) (amm.DepositReceipt, error) {
	return v.Pools.Deposit(req)
}

type Status struct {
	LedgerHeight   uint64                `json:"ledger_height"`
	PendingTxs     int                   `json:"pending_transactions"`
	ScannerHeight  uint64                `json:"scanner_height"`
	ScannerRunning bool                  `json:"scanner_running"`
	Pairs          []string              `json:"pairs"`
	ConfirmedPairs int                   `json:"confirmed_pairs"`
	Orders         map[engine.Status]int `json:"orders"`
	Books          int                   `json:"books"`
	Pools          int                   `json:"pools"`
	Positions      int                   `json:"positions"`
	Confirmations  int                   `json:"unacked_confirmations"`
}

func (v *Venue) Status() Status {
	return Status{
		LedgerHeight:   v.Ledger.Height(),
		PendingTxs:     v.Ledger.Pending(),
		ScannerHeight:  v.Scanner.LastSeenHeight(),
		ScannerRunning: v.Scanner.Running(),
		Pairs:          v.cfg.PairNames(),
		ConfirmedPairs: len(v.Prices.All()),
		Orders:         v.Books.StatusCounts(),
		Books:          len(v.Books.GetAll()),
		Pools:          len(v.Pools.GetAll()),
		Positions:      len(v.Pools.Positions()),
		Confirmations:  v.Outbox.Len(),
	}
}

func (v *Venue) logStatus(context.Context) error {
	s := v.Status()
	v.log.Info("system status",
		zap.Uint64("ledger_height", s.LedgerHeight),
		zap.Uint64("scanner_height", s.ScannerHeight),
		zap.Bool("scanner_running", s.ScannerRunning),
		zap.Int("open_orders", s.Orders[engine.StatusOpen]+s.Orders[engine.StatusPartiallyFilled]),
		zap.Int("filled_orders", s.Orders[engine.StatusFilled]),
		zap.Int("pools", s.Pools),
		zap.Int("positions", s.Positions))
	for _, q := range v.Prices.All() {
		v.log.Info("confirmed price", zap.String("pair", q.Pair), zap.Float64("price", q.Price))
	}
	return nil
}
