// Command engine runs the venue headless for a fixed number of blocks on a
// manual scheduler and prints a summary. Runs with the same seed produce the
// same ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/config"
	"github.com/hakimelghazi/ledger-dex/internal/engine"
	"github.com/hakimelghazi/ledger-dex/internal/logger"
	"github.com/hakimelghazi/ledger-dex/internal/metrics"
	"github.com/hakimelghazi/ledger-dex/internal/sched"
	"github.com/hakimelghazi/ledger-dex/internal/venue"
	"github.com/hakimelghazi/ledger-dex/pricefeed"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	blocks := flag.Int("blocks", 50, "number of blocks to produce")
	seed := flag.Uint64("seed", 0, "PRNG seed, overrides the config when non-zero")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(context.Background(), cfg, *blocks, log); err != nil {
		log.Fatal("simulation failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, blocks int, log *zap.Logger) error {
	v := venue.New(cfg, venue.Deps{Log: log, Metrics: metrics.New(prometheus.NewRegistry())})
	s := sched.NewManual()
	v.Register(s)
	v.Start()

	var acked int
	ack := func(_ context.Context, c pricefeed.Confirmation) error {
		log.Debug("price settlement acknowledged", zap.Uint64("seq", c.Seq), zap.String("pair", c.Pair))
		return nil
	}
	for range blocks {
		for _, job := range []string{"oracle", "ledger", "scanner"} {
			if err := s.Fire(ctx, job); err != nil {
				return err
			}
		}
		n, err := v.Outbox.Drain(ctx, ack)
		if err != nil {
			return err
		}
		acked += n
	}
	if err := s.Fire(ctx, "status"); err != nil {
		return err
	}

	printSummary(v, acked)
	return nil
}

func printSummary(v *venue.Venue, acked int) {
	st := v.Status()
	fmt.Printf("blocks: %d (scanned %d)\n", st.LedgerHeight, st.ScannerHeight)
	fmt.Printf("price confirmations acknowledged: %d\n", acked)

	for _, q := range v.Prices.All() {
		fmt.Printf("confirmed %s: %.6f (oracle history %d, confirmed history %d)\n",
			q.Pair, q.Price, len(v.Oracle.History(q.Pair)), len(v.Prices.History(q.Pair)))
	}

	fmt.Printf("orders: open=%d partially_filled=%d filled=%d\n",
		st.Orders[engine.StatusOpen], st.Orders[engine.StatusPartiallyFilled], st.Orders[engine.StatusFilled])
	for _, b := range v.Books.GetAll() {
		fmt.Printf("book %s: %d bid levels, %d ask levels, %d matches\n",
			b.Pair, len(b.Bids), len(b.Asks), len(v.Books.Matches(b.Pair)))
	}

	for _, p := range v.Pools.GetAll() {
		price, _ := p.Price()
		fmt.Printf("pool %s: reserves %.2f / %.2f, lp claims %.2f, price %.6f, positions %d\n",
			p.Pair, p.ReserveA, p.ReserveB, p.TotalLPClaims, price, len(p.Positions))
	}
}
