// Package sched drives the venue's periodic jobs. Loop runs them on wall
// clock tickers; Manual lets tests fire them by hand.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Job func(ctx context.Context) error

type Scheduler interface {
	Every(name string, period time.Duration, job Job)
}

type entry struct {
	name   string
	period time.Duration
	job    Job
}

// Loop runs every registered job on its own ticker. Jobs share one lock so
// no two ever run at the same time, and a failing job is logged without
// stopping the others.
type Loop struct {
	mu      sync.Mutex
	entries []entry
	log     *zap.Logger
}

func NewLoop(log *zap.Logger) *Loop {
	return &Loop{log: log}
}

func (l *Loop) Every(name string, period time.Duration, job Job) {
	l.entries = append(l.entries, entry{name: name, period: period, job: job})
}

// Run blocks until ctx is cancelled. A job in progress finishes before Run
// returns.
func (l *Loop) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range l.entries {
		g.Go(func() error {
			ticker := time.NewTicker(e.period)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					l.run(ctx, e)
				}
			}
		})
	}
	l.log.Info("scheduler started", zap.Int("jobs", len(l.entries)))
	err := g.Wait()
	l.log.Info("scheduler stopped")
	return err
}

func (l *Loop) run(ctx context.Context, e entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if err := e.job(ctx); err != nil {
		l.log.Error("job failed", zap.String("job", e.name), zap.Error(err))
	}
}

// Manual records jobs without running them. Fire and Step run them
// synchronously on the caller's goroutine.
type Manual struct {
	mu      sync.Mutex
	entries []entry
}

func NewManual() *Manual { return &Manual{} }

func (m *Manual) Every(name string, period time.Duration, job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{name: name, period: period, job: job})
}

// Fire runs every job registered under name, in registration order.
func (m *Manual) Fire(ctx context.Context, name string) error {
	var found bool
	for _, e := range m.snapshot() {
		if e.name != name {
			continue
		}
		found = true
		if err := e.job(ctx); err != nil {
			return fmt.Errorf("job %s: %w", name, err)
		}
	}
	if !found {
		return fmt.Errorf("no job named %q", name)
	}
	return nil
}

// Step runs every registered job once, in registration order.
func (m *Manual) Step(ctx context.Context) error {
	for _, e := range m.snapshot() {
		if err := e.job(ctx); err != nil {
			return fmt.Errorf("job %s: %w", e.name, err)
		}
	}
	return nil
}

// Names lists the registered jobs in registration order.
func (m *Manual) Names() []string {
	entries := m.snapshot()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

func (m *Manual) snapshot() []entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entry(nil), m.entries...)
}
