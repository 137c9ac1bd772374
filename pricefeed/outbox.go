package pricefeed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Confirmation announces that a quote was settled on the ledger. Seq is
// strictly increasing; consumers dedupe on it.
type Confirmation struct {
	Seq    uint64 `json:"seq"`
	Pair   string `json:"pair"`
	Quote  Quote  `json:"quote"`
	Height uint64 `json:"height"`
}

// Outbox queues confirmations for a single consumer with at-least-once
// delivery. Publish never blocks; a failed delivery is retried before any
// later confirmation is handed out.
type Outbox struct {
	mu      sync.Mutex
	queue   []Confirmation
	nextSeq uint64
	signal  chan struct{}
	retry   time.Duration
	log     *zap.Logger
}

func NewOutbox(retry time.Duration, log *zap.Logger) *Outbox {
	return &Outbox{
		nextSeq: 1,
		signal:  make(chan struct{}, 1),
		retry:   retry,
		log:     log,
	}
}

// Publish assigns the next sequence number and enqueues c.
func (o *Outbox) Publish(c Confirmation) uint64 {
	o.mu.Lock()
	c.Seq = o.nextSeq
	o.nextSeq++
	o.queue = append(o.queue, c)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
	return c.Seq
}

// Len reports undelivered confirmations.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *Outbox) peek() (Confirmation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return Confirmation{}, false
	}
	return o.queue[0], true
}

func (o *Outbox) ack(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) > 0 && o.queue[0].Seq == seq {
		o.queue = o.queue[1:]
	}
}

// Run delivers confirmations in order until ctx is done.
func (o *Outbox) Run(ctx context.Context, deliver func(context.Context, Confirmation) error) {
	for {
		c, ok := o.peek()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-o.signal:
				continue
			}
		}

		if err := deliver(ctx, c); err != nil {
			o.log.Warn("price confirmation delivery failed, retrying",
				zap.Uint64("seq", c.Seq),
				zap.String("pair", c.Pair),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.retry):
			}
			continue
		}
		o.ack(c.Seq)
	}
}

// Drain delivers queued confirmations on the caller's goroutine until the
// queue is empty or a delivery fails, and reports how many were acked. A
// failed confirmation stays at the head of the queue.
func (o *Outbox) Drain(ctx context.Context, deliver func(context.Context, Confirmation) error) (int, error) {
	var n int
	for {
		c, ok := o.peek()
		if !ok {
			return n, nil
		}
		if err := deliver(ctx, c); err != nil {
			return n, err
		}
		o.ack(c.Seq)
		n++
	}
}
