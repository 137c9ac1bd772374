package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hakimelghazi/ledger-dex/internal/metrics"
)

// TxSource supplies the synthetic transactions appended to each block.
type TxSource interface {
	Generate() []Transaction
}

// Ledger is an in-memory append-only chain. Submitted transactions wait in a
// pending queue and become the prefix of the next produced block, in
// submission order.
type Ledger struct {
	mu      sync.RWMutex
	blocks  []Block
	pending []Transaction
	nonce   uint64

	synth   TxSource
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New returns an empty ledger. A nil synth produces blocks holding only
// submitted transactions.
func New(synth TxSource, log *zap.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{
		synth:   synth,
		now:     time.Now,
		log:     log,
		metrics: m,
	}
}

// Submit queues tx for the next block and returns its hash. It never fails;
// a missing hash is assigned here.
func (l *Ledger) Submit(tx Transaction) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx = l.seal(tx)
	l.pending = append(l.pending, tx)
	l.log.Debug("transaction queued",
		zap.String("hash", tx.Hash),
		zap.String("contract", string(tx.Contract)),
		zap.String("kind", string(tx.Payload.Kind)))
	return tx.Hash
}

func (l *Ledger) seal(tx Transaction) Transaction {
	l.nonce++
	if tx.Hash == "" {
		tx.Hash = txHash(tx, l.nonce)
	}
	return tx
}

// Tick produces one block. It matches the scheduler job signature.
func (l *Ledger) Tick(context.Context) error {
	l.Produce()
	return nil
}

// Produce folds the pending queue plus fresh synthetic transactions into a
// new block at height+1 and appends it.
func (l *Ledger) Produce() Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	submitted := len(l.pending)
	txs := make([]Transaction, 0, submitted+5)
	txs = append(txs, l.pending...)
	if l.synth != nil {
		for _, tx := range l.synth.Generate() {
			txs = append(txs, l.seal(tx))
		}
	}

	var parent string
	if n := len(l.blocks); n > 0 {
		parent = l.blocks[n-1].Hash
	}
	b := Block{
		Height:       uint64(len(l.blocks)) + 1,
		ParentHash:   parent,
		ProducedAt:   l.now(),
		Transactions: txs,
	}
	b.Hash = blockHash(b)

	l.blocks = append(l.blocks, b)
	l.pending = nil

	contracts := make([]string, len(txs))
	for i, tx := range txs {
		contracts[i] = string(tx.Contract)
	}
	l.metrics.BlockProduced(contracts)

	if submitted > 0 {
		l.log.Info("produced block",
			zap.Uint64("height", b.Height),
			zap.Int("submitted", submitted),
			zap.Int("synthetic", len(txs)-submitted))
	} else {
		l.log.Debug("produced block", zap.Uint64("height", b.Height), zap.Int("synthetic", len(txs)))
	}
	return b
}

func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.blocks))
}

func (l *Ledger) Block(height uint64) (Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if height == 0 || height > uint64(len(l.blocks)) {
		return Block{}, false
	}
	return l.blocks[height-1], true
}

// Blocks returns every produced block in height order.
func (l *Ledger) Blocks() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, len(l.blocks))
	copy(out, l.blocks)
	return out
}

// Pending reports how many submitted transactions await the next block.
func (l *Ledger) Pending() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}
