package ledger

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// SynthPair bounds the random order prices generated for one pair.
type SynthPair struct {
	Name     string
	PriceMin float64
	PriceMax float64
}

// Synthesizer manufactures background traffic for every produced block:
// 1..5 transactions, each a random order or a random liquidity add.
type Synthesizer struct {
	rng   *rand.Rand
	pairs []SynthPair
}

func NewSynthesizer(rng *rand.Rand, pairs []SynthPair) *Synthesizer {
	return &Synthesizer{rng: rng, pairs: pairs}
}

// Generate is only called from Ledger.Produce, under the ledger lock.
func (s *Synthesizer) Generate() []Transaction {
	if len(s.pairs) == 0 {
		return nil
	}
	n := s.rng.IntN(5) + 1
	out := make([]Transaction, 0, n)
	for range n {
		if s.rng.Float64() > 0.5 {
			out = append(out, s.order())
		} else {
			out = append(out, s.liquidity())
		}
	}
	return out
}

func (s *Synthesizer) sender() string {
	return fmt.Sprintf("user_%d", s.rng.IntN(100))
}

func (s *Synthesizer) pair() SynthPair {
	return s.pairs[s.rng.IntN(len(s.pairs))]
}

func (s *Synthesizer) order() Transaction {
	p := s.pair()
	side := "sell"
	if s.rng.Float64() > 0.5 {
		side = "buy"
	}
	price := p.PriceMin + s.rng.Float64()*(p.PriceMax-p.PriceMin)
	body := OrderPayload{
		Pair:   p.Name,
		Side:   side,
		Amount: decimal.NewFromInt(int64(s.rng.IntN(1000) + 100)),
		Price:  decimal.NewFromFloat(price).Round(4),
	}
	return Transaction{
		Sender:    s.sender(),
		Recipient: string(ContractOrders),
		Contract:  ContractOrders,
		Payload:   mustPayload(KindPlaceOrder, body),
		Cost:      CostOrder,
	}
}

func (s *Synthesizer) liquidity() Transaction {
	p := s.pair()
	sender := s.sender()
	body := LiquidityPayload{
		Pair:     p.Name,
		AmountA:  float64(s.rng.IntN(10000) + 1000),
		AmountB:  float64(s.rng.IntN(1000) + 100),
		LPClaim:  float64(s.rng.IntN(500) + 50),
		Provider: sender,
	}
	return Transaction{
		Sender:    sender,
		Recipient: string(ContractLiquidity),
		Contract:  ContractLiquidity,
		Payload:   mustPayload(KindAddLiquidity, body),
		Cost:      CostLiquidity,
	}
}

// mustPayload is for bodies built from plain fields that cannot fail to encode.
func mustPayload(kind PayloadKind, body any) Payload {
	p, err := NewPayload(kind, body)
	if err != nil {
		panic(err)
	}
	return p
}
