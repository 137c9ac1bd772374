package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Contract identifies the on-ledger program a transaction targets.
type Contract string

const (
	ContractOrders      Contract = "orders_contract"
	ContractLiquidity   Contract = "liquidity_contract"
	ContractPriceOracle Contract = "price_oracle_contract"
	ContractFaucet      Contract = "faucet_contract"
)

// OracleSender is the only identity whose price updates are honoured.
const OracleSender = "admin_oracle"

type PayloadKind string

const (
	KindPlaceOrder      PayloadKind = "place_order"
	KindCancelOrder     PayloadKind = "cancel_order"
	KindAddLiquidity    PayloadKind = "add_liquidity"
	KindRemoveLiquidity PayloadKind = "remove_liquidity"
	KindPriceUpdate     PayloadKind = "price_update"
	KindFaucetTransfer  PayloadKind = "faucet_transfer"
)

// Cost charged per contract, in abstract gas units.
const (
	CostOrder     int64 = 50_000
	CostLiquidity int64 = 75_000
	CostPrice     int64 = 25_000
	CostFaucet    int64 = 30_000
)

// Payload is the tagged union carried by a transaction. Data stays encoded
// until a consumer decodes it for the kind it expects.
type Payload struct {
	Kind PayloadKind     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewPayload(kind PayloadKind, body any) (Payload, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Payload{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Payload{Kind: kind, Data: raw}, nil
}

// Decode unmarshals the payload body into v.
func (p Payload) Decode(v any) error {
	if len(p.Data) == 0 {
		return fmt.Errorf("%s payload has no body", p.Kind)
	}
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", p.Kind, err)
	}
	return nil
}

type Transaction struct {
	Hash      string   `json:"hash"`
	Sender    string   `json:"sender"`
	Recipient string   `json:"recipient"`
	Contract  Contract `json:"contract"`
	Payload   Payload  `json:"payload"`
	Cost      int64    `json:"cost"`
}

// Block is immutable once produced.
type Block struct {
	Height       uint64        `json:"height"`
	Hash         string        `json:"hash"`
	ParentHash   string        `json:"parent_hash"`
	ProducedAt   time.Time     `json:"produced_at"`
	Transactions []Transaction `json:"transactions"`
}

// Cost returns the fee charged for a transaction to c, and false for an
// unknown contract.
func (c Contract) Cost() (int64, bool) {
	switch c {
	case ContractOrders:
		return CostOrder, true
	case ContractLiquidity:
		return CostLiquidity, true
	case ContractPriceOracle:
		return CostPrice, true
	case ContractFaucet:
		return CostFaucet, true
	default:
		return 0, false
	}
}
