package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPayload is the body of place_order and cancel_order.
type OrderPayload struct {
	Pair    string          `json:"tokenPair"`
	Side    string          `json:"orderType,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	Price   decimal.Decimal `json:"price"`
	OrderID string          `json:"orderId,omitempty"`
}

// LiquidityPayload is the body of add_liquidity and remove_liquidity.
type LiquidityPayload struct {
	Pair       string  `json:"tokenPair"`
	AmountA    float64 `json:"tokenAAmount"`
	AmountB    float64 `json:"tokenBAmount"`
	LPClaim    float64 `json:"lpTokens"`
	PositionID string  `json:"positionId,omitempty"`
	Provider   string  `json:"provider,omitempty"`
}

// PricePayload is the body of price_update.
type PricePayload struct {
	Pair       string    `json:"tokenPair"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"timestamp"`
	Volume24h  float64   `json:"volume24h"`
	Change24h  float64   `json:"change24h"`
	Confidence float64   `json:"confidence"`
}

// FaucetPayload is the body of faucet_transfer. The core never classifies it.
type FaucetPayload struct {
	Token     string    `json:"token"`
	Amount    float64   `json:"amount"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"timestamp"`
}
