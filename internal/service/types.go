package service

import (
	"time"

	"github.com/hamza-javed/amm-settlement/internal/models"
)

// SwapRequest is a caller's swap submission. Amount is signed: positive means
// exact-input (sell exactly Amount of AssetIn), negative means exact-output
// (receive exactly -Amount of AssetOut). A request is immutable once
// submitted.
type SwapRequest struct {
	// Pool selection: explicit pool name, or resolved from the asset pair.
	Pool     string `json:"pool,omitempty"`
	AssetIn  string `json:"asset_in"`
	AssetOut string `json:"asset_out"`

	Amount     int64   `json:"amount"`
	PriceLimit float64 `json:"price_limit,omitempty"` // 0 = no limit

	// Payer is the base58 address whose allowance funds the settlement.
	Payer string `json:"payer"`
}

// QuoteResult contains detailed quote information without executing.
type QuoteResult struct {
	Pool          string    `json:"pool"`
	AmountIn      uint64    `json:"amount_in"`
	AmountOut     uint64    `json:"amount_out"`
	MinAmountOut  uint64    `json:"min_amount_out"`
	PriceImpact   float64   `json:"price_impact"`
	FeeBps        uint16    `json:"fee_bps"`
	ReserveIn     uint64    `json:"reserve_in"`
	ReserveOut    uint64    `json:"reserve_out"`
	ExecutionRate float64   `json:"execution_rate"` // output per input
	QuotedAt      time.Time `json:"quoted_at"`
}

// SwapResult is the final result returned to the caller.
type SwapResult struct {
	RequestID string        `json:"request_id"`
	Pool      string        `json:"pool"`
	Pair      string        `json:"pair"`
	Delta0    int64         `json:"delta0"`
	Delta1    int64         `json:"delta1"`
	Price     float64       `json:"price"`
	Duration  time.Duration `json:"duration"`

	Record *models.SettlementRecord `json:"record,omitempty"`
}

// PoolSummary describes one registered pool for API consumers.
type PoolSummary struct {
	Name     string  `json:"name"`
	Asset0   string  `json:"asset0"`
	Asset1   string  `json:"asset1"`
	Reserve0 uint64  `json:"reserve0"`
	Reserve1 uint64  `json:"reserve1"`
	FeeBps   uint16  `json:"fee_bps"`
	Price    float64 `json:"price"`
}
