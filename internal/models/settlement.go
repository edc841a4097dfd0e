package models

import "time"

// SettlementRecord is one settled (or failed) swap request, in the shape the
// cache, pub/sub channels and ClickHouse table all share.
type SettlementRecord struct {
	RequestID  string    `json:"request_id"`
	Timestamp  time.Time `json:"timestamp"`
	Pool       string    `json:"pool"`
	Pair       string    `json:"pair"`
	AssetIn    string    `json:"asset_in"`
	AssetOut   string    `json:"asset_out"`
	Payer      string    `json:"payer"`
	Delta0     int64     `json:"delta0"`
	Delta1     int64     `json:"delta1"`
	AmountIn   uint64    `json:"amount_in"`
	AmountOut  uint64    `json:"amount_out"`
	Price      float64   `json:"price"`
	FeeBps     uint16    `json:"fee_bps"`
	Settled    bool      `json:"settled"`
	FailReason string    `json:"fail_reason,omitempty"`
}
