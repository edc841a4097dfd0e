package server

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"` // Service health status
}

// PriceResponse represents a pool spot price
type PriceResponse struct {
	Pool  string  `json:"pool"`  // Pool name
	Price float64 `json:"price"` // Spot price, asset1 per asset0
}

// FundRequest mints an asset to a payer (dev mode only)
type FundRequest struct {
	Payer   string `json:"payer"`   // Base58 payer address
	Asset   string `json:"asset"`   // Configured asset symbol
	Amount  uint64 `json:"amount"`  // Amount to mint, base units
	Approve bool   `json:"approve"` // Also grant the adapter an allowance
}

// FundResponse reports post-funding balances
type FundResponse struct {
	Payer     string `json:"payer"`
	Asset     string `json:"asset"`
	Balance   uint64 `json:"balance"`
	Allowance uint64 `json:"allowance"` // Allowance granted to the settlement adapter
}

// AIAskRequest represents a natural language query request
type AIAskRequest struct {
	Question string `json:"question"` // Natural language question about settlement data
	Model    string `json:"model"`    // Optional AI model override
}

// AIAskResponse represents the response from an AI query
type AIAskResponse struct {
	SQL    string `json:"sql"`     // Generated SQL query
	Answer string `json:"answer"`  // Natural language answer
	TookMs int64  `json:"took_ms"` // Execution time in milliseconds
}
