package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamza-javed/amm-settlement/internal/ai"
	"github.com/hamza-javed/amm-settlement/internal/server"
	"github.com/hamza-javed/amm-settlement/internal/service"
	"github.com/hamza-javed/amm-settlement/internal/settlement"
	"github.com/hamza-javed/amm-settlement/internal/token"
)

const (
	testAPIAddr = ":8091"
	testBaseURL = "http://localhost:8091"
	testAPIKey  = "test-api-key-integration"
)

const testPoolConfig = `[
  {
    "name": "ALPHA-BETA",
    "asset0": "ALPHA",
    "asset1": "BETA",
    "fee_numerator": 25,
    "fee_denominator": 10000,
    "reserve0": 1000000,
    "reserve1": 2000000
  }
]`

// setupIntegrationTest boots the full HTTP stack in-process: ledger, pools,
// adapter and server. No external infrastructure is required; accounts are
// funded through the dev-mode faucet.
func setupIntegrationTest(t *testing.T) (*server.Server, func()) {
	path := filepath.Join(t.TempDir(), "pools.json")
	require.NoError(t, os.WriteFile(path, []byte(testPoolConfig), 0o644))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	svc, err := service.NewService(service.Config{
		PoolConfigPath: path,
		GuardConfig:    settlement.GuardConfig{MaxAmountPerSwap: 500_000},
		Logger:         logger,
	})
	require.NoError(t, err)

	handlers := &server.Handlers{
		Service:      svc,
		AI:           nil,
		AIBaseConfig: ai.AgentConfig{},
		DevMode:      true,
		Logger:       logger,
	}

	srv := server.NewServer(handlers, server.ServerConfig{
		Addr:    testAPIAddr,
		DevMode: true,
		APIKey:  testAPIKey,
	})

	// Start server in background; Start returns nil on graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			t.Logf("Server error: %v", err)
		}
	}()

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = svc.Close()
	}

	return srv, cleanup
}

func makeRequest(t *testing.T, method, url string, body interface{}, expectedStatus int) *http.Response {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)

	assert.Equal(t, expectedStatus, resp.StatusCode, "Expected status %d, got %d", expectedStatus, resp.StatusCode)

	return resp
}

// fundPayer mints amount of asset to a fresh payer through the faucet
// endpoint and approves the adapter for the same amount.
func fundPayer(t *testing.T, asset string, amount uint64) string {
	payer := token.NewAddress("integration:payer").String()
	resp := makeRequest(t, http.MethodPost, testBaseURL+"/v1/accounts/fund", map[string]interface{}{
		"payer":   payer,
		"asset":   asset,
		"amount":  amount,
		"approve": true,
	}, http.StatusOK)
	defer resp.Body.Close()

	var funded server.FundResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&funded))
	assert.Equal(t, amount, funded.Allowance)
	return payer
}

func TestIntegration_Health(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	resp := makeRequest(t, http.MethodGet, testBaseURL+"/v1/health", nil, http.StatusOK)
	defer resp.Body.Close()

	var response server.HealthResponse
	err := json.NewDecoder(resp.Body).Decode(&response)
	require.NoError(t, err)

	assert.True(t, response.OK)
}

func TestIntegration_Pools(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	resp := makeRequest(t, http.MethodGet, testBaseURL+"/v1/pools", nil, http.StatusOK)
	defer resp.Body.Close()

	var response struct {
		Items []service.PoolSummary `json:"items"`
	}
	err := json.NewDecoder(resp.Body).Decode(&response)
	require.NoError(t, err)
	require.Len(t, response.Items, 1)

	pool := response.Items[0]
	assert.Equal(t, "ALPHA-BETA", pool.Name)
	assert.Equal(t, uint64(1_000_000), pool.Reserve0)
	assert.Equal(t, uint64(2_000_000), pool.Reserve1)
	assert.InDelta(t, 2.0, pool.Price, 1e-9)
}

func TestIntegration_Price(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	resp := makeRequest(t, http.MethodGet, testBaseURL+"/v1/prices/ALPHA-BETA", nil, http.StatusOK)
	defer resp.Body.Close()

	var price server.PriceResponse
	err := json.NewDecoder(resp.Body).Decode(&price)
	require.NoError(t, err)
	assert.Equal(t, "ALPHA-BETA", price.Pool)
	assert.InDelta(t, 2.0, price.Price, 1e-9)

	// Unknown pool
	resp = makeRequest(t, http.MethodGet, testBaseURL+"/v1/prices/NOPE", nil, http.StatusNotFound)
	resp.Body.Close()
}

func TestIntegration_Quote(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	resp := makeRequest(t, http.MethodPost, testBaseURL+"/v1/quote", map[string]interface{}{
		"asset_in":  "ALPHA",
		"asset_out": "BETA",
		"amount":    10000,
	}, http.StatusOK)
	defer resp.Body.Close()

	var quote service.QuoteResult
	err := json.NewDecoder(resp.Body).Decode(&quote)
	require.NoError(t, err)
	assert.Equal(t, "ALPHA-BETA", quote.Pool)
	assert.Equal(t, uint64(10000), quote.AmountIn)
	assert.Greater(t, quote.AmountOut, uint64(0))

	// Invalid pair
	resp = makeRequest(t, http.MethodPost, testBaseURL+"/v1/quote", map[string]interface{}{
		"asset_in":  "ALPHA",
		"asset_out": "ALPHA",
		"amount":    10000,
	}, http.StatusBadRequest)
	resp.Body.Close()
}

func TestIntegration_SwapLifecycle(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	payer := fundPayer(t, "ALPHA", 10_000)

	// Execute a swap against the funded account
	resp := makeRequest(t, http.MethodPost, testBaseURL+"/v1/swaps", map[string]interface{}{
		"asset_in":  "ALPHA",
		"asset_out": "BETA",
		"amount":    10_000,
		"payer":     payer,
	}, http.StatusOK)
	defer resp.Body.Close()

	var result service.SwapResult
	err := json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, "ALPHA-BETA", result.Pool)
	assert.Equal(t, int64(10_000), result.Delta0)
	assert.Negative(t, result.Delta1)
	assert.Less(t, result.Price, 2.0)

	// Pool reserves reflect the settled swap
	poolsResp := makeRequest(t, http.MethodGet, testBaseURL+"/v1/pools", nil, http.StatusOK)
	defer poolsResp.Body.Close()

	var pools struct {
		Items []service.PoolSummary `json:"items"`
	}
	require.NoError(t, json.NewDecoder(poolsResp.Body).Decode(&pools))
	require.Len(t, pools.Items, 1)
	assert.Equal(t, uint64(1_010_000), pools.Items[0].Reserve0)
}

func TestIntegration_SwapUnderfunded(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	// Funded but not approved: settlement cannot pull payment
	payer := token.NewAddress("integration:payer").String()
	resp := makeRequest(t, http.MethodPost, testBaseURL+"/v1/accounts/fund", map[string]interface{}{
		"payer":   payer,
		"asset":   "ALPHA",
		"amount":  10_000,
		"approve": false,
	}, http.StatusOK)
	resp.Body.Close()

	resp = makeRequest(t, http.MethodPost, testBaseURL+"/v1/swaps", map[string]interface{}{
		"asset_in":  "ALPHA",
		"asset_out": "BETA",
		"amount":    10_000,
		"payer":     payer,
	}, http.StatusPaymentRequired)
	defer resp.Body.Close()

	var errorResponse server.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errorResponse))
	assert.Equal(t, "settlement underfunded", errorResponse.Error)
}

func TestIntegration_SwapGuardRejected(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	payer := fundPayer(t, "ALPHA", 600_000)

	// Above the per-request guard cap configured in setup
	resp := makeRequest(t, http.MethodPost, testBaseURL+"/v1/swaps", map[string]interface{}{
		"asset_in":  "ALPHA",
		"asset_out": "BETA",
		"amount":    600_000,
		"payer":     payer,
	}, http.StatusForbidden)
	resp.Body.Close()
}

func TestIntegration_SwapEngineRejected(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	payer := fundPayer(t, "ALPHA", 100_000)

	// Price limit at the current spot price: the sale cannot hold it
	resp := makeRequest(t, http.MethodPost, testBaseURL+"/v1/swaps", map[string]interface{}{
		"asset_in":    "ALPHA",
		"asset_out":   "BETA",
		"amount":      100_000,
		"price_limit": 2.0,
		"payer":       payer,
	}, http.StatusConflict)
	resp.Body.Close()
}

func TestIntegration_SwapValidation(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	// Missing payer
	resp := makeRequest(t, http.MethodPost, testBaseURL+"/v1/swaps", map[string]interface{}{
		"asset_in":  "ALPHA",
		"asset_out": "BETA",
		"amount":    1000,
	}, http.StatusBadRequest)
	resp.Body.Close()

	// Settlements endpoint rejects out-of-range limits
	resp = makeRequest(t, http.MethodGet, testBaseURL+"/v1/settlements/recent?limit=500", nil, http.StatusBadRequest)
	defer resp.Body.Close()

	var errorResponse server.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errorResponse))
	assert.Contains(t, errorResponse.Error, "invalid limit")
}

func TestIntegration_SettlementsWithoutCache(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	// No Redis configured in this setup
	resp := makeRequest(t, http.MethodGet, testBaseURL+"/v1/settlements/recent", nil, http.StatusServiceUnavailable)
	resp.Body.Close()
}

func TestIntegration_Authentication(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	// Without API key
	req, err := http.NewRequest(http.MethodGet, testBaseURL+"/v1/health", nil)
	require.NoError(t, err)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With invalid API key
	req, err = http.NewRequest(http.MethodGet, testBaseURL+"/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "invalid-key")

	resp, err = client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_ErrorHandling(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	// 404 for non-existent endpoint
	resp := makeRequest(t, http.MethodGet, testBaseURL+"/v1/nonexistent", nil, http.StatusNotFound)
	defer resp.Body.Close()

	var errorResponse server.ErrorResponse
	err := json.NewDecoder(resp.Body).Decode(&errorResponse)
	require.NoError(t, err)
	assert.Equal(t, "not found", errorResponse.Error)
	assert.Equal(t, http.StatusNotFound, errorResponse.Code)
}

func TestIntegration_ConcurrentRequests(t *testing.T) {
	_, cleanup := setupIntegrationTest(t)
	defer cleanup()

	const numRequests = 50
	const numGoroutines = 10

	results := make(chan error, numRequests)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			for j := 0; j < numRequests/numGoroutines; j++ {
				resp := makeRequest(t, http.MethodGet, testBaseURL+"/v1/health", nil, http.StatusOK)
				resp.Body.Close()
				results <- nil
			}
		}()
	}

	// Collect all results
	for i := 0; i < numRequests; i++ {
		err := <-results
		assert.NoError(t, err)
	}
}
