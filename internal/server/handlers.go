package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/hamza-javed/amm-settlement/internal/ai"
	"github.com/hamza-javed/amm-settlement/internal/service"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Service      *service.Service // Settlement orchestrator
	AI           *ai.Agent        // AI agent for natural language queries
	AIBaseConfig ai.AgentConfig   // Base configuration for AI agents
	DevMode      bool             // Enable detailed error responses in development
	Timeout      time.Duration    // Default per-request budget (HTTP_TIMEOUT)
	Logger       *logrus.Logger   // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context bounded by d. Pass d <= 0 to use the
// configured per-request budget (falling back to 10 seconds when unset).
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = h.Timeout
	}
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// SwapExecute submits a swap request for execution and inline settlement.
// Failure classes map onto distinct status codes so clients can tell an
// engine rejection from a funding problem.
func (h *Handlers) SwapExecute(c echo.Context) error {
	var req service.SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if strings.TrimSpace(req.Payer) == "" {
		return h.err(c, http.StatusBadRequest, "payer is required", map[string]any{"payer": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 0)
	defer cancel()

	res, err := h.Service.ExecuteSwap(ctx, &req)
	if err != nil {
		code, msg := swapFailure(err)
		return h.err(c, code, msg, map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, res)
}

// Quote prices a swap request without executing it
func (h *Handlers) Quote(c echo.Context) error {
	var req service.SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Service.Quote(ctx, &req)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "quote failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, out)
}

// RecentSettlements returns the most recent settlement records with optional limit parameter
// Accepts limit query parameter (default: 100, range: 1-200)
func (h *Handlers) RecentSettlements(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Service.RecentSettlements(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusServiceUnavailable, "failed to get settlements", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Pools returns all registered pools with reserves and spot prices
func (h *Handlers) Pools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": h.Service.Pools()})
}

// Price returns the current spot price for a pool
func (h *Handlers) Price(c echo.Context) error {
	pool := strings.TrimSpace(c.Param("pool"))
	if pool == "" {
		return h.err(c, http.StatusBadRequest, "invalid pool", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	price, err := h.Service.PoolPrice(ctx, pool)
	if err != nil {
		return h.err(c, http.StatusNotFound, "pool not found", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, PriceResponse{Pool: pool, Price: price})
}

// FundAccount mints a configured asset to a payer and optionally grants the
// settlement adapter an allowance. Dev mode only; registered behind the
// DevMode flag in RegisterRoutes.
func (h *Handlers) FundAccount(c echo.Context) error {
	var req FundRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if strings.TrimSpace(req.Payer) == "" || strings.TrimSpace(req.Asset) == "" {
		return h.err(c, http.StatusBadRequest, "payer and asset are required", nil)
	}
	if req.Amount == 0 {
		return h.err(c, http.StatusBadRequest, "amount must be > 0", nil)
	}

	balance, allowance, err := h.Service.FundAccount(req.Payer, req.Asset, req.Amount, req.Approve)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "funding failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, FundResponse{Payer: req.Payer, Asset: req.Asset, Balance: balance, Allowance: allowance})
}

// AIAsk processes natural language questions about settlement data using AI
// Supports optional model override for one-off requests
// Returns SQL query and answer with execution time
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	// A model override runs on a one-shot agent; otherwise the shared one
	var res *ai.AskResult
	var err error
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AIBaseConfig
		cfg.Model = m
		res, err = ai.AskOnce(ctx, cfg, req.Question)
	} else {
		res, err = h.AI.Ask(ctx, req.Question)
	}
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AIAskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}
