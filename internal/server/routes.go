package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = JSONErrorHandler(cfg.DevMode)

	// Apply global middleware
	e.Use(defaultHeaders) // JSON content type, caching disabled

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil // Simple string comparison
			},
		}))
	}

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)                         // Health check endpoint
	v1.GET("/pools", h.Pools)                           // Registered pools with reserves
	v1.GET("/prices/:pool", h.Price)                    // Pool spot price lookup
	v1.GET("/settlements/recent", h.RecentSettlements)  // Recent settlement records
	v1.POST("/quote", h.Quote)                          // Price a swap without executing

	// Dev-only faucet: the ledger is in-process, accounts are funded here
	if cfg.DevMode {
		v1.POST("/accounts/fund", h.FundAccount)
	}

	// Swap execution with rate limiting: settlement moves funds, so the
	// write path is throttled harder than the read endpoints.
	swapGroup := v1.Group("/swaps")
	swapGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(5),   // 5 requests per second
		Burst:     10,              // Allow burst of 10 requests
		ExpiresIn: 2 * time.Minute, // Rate limit window
	})))
	swapGroup.POST("", h.SwapExecute) // Execute swap with inline settlement

	// AI endpoints with stricter rate limiting
	aigroup := v1.Group("/ai")
	aigroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     2,               // Allow burst of 2 requests
		ExpiresIn: 2 * time.Minute, // Rate limit window
	})))
	aigroup.POST("/ask", h.AIAsk) // Natural language settlement analytics

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
