package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hamza-javed/amm-settlement/internal/service"
	"github.com/hamza-javed/amm-settlement/internal/settlement"
	"github.com/hamza-javed/amm-settlement/internal/token"
)

// swapFailure maps a failed swap execution onto an HTTP status and a stable
// client-facing message. A protocol violation means the adapter and engine
// disagreed; no client retry can fix that class.
func swapFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrGuardRejected):
		return http.StatusForbidden, "request rejected by guard"
	case errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "settlement underfunded"
	case errors.Is(err, settlement.ErrEngineRejected):
		return http.StatusConflict, "engine rejected swap"
	case errors.Is(err, settlement.ErrUnauthorizedSettlement),
		errors.Is(err, settlement.ErrInvalidDeltas),
		errors.Is(err, settlement.ErrSettlementReplayed):
		return http.StatusBadGateway, "settlement protocol violation"
	default:
		return http.StatusBadRequest, "swap failed"
	}
}

// JSONErrorHandler renders every error echo surfaces, middleware failures
// included, as the same ErrorResponse envelope the handlers use. In dev mode
// the underlying error message is attached for debugging.
func JSONErrorHandler(devMode bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = http.StatusText(he.Code)
		}

		resp := ErrorResponse{Error: msg, Code: code}
		if devMode {
			resp.Details = map[string]any{"err": err.Error()}
		}
		_ = c.JSON(code, resp)
	}
}
