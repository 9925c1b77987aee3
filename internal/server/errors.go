package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/private-swap/internal/compliance"
	"github.com/aman-zulfiqar/private-swap/internal/confidential"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
	"github.com/aman-zulfiqar/private-swap/internal/mints"
	"github.com/aman-zulfiqar/private-swap/internal/permission"
	"github.com/aman-zulfiqar/private-swap/internal/pool"
	"github.com/aman-zulfiqar/private-swap/internal/quote"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
	"github.com/aman-zulfiqar/private-swap/internal/swapengine"
	"github.com/aman-zulfiqar/private-swap/internal/wallet"
)

// NotFoundJSON keeps echo's own errors (404, 405, auth) in the ErrorResponse shape.
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

var statusByError = []struct {
	err  error
	code int
}{
	{derive.ErrInvalidAddress, http.StatusBadRequest},
	{quote.ErrInvalidAmount, http.StatusBadRequest},
	{mints.ErrNotFound, http.StatusNotFound},
	{pool.ErrNoMints, http.StatusNotFound},
	{swapengine.ErrPoolNotFound, http.StatusNotFound},
	{pool.ErrFlowInProgress, http.StatusConflict},
	{swapengine.ErrSuperseded, http.StatusConflict},
	{compliance.ErrBlocked, http.StatusForbidden},
	{confidential.ErrDecryptionDenied, http.StatusForbidden},
	{swapengine.ErrZeroQuote, http.StatusUnprocessableEntity},
	{swapengine.ErrRiskLimit, http.StatusUnprocessableEntity},
	{submit.ErrConfirmationPending, http.StatusAccepted},
	{permission.ErrAuthorizationFetch, http.StatusBadGateway},
	{compliance.ErrUnavailable, http.StatusServiceUnavailable},
	{wallet.ErrMissingSigner, http.StatusServiceUnavailable},
}

// statusFor maps a flow error to an HTTP status. Transaction failures that
// carry a diagnostic are reported as bad gateway.
func statusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	var subErr *submit.SubmitError
	if errors.As(err, &subErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
