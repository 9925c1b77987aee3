package server

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/cache"
	"github.com/aman-zulfiqar/private-swap/internal/compliance"
	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
	"github.com/aman-zulfiqar/private-swap/internal/permission"
	"github.com/aman-zulfiqar/private-swap/internal/pool"
	"github.com/aman-zulfiqar/private-swap/internal/quote"
	"github.com/aman-zulfiqar/private-swap/internal/session"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
	"github.com/aman-zulfiqar/private-swap/internal/swapengine"
)

// EventLog serves recent flow events. *cache.ClickHouseJournal implements it.
type EventLog interface {
	Recent(ctx context.Context, pool string, limit int) ([]*cache.Event, error)
}

// Handlers serves the API for the service wallet's session
type Handlers struct {
	Session    *session.Session
	Pool       *pool.Orchestrator
	Engine     *swapengine.Engine
	Router     *permission.Router
	Compliance *compliance.Client
	Events     EventLog // optional
	TxTimeout  time.Duration
	DevMode    bool
	Logger     *logrus.Logger
}

func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail reports a flow error. Known failures carry their own readable message;
// anything else is logged and reported generically.
func (h *Handlers) fail(c echo.Context, err error, fallback string, details any) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.Logger.WithError(err).WithField("path", c.Path()).Error(fallback)
		if details == nil {
			details = map[string]any{"err": err.Error()}
		}
		return h.err(c, code, fallback, details)
	}
	return h.err(c, code, err.Error(), details)
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) txContext(c echo.Context) (context.Context, context.CancelFunc) {
	d := h.TxTimeout
	if d <= 0 {
		d = 5 * time.Minute
	}
	return h.withTimeout(c.Request().Context(), d)
}

func (h *Handlers) Health(c echo.Context) error {
	status, _ := h.Session.VenueStatus()
	resp := HealthResponse{OK: true, Venue: status}
	if w := h.Session.Wallet(); w != nil {
		resp.Wallet = w.Address()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) PoolStatus(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	st, err := h.Pool.Probe(ctx, h.Session)
	if err != nil {
		return h.fail(c, err, "failed to probe pool", nil)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handlers) PoolSetup(c echo.Context) error {
	ctx, cancel := h.txContext(c)
	defer cancel()

	report, err := h.Pool.Setup(ctx, h.Session)
	if err != nil {
		var details any
		if report != nil {
			details = report
		}
		return h.fail(c, err, "pool setup failed", details)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handlers) MintsShow(c echo.Context) error {
	m, ok := h.Session.Mints()
	if !ok {
		return h.err(c, http.StatusNotFound, pool.ErrNoMints.Error(), nil)
	}
	return c.JSON(http.StatusOK, MintsResponse{Mints: &m})
}

func (h *Handlers) MintsCreate(c echo.Context) error {
	ctx, cancel := h.txContext(c)
	defer cancel()

	cfg, receipts, err := h.Pool.CreateMints(ctx, h.Session)
	if err != nil {
		return h.fail(c, err, "failed to create mints", map[string]any{"receipts": receipts})
	}
	return c.JSON(http.StatusCreated, MintsResponse{Mints: cfg, Receipts: receipts})
}

func (h *Handlers) MintsClear(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Pool.ClearMints(ctx, h.Session); err != nil {
		return h.fail(c, err, "failed to clear mints", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) VenueToggle(c echo.Context) error {
	var req VenueRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	h.Session.SetVenueEnabled(req.Enabled)
	h.Router.Prime(h.Session)

	status, err := h.Session.VenueStatus()
	resp := VenueResponse{Enabled: h.Session.VenueEnabled(), Status: status}
	if err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) Reserves(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	r, err := h.Engine.Reserves(ctx, h.Session)
	if err != nil {
		return h.fail(c, err, "failed to read reserves", nil)
	}
	return c.JSON(http.StatusOK, r)
}

// Quote takes ?amount=<whole tokens>&aToB=<bool, default true>. Quotes are
// debounced per session; a request replaced by a newer one gets 409.
func (h *Handlers) Quote(c echo.Context) error {
	amount, err := parseAmount(c.QueryParam("amount"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}
	aToB := true
	if v := strings.TrimSpace(c.QueryParam("aToB")); v != "" {
		if aToB, err = strconv.ParseBool(v); err != nil {
			return h.err(c, http.StatusBadRequest, "invalid aToB", map[string]any{"aToB": "must be a boolean"})
		}
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	q, err := h.Engine.RequestQuote(ctx, h.Session, amount, aToB)
	if err != nil {
		return h.fail(c, err, "failed to get quote", nil)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handlers) Swap(c echo.Context) error {
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}
	aToB := req.AToB == nil || *req.AToB

	ctx, cancel := h.txContext(c)
	defer cancel()

	exec, err := h.Engine.Swap(ctx, h.Session, swapengine.SwapRequest{AmountIn: amount, AToB: aToB})
	return h.execution(c, exec, err, "swap failed")
}

func (h *Handlers) RemoveLiquidity(c echo.Context) error {
	var req RemoveLiquidityRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	a, err := parseAmount(req.AmountA)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amountA", map[string]any{"amountA": err.Error()})
	}
	b, err := parseAmount(req.AmountB)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amountB", map[string]any{"amountB": err.Error()})
	}

	ctx, cancel := h.txContext(c)
	defer cancel()

	exec, err := h.Engine.RemoveLiquidity(ctx, h.Session, a, b)
	return h.execution(c, exec, err, "remove liquidity failed")
}

func (h *Handlers) Transfer(c echo.Context) error {
	var req TransferRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	mint, err := derive.ParseAddress(req.Mint)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": err.Error()})
	}
	recipient, err := derive.ParseAddress(req.Recipient)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid recipient", map[string]any{"recipient": err.Error()})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	ctx, cancel := h.txContext(c)
	defer cancel()

	exec, err := h.Engine.Transfer(ctx, h.Session, swapengine.TransferRequest{Mint: mint, Recipient: recipient, Amount: amount})
	return h.execution(c, exec, err, "transfer failed")
}

// execution answers 200 for a confirmed flow and 202 for one whose
// confirmation is still pending; the execution record is returned either way.
func (h *Handlers) execution(c echo.Context, exec *swapengine.Execution, err error, fallback string) error {
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, exec)
	case errors.Is(err, submit.ErrConfirmationPending):
		return c.JSON(http.StatusAccepted, exec)
	default:
		return h.fail(c, err, fallback, exec)
	}
}

func (h *Handlers) ComplianceCheck(c echo.Context) error {
	addr, err := derive.ParseAddress(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	r, err := h.Compliance.Check(ctx, addr.String())
	if err != nil {
		return h.fail(c, err, "compliance check failed", nil)
	}
	return c.JSON(http.StatusOK, ComplianceResponse{
		Result: r,
		Badge:  compliance.Badge(r.RiskScore),
		Status: compliance.Describe(r),
	})
}

// RecentEvents returns journaled flow events for the session's pool.
// Accepts limit (default 50, range 1-200).
func (h *Handlers) RecentEvents(c echo.Context) error {
	if h.Events == nil {
		return h.err(c, http.StatusBadRequest, "event journal is not configured", nil)
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	var poolAddr string
	if _, accts, err := h.Pool.Accounts(h.Session); err == nil {
		poolAddr = accts.Pool.String()
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Events.Recent(ctx, poolAddr, limit)
	if err != nil {
		return h.fail(c, err, "failed to get events", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func parseAmount(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("required")
	}
	return quote.ParseUIAmount(s, constants.ConfidentialDecimals)
}
