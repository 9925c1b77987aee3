package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes wires the v1 API
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/pool", h.PoolStatus)
	v1.GET("/reserves", h.Reserves)
	v1.GET("/quote", h.Quote)
	v1.GET("/mints", h.MintsShow)
	v1.PUT("/venue", h.VenueToggle)
	v1.GET("/events", h.RecentEvents)
	v1.GET("/compliance/:address", h.ComplianceCheck)

	// Everything below signs and sends transactions from the service wallet.
	perSec := cfg.TxPerSec
	if perSec <= 0 {
		perSec = 1
	}
	tx := v1.Group("")
	tx.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSec),
		Burst:     3,
		ExpiresIn: 2 * time.Minute,
	})))
	tx.POST("/mints", h.MintsCreate)
	tx.DELETE("/mints", h.MintsClear)
	tx.POST("/pool/setup", h.PoolSetup)
	tx.POST("/swap", h.Swap)
	tx.POST("/liquidity/remove", h.RemoveLiquidity)
	tx.POST("/transfer", h.Transfer)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
