package server

import (
	"github.com/aman-zulfiqar/private-swap/internal/compliance"
	"github.com/aman-zulfiqar/private-swap/internal/mints"
	"github.com/aman-zulfiqar/private-swap/internal/session"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"` // dev mode only
}

type HealthResponse struct {
	OK     bool                `json:"ok"`
	Wallet string              `json:"wallet"`
	Venue  session.VenueStatus `json:"venue"`
}

type MintsResponse struct {
	Mints    *mints.Config     `json:"mints"`
	Receipts []*submit.Receipt `json:"receipts,omitempty"`
}

type VenueRequest struct {
	Enabled bool `json:"enabled"`
}

type VenueResponse struct {
	Enabled bool                `json:"enabled"`
	Status  session.VenueStatus `json:"status"`
	Error   string              `json:"error,omitempty"`
}

// SwapRequest amounts are decimal strings in whole tokens ("1.5").
type SwapRequest struct {
	Amount string `json:"amount"`
	AToB   *bool  `json:"aToB"`
}

type RemoveLiquidityRequest struct {
	AmountA string `json:"amountA"`
	AmountB string `json:"amountB"`
}

type TransferRequest struct {
	Mint      string `json:"mint"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type ComplianceResponse struct {
	*compliance.Result
	Badge  string            `json:"badge"`
	Status compliance.Status `json:"status"`
}
