package pool

import (
	"github.com/aman-zulfiqar/private-swap/internal/derive"
	"github.com/aman-zulfiqar/private-swap/internal/mints"
	"github.com/aman-zulfiqar/private-swap/internal/permission"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
)

// Stage is a step of the pool lifecycle.
type Stage string

const (
	StageNoMints              Stage = "no_mints"
	StageMintsReady           Stage = "mints_ready"
	StageAccountsPending      Stage = "accounts_pending"
	StagePoolInitializing     Stage = "pool_initializing"
	StageLiquiditySeeding     Stage = "liquidity_seeding"
	StagePermissionDelegating Stage = "permission_delegating"
	StageLiquidityAdding      Stage = "liquidity_adding"
	StageReady                Stage = "ready"
)

var stageMessages = map[Stage]string{
	StageNoMints:              "Create or configure confidential mints first.",
	StageMintsReady:           "Mints ready. Pool not initialized.",
	StageAccountsPending:      "Creating confidential token accounts...",
	StagePoolInitializing:     "Initializing confidential pool...",
	StageLiquiditySeeding:     "Seeding liquidity balances...",
	StagePermissionDelegating: "Delegating permissions to the execution venue...",
	StageLiquidityAdding:      "Adding liquidity...",
	StageReady:                "Pool ready for confidential swaps.",
}

// Message is the human-readable status for s.
func (s Stage) Message() string {
	if m, ok := stageMessages[s]; ok {
		return m
	}
	return string(s)
}

// Status is the result of Probe.
type Status struct {
	Stage        Stage            `json:"stage"`
	Message      string           `json:"message"`
	Mints        *mints.Config    `json:"mints,omitempty"`
	Accounts     *derive.Accounts `json:"accounts,omitempty"`
	PoolExists   bool             `json:"poolExists"`
	Funded       bool             `json:"funded"`
	VenueEnabled bool             `json:"venueEnabled"`
	Undelegated  []string         `json:"undelegated,omitempty"`
}

// SetupReport summarizes one Setup run.
type SetupReport struct {
	RunID       string             `json:"runId"`
	Stage       Stage              `json:"stage"`
	Accounts    *derive.Accounts   `json:"accounts"`
	PoolCreated bool               `json:"poolCreated"`
	UnderFunded bool               `json:"underFunded"`
	Delegation  *permission.Result `json:"delegation,omitempty"`
	Receipts    []*submit.Receipt  `json:"receipts"`
	Warnings    []string           `json:"warnings,omitempty"`
}

func (r *SetupReport) add(receipts ...*submit.Receipt) {
	for _, rc := range receipts {
		if rc != nil {
			r.Receipts = append(r.Receipts, rc)
		}
	}
}
