package compliance

import (
	"fmt"
	"time"
)

// Risk levels reported by the risk API
const (
	RiskCritical      = "CRITICAL RISK (Directly malicious)"
	RiskExtremelyHigh = "Extremely high risk"
	RiskHigh          = "High risk"
	RiskMedium        = "Medium risk"
	RiskLow           = "Low risk"
	RiskVeryLow       = "Very low risk"
)

// MaliciousEvidence is one flagged address found near the checked one.
type MaliciousEvidence struct {
	Address  string  `json:"address"`
	Distance int     `json:"distance"`
	NameTag  *string `json:"name_tag"`
	Entity   *string `json:"entity"`
	Category string  `json:"category"`
}

type Attribution struct {
	NameTag     string `json:"name_tag"`
	Entity      string `json:"entity"`
	Category    string `json:"category"`
	AddressRole string `json:"address_role"`
}

type riskResponse struct {
	RiskScore               int                 `json:"riskScore"`
	RiskLevel               string              `json:"riskLevel"`
	NumHops                 int                 `json:"numHops"`
	MaliciousAddressesFound []MaliciousEvidence `json:"maliciousAddressesFound"`
	Reasoning               string              `json:"reasoning"`
	Attribution             *Attribution        `json:"attribution"`
}

// Result is the outcome of a compliance check.
type Result struct {
	Address              string              `json:"address"`
	IsCompliant          bool                `json:"isCompliant"`
	RiskScore            int                 `json:"riskScore"`
	RiskLevel            string              `json:"riskLevel"`
	Reasoning            string              `json:"reasoning"`
	IsSanctioned         bool                `json:"isSanctioned"`
	MaliciousConnections []MaliciousEvidence `json:"maliciousConnections"`
	CheckedAt            time.Time           `json:"checkedAt"`
}

var sanctionedCategories = map[string]bool{
	"sanctions":           true,
	"hack_funds":          true,
	"terrorism_financing": true,
}

// sanctioned reports direct (distance 0) evidence in a sanctioned category.
func sanctioned(evidence []MaliciousEvidence) bool {
	for _, m := range evidence {
		if m.Distance == 0 && sanctionedCategories[m.Category] {
			return true
		}
	}
	return false
}

// Badge returns the short risk label for a score.
func Badge(score int) string {
	switch {
	case score <= 2:
		return "Low Risk"
	case score <= 4:
		return "Medium Risk"
	case score <= 6:
		return "High Risk"
	default:
		return "Critical Risk"
	}
}

// Status is the display form of a Result.
type Status struct {
	Text        string `json:"text"`
	Description string `json:"description"`
}

func Describe(r *Result) Status {
	switch {
	case r.IsSanctioned:
		return Status{Text: "Sanctioned", Description: "This address appears on sanctions lists and cannot swap."}
	case !r.IsCompliant:
		return Status{
			Text:        "High Risk",
			Description: fmt.Sprintf("Risk score %d/10 exceeds threshold. %s", r.RiskScore, r.Reasoning),
		}
	default:
		return Status{
			Text:        "Compliant",
			Description: fmt.Sprintf("Risk score %d/10. %s", r.RiskScore, r.Reasoning),
		}
	}
}
