// AngelaMos | 2026
// dto.go

package access

import (
	"github.com/carterperez-dev/entitlements/internal/entitlement"
	"github.com/carterperez-dev/entitlements/internal/quota"
)

// DecisionResponse is the caller-facing view of a decision. Tier levels are
// withheld; the admin explain endpoint returns them.
type DecisionResponse struct {
	Allowed bool               `json:"allowed"`
	Grant   entitlement.Grant  `json:"grant,omitempty"`
	Reason  entitlement.Reason `json:"reason,omitempty"`
}

type DownloadResponse struct {
	Allowed bool         `json:"allowed"`
	Reason  quota.Reason `json:"reason,omitempty"`
	Message string       `json:"message,omitempty"`
	Limit   *int         `json:"limit"`
	Used    int          `json:"used"`
}

func ToDecisionResponse(d entitlement.Decision) DecisionResponse {
	return DecisionResponse{
		Allowed: d.Allowed,
		Grant:   d.Grant,
		Reason:  d.Reason,
	}
}

func ToDownloadResponse(r quota.Result) DownloadResponse {
	return DownloadResponse{
		Allowed: r.Allowed,
		Reason:  r.Reason,
		Message: r.Message,
		Limit:   r.Limit,
		Used:    r.Used,
	}
}
