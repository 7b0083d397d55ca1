// AngelaMos | 2026
// decision.go

package entitlement

// Reason says why a request was denied. Callers branch on it: unauthenticated
// goes to login, shop_only to the storefront, the tier reasons to an upgrade
// prompt.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNotFound        Reason = "not_found"
	ReasonShopOnly        Reason = "shop_only"
	ReasonCourseTier      Reason = "course_tier"
	ReasonAttachmentTier  Reason = "attachment_tier"
	ReasonNoPurchase      Reason = "no_purchase"
)

// Grant names the mechanism that admitted a request.
type Grant string

const (
	GrantNone               Grant = ""
	GrantAdmin              Grant = "admin"
	GrantIndividualPurchase Grant = "individual_purchase"
	GrantBundlePurchase     Grant = "bundle_purchase"
	GrantTier               Grant = "tier"
)

type Decision struct {
	Allowed       bool   `json:"allowed"`
	Grant         Grant  `json:"grant,omitempty"`
	Reason        Reason `json:"reason,omitempty"`
	RequiredLevel int    `json:"required_level,omitempty"`
	UserLevel     int    `json:"user_level,omitempty"`
}

func allow(g Grant) Decision {
	return Decision{Allowed: true, Grant: g}
}

func deny(r Reason) Decision {
	return Decision{Reason: r}
}

func denyTier(r Reason, required, have int) Decision {
	return Decision{Reason: r, RequiredLevel: required, UserLevel: have}
}

// Outcome is a low-cardinality label for metrics and logs.
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allow:" + string(d.Grant)
	}
	return "deny:" + string(d.Reason)
}
