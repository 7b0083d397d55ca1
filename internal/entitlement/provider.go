// AngelaMos | 2026
// provider.go

package entitlement

import (
	"context"

	"github.com/carterperez-dev/entitlements/internal/catalog"
)

// Subject is the identity context of a caller as far as access decisions are
// concerned.
type Subject struct {
	UserID          string
	IsAdmin         bool
	PermissionLevel int
	DownloadLimit   *int
}

// Identity resolves a user id to a Subject. Unknown users must be reported
// with core.ErrNotFound.
type Identity interface {
	Subject(ctx context.Context, userID string) (*Subject, error)
}

type Catalog interface {
	AttachmentContext(ctx context.Context, attachmentID string) (*catalog.AttachmentContext, error)
	CourseMinimumLevel(ctx context.Context, courseID string) (int, error)
	IsShopOnly(ctx context.Context, attachmentID string) (bool, error)
}

type Ledger interface {
	HasIndividualPurchase(ctx context.Context, userID, attachmentID string) (bool, error)
	HasBundlePurchase(ctx context.Context, userID, attachmentID string) (bool, error)
}
