// AngelaMos | 2026
// entity.go

package tier

import (
	"time"
)

type Tier struct {
	ID              string    `db:"id"               json:"id"`
	Name            string    `db:"name"             json:"name"`
	PermissionLevel int       `db:"permission_level" json:"permission_level"`
	DownloadLimit   *int      `db:"download_limit"   json:"download_limit"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}

// Unlimited reports whether a download limit imposes no monthly ceiling.
func Unlimited(downloadLimit *int) bool {
	return downloadLimit == nil
}

// Satisfies is the single tier comparison used across the service. Higher
// tiers are supersets of lower ones.
func Satisfies(userLevel, requiredLevel int) bool {
	return userLevel >= requiredLevel
}
