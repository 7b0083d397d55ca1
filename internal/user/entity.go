// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID        string     `db:"id"`
	Email     string     `db:"email"`
	Name      string     `db:"name"`
	Role      string     `db:"role"`
	TierID    string     `db:"tier_id"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal is everything the access decisions need to know about a caller:
// the admin flag and the standing granted by their tier.
type Principal struct {
	UserID          string `db:"user_id"`
	Role            string `db:"role"`
	TierID          string `db:"tier_id"`
	TierName        string `db:"tier_name"`
	PermissionLevel int    `db:"permission_level"`
	DownloadLimit   *int   `db:"download_limit"`
}

func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
