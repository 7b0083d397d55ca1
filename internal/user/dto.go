// AngelaMos | 2026
// dto.go

package user

import (
	"time"

	"github.com/carterperez-dev/entitlements/internal/tier"
)

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type UpdateUserTierRequest struct {
	TierID string `json:"tier_id" validate:"required,uuid"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	TierID    string    `json:"tier_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StandingResponse struct {
	TierID          string `json:"tier_id"`
	TierName        string `json:"tier_name"`
	PermissionLevel int    `json:"permission_level"`
	DownloadLimit   *int   `json:"download_limit"`
	Unlimited       bool   `json:"unlimited_downloads"`
	IsAdmin         bool   `json:"is_admin"`
}

type MeResponse struct {
	User     UserResponse     `json:"user"`
	Standing StandingResponse `json:"standing"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
	TierID   string `json:"tier_id"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		TierID:    u.TierID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func ToStandingResponse(p *Principal) StandingResponse {
	return StandingResponse{
		TierID:          p.TierID,
		TierName:        p.TierName,
		PermissionLevel: p.PermissionLevel,
		DownloadLimit:   p.DownloadLimit,
		Unlimited:       tier.Unlimited(p.DownloadLimit),
		IsAdmin:         p.IsAdmin(),
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, ToUserResponse(&u))
	}
	return responses
}
