// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/entitlement"
	"github.com/carterperez-dev/entitlements/internal/tier"
)

type Service struct {
	repo  Repository
	tiers tier.Repository
}

func NewService(repo Repository, tiers tier.Repository) *Service {
	return &Service{repo: repo, tiers: tiers}
}

// Principal resolves the caller's admin flag and tier standing. A missing or
// soft-deleted user yields core.ErrNotFound.
func (s *Service) Principal(
	ctx context.Context,
	userID string,
) (*Principal, error) {
	if userID == "" {
		return nil, fmt.Errorf("principal: %w", core.ErrUnauthorized)
	}

	return s.repo.GetPrincipal(ctx, userID)
}

func (s *Service) Subject(
	ctx context.Context,
	userID string,
) (*entitlement.Subject, error) {
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}

	return toSubject(p), nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetMe(
	ctx context.Context,
	userID string,
) (*User, *Principal, error) {
	if userID == "" {
		return nil, nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	p, err := s.repo.GetPrincipal(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	return u, p, nil
}

func (s *Service) UpdateUserRole(
	ctx context.Context,
	id, role string,
) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	return s.repo.UpdateRole(ctx, id, role)
}

// UpdateUserTier assigns an existing tier. An unknown tier id is reported as
// invalid input rather than not found so the handler does not confuse it
// with a missing user.
func (s *Service) UpdateUserTier(
	ctx context.Context,
	id, tierID string,
) (*User, error) {
	if _, err := s.tiers.GetByID(ctx, tierID); err != nil {
		if core.IsNotFound(err) {
			return nil, fmt.Errorf(
				"update tier: unknown tier %q: %w",
				tierID,
				core.ErrInvalidInput,
			)
		}
		return nil, err
	}

	return s.repo.UpdateTier(ctx, id, tierID)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) ListTiers(ctx context.Context) ([]tier.Tier, error) {
	return s.tiers.List(ctx)
}

func toSubject(p *Principal) *entitlement.Subject {
	return &entitlement.Subject{
		UserID:          p.UserID,
		IsAdmin:         p.IsAdmin(),
		PermissionLevel: p.PermissionLevel,
		DownloadLimit:   p.DownloadLimit,
	}
}

var _ entitlement.Identity = (*Service)(nil)
