// AngelaMos | 2026
// repository.go

package tier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/entitlements/internal/core"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Tier, error)
	List(ctx context.Context) ([]Tier, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id string) (*Tier, error) {
	query := `
		SELECT id, name, permission_level, download_limit, created_at, updated_at
		FROM tiers
		WHERE id = $1`

	var t Tier
	err := r.db.GetContext(ctx, &t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get tier: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tier: %w", err)
	}

	return &t, nil
}

// List returns every tier from least to most privileged.
func (r *repository) List(ctx context.Context) ([]Tier, error) {
	query := `
		SELECT id, name, permission_level, download_limit, created_at, updated_at
		FROM tiers
		ORDER BY permission_level ASC, name ASC`

	var tiers []Tier
	if err := r.db.SelectContext(ctx, &tiers, query); err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}

	return tiers, nil
}
