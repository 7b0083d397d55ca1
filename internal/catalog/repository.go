// AngelaMos | 2026
// repository.go

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/entitlements/internal/core"
)

type Repository interface {
	GetLinkage(ctx context.Context, attachmentID string) (*Linkage, error)
	GetCourseMinimumLevel(ctx context.Context, courseID string) (int, error)
	IsShopOnly(ctx context.Context, attachmentID string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) GetLinkage(
	ctx context.Context,
	attachmentID string,
) (*Linkage, error) {
	query := `
		SELECT a.id AS attachment_id,
		       t.permission_level AS minimum_level,
		       a.lesson_id,
		       l.id AS lesson_ref,
		       m.id AS module_ref,
		       c.id AS course_ref
		FROM attachments a
		JOIN tiers t ON t.id = a.minimum_tier_id
		LEFT JOIN lessons l ON l.id = a.lesson_id
		LEFT JOIN modules m ON m.id = l.module_id
		LEFT JOIN courses c ON c.id = m.course_id
		WHERE a.id = $1`

	var l Linkage
	err := r.db.GetContext(ctx, &l, query, attachmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get attachment linkage: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment linkage: %w", err)
	}

	return &l, nil
}

func (r *repository) GetCourseMinimumLevel(
	ctx context.Context,
	courseID string,
) (int, error) {
	query := `
		SELECT t.permission_level
		FROM courses c
		JOIN tiers t ON t.id = c.minimum_tier_id
		WHERE c.id = $1`

	var level int
	err := r.db.GetContext(ctx, &level, query, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("get course minimum level: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get course minimum level: %w", err)
	}

	return level, nil
}

// IsShopOnly ignores is_active: a deactivated listing still withholds its
// attachment from tier-based access.
func (r *repository) IsShopOnly(
	ctx context.Context,
	attachmentID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM file_products
			WHERE attachment_id = $1 AND is_shop_only
		)`

	var shopOnly bool
	if err := r.db.GetContext(ctx, &shopOnly, query, attachmentID); err != nil {
		return false, fmt.Errorf("check shop only: %w", err)
	}

	return shopOnly, nil
}
