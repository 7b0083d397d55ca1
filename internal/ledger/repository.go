// AngelaMos | 2026
// repository.go

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/tier"
)

type Repository interface {
	HasIndividualPurchase(ctx context.Context, userID, attachmentID string) (bool, error)
	HasBundlePurchase(ctx context.Context, userID, attachmentID string) (bool, error)
	MonthlyDownloadCount(ctx context.Context, userID string, ym YearMonth) (int, error)
	RecordDownloadWithinLimit(
		ctx context.Context,
		userID, attachmentID string,
		at time.Time,
		limit *int,
	) (recorded bool, used int, err error)
	ListPurchases(ctx context.Context, userID string) ([]Purchase, error)
	ListBundlePurchases(ctx context.Context, userID string) ([]BundlePurchase, error)
}

type repository struct {
	db       *sqlx.DB
	attempts int
}

// NewRepository needs the pool itself rather than a core.DBTX because the
// download recorder opens its own serializable transactions.
func NewRepository(db *sqlx.DB, retryAttempts int) Repository {
	return &repository{db: db, attempts: retryAttempts}
}

func (r *repository) HasIndividualPurchase(
	ctx context.Context,
	userID, attachmentID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM purchases p
			JOIN file_products fp ON fp.id = p.file_product_id
			WHERE p.user_id = $1 AND fp.attachment_id = $2
		)`

	var owned bool
	if err := r.db.GetContext(ctx, &owned, query, userID, attachmentID); err != nil {
		return false, fmt.Errorf("check individual purchase: %w", err)
	}

	return owned, nil
}

func (r *repository) HasBundlePurchase(
	ctx context.Context,
	userID, attachmentID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM bundle_purchases bp
			JOIN product_attachments pa ON pa.product_id = bp.product_id
			WHERE bp.user_id = $1 AND pa.attachment_id = $2
		)`

	var owned bool
	if err := r.db.GetContext(ctx, &owned, query, userID, attachmentID); err != nil {
		return false, fmt.Errorf("check bundle purchase: %w", err)
	}

	return owned, nil
}

func (r *repository) MonthlyDownloadCount(
	ctx context.Context,
	userID string,
	ym YearMonth,
) (int, error) {
	count, err := countDownloads(ctx, r.db, userID, ym)
	if err != nil {
		return 0, fmt.Errorf("monthly download count: %w", err)
	}
	return count, nil
}

// RecordDownloadWithinLimit counts the month's downloads and appends a new
// event in one READ COMMITTED transaction. The advisory lock keyed by user
// and month is taken first; every statement after it reads a fresh snapshot,
// so concurrent recorders for the same user count one after another. A nil
// limit records unconditionally.
func (r *repository) RecordDownloadWithinLimit(
	ctx context.Context,
	userID, attachmentID string,
	at time.Time,
	limit *int,
) (bool, int, error) {
	ym := YearMonthOf(at)

	var (
		recorded bool
		used     int
	)

	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}

	err := core.InTxWithRetry(ctx, r.db, opts, r.attempts, func(tx *sqlx.Tx) error {
		recorded, used = false, 0

		if _, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1))`,
			downloadLockKey(userID, ym),
		); err != nil {
			return fmt.Errorf("acquire download lock: %w", err)
		}

		count, err := countDownloads(ctx, tx, userID, ym)
		if err != nil {
			return err
		}

		if !tier.Unlimited(limit) && count >= *limit {
			used = count
			return nil
		}

		if _, err := insertDownload(ctx, tx, userID, attachmentID, at); err != nil {
			return err
		}

		recorded, used = true, count+1
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("record download within limit: %w", err)
	}

	return recorded, used, nil
}

func (r *repository) ListPurchases(
	ctx context.Context,
	userID string,
) ([]Purchase, error) {
	query := `
		SELECT p.id, p.user_id, p.file_product_id, fp.attachment_id,
		       p.stripe_payment_intent_id, p.amount_paid_cents, p.purchased_at
		FROM purchases p
		JOIN file_products fp ON fp.id = p.file_product_id
		WHERE p.user_id = $1
		ORDER BY p.purchased_at DESC`

	var purchases []Purchase
	if err := r.db.SelectContext(ctx, &purchases, query, userID); err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	return purchases, nil
}

func (r *repository) ListBundlePurchases(
	ctx context.Context,
	userID string,
) ([]BundlePurchase, error) {
	query := `
		SELECT id, user_id, product_id, stripe_payment_intent_id,
		       amount_paid_cents, purchased_at
		FROM bundle_purchases
		WHERE user_id = $1
		ORDER BY purchased_at DESC`

	var purchases []BundlePurchase
	if err := r.db.SelectContext(ctx, &purchases, query, userID); err != nil {
		return nil, fmt.Errorf("list bundle purchases: %w", err)
	}

	return purchases, nil
}

func countDownloads(
	ctx context.Context,
	q core.DBTX,
	userID string,
	ym YearMonth,
) (int, error) {
	start, end := ym.Bounds()

	query := `
		SELECT COUNT(*)
		FROM download_events
		WHERE user_id = $1 AND downloaded_at >= $2 AND downloaded_at < $3`

	var count int
	if err := q.GetContext(ctx, &count, query, userID, start, end); err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}

	return count, nil
}

func insertDownload(
	ctx context.Context,
	q core.DBTX,
	userID, attachmentID string,
	at time.Time,
) (*DownloadEvent, error) {
	event := &DownloadEvent{
		ID:           uuid.New().String(),
		UserID:       userID,
		AttachmentID: attachmentID,
		DownloadedAt: at.UTC(),
	}

	query := `
		INSERT INTO download_events (id, user_id, attachment_id, downloaded_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := q.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		event.AttachmentID,
		event.DownloadedAt,
	); err != nil {
		if core.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf(
				"insert download: attachment %s: %w",
				attachmentID,
				core.ErrNotFound,
			)
		}
		return nil, fmt.Errorf("insert download: %w", err)
	}

	return event, nil
}

func downloadLockKey(userID string, ym YearMonth) string {
	return "downloads:" + userID + ":" + ym.String()
}
