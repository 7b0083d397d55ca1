// AngelaMos | 2026
// testdb.go

//go:build integration

// Package testdb starts a throwaway Postgres for integration tests and
// applies the embedded migrations to it.
package testdb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/carterperez-dev/entitlements/internal/core"
)

const image = "postgres:16-alpine"

func Start(t *testing.T) *sqlx.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("entitlements"),
		postgres.WithUsername("entitlements"),
		postgres.WithPassword("entitlements"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, core.Migrate(ctx, db.DB))

	return db
}

// Seed inserts rows with terse helpers; every method returns the new id.
type Seed struct {
	t  *testing.T
	db *sqlx.DB
}

func NewSeed(t *testing.T, db *sqlx.DB) *Seed {
	return &Seed{t: t, db: db}
}

func (s *Seed) exec(query string, args ...any) {
	s.t.Helper()
	_, err := s.db.Exec(query, args...)
	require.NoError(s.t, err)
}

func (s *Seed) Tier(name string, level int, downloadLimit *int) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO tiers (id, name, permission_level, download_limit) VALUES ($1, $2, $3, $4)`,
		id, name, level, downloadLimit)
	return id
}

func (s *Seed) User(role, tierID string) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO users (id, email, name, role, tier_id) VALUES ($1, $2, $3, $4, $5)`,
		id, id+"@example.test", "Test User", role, tierID)
	return id
}

func (s *Seed) Course(minimumTierID string) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO courses (id, title, minimum_tier_id) VALUES ($1, 'Course', $2)`,
		id, minimumTierID)
	return id
}

// Module accepts a nil course to model a module detached from its course.
func (s *Seed) Module(courseID *string) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO modules (id, course_id, title) VALUES ($1, $2, 'Module')`, id, courseID)
	return id
}

func (s *Seed) Lesson(moduleID *string) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO lessons (id, module_id, title) VALUES ($1, $2, 'Lesson')`, id, moduleID)
	return id
}

func (s *Seed) Attachment(lessonID *string, minimumTierID string) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO attachments (id, lesson_id, file_name, minimum_tier_id) VALUES ($1, $2, 'file.pdf', $3)`,
		id, lessonID, minimumTierID)
	return id
}

func (s *Seed) FileProduct(attachmentID string, active, shopOnly bool) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO file_products (id, attachment_id, is_active, is_shop_only, price_cents)
		VALUES ($1, $2, $3, $4, 900)`, id, attachmentID, active, shopOnly)
	return id
}

func (s *Seed) Purchase(userID, fileProductID string) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO purchases (id, user_id, file_product_id, stripe_payment_intent_id, amount_paid_cents)
		VALUES ($1, $2, $3, $4, 900)`, id, userID, fileProductID, "pi_"+id)
	return id
}

func (s *Seed) Bundle(attachmentIDs ...string) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO products (id, name, price_cents) VALUES ($1, 'Bundle', 4900)`, id)
	for _, a := range attachmentIDs {
		s.exec(`INSERT INTO product_attachments (product_id, attachment_id) VALUES ($1, $2)`, id, a)
	}
	return id
}

func (s *Seed) BundlePurchase(userID, productID string) string {
	id := uuid.NewString()
	s.exec(`INSERT INTO bundle_purchases (id, user_id, product_id, stripe_payment_intent_id, amount_paid_cents)
		VALUES ($1, $2, $3, $4, 4900)`, id, userID, productID, "pi_"+id)
	return id
}

func (s *Seed) Download(userID, attachmentID string, at time.Time) {
	s.exec(`INSERT INTO download_events (id, user_id, attachment_id, downloaded_at) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), userID, attachmentID, at)
}

func Ptr[T any](v T) *T {
	return &v
}
