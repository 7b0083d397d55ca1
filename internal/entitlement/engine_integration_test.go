// AngelaMos | 2026
// engine_integration_test.go

//go:build integration

package entitlement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlements/internal/catalog"
	"github.com/carterperez-dev/entitlements/internal/entitlement"
	"github.com/carterperez-dev/entitlements/internal/ledger"
	"github.com/carterperez-dev/entitlements/internal/testdb"
	"github.com/carterperez-dev/entitlements/internal/tier"
	"github.com/carterperez-dev/entitlements/internal/user"
)

func TestEngine_Postgres(t *testing.T) {
	db := testdb.Start(t)
	seed := testdb.NewSeed(t, db)
	ctx := context.Background()

	identity := user.NewService(user.NewRepository(db), tier.NewRepository(db))
	resolver := catalog.NewResolver(catalog.NewRepository(db), nil)
	engine := entitlement.NewEngine(identity, resolver, ledger.NewRepository(db, 3), nil)

	free := seed.Tier("free", 0, testdb.Ptr(2))
	basic := seed.Tier("basic", 1, testdb.Ptr(5))
	pro := seed.Tier("pro", 2, nil)
	elite := seed.Tier("elite", 3, nil)

	student := seed.User("user", basic)
	member := seed.User("user", pro)
	admin := seed.User("admin", free)

	course := seed.Course(pro)
	module := seed.Module(&course)
	lesson := seed.Lesson(&module)
	handout := seed.Attachment(&lesson, basic)

	hardCourse := seed.Course(elite)
	hardModule := seed.Module(&hardCourse)
	hardLesson := seed.Lesson(&hardModule)
	hardHandout := seed.Attachment(&hardLesson, basic)

	detached := seed.Module(nil)
	orphanLesson := seed.Lesson(&detached)
	orphan := seed.Attachment(&orphanLesson, basic)

	library := seed.Attachment(nil, basic)

	workbook := seed.Attachment(nil, free)
	seed.Purchase(student, seed.FileProduct(workbook, false, true))

	bundled := seed.Attachment(&hardLesson, elite)
	seed.BundlePurchase(student, seed.Bundle(bundled))

	tests := []struct {
		name       string
		userID     string
		attachment string
		allowed    bool
		reason     entitlement.Reason
	}{
		{"tier allow", member, handout, true, entitlement.ReasonNone},
		{"course gate", student, hardHandout, false, entitlement.ReasonCourseTier},
		{"dangling parent uses attachment gate", student, orphan, true, entitlement.ReasonNone},
		{"course-less attachment", student, library, true, entitlement.ReasonNone},
		{"shop-only beats purchase", student, workbook, false, entitlement.ReasonShopOnly},
		{"bundle below tier", student, bundled, true, entitlement.ReasonNone},
		{"admin on free tier", admin, hardHandout, true, entitlement.ReasonNone},
		{"unknown attachment", member, "0b8c7a4e-3c4d-4f51-9a55-0f4b7f0e9d21", false, entitlement.ReasonNotFound},
		{"unknown user", "5f0c1c4e-8d7b-4c36-9f39-2b2d8f0c8a11", handout, false, entitlement.ReasonUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := engine.CheckAttachment(ctx, tt.userID, tt.attachment)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}

	t.Run("storefront admits the shop-only buyer", func(t *testing.T) {
		d, err := engine.CheckStorefrontAttachment(ctx, student, workbook)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, entitlement.GrantIndividualPurchase, d.Grant)
	})

	t.Run("course access", func(t *testing.T) {
		ok, err := engine.CanAccessCourse(ctx, member, course)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = engine.CanAccessCourse(ctx, student, course)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
