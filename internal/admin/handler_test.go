// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/entitlement"
	"github.com/carterperez-dev/entitlements/internal/ledger"
	"github.com/carterperez-dev/entitlements/internal/quota"
)

const (
	userID       = "5f0c1c4e-8d7b-4c36-9f39-2b2d8f0c8a11"
	attachmentID = "0b8c7a4e-3c4d-4f51-9a55-0f4b7f0e9d21"
	courseID     = "7a1d2c3b-1111-4e2f-8a9b-5c6d7e8f9a0b"
)

type stubExplainer struct {
	attachment entitlement.Decision
	course     entitlement.Decision
	err        error
}

func (s stubExplainer) CheckAttachment(context.Context, string, string) (entitlement.Decision, error) {
	return s.attachment, s.err
}

func (s stubExplainer) CheckCourse(context.Context, string, string) (entitlement.Decision, error) {
	return s.course, s.err
}

type stubQuota struct {
	result quota.Result
}

func (s stubQuota) CanDownload(context.Context, string, string) (quota.Result, error) {
	return s.result, nil
}

type stubPurchases struct {
	individual []ledger.Purchase
}

func (s stubPurchases) ListPurchases(context.Context, string) ([]ledger.Purchase, error) {
	return s.individual, nil
}

func (s stubPurchases) ListBundlePurchases(context.Context, string) ([]ledger.BundlePurchase, error) {
	return nil, nil
}

func passthrough(next http.Handler) http.Handler { return next }

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r, passthrough, passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func TestExplainAttachment(t *testing.T) {
	limit := 5
	h := NewHandler(HandlerConfig{
		Explainer: stubExplainer{attachment: entitlement.Decision{
			Reason:        entitlement.ReasonCourseTier,
			RequiredLevel: 3,
			UserLevel:     1,
		}},
		Quota: stubQuota{result: quota.Result{
			Reason:  quota.ReasonNoAccess,
			Message: "no access",
			Limit:   &limit,
		}},
	})

	rec := serve(h, "/admin/entitlements/users/"+userID+"/attachments/"+attachmentID)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[AttachmentExplanation](t, rec)
	assert.Equal(t, entitlement.ReasonCourseTier, body.Decision.Reason)
	assert.Equal(t, 3, body.Decision.RequiredLevel)
	assert.Equal(t, 1, body.Decision.UserLevel)
	assert.Equal(t, quota.ReasonNoAccess, body.Download.Reason)
}

func TestExplainAttachment_BadIDs(t *testing.T) {
	h := NewHandler(HandlerConfig{Explainer: stubExplainer{}, Quota: stubQuota{}})

	assert.Equal(t, http.StatusBadRequest,
		serve(h, "/admin/entitlements/users/nope/attachments/"+attachmentID).Code)
	assert.Equal(t, http.StatusBadRequest,
		serve(h, "/admin/entitlements/users/"+userID+"/attachments/nope").Code)
}

func TestExplainCourse(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Explainer: stubExplainer{course: entitlement.Decision{Allowed: true, Grant: entitlement.GrantAdmin}},
	})

	rec := serve(h, "/admin/entitlements/users/"+userID+"/courses/"+courseID)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[CourseExplanation](t, rec)
	assert.True(t, body.Decision.Allowed)
	assert.Equal(t, entitlement.GrantAdmin, body.Decision.Grant)
}

func TestExplainCourse_StoreFailure(t *testing.T) {
	h := NewHandler(HandlerConfig{Explainer: stubExplainer{err: errors.New("timeout")}})

	rec := serve(h, "/admin/entitlements/users/"+userID+"/courses/"+courseID)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListPurchases(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Purchases: stubPurchases{individual: []ledger.Purchase{{ID: "p1", AttachmentID: attachmentID}}},
	})

	rec := serve(h, "/admin/entitlements/users/"+userID+"/purchases")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[PurchasesResponse](t, rec)
	require.Len(t, body.Purchases, 1)
	assert.Equal(t, attachmentID, body.Purchases[0].AttachmentID)
	assert.NotNil(t, body.BundlePurchases)
	assert.Empty(t, body.BundlePurchases)
}

func TestGetSystemStats(t *testing.T) {
	h := NewHandler(HandlerConfig{
		DBStats:    func() sql.DBStats { return sql.DBStats{OpenConnections: 4, InUse: 1} },
		RedisStats: func() core.RedisPoolStats { return core.RedisPoolStats{TotalConns: 2} },
		DBPing:     func(context.Context) error { return nil },
		RedisPing:  func(context.Context) error { return errors.New("down") },
	})

	rec := serve(h, "/admin/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[SystemStatsResponse](t, rec)
	assert.True(t, body.Database.Healthy)
	require.NotNil(t, body.Database.Stats)
	assert.Equal(t, 4, body.Database.Stats.OpenConnections)
	assert.False(t, body.Redis.Healthy)
	require.NotNil(t, body.Redis.Stats)
	assert.Equal(t, uint32(2), body.Redis.Stats.TotalConns)
	assert.NotEmpty(t, body.Runtime.GoVersion)
}
