// AngelaMos | 2026
// handler_test.go

package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/entitlement"
	"github.com/carterperez-dev/entitlements/internal/middleware"
	"github.com/carterperez-dev/entitlements/internal/quota"
)

const (
	attachmentID = "0b8c7a4e-3c4d-4f51-9a55-0f4b7f0e9d21"
	courseID     = "7a1d2c3b-1111-4e2f-8a9b-5c6d7e8f9a0b"
	userID       = "5f0c1c4e-8d7b-4c36-9f39-2b2d8f0c8a11"
)

type mockDecider struct {
	mock.Mock
}

func (m *mockDecider) CheckAttachment(ctx context.Context, u, a string) (entitlement.Decision, error) {
	args := m.Called(ctx, u, a)
	return args.Get(0).(entitlement.Decision), args.Error(1)
}

func (m *mockDecider) CheckStorefrontAttachment(ctx context.Context, u, a string) (entitlement.Decision, error) {
	args := m.Called(ctx, u, a)
	return args.Get(0).(entitlement.Decision), args.Error(1)
}

func (m *mockDecider) CheckCourse(ctx context.Context, u, c string) (entitlement.Decision, error) {
	args := m.Called(ctx, u, c)
	return args.Get(0).(entitlement.Decision), args.Error(1)
}

type mockQuota struct {
	mock.Mock
}

func (m *mockQuota) CanDownload(ctx context.Context, u, a string) (quota.Result, error) {
	args := m.Called(ctx, u, a)
	return args.Get(0).(quota.Result), args.Error(1)
}

func (m *mockQuota) RecordDownload(ctx context.Context, u, a string) (quota.Result, error) {
	args := m.Called(ctx, u, a)
	return args.Get(0).(quota.Result), args.Error(1)
}

// asUser stands in for token verification: requests carrying an
// X-Test-User header are treated as authenticated.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			r = r.WithContext(middleware.WithUser(r.Context(), id, "user"))
		}
		next.ServeHTTP(w, r)
	})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRouter(d *mockDecider, q *mockQuota) http.Handler {
	r := chi.NewRouter()
	NewHandler(d, q).RegisterRoutes(r, asUser, asUser, Limits{})
	return r
}

func do(t *testing.T, h http.Handler, method, path, user string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestAttachmentAccess(t *testing.T) {
	d := new(mockDecider)
	d.On("CheckAttachment", mock.Anything, userID, attachmentID).
		Return(entitlement.Decision{Allowed: false, Reason: entitlement.ReasonShopOnly}, nil)
	d.On("CheckAttachment", mock.Anything, "", attachmentID).
		Return(entitlement.Decision{Reason: entitlement.ReasonUnauthenticated}, nil)

	h := newRouter(d, new(mockQuota))

	rec, env := do(t, h, http.MethodGet, "/attachments/"+attachmentID+"/access", userID)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body DecisionResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.False(t, body.Allowed)
	assert.Equal(t, entitlement.ReasonShopOnly, body.Reason)

	_, env = do(t, h, http.MethodGet, "/attachments/"+attachmentID+"/access", "")
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, entitlement.ReasonUnauthenticated, body.Reason)
}

func TestAttachmentAccess_InvalidID(t *testing.T) {
	d := new(mockDecider)
	h := newRouter(d, new(mockQuota))

	rec, env := do(t, h, http.MethodGet, "/attachments/not-a-uuid/access", userID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid attachment id", env.Error.Message)
	d.AssertNotCalled(t, "CheckAttachment", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttachmentAccess_StoreFailure(t *testing.T) {
	d := new(mockDecider)
	d.On("CheckAttachment", mock.Anything, userID, attachmentID).
		Return(entitlement.Decision{}, errors.New("connection reset"))

	rec, _ := do(t, newRouter(d, new(mockQuota)), http.MethodGet,
		"/attachments/"+attachmentID+"/access", userID)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStorefrontAccess(t *testing.T) {
	d := new(mockDecider)
	d.On("CheckStorefrontAttachment", mock.Anything, userID, attachmentID).
		Return(entitlement.Decision{Allowed: true, Grant: entitlement.GrantIndividualPurchase}, nil)

	rec, env := do(t, newRouter(d, new(mockQuota)), http.MethodGet,
		"/attachments/"+attachmentID+"/storefront-access", userID)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body DecisionResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.True(t, body.Allowed)
	assert.Equal(t, entitlement.GrantIndividualPurchase, body.Grant)
}

func TestCourseAccess(t *testing.T) {
	d := new(mockDecider)
	d.On("CheckCourse", mock.Anything, userID, courseID).
		Return(entitlement.Decision{Reason: entitlement.ReasonCourseTier, RequiredLevel: 3, UserLevel: 1}, nil)

	rec, env := do(t, newRouter(d, new(mockQuota)), http.MethodGet,
		"/courses/"+courseID+"/access", userID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), "required_level")

	var body DecisionResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, entitlement.ReasonCourseTier, body.Reason)
}

func TestCanDownload(t *testing.T) {
	limit := 5

	tests := []struct {
		name   string
		result quota.Result
		status int
	}{
		{"allowed", quota.Result{Allowed: true, Limit: &limit, Used: 2}, http.StatusOK},
		{"quota exceeded", quota.Result{
			Reason:  quota.ReasonQuotaExceeded,
			Message: "monthly download limit of 5 reached",
			Limit:   &limit,
			Used:    5,
		}, http.StatusForbidden},
		{"no access", quota.Result{Reason: quota.ReasonNoAccess, Message: "no access"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := new(mockQuota)
			q.On("CanDownload", mock.Anything, userID, attachmentID).Return(tt.result, nil)

			rec, env := do(t, newRouter(new(mockDecider), q), http.MethodGet,
				"/attachments/"+attachmentID+"/download", userID)

			assert.Equal(t, tt.status, rec.Code)

			var body DownloadResponse
			require.NoError(t, json.Unmarshal(env.Data, &body))
			assert.Equal(t, tt.result.Allowed, body.Allowed)
			assert.Equal(t, tt.result.Message, body.Message)
		})
	}
}

func TestRecordDownload(t *testing.T) {
	limit := 5

	tests := []struct {
		name   string
		result quota.Result
		status int
		code   string
	}{
		{"recorded", quota.Result{Allowed: true, Limit: &limit, Used: 3}, http.StatusCreated, ""},
		{"quota exceeded", quota.Result{
			Reason:  quota.ReasonQuotaExceeded,
			Message: "monthly download limit of 5 reached",
		}, http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
		{"no access", quota.Result{Reason: quota.ReasonNoAccess, Message: "no access"}, http.StatusForbidden, ""},
		{"unknown user", quota.Result{Reason: quota.ReasonUnauthenticated, Message: "not authenticated"},
			http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := new(mockQuota)
			q.On("RecordDownload", mock.Anything, userID, attachmentID).Return(tt.result, nil)

			rec, env := do(t, newRouter(new(mockDecider), q), http.MethodPost,
				"/attachments/"+attachmentID+"/downloads", userID)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
			}
		})
	}
}

func TestRecordDownload_MissingAttachment(t *testing.T) {
	q := new(mockQuota)
	q.On("RecordDownload", mock.Anything, userID, attachmentID).
		Return(quota.Result{}, fmt.Errorf("record download: %w", core.ErrNotFound))

	rec, env := do(t, newRouter(new(mockDecider), q), http.MethodPost,
		"/attachments/"+attachmentID+"/downloads", userID)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestRegisterRoutes_AppliesLimits(t *testing.T) {
	var checks, downloads int
	counting := func(n *int) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				*n++
				next.ServeHTTP(w, r)
			})
		}
	}

	d := new(mockDecider)
	d.On("CheckAttachment", mock.Anything, userID, attachmentID).
		Return(entitlement.Decision{Allowed: true, Grant: entitlement.GrantTier}, nil)
	d.On("CheckCourse", mock.Anything, userID, courseID).
		Return(entitlement.Decision{Allowed: true, Grant: entitlement.GrantTier}, nil)
	q := new(mockQuota)
	q.On("RecordDownload", mock.Anything, userID, attachmentID).
		Return(quota.Result{Allowed: true}, nil)

	r := chi.NewRouter()
	NewHandler(d, q).RegisterRoutes(r, asUser, asUser, Limits{
		Check:    counting(&checks),
		Download: counting(&downloads),
	})

	do(t, r, http.MethodGet, "/attachments/"+attachmentID+"/access", userID)
	do(t, r, http.MethodGet, "/courses/"+courseID+"/access", userID)
	do(t, r, http.MethodPost, "/attachments/"+attachmentID+"/downloads", userID)

	assert.Equal(t, 2, checks)
	assert.Equal(t, 1, downloads)
}
