// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string               { return s.name }
func (s stubChecker) Ping(context.Context) error { return s.err }

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadiness(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		h := NewHandler(stubChecker{name: "database"}, stubChecker{name: "redis"})

		rec := serve(h, "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)

		var body ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		require.Len(t, body.Checks, 2)
		assert.Equal(t, "database", body.Checks[0].Name)
		assert.Equal(t, "redis", body.Checks[1].Name)
	})

	t.Run("one failing", func(t *testing.T) {
		h := NewHandler(
			stubChecker{name: "database", err: errors.New("refused")},
			stubChecker{name: "redis"},
		)

		rec := serve(h, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.False(t, body.Checks[0].Healthy)
		assert.Equal(t, "ping failed", body.Checks[0].Message)
	})

	t.Run("not ready", func(t *testing.T) {
		h := NewHandler()
		h.SetReady(false)

		assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/readyz").Code)
	})
}

func TestLiveness(t *testing.T) {
	h := NewHandler()
	assert.Equal(t, http.StatusOK, serve(h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(h, "/livez").Code)

	h.SetShutdown(true)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/readyz").Code)
}
