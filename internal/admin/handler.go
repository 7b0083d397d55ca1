// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/entitlement"
	"github.com/carterperez-dev/entitlements/internal/ledger"
	"github.com/carterperez-dev/entitlements/internal/quota"
)

type Explainer interface {
	CheckAttachment(ctx context.Context, userID, attachmentID string) (entitlement.Decision, error)
	CheckCourse(ctx context.Context, userID, courseID string) (entitlement.Decision, error)
}

type QuotaChecker interface {
	CanDownload(ctx context.Context, userID, attachmentID string) (quota.Result, error)
}

type PurchaseLister interface {
	ListPurchases(ctx context.Context, userID string) ([]ledger.Purchase, error)
	ListBundlePurchases(ctx context.Context, userID string) ([]ledger.BundlePurchase, error)
}

type Handler struct {
	explainer  Explainer
	quota      QuotaChecker
	purchases  PurchaseLister
	dbStats    func() sql.DBStats
	redisStats func() core.RedisPoolStats
	dbPing     func(ctx context.Context) error
	redisPing  func(ctx context.Context) error
	validator  *validator.Validate
}

type HandlerConfig struct {
	Explainer  Explainer
	Quota      QuotaChecker
	Purchases  PurchaseLister
	DBStats    func() sql.DBStats
	RedisStats func() core.RedisPoolStats
	DBPing     func(ctx context.Context) error
	RedisPing  func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		explainer:  cfg.Explainer,
		quota:      cfg.Quota,
		purchases:  cfg.Purchases,
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		dbPing:     cfg.DBPing,
		redisPing:  cfg.RedisPing,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Route("/entitlements/users/{userID}", func(r chi.Router) {
			r.Get("/attachments/{attachmentID}", h.ExplainAttachment)
			r.Get("/courses/{courseID}", h.ExplainCourse)
			r.Get("/purchases", h.ListPurchases)
		})

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

// ExplainAttachment evaluates the library path for any user and reports the
// full decision, tier levels included, next to the download quota state.
func (h *Handler) ExplainAttachment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.idParam(w, r, "userID", "user")
	if !ok {
		return
	}
	attachmentID, ok := h.idParam(w, r, "attachmentID", "attachment")
	if !ok {
		return
	}

	d, err := h.explainer.CheckAttachment(r.Context(), userID, attachmentID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	res, err := h.quota.CanDownload(r.Context(), userID, attachmentID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, AttachmentExplanation{Decision: d, Download: res})
}

func (h *Handler) ExplainCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.idParam(w, r, "userID", "user")
	if !ok {
		return
	}
	courseID, ok := h.idParam(w, r, "courseID", "course")
	if !ok {
		return
	}

	d, err := h.explainer.CheckCourse(r.Context(), userID, courseID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, CourseExplanation{Decision: d})
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.idParam(w, r, "userID", "user")
	if !ok {
		return
	}

	individual, err := h.purchases.ListPurchases(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	bundles, err := h.purchases.ListBundlePurchases(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, PurchasesResponse{
		Purchases:       nonNil(individual),
		BundlePurchases: nonNil(bundles),
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := true
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	core.OK(w, SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Runtime: readRuntimeStats(),
	})
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntimeStats())
}

func (h *Handler) idParam(
	w http.ResponseWriter,
	r *http.Request,
	param, resource string,
) (string, bool) {
	id := chi.URLParam(r, param)
	if err := h.validator.Var(id, "required,uuid"); err != nil {
		core.BadRequest(w, "invalid "+resource+" id")
		return "", false
	}
	return id, true
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *core.RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}
	stats := h.redisStats()
	return &stats
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
