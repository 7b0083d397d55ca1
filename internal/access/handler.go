// AngelaMos | 2026
// handler.go

package access

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/entitlement"
	"github.com/carterperez-dev/entitlements/internal/middleware"
	"github.com/carterperez-dev/entitlements/internal/quota"
)

type Decider interface {
	CheckAttachment(ctx context.Context, userID, attachmentID string) (entitlement.Decision, error)
	CheckStorefrontAttachment(ctx context.Context, userID, attachmentID string) (entitlement.Decision, error)
	CheckCourse(ctx context.Context, userID, courseID string) (entitlement.Decision, error)
}

type Quota interface {
	CanDownload(ctx context.Context, userID, attachmentID string) (quota.Result, error)
	RecordDownload(ctx context.Context, userID, attachmentID string) (quota.Result, error)
}

type Handler struct {
	decider   Decider
	quota     Quota
	validator *validator.Validate
}

func NewHandler(decider Decider, q Quota) *Handler {
	return &Handler{
		decider:   decider,
		quota:     q,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Limits holds the per-route request budgets. Both run after the caller is
// identified so budgets are kept per user.
type Limits struct {
	Check    func(http.Handler) http.Handler
	Download func(http.Handler) http.Handler
}

// RegisterRoutes mounts the read-only checks behind optionalAuth, so an
// anonymous caller gets an "unauthenticated" decision instead of a 401.
// Recording a download requires a verified caller.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	optionalAuth, authenticator func(http.Handler) http.Handler,
	limits Limits,
) {
	checkLimit := orPassThrough(limits.Check)
	downloadLimit := orPassThrough(limits.Download)

	r.Route("/attachments/{attachmentID}", func(r chi.Router) {
		r.With(optionalAuth, checkLimit).Get("/access", h.AttachmentAccess)
		r.With(optionalAuth, checkLimit).Get("/storefront-access", h.StorefrontAccess)
		r.With(optionalAuth, checkLimit).Get("/download", h.CanDownload)
		r.With(authenticator, downloadLimit).Post("/downloads", h.RecordDownload)
	})

	r.With(optionalAuth, checkLimit).Get("/courses/{courseID}/access", h.CourseAccess)
}

func orPassThrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

func (h *Handler) AttachmentAccess(w http.ResponseWriter, r *http.Request) {
	attachmentID, ok := h.idParam(w, r, "attachmentID", "attachment")
	if !ok {
		return
	}

	d, err := h.decider.CheckAttachment(r.Context(), middleware.GetUserID(r.Context()), attachmentID)
	writeDecision(w, d, err)
}

// StorefrontAccess is the shop download page's check: purchases admit the
// caller even when the listing is shop-only.
func (h *Handler) StorefrontAccess(w http.ResponseWriter, r *http.Request) {
	attachmentID, ok := h.idParam(w, r, "attachmentID", "attachment")
	if !ok {
		return
	}

	d, err := h.decider.CheckStorefrontAttachment(r.Context(), middleware.GetUserID(r.Context()), attachmentID)
	writeDecision(w, d, err)
}

func (h *Handler) CourseAccess(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.idParam(w, r, "courseID", "course")
	if !ok {
		return
	}

	d, err := h.decider.CheckCourse(r.Context(), middleware.GetUserID(r.Context()), courseID)
	writeDecision(w, d, err)
}

// CanDownload answers whether a download would be admitted now. A denial
// is a 403 whose data carries the reason and the user-facing message.
func (h *Handler) CanDownload(w http.ResponseWriter, r *http.Request) {
	attachmentID, ok := h.idParam(w, r, "attachmentID", "attachment")
	if !ok {
		return
	}

	res, err := h.quota.CanDownload(r.Context(), middleware.GetUserID(r.Context()), attachmentID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	if !res.Allowed {
		core.Denied(w, ToDownloadResponse(res))
		return
	}

	core.OK(w, ToDownloadResponse(res))
}

func (h *Handler) RecordDownload(w http.ResponseWriter, r *http.Request) {
	attachmentID, ok := h.idParam(w, r, "attachmentID", "attachment")
	if !ok {
		return
	}

	res, err := h.quota.RecordDownload(r.Context(), middleware.GetUserID(r.Context()), attachmentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "attachment")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	switch res.Reason {
	case quota.ReasonNone:
		core.Created(w, ToDownloadResponse(res))
	case quota.ReasonUnauthenticated:
		core.Unauthorized(w, res.Message)
	case quota.ReasonQuotaExceeded:
		core.JSONError(w, core.QuotaExceededError(res.Message))
	default:
		core.Denied(w, ToDownloadResponse(res))
	}
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

func writeDecision(w http.ResponseWriter, d entitlement.Decision, err error) {
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, ToDecisionResponse(d))
}
