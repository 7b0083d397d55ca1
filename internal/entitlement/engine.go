// AngelaMos | 2026
// engine.go

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/metrics"
	"github.com/carterperez-dev/entitlements/internal/tier"
)

const (
	opAttachment           = "attachment"
	opStorefrontAttachment = "storefront_attachment"
	opCourse               = "course"
)

// Engine decides whether a user may reach a course or an attachment. It
// holds no state of its own; every call re-reads the catalog and ledger.
type Engine struct {
	identity Identity
	catalog  Catalog
	ledger   Ledger
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewEngine(
	identity Identity,
	catalog Catalog,
	ledger Ledger,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		identity: identity,
		catalog:  catalog,
		ledger:   ledger,
		logger:   logger,
		tracer:   otel.Tracer("github.com/carterperez-dev/entitlements/internal/entitlement"),
	}
}

// CheckAttachment is the library access path. Precedence, first match wins:
// unauthenticated, admin, shop-only listing, individual purchase, bundle
// purchase, then the course and attachment tier gates.
func (e *Engine) CheckAttachment(
	ctx context.Context,
	userID, attachmentID string,
) (Decision, error) {
	ctx, span := e.startSpan(ctx, opAttachment, userID,
		attribute.String("attachment.id", attachmentID))
	defer span.End()

	d, err := e.checkAttachment(ctx, userID, attachmentID)
	return e.finish(ctx, span, opAttachment, d, err)
}

func (e *Engine) checkAttachment(
	ctx context.Context,
	userID, attachmentID string,
) (Decision, error) {
	subject, d, err := e.subject(ctx, userID)
	if subject == nil {
		return d, err
	}

	if subject.IsAdmin {
		return allow(GrantAdmin), nil
	}

	shopOnly, err := e.catalog.IsShopOnly(ctx, attachmentID)
	if err != nil {
		return Decision{}, fmt.Errorf("check attachment: %w", err)
	}
	if shopOnly {
		return deny(ReasonShopOnly), nil
	}

	if d, ok, err := e.purchaseGrant(ctx, userID, attachmentID); ok || err != nil {
		return d, err
	}

	return e.tierGates(ctx, subject, attachmentID)
}

// CheckStorefrontAttachment is the access path of the shop's own download
// page. It admits only what the user bought, which lets a buyer of a
// shop-only listing reach the file the library path withholds from them.
func (e *Engine) CheckStorefrontAttachment(
	ctx context.Context,
	userID, attachmentID string,
) (Decision, error) {
	ctx, span := e.startSpan(ctx, opStorefrontAttachment, userID,
		attribute.String("attachment.id", attachmentID))
	defer span.End()

	d, err := e.checkStorefrontAttachment(ctx, userID, attachmentID)
	return e.finish(ctx, span, opStorefrontAttachment, d, err)
}

func (e *Engine) checkStorefrontAttachment(
	ctx context.Context,
	userID, attachmentID string,
) (Decision, error) {
	subject, d, err := e.subject(ctx, userID)
	if subject == nil {
		return d, err
	}

	if subject.IsAdmin {
		return allow(GrantAdmin), nil
	}

	if d, ok, err := e.purchaseGrant(ctx, userID, attachmentID); ok || err != nil {
		return d, err
	}

	if _, err := e.catalog.AttachmentContext(ctx, attachmentID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return deny(ReasonNotFound), nil
		}
		return Decision{}, fmt.Errorf("check storefront attachment: %w", err)
	}

	return deny(ReasonNoPurchase), nil
}

// CheckCourse admits admins and users whose tier meets the course minimum.
// Purchases never unlock a whole course.
func (e *Engine) CheckCourse(
	ctx context.Context,
	userID, courseID string,
) (Decision, error) {
	ctx, span := e.startSpan(ctx, opCourse, userID,
		attribute.String("course.id", courseID))
	defer span.End()

	d, err := e.checkCourse(ctx, userID, courseID)
	return e.finish(ctx, span, opCourse, d, err)
}

func (e *Engine) checkCourse(
	ctx context.Context,
	userID, courseID string,
) (Decision, error) {
	subject, d, err := e.subject(ctx, userID)
	if subject == nil {
		return d, err
	}

	if subject.IsAdmin {
		return allow(GrantAdmin), nil
	}

	required, err := e.catalog.CourseMinimumLevel(ctx, courseID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return deny(ReasonNotFound), nil
		}
		return Decision{}, fmt.Errorf("check course: %w", err)
	}

	if !tier.Satisfies(subject.PermissionLevel, required) {
		return denyTier(ReasonCourseTier, required, subject.PermissionLevel), nil
	}

	return allow(GrantTier), nil
}

func (e *Engine) CanAccessAttachment(
	ctx context.Context,
	userID, attachmentID string,
) (bool, error) {
	d, err := e.CheckAttachment(ctx, userID, attachmentID)
	return d.Allowed, err
}

func (e *Engine) CanAccessCourse(
	ctx context.Context,
	userID, courseID string,
) (bool, error) {
	d, err := e.CheckCourse(ctx, userID, courseID)
	return d.Allowed, err
}

// subject returns a nil Subject together with the final decision (or error)
// when the caller cannot be identified. A user id that no longer resolves is
// treated the same as no user id.
func (e *Engine) subject(
	ctx context.Context,
	userID string,
) (*Subject, Decision, error) {
	if userID == "" {
		return nil, deny(ReasonUnauthenticated), nil
	}

	s, err := e.identity.Subject(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, deny(ReasonUnauthenticated), nil
		}
		return nil, Decision{}, fmt.Errorf("resolve subject: %w", err)
	}

	return s, Decision{}, nil
}

func (e *Engine) purchaseGrant(
	ctx context.Context,
	userID, attachmentID string,
) (Decision, bool, error) {
	owned, err := e.ledger.HasIndividualPurchase(ctx, userID, attachmentID)
	if err != nil {
		return Decision{}, false, fmt.Errorf("individual purchase: %w", err)
	}
	if owned {
		return allow(GrantIndividualPurchase), true, nil
	}

	owned, err = e.ledger.HasBundlePurchase(ctx, userID, attachmentID)
	if err != nil {
		return Decision{}, false, fmt.Errorf("bundle purchase: %w", err)
	}
	if owned {
		return allow(GrantBundlePurchase), true, nil
	}

	return Decision{}, false, nil
}

// tierGates applies the course gate (when the attachment has a course) and
// the attachment's own gate. A missing attachment fails closed; a course
// that disappeared after the linkage was resolved is treated like a broken
// parent link and skipped.
func (e *Engine) tierGates(
	ctx context.Context,
	subject *Subject,
	attachmentID string,
) (Decision, error) {
	ac, err := e.catalog.AttachmentContext(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return deny(ReasonNotFound), nil
		}
		return Decision{}, fmt.Errorf("attachment context: %w", err)
	}

	level := subject.PermissionLevel

	if ac.HasCourse() {
		required, err := e.catalog.CourseMinimumLevel(ctx, *ac.CourseID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			e.logger.WarnContext(ctx, "attachment course vanished, applying attachment gate only",
				"attachment_id", attachmentID,
				"course_id", *ac.CourseID,
			)
		case err != nil:
			return Decision{}, fmt.Errorf("course minimum level: %w", err)
		case !tier.Satisfies(level, required):
			return denyTier(ReasonCourseTier, required, level), nil
		}
	}

	if !tier.Satisfies(level, ac.MinimumLevel) {
		return denyTier(ReasonAttachmentTier, ac.MinimumLevel, level), nil
	}

	return allow(GrantTier), nil
}

func (e *Engine) startSpan(
	ctx context.Context,
	operation, userID string,
	attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("user.id", userID),
		attribute.String("entitlement.operation", operation),
	)
	return e.tracer.Start(ctx, "entitlement.check_"+operation,
		trace.WithAttributes(attrs...))
}

func (e *Engine) finish(
	ctx context.Context,
	span trace.Span,
	operation string,
	d Decision,
	err error,
) (Decision, error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decision failed")
		metrics.RecordDecisionError(operation)
		return Decision{}, err
	}

	span.SetAttributes(
		attribute.Bool("decision.allowed", d.Allowed),
		attribute.String("decision.grant", string(d.Grant)),
		attribute.String("decision.reason", string(d.Reason)),
	)
	metrics.RecordDecision(operation, d.Outcome())

	if !d.Allowed {
		e.logger.DebugContext(ctx, "access denied",
			"operation", operation,
			"reason", d.Reason,
			"required_level", d.RequiredLevel,
			"user_level", d.UserLevel,
		)
	}

	return d, nil
}
