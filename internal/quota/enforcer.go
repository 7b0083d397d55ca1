// AngelaMos | 2026
// enforcer.go

package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/entitlements/internal/core"
	"github.com/carterperez-dev/entitlements/internal/entitlement"
	"github.com/carterperez-dev/entitlements/internal/ledger"
	"github.com/carterperez-dev/entitlements/internal/metrics"
	"github.com/carterperez-dev/entitlements/internal/tier"
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNoAccess        Reason = "no_access"
	ReasonQuotaExceeded   Reason = "quota_exceeded"
)

// Result is the outcome of a download check. Limit is nil for tiers without
// a monthly cap.
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Limit   *int   `json:"limit"`
	Used    int    `json:"used"`
}

type AccessChecker interface {
	CheckAttachment(ctx context.Context, userID, attachmentID string) (entitlement.Decision, error)
}

type Ledger interface {
	MonthlyDownloadCount(ctx context.Context, userID string, ym ledger.YearMonth) (int, error)
	RecordDownloadWithinLimit(
		ctx context.Context,
		userID, attachmentID string,
		at time.Time,
		limit *int,
	) (bool, int, error)
}

type Enforcer struct {
	access   AccessChecker
	identity entitlement.Identity
	ledger   Ledger
	logger   *slog.Logger
	now      func() time.Time
}

func NewEnforcer(
	access AccessChecker,
	identity entitlement.Identity,
	ledger Ledger,
	logger *slog.Logger,
) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		access:   access,
		identity: identity,
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source used to pick the quota month.
func (e *Enforcer) WithClock(now func() time.Time) *Enforcer {
	e.now = now
	return e
}

// CanDownload reports whether a download would be admitted right now. It
// records nothing, so two concurrent callers can both see room for one more
// download; RecordDownload is the authoritative path.
func (e *Enforcer) CanDownload(
	ctx context.Context,
	userID, attachmentID string,
) (Result, error) {
	subject, res, err := e.admit(ctx, userID, attachmentID)
	if subject == nil {
		return e.finish(res, err)
	}

	if tier.Unlimited(subject.DownloadLimit) {
		return e.finish(Result{Allowed: true}, nil)
	}

	used, err := e.ledger.MonthlyDownloadCount(ctx, userID, ledger.YearMonthOf(e.now()))
	if err != nil {
		return e.finish(Result{}, fmt.Errorf("can download: %w", err))
	}

	limit := *subject.DownloadLimit
	if used >= limit {
		e.logExceeded(ctx, userID, used, limit)
		return e.finish(exceeded(limit, used), nil)
	}

	return e.finish(Result{Allowed: true, Limit: &limit, Used: used}, nil)
}

// RecordDownload repeats the access check and then counts and appends the
// download event atomically, so the monthly cap holds under concurrency.
func (e *Enforcer) RecordDownload(
	ctx context.Context,
	userID, attachmentID string,
) (Result, error) {
	subject, res, err := e.admit(ctx, userID, attachmentID)
	if subject == nil {
		return e.finish(res, err)
	}

	recorded, used, err := e.ledger.RecordDownloadWithinLimit(
		ctx, userID, attachmentID, e.now(), subject.DownloadLimit)
	if err != nil {
		return e.finish(Result{}, fmt.Errorf("record download: %w", err))
	}

	if !recorded {
		limit := *subject.DownloadLimit
		e.logExceeded(ctx, userID, used, limit)
		return e.finish(exceeded(limit, used), nil)
	}

	metrics.DownloadsRecordedTotal.Inc()

	return e.finish(Result{
		Allowed: true,
		Limit:   subject.DownloadLimit,
		Used:    used,
	}, nil)
}

// admit returns a nil Subject with the final result when the caller is not
// identified or the entitlement engine refuses the attachment.
func (e *Enforcer) admit(
	ctx context.Context,
	userID, attachmentID string,
) (*entitlement.Subject, Result, error) {
	if userID == "" {
		return nil, unauthenticated(), nil
	}

	subject, err := e.identity.Subject(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, unauthenticated(), nil
		}
		return nil, Result{}, fmt.Errorf("resolve subject: %w", err)
	}

	d, err := e.access.CheckAttachment(ctx, userID, attachmentID)
	if err != nil {
		return nil, Result{}, fmt.Errorf("check access: %w", err)
	}
	if !d.Allowed {
		if d.Reason == entitlement.ReasonUnauthenticated {
			return nil, unauthenticated(), nil
		}
		return nil, Result{Reason: ReasonNoAccess, Message: "no access"}, nil
	}

	return subject, Result{}, nil
}

func (e *Enforcer) logExceeded(ctx context.Context, userID string, used, limit int) {
	e.logger.InfoContext(ctx, "download quota exceeded",
		"user_id", userID,
		"used", used,
		"limit", limit,
	)
}

func (e *Enforcer) finish(res Result, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	metrics.RecordQuotaCheck(res.Allowed, string(res.Reason))
	return res, nil
}

func unauthenticated() Result {
	return Result{Reason: ReasonUnauthenticated, Message: "not authenticated"}
}

func exceeded(limit, used int) Result {
	return Result{
		Reason:  ReasonQuotaExceeded,
		Message: fmt.Sprintf("monthly download limit of %d reached", limit),
		Limit:   &limit,
		Used:    used,
	}
}
