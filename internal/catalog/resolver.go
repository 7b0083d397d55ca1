// AngelaMos | 2026
// resolver.go

package catalog

import (
	"context"
	"log/slog"
)

type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// AttachmentContext returns core.ErrNotFound when the attachment itself does
// not exist. A broken parent link never fails; see resolveParentCourse.
func (r *Resolver) AttachmentContext(
	ctx context.Context,
	attachmentID string,
) (*AttachmentContext, error) {
	l, err := r.repo.GetLinkage(ctx, attachmentID)
	if err != nil {
		return nil, err
	}

	courseID, dangling := resolveParentCourse(l)
	if dangling {
		r.logger.WarnContext(ctx, "attachment has a dangling parent link, treating as course-less",
			"attachment_id", l.AttachmentID,
			"lesson_id", deref(l.LessonID),
			"lesson_found", l.LessonRef != nil,
			"module_found", l.ModuleRef != nil,
		)
	}

	return &AttachmentContext{
		AttachmentID: l.AttachmentID,
		CourseID:     courseID,
		MinimumLevel: l.MinimumLevel,
	}, nil
}

func (r *Resolver) CourseMinimumLevel(
	ctx context.Context,
	courseID string,
) (int, error) {
	return r.repo.GetCourseMinimumLevel(ctx, courseID)
}

func (r *Resolver) IsShopOnly(
	ctx context.Context,
	attachmentID string,
) (bool, error) {
	return r.repo.IsShopOnly(ctx, attachmentID)
}

// resolveParentCourse is the one place where a broken lesson -> module ->
// course chain degrades an attachment to a general library file. Attachments
// without a lesson are course-less and not dangling.
func resolveParentCourse(l *Linkage) (courseID *string, dangling bool) {
	if l.LessonID == nil {
		return nil, false
	}

	if l.LessonRef == nil || l.ModuleRef == nil || l.CourseRef == nil {
		return nil, true
	}

	return l.CourseRef, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
