// AngelaMos | 2026
// entity.go

package catalog

// AttachmentContext is the resolved placement of an attachment: its owning
// course, if the lesson -> module -> course walk completes, and the
// permission level its own minimum tier requires.
type AttachmentContext struct {
	AttachmentID string
	CourseID     *string
	MinimumLevel int
}

func (c *AttachmentContext) HasCourse() bool {
	return c.CourseID != nil
}

// Linkage is the raw row behind an AttachmentContext. The *Ref columns are
// the ids of rows that were actually found by the joins, so a reference to a
// deleted row shows up as a non-nil id with a nil ref.
type Linkage struct {
	AttachmentID string  `db:"attachment_id"`
	MinimumLevel int     `db:"minimum_level"`
	LessonID     *string `db:"lesson_id"`
	LessonRef    *string `db:"lesson_ref"`
	ModuleRef    *string `db:"module_ref"`
	CourseRef    *string `db:"course_ref"`
}
