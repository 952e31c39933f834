package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
)

// DefaultCourseName is the name of the per-user course holding uncategorized content.
const DefaultCourseName = "My Materials"

type Course struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Subject     null.String `json:"subject"`
	CreatedBy   null.String `json:"created_by"`
	TeacherID   null.String `json:"teacher_id"` // teacher profile
	IsPrivate   bool        `json:"is_private"`
	IsDefault   bool        `json:"is_default"`
	GoogleID    null.String `json:"google_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (c Course) IsCreator(userID string) bool {
	return c.CreatedBy.Valid && c.CreatedBy.String == userID
}

type Enrollment struct {
	StudentID string    `json:"student_id"` // student profile
	CourseID  string    `json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Assignment struct {
	ID          string       `json:"id"`
	CourseID    string       `json:"course_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	DueDate     null.Time    `json:"due_date"`
	MaxPoints   null.Float64 `json:"max_points"`
	GoogleID    null.String  `json:"google_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type ContentType string

const (
	ContentNotes       ContentType = "notes"
	ContentSyllabus    ContentType = "syllabus"
	ContentLabs        ContentType = "labs"
	ContentAssignments ContentType = "assignments"
	ContentReadings    ContentType = "readings"
	ContentResources   ContentType = "resources"
	ContentOther       ContentType = "other"
)

type Content struct {
	ID          string      `json:"id"`
	CourseID    string      `json:"course_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ContentType ContentType `json:"content_type"`
	URL         null.String `json:"url"`
	Text        string      `json:"text,omitempty"`
	CreatedBy   string      `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type NewCourse struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Description string      `json:"description"`
	Subject     null.String `json:"subject"`
	IsPrivate   bool        `json:"is_private"`
	// TeacherEmail assigns the course to a teacher, registered or not. Admins and parents only.
	TeacherEmail string `json:"teacher_email" validate:"omitempty,email"`
	TeacherName  string `json:"teacher_name"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.TeacherEmail = core.CleanString(nc.TeacherEmail, true /* lower */)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Name        *string      `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string      `json:"description"`
	Subject     *null.String `json:"subject"`
	IsPrivate   *bool        `json:"is_private"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	if uc.Name != nil {
		name := core.CleanString(*uc.Name)
		uc.Name = &name
	}
	return validate.Struct(uc)
}

type NewAssignment struct {
	Title       string       `json:"title" validate:"required,max=200"`
	Description string       `json:"description"`
	DueDate     null.Time    `json:"due_date"`
	MaxPoints   null.Float64 `json:"max_points"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	return validate.Struct(na)
}

type NewContent struct {
	CourseID    string      `json:"course_id"` // empty: the actor's default course
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description"`
	ContentType ContentType `json:"content_type" validate:"required,oneof=notes syllabus labs assignments readings resources other"`
	URL         null.String `json:"url"`
	Text        string      `json:"text"`
}

func (nc *NewContent) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	if nc.ContentType == "" {
		nc.ContentType = ContentOther
	}
	return validate.Struct(nc)
}

type GetFilter struct {
	ID        string
	GoogleID  string
	CreatedBy string
	IsDefault *bool
}

type QueryFilter struct {
	Search    string   `query:"search"`
	Subject   string   `query:"subject"`
	TeacherID string   `query:"teacher_id"`
	IDs       []string `query:"-"` // nil: no restriction
}

func (qf *QueryFilter) Match(c Course) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" && !core.ContainsFold(c.Name, qf.Search) && !core.ContainsFold(c.Description, qf.Search) {
		return false
	}
	if qf.Subject != "" && c.Subject.String != qf.Subject {
		return false
	}
	if qf.TeacherID != "" && c.TeacherID.String != qf.TeacherID {
		return false
	}
	if qf.IDs != nil && !core.ContainsString(qf.IDs, c.ID) {
		return false
	}
	return true
}

type EnrollmentFilter struct {
	CourseIDs  []string // nil: no restriction
	StudentIDs []string // nil: no restriction
}

func (f EnrollmentFilter) Match(e Enrollment) bool {
	if f.CourseIDs != nil && !core.ContainsString(f.CourseIDs, e.CourseID) {
		return false
	}
	if f.StudentIDs != nil && !core.ContainsString(f.StudentIDs, e.StudentID) {
		return false
	}
	return true
}

type AssignmentFilter struct {
	CourseIDs []string // nil: no restriction
	DueFrom   time.Time
	DueTo     time.Time
	GoogleID  string
}

func (f AssignmentFilter) Match(a Assignment) bool {
	if f.CourseIDs != nil && !core.ContainsString(f.CourseIDs, a.CourseID) {
		return false
	}
	if !f.DueFrom.IsZero() && (!a.DueDate.Valid || a.DueDate.Time.Before(f.DueFrom)) {
		return false
	}
	if !f.DueTo.IsZero() && (!a.DueDate.Valid || !a.DueDate.Time.Before(f.DueTo)) {
		return false
	}
	if f.GoogleID != "" && a.GoogleID.String != f.GoogleID {
		return false
	}
	return true
}

type ContentFilter struct {
	CourseIDs []string // nil: no restriction
	Search    string
}

func (f ContentFilter) Match(c Content) bool {
	if f.CourseIDs != nil && !core.ContainsString(f.CourseIDs, c.CourseID) {
		return false
	}
	if f.Search != "" && !core.ContainsFold(c.Title, f.Search) && !core.ContainsFold(c.Description, f.Search) {
		return false
	}
	return true
}

// RosterEntry is an enrolled student as listed to course managers.
type RosterEntry struct {
	StudentID  string    `json:"student_id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	EnrolledAt time.Time `json:"enrolled_at"`
}
