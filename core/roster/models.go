package roster

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type StudentProfile struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	GradeLevel null.Int    `json:"grade_level"`
	School     null.String `json:"school"`
	Phone      null.String `json:"phone"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type TeacherKind string

const (
	// TeacherShadow is a teacher known by name and email only, discovered before registering.
	TeacherShadow TeacherKind = "shadow"
	// TeacherClaimed is backed by a registered user.
	TeacherClaimed TeacherKind = "claimed"
)

type TeacherProfile struct {
	ID          string      `json:"id"`
	Kind        TeacherKind `json:"kind"`
	UserID      null.String `json:"user_id"` // set iff Kind is TeacherClaimed
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
	School      null.String `json:"school"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func NewShadowTeacher(name, email string) TeacherProfile {
	now := core.Now()
	return TeacherProfile{
		Kind:        TeacherShadow,
		DisplayName: name,
		Email:       core.CleanString(email, true /* lower */),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func NewClaimedTeacher(usr user.User) TeacherProfile {
	now := core.Now()
	return TeacherProfile{
		Kind:        TeacherClaimed,
		UserID:      null.StringFrom(usr.ID),
		DisplayName: usr.Name,
		Email:       usr.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (tp TeacherProfile) IsShadow() bool { return tp.Kind == TeacherShadow }

type Relationship string

const (
	RelationshipMother   Relationship = "mother"
	RelationshipFather   Relationship = "father"
	RelationshipGuardian Relationship = "guardian"
	RelationshipOther    Relationship = "other"
)

func (r Relationship) Valid() bool {
	switch r {
	case RelationshipMother, RelationshipFather, RelationshipGuardian, RelationshipOther:
		return true
	}
	return false
}

// ParentLink ties a parent user to a student profile. At most one per pair.
type ParentLink struct {
	ID           string       `json:"id"`
	ParentID     string       `json:"parent_id"`
	StudentID    string       `json:"student_id"`
	Relationship Relationship `json:"relationship"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TeacherLink ties a student profile to a teacher outside of any course. At most one per (student, teacher email).
type TeacherLink struct {
	ID            string      `json:"id"`
	StudentID     string      `json:"student_id"`
	TeacherUserID null.String `json:"teacher_user_id"` // null until the teacher registers
	TeacherName   string      `json:"teacher_name"`
	TeacherEmail  string      `json:"teacher_email"`
	CreatedBy     string      `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"`
}

type StudentFilter struct {
	ID     string
	UserID string
}

type TeacherFilter struct {
	ID     string
	UserID string
	Email  string
	Kind   TeacherKind
}

type LinkFilter struct {
	ParentIDs  []string // nil: no restriction
	StudentIDs []string // nil: no restriction
}

func (f LinkFilter) Match(l ParentLink) bool {
	if f.ParentIDs != nil && !core.ContainsString(f.ParentIDs, l.ParentID) {
		return false
	}
	if f.StudentIDs != nil && !core.ContainsString(f.StudentIDs, l.StudentID) {
		return false
	}
	return true
}

type TeacherLinkFilter struct {
	StudentIDs     []string // nil: no restriction
	TeacherUserIDs []string // nil: no restriction
	TeacherEmail   string
}

func (f TeacherLinkFilter) Match(l TeacherLink) bool {
	if f.StudentIDs != nil && !core.ContainsString(f.StudentIDs, l.StudentID) {
		return false
	}
	if f.TeacherUserIDs != nil && !core.ContainsString(f.TeacherUserIDs, l.TeacherUserID.String) {
		return false
	}
	if f.TeacherEmail != "" && l.TeacherEmail != f.TeacherEmail {
		return false
	}
	return true
}

// Child is a linked student as seen by a parent.
type Child struct {
	Profile      StudentProfile `json:"profile"`
	User         user.User      `json:"user"`
	Relationship Relationship   `json:"relationship"`
}

type LinkChild struct {
	StudentEmail string       `json:"student_email" validate:"required,email"`
	Relationship Relationship `json:"relationship" validate:"required,oneof=mother father guardian other"`
}

func (lc *LinkChild) Validate(validate *validator.Validate) error {
	lc.StudentEmail = core.CleanString(lc.StudentEmail, true /* lower */)
	return validate.Struct(lc)
}

type LinkTeacher struct {
	StudentID    string `json:"student_id" validate:"required"`
	TeacherName  string `json:"teacher_name" validate:"required"`
	TeacherEmail string `json:"teacher_email" validate:"required,email"`
}

func (lt *LinkTeacher) Validate(validate *validator.Validate) error {
	lt.TeacherName = core.CleanString(lt.TeacherName)
	lt.TeacherEmail = core.CleanString(lt.TeacherEmail, true /* lower */)
	return validate.Struct(lt)
}

type UpdateStudentProfile struct {
	GradeLevel null.Int    `json:"grade_level"`
	School     null.String `json:"school"`
	Phone      null.String `json:"phone"`
}
