package task

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is a to-do item. Completing a task archives it; restoring clears both.
type Task struct {
	ID              string      `json:"id"`
	CreatedBy       string      `json:"created_by"`
	AssignedTo      null.String `json:"assigned_to"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	DueDate         null.Time   `json:"due_date"`
	Priority        Priority    `json:"priority"`
	Category        null.String `json:"category"`
	IsCompleted     bool        `json:"is_completed"`
	CompletedAt     null.Time   `json:"completed_at"`
	ArchivedAt      null.Time   `json:"archived_at"`
	CourseID        null.String `json:"course_id"`
	CourseContentID null.String `json:"course_content_id"`
	StudyGuideID    null.String `json:"study_guide_id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (t Task) IsArchived() bool { return t.ArchivedAt.Valid }

func (t Task) IsAssignee(userID string) bool {
	return t.AssignedTo.Valid && t.AssignedTo.String == userID
}

// IsParty reports whether userID created the task or is assigned to it.
func (t Task) IsParty(userID string) bool {
	return t.CreatedBy == userID || t.IsAssignee(userID)
}

func (t *Task) complete(at time.Time) {
	t.IsCompleted = true
	t.CompletedAt = null.TimeFrom(at)
	t.ArchivedAt = null.TimeFrom(at)
}

// reopen returns the task to the active, incomplete state.
func (t *Task) reopen() {
	t.IsCompleted = false
	t.CompletedAt = null.Time{}
	t.ArchivedAt = null.Time{}
}

type NewTask struct {
	Title           string      `json:"title" validate:"required,max=200"`
	Description     string      `json:"description"`
	DueDate         null.Time   `json:"due_date"`
	Priority        Priority    `json:"priority" validate:"omitempty,oneof=low medium high"`
	Category        null.String `json:"category"`
	AssignedTo      null.String `json:"assigned_to"`
	CourseID        null.String `json:"course_id"`
	CourseContentID null.String `json:"course_content_id"`
	StudyGuideID    null.String `json:"study_guide_id"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	if nt.Priority == "" {
		nt.Priority = PriorityMedium
	}
	return validate.Struct(nt)
}

type UpdateTask struct {
	Title       *string      `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string      `json:"description"`
	DueDate     *null.Time   `json:"due_date"`
	Priority    *Priority    `json:"priority" validate:"omitempty,oneof=low medium high"`
	Category    *null.String `json:"category"`
	AssignedTo  *null.String `json:"assigned_to"`
	IsCompleted *bool        `json:"is_completed"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	if ut.Title != nil {
		title := core.CleanString(*ut.Title)
		ut.Title = &title
	}
	return validate.Struct(ut)
}

// onlyCompletion reports whether the update touches nothing but the completion flag.
func (ut UpdateTask) onlyCompletion() bool {
	return ut.Title == nil && ut.Description == nil && ut.DueDate == nil && ut.Priority == nil &&
		ut.Category == nil && ut.AssignedTo == nil
}

type QueryFilter struct {
	Search          string    `query:"search"`
	Priority        Priority  `query:"priority"`
	IsCompleted     *bool     `query:"is_completed"`
	IncludeArchived bool      `query:"include_archived"`
	ArchivedOnly    bool      `query:"archived_only"`
	CourseID        string    `query:"course_id"`
	AssignedTo      string    `query:"assigned_to"`
	DueFrom         time.Time `query:"due_from"`
	DueTo           time.Time `query:"due_to"`
	// UserIDs restricts to tasks created by or assigned to one of them. Nil: no restriction.
	UserIDs []string `query:"-"`
}

func (qf *QueryFilter) Match(t Task) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" && !core.ContainsFold(t.Title, qf.Search) && !core.ContainsFold(t.Description, qf.Search) {
		return false
	}
	if qf.Priority != "" && t.Priority != qf.Priority {
		return false
	}
	if qf.IsCompleted != nil && t.IsCompleted != *qf.IsCompleted {
		return false
	}
	if qf.ArchivedOnly && !t.IsArchived() {
		return false
	}
	if !qf.IncludeArchived && !qf.ArchivedOnly && t.IsArchived() {
		return false
	}
	if qf.CourseID != "" && t.CourseID.String != qf.CourseID {
		return false
	}
	if qf.AssignedTo != "" && t.AssignedTo.String != qf.AssignedTo {
		return false
	}
	if !qf.DueFrom.IsZero() && (!t.DueDate.Valid || t.DueDate.Time.Before(qf.DueFrom)) {
		return false
	}
	if !qf.DueTo.IsZero() && (!t.DueDate.Valid || !t.DueDate.Time.Before(qf.DueTo)) {
		return false
	}
	if qf.UserIDs != nil && !core.ContainsString(qf.UserIDs, t.CreatedBy) && !core.ContainsString(qf.UserIDs, t.AssignedTo.String) {
		return false
	}
	return true
}
