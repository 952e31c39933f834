package pgrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
)

type taskRow struct {
	ID              string      `db:"id"`
	CreatedBy       string      `db:"created_by"`
	AssignedTo      null.String `db:"assigned_to"`
	Title           string      `db:"title"`
	Description     string      `db:"description"`
	DueDate         null.Time   `db:"due_date"`
	Priority        string      `db:"priority"`
	Category        null.String `db:"category"`
	IsCompleted     bool        `db:"is_completed"`
	CompletedAt     null.Time   `db:"completed_at"`
	ArchivedAt      null.Time   `db:"archived_at"`
	CourseID        null.String `db:"course_id"`
	CourseContentID null.String `db:"course_content_id"`
	StudyGuideID    null.String `db:"study_guide_id"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r taskRow) model() task.Task {
	return task.Task{
		ID:              r.ID,
		CreatedBy:       r.CreatedBy,
		AssignedTo:      r.AssignedTo,
		Title:           r.Title,
		Description:     r.Description,
		DueDate:         r.DueDate,
		Priority:        task.Priority(r.Priority),
		Category:        r.Category,
		IsCompleted:     r.IsCompleted,
		CompletedAt:     r.CompletedAt,
		ArchivedAt:      r.ArchivedAt,
		CourseID:        r.CourseID,
		CourseContentID: r.CourseContentID,
		StudyGuideID:    r.StudyGuideID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

var taskColumns = []string{
	"id", "created_by", "assigned_to", "title", "description", "due_date", "priority", "category", "is_completed",
	"completed_at", "archived_at", "course_id", "course_content_id", "study_guide_id", "created_at", "updated_at",
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *sqlx.DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("task").
		Columns(taskColumns...).
		Values(t.ID, t.CreatedBy, t.AssignedTo, t.Title, t.Description, t.DueDate, string(t.Priority), t.Category,
			t.IsCompleted, t.CompletedAt, t.ArchivedAt, t.CourseID, t.CourseContentID, t.StudyGuideID,
			t.CreatedAt, t.UpdatedAt))
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo *taskRepository) GetTask(ctx context.Context, id string) (task.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return task.Task{}, task.ErrNotFound
	}
	var r taskRow
	b := psql.Select(taskColumns...).From("task").Where(sq.Eq{"id": id})
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return task.Task{}, trapNoRowsErr(err, task.ErrNotFound, "getting task")
	}
	return r.model(), nil
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]task.Task, error) {
	b := psql.Select(taskColumns...).From("task")
	if filter == nil {
		filter = &task.QueryFilter{}
	}
	if filter.Search != "" {
		val := ilike(filter.Search)
		b = b.Where(sq.Or{sq.ILike{"title": val}, sq.ILike{"description": val}})
	}
	if filter.Priority != "" {
		b = b.Where(sq.Eq{"priority": string(filter.Priority)})
	}
	if filter.IsCompleted != nil {
		b = b.Where(sq.Eq{"is_completed": *filter.IsCompleted})
	}
	switch {
	case filter.ArchivedOnly:
		b = b.Where(sq.NotEq{"archived_at": nil})
	case !filter.IncludeArchived:
		b = b.Where(sq.Eq{"archived_at": nil})
	}
	if filter.CourseID != "" {
		b = b.Where(sq.Eq{"course_id": filter.CourseID})
	}
	if filter.AssignedTo != "" {
		b = b.Where(sq.Eq{"assigned_to": filter.AssignedTo})
	}
	if !filter.DueFrom.IsZero() {
		b = b.Where(sq.GtOrEq{"due_date": filter.DueFrom.UTC()})
	}
	if !filter.DueTo.IsZero() {
		b = b.Where(sq.Lt{"due_date": filter.DueTo.UTC()})
	}
	if filter.UserIDs != nil {
		b = b.Where(sq.Or{sq.Eq{"created_by": filter.UserIDs}, sq.Eq{"assigned_to": filter.UserIDs}})
	}

	ordering = core.CleanOrderings(ordering, "created_at", "due_date", "priority", "title")
	if len(ordering) == 0 {
		b = b.OrderBy("created_at DESC")
	}
	for _, ord := range ordering {
		if ord.Field == "due_date" {
			b = b.OrderBy(ord.String() + " NULLS LAST")
			continue
		}
		b = b.OrderBy(ord.String())
	}

	var rows []taskRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.model())
	}
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("task").
		SetMap(map[string]interface{}{
			"assigned_to":       t.AssignedTo,
			"title":             t.Title,
			"description":       t.Description,
			"due_date":          t.DueDate,
			"priority":          string(t.Priority),
			"category":          t.Category,
			"is_completed":      t.IsCompleted,
			"completed_at":      t.CompletedAt,
			"archived_at":       t.ArchivedAt,
			"course_id":         t.CourseID,
			"course_content_id": t.CourseContentID,
			"study_guide_id":    t.StudyGuideID,
			"updated_at":        t.UpdatedAt,
		}).
		Where(sq.Eq{"id": t.ID}))
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if n == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("task").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting task")
}
