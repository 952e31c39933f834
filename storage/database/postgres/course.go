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
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
)

type (
	courseRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		Description string      `db:"description"`
		Subject     null.String `db:"subject"`
		CreatedBy   null.String `db:"created_by"`
		TeacherID   null.String `db:"teacher_id"`
		IsPrivate   bool        `db:"is_private"`
		IsDefault   bool        `db:"is_default"`
		GoogleID    null.String `db:"google_id"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	enrollmentRow struct {
		StudentID string    `db:"student_id"`
		CourseID  string    `db:"course_id"`
		CreatedAt time.Time `db:"created_at"`
	}

	assignmentRow struct {
		ID          string       `db:"id"`
		CourseID    string       `db:"course_id"`
		Title       string       `db:"title"`
		Description string       `db:"description"`
		DueDate     null.Time    `db:"due_date"`
		MaxPoints   null.Float64 `db:"max_points"`
		GoogleID    null.String  `db:"google_id"`
		CreatedAt   time.Time    `db:"created_at"`
		UpdatedAt   time.Time    `db:"updated_at"`
	}

	contentRow struct {
		ID          string      `db:"id"`
		CourseID    string      `db:"course_id"`
		Title       string      `db:"title"`
		Description string      `db:"description"`
		ContentType string      `db:"content_type"`
		URL         null.String `db:"url"`
		Text        string      `db:"text"`
		CreatedBy   string      `db:"created_by"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}
)

func (r contentRow) model() course.Content {
	return course.Content{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		ContentType: course.ContentType(r.ContentType),
		URL:         r.URL,
		Text:        r.Text,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

var (
	courseColumns = []string{
		"id", "name", "description", "subject", "created_by", "teacher_id", "is_private", "is_default", "google_id",
		"created_at", "updated_at",
	}
	assignmentColumns = []string{
		"id", "course_id", "title", "description", "due_date", "max_points", "google_id", "created_at", "updated_at",
	}
	contentColumns = []string{
		"id", "course_id", "title", "description", "content_type", "url", "text", "created_by", "created_at", "updated_at",
	}
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	c.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("course").
		Columns(courseColumns...).
		Values(c.ID, c.Name, c.Description, c.Subject, c.CreatedBy, c.TeacherID, c.IsPrivate, c.IsDefault, c.GoogleID,
			c.CreatedAt, c.UpdatedAt))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, filter course.GetFilter) (course.Course, error) {
	b := psql.Select(courseColumns...).From("course")
	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return course.Course{}, course.ErrNotFound
		}
		b = b.Where(sq.Eq{"id": filter.ID})
	} else {
		if filter.GoogleID == "" && filter.CreatedBy == "" {
			return course.Course{}, course.ErrNotFound
		}
		if filter.GoogleID != "" {
			b = b.Where(sq.Eq{"google_id": filter.GoogleID})
		}
		if filter.CreatedBy != "" {
			b = b.Where(sq.Eq{"created_by": filter.CreatedBy})
		}
		if filter.IsDefault != nil {
			b = b.Where(sq.Eq{"is_default": *filter.IsDefault})
		}
	}

	var r courseRow
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b.OrderBy("created_at")); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return course.Course(r), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	b := psql.Select(courseColumns...).From("course")
	if filter != nil {
		if filter.Search != "" {
			val := ilike(filter.Search)
			b = b.Where(sq.Or{sq.ILike{"name": val}, sq.ILike{"description": val}})
		}
		if filter.Subject != "" {
			b = b.Where(sq.Eq{"subject": filter.Subject})
		}
		if filter.TeacherID != "" {
			b = b.Where(sq.Eq{"teacher_id": filter.TeacherID})
		}
		if filter.IDs != nil {
			b = b.Where(sq.Eq{"id": filter.IDs})
		}
	}
	b = orderBy(b, ordering, "created_at ASC", "name", "created_at")

	var rows []courseRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, course.Course(r))
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("course").
		SetMap(map[string]interface{}{
			"name":        c.Name,
			"description": c.Description,
			"subject":     c.Subject,
			"teacher_id":  c.TeacherID,
			"is_private":  c.IsPrivate,
			"google_id":   c.GoogleID,
			"updated_at":  c.UpdatedAt,
		}).
		Where(sq.Eq{"id": c.ID}))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("course").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting course")
}

func (repo *courseRepository) courseIDs(ctx context.Context, where sq.Sqlizer) ([]string, error) {
	var ids []string
	b := psql.Select("id").From("course").Where(where).OrderBy("id")
	if err := selectAll(ctx, executor(ctx, repo.db), &ids, b); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (repo *courseRepository) CourseIDsCreatedBy(ctx context.Context, userIDs []string) ([]string, error) {
	ids, err := repo.courseIDs(ctx, sq.Eq{"created_by": nonNil(userIDs)})
	return ids, errors.Wrap(err, "querying created courses")
}

func (repo *courseRepository) CourseIDsTaughtBy(ctx context.Context, teacherIDs []string) ([]string, error) {
	ids, err := repo.courseIDs(ctx, sq.Eq{"teacher_id": nonNil(teacherIDs)})
	return ids, errors.Wrap(err, "querying taught courses")
}

func (repo *courseRepository) PublicCourseIDs(ctx context.Context) ([]string, error) {
	ids, err := repo.courseIDs(ctx, sq.Eq{"is_private": false})
	return ids, errors.Wrap(err, "querying public courses")
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("student_course").
		Columns("student_id", "course_id", "created_at").
		Values(e.StudentID, e.CourseID, e.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return course.ErrAlreadyEnrolled
		}
		return errors.Wrap(err, "inserting enrollment")
	}
	return nil
}

func (repo *courseRepository) DeleteEnrollment(ctx context.Context, courseID, studentID string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("student_course").
		Where(sq.Eq{"course_id": courseID, "student_id": studentID}))
	return errors.Wrap(err, "deleting enrollment")
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	b := psql.Select("student_id", "course_id", "created_at").From("student_course").OrderBy("created_at")
	if filter.CourseIDs != nil {
		b = b.Where(sq.Eq{"course_id": filter.CourseIDs})
	}
	if filter.StudentIDs != nil {
		b = b.Where(sq.Eq{"student_id": filter.StudentIDs})
	}

	var rows []enrollmentRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, course.Enrollment(r))
	}
	return enrollments, nil
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, a course.Assignment) (course.Assignment, error) {
	a.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("assignment").
		Columns(assignmentColumns...).
		Values(a.ID, a.CourseID, a.Title, a.Description, a.DueDate, a.MaxPoints, a.GoogleID, a.CreatedAt, a.UpdatedAt))
	if err != nil {
		return course.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo *courseRepository) GetAssignment(ctx context.Context, id string) (course.Assignment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Assignment{}, course.ErrAssignmentNotFound
	}
	var r assignmentRow
	b := psql.Select(assignmentColumns...).From("assignment").Where(sq.Eq{"id": id})
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return course.Assignment{}, trapNoRowsErr(err, course.ErrAssignmentNotFound, "getting assignment")
	}
	return course.Assignment(r), nil
}

func (repo *courseRepository) QueryAssignments(ctx context.Context, filter course.AssignmentFilter) ([]course.Assignment, error) {
	b := psql.Select(assignmentColumns...).From("assignment").OrderBy("due_date NULLS LAST", "created_at")
	if filter.CourseIDs != nil {
		b = b.Where(sq.Eq{"course_id": filter.CourseIDs})
	}
	if !filter.DueFrom.IsZero() {
		b = b.Where(sq.GtOrEq{"due_date": filter.DueFrom.UTC()})
	}
	if !filter.DueTo.IsZero() {
		b = b.Where(sq.Lt{"due_date": filter.DueTo.UTC()})
	}
	if filter.GoogleID != "" {
		b = b.Where(sq.Eq{"google_id": filter.GoogleID})
	}

	var rows []assignmentRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]course.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, course.Assignment(r))
	}
	return assignments, nil
}

func (repo *courseRepository) UpdateAssignment(ctx context.Context, a course.Assignment) (course.Assignment, error) {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("assignment").
		SetMap(map[string]interface{}{
			"title":       a.Title,
			"description": a.Description,
			"due_date":    a.DueDate,
			"max_points":  a.MaxPoints,
			"google_id":   a.GoogleID,
			"updated_at":  a.UpdatedAt,
		}).
		Where(sq.Eq{"id": a.ID}))
	if err != nil {
		return course.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n == 0 {
		return course.Assignment{}, course.ErrAssignmentNotFound
	}
	return a, nil
}

func (repo *courseRepository) DeleteAssignment(ctx context.Context, id string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("assignment").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting assignment")
}

func (repo *courseRepository) CreateContent(ctx context.Context, c course.Content) (course.Content, error) {
	c.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("course_content").
		Columns(contentColumns...).
		Values(c.ID, c.CourseID, c.Title, c.Description, string(c.ContentType), c.URL, c.Text, c.CreatedBy,
			c.CreatedAt, c.UpdatedAt))
	if err != nil {
		return course.Content{}, errors.Wrap(err, "inserting course content")
	}
	return c, nil
}

func (repo *courseRepository) GetContent(ctx context.Context, id string) (course.Content, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Content{}, course.ErrContentNotFound
	}
	var r contentRow
	b := psql.Select(contentColumns...).From("course_content").Where(sq.Eq{"id": id})
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return course.Content{}, trapNoRowsErr(err, course.ErrContentNotFound, "getting course content")
	}
	return r.model(), nil
}

func (repo *courseRepository) QueryContents(ctx context.Context, filter course.ContentFilter) ([]course.Content, error) {
	b := psql.Select(contentColumns...).From("course_content").OrderBy("created_at DESC")
	if filter.CourseIDs != nil {
		b = b.Where(sq.Eq{"course_id": filter.CourseIDs})
	}
	if filter.Search != "" {
		val := ilike(filter.Search)
		b = b.Where(sq.Or{sq.ILike{"title": val}, sq.ILike{"description": val}})
	}

	var rows []contentRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying course contents")
	}
	contents := make([]course.Content, 0, len(rows))
	for _, r := range rows {
		contents = append(contents, r.model())
	}
	return contents, nil
}

func (repo *courseRepository) DeleteContent(ctx context.Context, id string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("course_content").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting course content")
}
