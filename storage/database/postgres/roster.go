package pgrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
)

type (
	studentProfileRow struct {
		ID         string      `db:"id"`
		UserID     string      `db:"user_id"`
		GradeLevel null.Int    `db:"grade_level"`
		School     null.String `db:"school"`
		Phone      null.String `db:"phone"`
		CreatedAt  time.Time   `db:"created_at"`
		UpdatedAt  time.Time   `db:"updated_at"`
	}

	teacherProfileRow struct {
		ID          string      `db:"id"`
		Kind        string      `db:"kind"`
		UserID      null.String `db:"user_id"`
		DisplayName string      `db:"display_name"`
		Email       string      `db:"email"`
		School      null.String `db:"school"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	parentLinkRow struct {
		ID           string    `db:"id"`
		ParentID     string    `db:"parent_id"`
		StudentID    string    `db:"student_id"`
		Relationship string    `db:"relationship"`
		CreatedAt    time.Time `db:"created_at"`
	}

	teacherLinkRow struct {
		ID            string      `db:"id"`
		StudentID     string      `db:"student_id"`
		TeacherUserID null.String `db:"teacher_user_id"`
		TeacherName   string      `db:"teacher_name"`
		TeacherEmail  string      `db:"teacher_email"`
		CreatedBy     string      `db:"created_by"`
		CreatedAt     time.Time   `db:"created_at"`
	}
)

func (r studentProfileRow) model() roster.StudentProfile {
	return roster.StudentProfile(r)
}

func (r teacherProfileRow) model() roster.TeacherProfile {
	return roster.TeacherProfile{
		ID:          r.ID,
		Kind:        roster.TeacherKind(r.Kind),
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		Email:       r.Email,
		School:      r.School,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r parentLinkRow) model() roster.ParentLink {
	return roster.ParentLink{
		ID:           r.ID,
		ParentID:     r.ParentID,
		StudentID:    r.StudentID,
		Relationship: roster.Relationship(r.Relationship),
		CreatedAt:    r.CreatedAt,
	}
}

func (r teacherLinkRow) model() roster.TeacherLink {
	return roster.TeacherLink(r)
}

var (
	studentProfileColumns = []string{"id", "user_id", "grade_level", "school", "phone", "created_at", "updated_at"}
	teacherProfileColumns = []string{"id", "kind", "user_id", "display_name", "email", "school", "created_at", "updated_at"}
	parentLinkColumns     = []string{"id", "parent_id", "student_id", "relationship", "created_at"}
	teacherLinkColumns    = []string{"id", "student_id", "teacher_user_id", "teacher_name", "teacher_email", "created_by", "created_at"}
)

type rosterRepository struct {
	db *sqlx.DB
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db *sqlx.DB) roster.Repository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) CreateStudentProfile(ctx context.Context, p roster.StudentProfile) (roster.StudentProfile, error) {
	p.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("student_profile").
		Columns(studentProfileColumns...).
		Values(p.ID, p.UserID, p.GradeLevel, p.School, p.Phone, p.CreatedAt, p.UpdatedAt))
	if err != nil {
		return roster.StudentProfile{}, errors.Wrap(err, "inserting student profile")
	}
	return p, nil
}

func (repo *rosterRepository) GetStudentProfile(ctx context.Context, filter roster.StudentFilter) (roster.StudentProfile, error) {
	b := psql.Select(studentProfileColumns...).From("student_profile")
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return roster.StudentProfile{}, roster.ErrStudentNotFound
		}
		b = b.Where(sq.Eq{"id": filter.ID})
	case filter.UserID != "":
		b = b.Where(sq.Eq{"user_id": filter.UserID})
	default:
		return roster.StudentProfile{}, roster.ErrStudentNotFound
	}

	var r studentProfileRow
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return roster.StudentProfile{}, trapNoRowsErr(err, roster.ErrStudentNotFound, "getting student profile")
	}
	return r.model(), nil
}

func (repo *rosterRepository) ListStudentProfiles(ctx context.Context, ids []string) ([]roster.StudentProfile, error) {
	var rows []studentProfileRow
	b := psql.Select(studentProfileColumns...).From("student_profile").Where(sq.Eq{"id": ids}).OrderBy("created_at")
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "listing student profiles")
	}
	profiles := make([]roster.StudentProfile, 0, len(rows))
	for _, r := range rows {
		profiles = append(profiles, r.model())
	}
	return profiles, nil
}

func (repo *rosterRepository) UpdateStudentProfile(ctx context.Context, p roster.StudentProfile) (roster.StudentProfile, error) {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("student_profile").
		Set("grade_level", p.GradeLevel).
		Set("school", p.School).
		Set("phone", p.Phone).
		Set("updated_at", p.UpdatedAt).
		Where(sq.Eq{"id": p.ID}))
	if err != nil {
		return roster.StudentProfile{}, errors.Wrap(err, "updating student profile")
	}
	if n == 0 {
		return roster.StudentProfile{}, roster.ErrStudentNotFound
	}
	return p, nil
}

func (repo *rosterRepository) CreateTeacherProfile(ctx context.Context, p roster.TeacherProfile) (roster.TeacherProfile, error) {
	p.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("teacher_profile").
		Columns(teacherProfileColumns...).
		Values(p.ID, string(p.Kind), p.UserID, p.DisplayName, p.Email, p.School, p.CreatedAt, p.UpdatedAt))
	if err != nil {
		return roster.TeacherProfile{}, errors.Wrap(err, "inserting teacher profile")
	}
	return p, nil
}

func (repo *rosterRepository) GetTeacherProfile(ctx context.Context, filter roster.TeacherFilter) (roster.TeacherProfile, error) {
	b := psql.Select(teacherProfileColumns...).From("teacher_profile")
	if filter.ID == "" && filter.UserID == "" && filter.Email == "" {
		return roster.TeacherProfile{}, roster.ErrTeacherNotFound
	}
	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return roster.TeacherProfile{}, roster.ErrTeacherNotFound
		}
		b = b.Where(sq.Eq{"id": filter.ID})
	}
	if filter.UserID != "" {
		b = b.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Email != "" {
		b = b.Where(sq.Eq{"email": filter.Email})
	}
	if filter.Kind != "" {
		b = b.Where(sq.Eq{"kind": string(filter.Kind)})
	}
	// a claimed profile wins over a shadow sharing its email
	b = b.OrderBy("kind = 'claimed' DESC", "created_at")

	var r teacherProfileRow
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return roster.TeacherProfile{}, trapNoRowsErr(err, roster.ErrTeacherNotFound, "getting teacher profile")
	}
	return r.model(), nil
}

func (repo *rosterRepository) ListTeacherProfiles(ctx context.Context, ids []string) ([]roster.TeacherProfile, error) {
	var rows []teacherProfileRow
	b := psql.Select(teacherProfileColumns...).From("teacher_profile").Where(sq.Eq{"id": ids}).OrderBy("created_at")
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "listing teacher profiles")
	}
	profiles := make([]roster.TeacherProfile, 0, len(rows))
	for _, r := range rows {
		profiles = append(profiles, r.model())
	}
	return profiles, nil
}

func (repo *rosterRepository) UpdateTeacherProfile(ctx context.Context, p roster.TeacherProfile) (roster.TeacherProfile, error) {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("teacher_profile").
		Set("kind", string(p.Kind)).
		Set("user_id", p.UserID).
		Set("display_name", p.DisplayName).
		Set("email", p.Email).
		Set("school", p.School).
		Set("updated_at", p.UpdatedAt).
		Where(sq.Eq{"id": p.ID}))
	if err != nil {
		return roster.TeacherProfile{}, errors.Wrap(err, "updating teacher profile")
	}
	if n == 0 {
		return roster.TeacherProfile{}, roster.ErrTeacherNotFound
	}
	return p, nil
}

func (repo *rosterRepository) DeleteTeacherProfile(ctx context.Context, id string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("teacher_profile").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting teacher profile")
}

func (repo *rosterRepository) TransferTeacherReferences(ctx context.Context, fromID, toID string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Update("course").Set("teacher_id", toID).Where(sq.Eq{"teacher_id": fromID}))
	return errors.Wrap(err, "transferring course teacher")
}

func (repo *rosterRepository) CreateParentLink(ctx context.Context, l roster.ParentLink) (roster.ParentLink, error) {
	l.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("parent_student").
		Columns(parentLinkColumns...).
		Values(l.ID, l.ParentID, l.StudentID, string(l.Relationship), l.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return roster.ParentLink{}, roster.ErrAlreadyLinked
		}
		return roster.ParentLink{}, errors.Wrap(err, "inserting parent link")
	}
	return l, nil
}

func (repo *rosterRepository) DeleteParentLink(ctx context.Context, parentID, studentID string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("parent_student").
		Where(sq.Eq{"parent_id": parentID, "student_id": studentID}))
	return errors.Wrap(err, "deleting parent link")
}

func (repo *rosterRepository) QueryParentLinks(ctx context.Context, filter roster.LinkFilter) ([]roster.ParentLink, error) {
	b := psql.Select(parentLinkColumns...).From("parent_student").OrderBy("created_at")
	if filter.ParentIDs != nil {
		b = b.Where(sq.Eq{"parent_id": filter.ParentIDs})
	}
	if filter.StudentIDs != nil {
		b = b.Where(sq.Eq{"student_id": filter.StudentIDs})
	}

	var rows []parentLinkRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying parent links")
	}
	links := make([]roster.ParentLink, 0, len(rows))
	for _, r := range rows {
		links = append(links, r.model())
	}
	return links, nil
}

func (repo *rosterRepository) CreateTeacherLink(ctx context.Context, l roster.TeacherLink) (roster.TeacherLink, error) {
	l.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("student_teacher").
		Columns(teacherLinkColumns...).
		Values(l.ID, l.StudentID, l.TeacherUserID, l.TeacherName, l.TeacherEmail, l.CreatedBy, l.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return roster.TeacherLink{}, roster.ErrTeacherAlreadyLinked
		}
		return roster.TeacherLink{}, errors.Wrap(err, "inserting teacher link")
	}
	return l, nil
}

func (repo *rosterRepository) GetTeacherLink(ctx context.Context, id string) (roster.TeacherLink, error) {
	if _, err := uuid.Parse(id); err != nil {
		return roster.TeacherLink{}, roster.ErrLinkNotFound
	}
	var r teacherLinkRow
	b := psql.Select(teacherLinkColumns...).From("student_teacher").Where(sq.Eq{"id": id})
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return roster.TeacherLink{}, trapNoRowsErr(err, roster.ErrLinkNotFound, "getting teacher link")
	}
	return r.model(), nil
}

func (repo *rosterRepository) DeleteTeacherLink(ctx context.Context, id string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("student_teacher").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting teacher link")
}

func (repo *rosterRepository) QueryTeacherLinks(ctx context.Context, filter roster.TeacherLinkFilter) ([]roster.TeacherLink, error) {
	b := psql.Select(teacherLinkColumns...).From("student_teacher").OrderBy("created_at")
	if filter.StudentIDs != nil {
		b = b.Where(sq.Eq{"student_id": filter.StudentIDs})
	}
	if filter.TeacherUserIDs != nil {
		b = b.Where(sq.Eq{"teacher_user_id": filter.TeacherUserIDs})
	}
	if filter.TeacherEmail != "" {
		b = b.Where(sq.Eq{"teacher_email": filter.TeacherEmail})
	}

	var rows []teacherLinkRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying teacher links")
	}
	links := make([]roster.TeacherLink, 0, len(rows))
	for _, r := range rows {
		links = append(links, r.model())
	}
	return links, nil
}

func (repo *rosterRepository) SetTeacherLinkUser(ctx context.Context, email, userID string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Update("student_teacher").
		Set("teacher_user_id", userID).
		Where(sq.Eq{"teacher_email": email}))
	return errors.Wrap(err, "resolving teacher links")
}
