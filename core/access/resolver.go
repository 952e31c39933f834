// Package access derives, on every call, what an acting user may see or manage from the
// relationship tables. Nothing is cached, so link and enrollment changes apply immediately.
package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

// Scope restricts cross-entity searches.
type Scope struct {
	Unrestricted bool
	// UserIDs lists the users whose tasks and study guides are searchable. Nil when unrestricted.
	UserIDs []string
	// CourseIDs lists the searchable courses. Nil when unrestricted.
	CourseIDs []string
}

type Resolver struct {
	users   user.Repository
	rosters roster.Repository
	courses course.Repository
}

func NewResolver(users user.Repository, rosters roster.Repository, courses course.Repository) *Resolver {
	return &Resolver{users: users, rosters: rosters, courses: courses}
}

// VisibleCourseIDs returns the deduplicated ids of the courses usr may see, or nil when usr acts as admin.
func (r *Resolver) VisibleCourseIDs(ctx context.Context, usr user.User) ([]string, error) {
	if usr.IsAdmin() {
		return nil, nil
	}

	ids, err := r.courses.CourseIDsCreatedBy(ctx, []string{usr.ID})
	if err != nil {
		return nil, errors.Wrap(err, "getting created courses")
	}

	var roleIDs []string
	switch usr.ActiveRole {
	case user.RoleTeacher:
		roleIDs, err = r.taughtCourseIDs(ctx, usr)
	case user.RoleStudent:
		roleIDs, err = r.enrolledCourseIDs(ctx, usr)
	case user.RoleParent:
		roleIDs, err = r.parentCourseIDs(ctx, usr)
	}
	if err != nil {
		return nil, err
	}

	public, err := r.courses.PublicCourseIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting public courses")
	}

	all := make([]string, 0, len(ids)+len(roleIDs)+len(public))
	all = append(append(append(all, ids...), roleIDs...), public...)
	return core.UniqueStrings(all), nil
}

func (r *Resolver) taughtCourseIDs(ctx context.Context, usr user.User) ([]string, error) {
	tp, err := r.rosters.GetTeacherProfile(ctx, roster.TeacherFilter{UserID: usr.ID})
	if err != nil {
		if errors.Cause(err) == roster.ErrTeacherNotFound {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "getting teacher profile")
	}
	ids, err := r.courses.CourseIDsTaughtBy(ctx, []string{tp.ID})
	return ids, errors.Wrap(err, "getting taught courses")
}

func (r *Resolver) enrolledCourseIDs(ctx context.Context, usr user.User) ([]string, error) {
	sp, err := r.rosters.GetStudentProfile(ctx, roster.StudentFilter{UserID: usr.ID})
	if err != nil {
		if errors.Cause(err) == roster.ErrStudentNotFound {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "getting student profile")
	}
	return r.coursesOfStudents(ctx, []string{sp.ID})
}

func (r *Resolver) coursesOfStudents(ctx context.Context, studentIDs []string) ([]string, error) {
	enrollments, err := r.courses.QueryEnrollments(ctx, course.EnrollmentFilter{StudentIDs: studentIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	return ids, nil
}

// parentCourseIDs covers the courses the children are enrolled in, the courses the children
// created and the courses created by co-parents.
func (r *Resolver) parentCourseIDs(ctx context.Context, usr user.User) ([]string, error) {
	studentIDs, err := r.childStudentIDs(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		return []string{}, nil
	}

	ids, err := r.coursesOfStudents(ctx, studentIDs)
	if err != nil {
		return nil, err
	}

	childUserIDs, err := r.studentUserIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	coParentIDs, err := r.coParentIDs(ctx, usr.ID, studentIDs)
	if err != nil {
		return nil, err
	}

	created, err := r.courses.CourseIDsCreatedBy(ctx, append(childUserIDs, coParentIDs...))
	if err != nil {
		return nil, errors.Wrap(err, "getting courses created by family")
	}
	return append(ids, created...), nil
}

// childStudentIDs returns the student profile ids linked to parentID. Never nil.
func (r *Resolver) childStudentIDs(ctx context.Context, parentID string) ([]string, error) {
	links, err := r.rosters.QueryParentLinks(ctx, roster.LinkFilter{ParentIDs: []string{parentID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying parent links")
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.StudentID)
	}
	return ids, nil
}

func (r *Resolver) studentUserIDs(ctx context.Context, studentIDs []string) ([]string, error) {
	profiles, err := r.rosters.ListStudentProfiles(ctx, studentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "listing student profiles")
	}
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (r *Resolver) coParentIDs(ctx context.Context, parentID string, studentIDs []string) ([]string, error) {
	links, err := r.rosters.QueryParentLinks(ctx, roster.LinkFilter{StudentIDs: studentIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying co-parent links")
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		if l.ParentID != parentID {
			ids = append(ids, l.ParentID)
		}
	}
	return core.UniqueStrings(ids), nil
}

func (r *Resolver) VisibleCourses(ctx context.Context, usr user.User) ([]course.Course, error) {
	ids, err := r.VisibleCourseIDs(ctx, usr)
	if err != nil {
		return nil, err
	}
	return r.courses.QueryCourses(ctx, &course.QueryFilter{IDs: ids}, nil)
}

func (r *Resolver) CanAccessCourse(ctx context.Context, usr user.User, courseID string) (bool, error) {
	if usr.IsAdmin() {
		return true, nil
	}
	ids, err := r.VisibleCourseIDs(ctx, usr)
	if err != nil {
		return false, err
	}
	return core.ContainsString(ids, courseID), nil
}

// CanManageCourse is true for admins, the course creator and the assigned teacher only.
func (r *Resolver) CanManageCourse(ctx context.Context, usr user.User, c course.Course) (bool, error) {
	if usr.IsAdmin() || c.IsCreator(usr.ID) {
		return true, nil
	}
	if !c.TeacherID.Valid || !usr.HasRole(user.RoleTeacher) {
		return false, nil
	}
	tp, err := r.rosters.GetTeacherProfile(ctx, roster.TeacherFilter{UserID: usr.ID})
	if err != nil {
		if errors.Cause(err) == roster.ErrTeacherNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "getting teacher profile")
	}
	return tp.ID == c.TeacherID.String, nil
}

// AccessibleUserIDs returns usr and, when acting as a parent, the user ids of the linked children.
func (r *Resolver) AccessibleUserIDs(ctx context.Context, usr user.User) ([]string, error) {
	ids := []string{usr.ID}
	if !usr.ActingAs(user.RoleParent) {
		return ids, nil
	}
	studentIDs, err := r.childStudentIDs(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		return ids, nil
	}
	childIDs, err := r.studentUserIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	return core.UniqueStrings(append(ids, childIDs...)), nil
}

// ChildUserIDs returns the user ids of the students linked to parentID.
func (r *Resolver) ChildUserIDs(ctx context.Context, parentID string) ([]string, error) {
	studentIDs, err := r.childStudentIDs(ctx, parentID)
	if err != nil || len(studentIDs) == 0 {
		return studentIDs, err
	}
	return r.studentUserIDs(ctx, studentIDs)
}

func (r *Resolver) SearchScope(ctx context.Context, usr user.User) (Scope, error) {
	if usr.IsAdmin() {
		return Scope{Unrestricted: true}, nil
	}
	userIDs, err := r.AccessibleUserIDs(ctx, usr)
	if err != nil {
		return Scope{}, err
	}
	courseIDs, err := r.VisibleCourseIDs(ctx, usr)
	if err != nil {
		return Scope{}, err
	}
	return Scope{UserIDs: userIDs, CourseIDs: courseIDs}, nil
}
