package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = newID()
	repo.db.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, filter course.GetFilter) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if c, ok := repo.db.courses[filter.ID]; ok {
			return c, nil
		}
		return course.Course{}, course.ErrNotFound
	}
	if filter.GoogleID == "" && filter.CreatedBy == "" {
		return course.Course{}, course.ErrNotFound
	}
	for _, c := range repo.db.courses {
		if filter.GoogleID != "" && c.GoogleID.String != filter.GoogleID {
			continue
		}
		if filter.CreatedBy != "" && c.CreatedBy.String != filter.CreatedBy {
			continue
		}
		if filter.IsDefault != nil && c.IsDefault != *filter.IsDefault {
			continue
		}
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if filter.Match(c) {
			courses = append(courses, c)
		}
	}
	byCreatedAt(courses, ascending(ordering, "created_at", true), func(c course.Course) time.Time { return c.CreatedAt })
	for _, ord := range ordering {
		if ord.Field == "name" {
			asc := ord.Ascending
			sort.SliceStable(courses, func(i, j int) bool {
				a, b := strings.ToLower(courses[i].Name), strings.ToLower(courses[j].Name)
				if asc {
					return a < b
				}
				return a > b
			})
		}
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[c.ID] = c
	return c, nil
}

// DeleteCourse cascades to the enrollments, assignments and contents of the course.
// Tasks and study guides referencing them are kept, with their course refs cleared.
func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.courses, id)
	for k := range repo.db.enrollments {
		if k.courseID == id {
			delete(repo.db.enrollments, k)
		}
	}
	for aid, a := range repo.db.assignments {
		if a.CourseID == id {
			delete(repo.db.assignments, aid)
		}
	}
	contentIDs := make(map[string]bool)
	for cid, c := range repo.db.contents {
		if c.CourseID == id {
			contentIDs[cid] = true
			delete(repo.db.contents, cid)
		}
	}
	repo.db.detachCourseRefs(id, contentIDs)
	return nil
}

func (repo *courseRepository) courseIDs(match func(c course.Course) bool) []string {
	ids := make([]string, 0)
	for _, c := range repo.db.courses {
		if match(c) {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (repo *courseRepository) CourseIDsCreatedBy(_ context.Context, userIDs []string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.courseIDs(func(c course.Course) bool {
		return c.CreatedBy.Valid && core.ContainsString(userIDs, c.CreatedBy.String)
	}), nil
}

func (repo *courseRepository) CourseIDsTaughtBy(_ context.Context, teacherIDs []string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.courseIDs(func(c course.Course) bool {
		return c.TeacherID.Valid && core.ContainsString(teacherIDs, c.TeacherID.String)
	}), nil
}

func (repo *courseRepository) PublicCourseIDs(_ context.Context) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.courseIDs(func(c course.Course) bool { return !c.IsPrivate }), nil
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, e course.Enrollment) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	k := enrollmentKey{courseID: e.CourseID, studentID: e.StudentID}
	if _, ok := repo.db.enrollments[k]; ok {
		return course.ErrAlreadyEnrolled
	}
	repo.db.enrollments[k] = e
	return nil
}

func (repo *courseRepository) DeleteEnrollment(_ context.Context, courseID, studentID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.enrollments, enrollmentKey{courseID: courseID, studentID: studentID})
	return nil
}

func (repo *courseRepository) QueryEnrollments(_ context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]course.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if filter.Match(e) {
			enrollments = append(enrollments, e)
		}
	}
	byCreatedAt(enrollments, true, func(e course.Enrollment) time.Time { return e.CreatedAt })
	return enrollments, nil
}

func (repo *courseRepository) CreateAssignment(_ context.Context, a course.Assignment) (course.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = newID()
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *courseRepository) GetAssignment(_ context.Context, id string) (course.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return course.Assignment{}, course.ErrAssignmentNotFound
}

func (repo *courseRepository) QueryAssignments(_ context.Context, filter course.AssignmentFilter) ([]course.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	assignments := make([]course.Assignment, 0)
	for _, a := range repo.db.assignments {
		if filter.Match(a) {
			assignments = append(assignments, a)
		}
	}
	byCreatedAt(assignments, true, func(a course.Assignment) time.Time { return a.CreatedAt })
	return assignments, nil
}

func (repo *courseRepository) UpdateAssignment(_ context.Context, a course.Assignment) (course.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[a.ID]; !ok {
		return course.Assignment{}, course.ErrAssignmentNotFound
	}
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *courseRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.assignments, id)
	return nil
}

func (repo *courseRepository) CreateContent(_ context.Context, c course.Content) (course.Content, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = newID()
	repo.db.contents[c.ID] = c
	return c, nil
}

func (repo *courseRepository) GetContent(_ context.Context, id string) (course.Content, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.contents[id]; ok {
		return c, nil
	}
	return course.Content{}, course.ErrContentNotFound
}

func (repo *courseRepository) QueryContents(_ context.Context, filter course.ContentFilter) ([]course.Content, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	contents := make([]course.Content, 0)
	for _, c := range repo.db.contents {
		if filter.Match(c) {
			contents = append(contents, c)
		}
	}
	byCreatedAt(contents, false, func(c course.Content) time.Time { return c.CreatedAt })
	return contents, nil
}

func (repo *courseRepository) DeleteContent(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.contents, id)
	repo.db.detachCourseRefs("", map[string]bool{id: true})
	return nil
}

// detachCourseRefs nulls the course and content references of tasks and study guides.
// Callers hold the lock.
func (db *DB) detachCourseRefs(courseID string, contentIDs map[string]bool) {
	for id, t := range db.tasks {
		changed := false
		if courseID != "" && t.CourseID.String == courseID {
			t.CourseID, changed = null.String{}, true
		}
		if contentIDs[t.CourseContentID.String] {
			t.CourseContentID, changed = null.String{}, true
		}
		if changed {
			db.tasks[id] = t
		}
	}
	for id, g := range db.studyGuides {
		changed := false
		if courseID != "" && g.CourseID.String == courseID {
			g.CourseID, changed = null.String{}, true
		}
		if contentIDs[g.CourseContentID.String] {
			g.CourseContentID, changed = null.String{}, true
		}
		if changed {
			db.studyGuides[id] = g
		}
	}
}
