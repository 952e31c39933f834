package course

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("course not found")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment not found")
	ErrContentNotFound    = core.NewNotFoundError("course content not found")
	ErrAlreadyEnrolled    = core.NewConflictError("student already enrolled")
	ErrNotEnrolled        = core.NewNotFoundError("student not enrolled")
	ErrCannotManage       = core.NewForbiddenError("not allowed to manage this course")
	ErrPrivateCourse      = core.NewForbiddenError("cannot self-enroll in a private course")
	ErrNotStudent         = core.NewForbiddenError("only students can enroll")
	ErrDefaultCourse      = core.NewConflictError("the default course cannot be deleted")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, filter GetFilter) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		// CourseIDsCreatedBy returns the ids of the courses created by any of `userIDs`.
		CourseIDsCreatedBy(ctx context.Context, userIDs []string) ([]string, error)
		// CourseIDsTaughtBy returns the ids of the courses assigned to any of the teacher profiles `teacherIDs`.
		CourseIDsTaughtBy(ctx context.Context, teacherIDs []string) ([]string, error)
		PublicCourseIDs(ctx context.Context) ([]string, error)

		CreateEnrollment(ctx context.Context, e Enrollment) error
		DeleteEnrollment(ctx context.Context, courseID, studentID string) error
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)

		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error

		CreateContent(ctx context.Context, c Content) (Content, error)
		GetContent(ctx context.Context, id string) (Content, error)
		QueryContents(ctx context.Context, filter ContentFilter) ([]Content, error)
		DeleteContent(ctx context.Context, id string) error
	}

	// Authorizer decides course visibility and management rights.
	Authorizer interface {
		// VisibleCourseIDs returns nil when usr may see every course.
		VisibleCourseIDs(ctx context.Context, usr user.User) ([]string, error)
		CanAccessCourse(ctx context.Context, usr user.User, courseID string) (bool, error)
		CanManageCourse(ctx context.Context, usr user.User, c Course) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, usr user.User, nc NewCourse) (Course, error)
		Get(ctx context.Context, usr user.User, id string) (Course, error)
		List(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Update(ctx context.Context, usr user.User, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, usr user.User, id string) error
		DefaultCourse(ctx context.Context, usr user.User) (Course, error)

		AddStudent(ctx context.Context, usr user.User, courseID, studentEmail string) (RosterEntry, error)
		RemoveStudent(ctx context.Context, usr user.User, courseID, studentID string) error
		Roster(ctx context.Context, usr user.User, courseID string) ([]RosterEntry, error)
		Enroll(ctx context.Context, usr user.User, courseID string) error
		Unenroll(ctx context.Context, usr user.User, courseID string) error
		// EnrollStudent enrolls a student profile without access checks; used on invite acceptance.
		EnrollStudent(ctx context.Context, courseID, studentID string) error

		CreateAssignment(ctx context.Context, usr user.User, courseID string, na NewAssignment) (Assignment, error)
		Assignments(ctx context.Context, usr user.User, courseID string) ([]Assignment, error)
		DeleteAssignment(ctx context.Context, usr user.User, id string) error

		CreateContent(ctx context.Context, usr user.User, nc NewContent) (Content, error)
		GetContent(ctx context.Context, usr user.User, id string) (Content, error)
		Contents(ctx context.Context, usr user.User, courseID string) ([]Content, error)
		DeleteContent(ctx context.Context, usr user.User, id string) error
	}

	service struct {
		tx        core.Transactor
		repo      Repository
		users     user.Repository
		rosterSvc roster.Service
		authz     Authorizer
		audit     audit.Service
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, users user.Repository, rosterSvc roster.Service, authz Authorizer, auditSvc audit.Service) Service {
	return &service{tx: tx, repo: repo, users: users, rosterSvc: rosterSvc, authz: authz, audit: auditSvc}
}

func (svc *service) Create(ctx context.Context, usr user.User, nc NewCourse) (Course, error) {
	now := core.Now()
	c := Course{
		Name:        nc.Name,
		Description: nc.Description,
		Subject:     nc.Subject,
		CreatedBy:   null.StringFrom(usr.ID),
		IsPrivate:   nc.IsPrivate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		switch {
		case usr.ActingAs(user.RoleTeacher):
			tp, err := svc.rosterSvc.EnsureTeacherProfile(ctx, usr)
			if err != nil {
				return err
			}
			c.TeacherID = null.StringFrom(tp.ID)
		case nc.TeacherEmail != "":
			tp, err := svc.rosterSvc.GetOrCreateShadowTeacher(ctx, nc.TeacherName, nc.TeacherEmail)
			if err != nil {
				return err
			}
			c.TeacherID = null.StringFrom(tp.ID)
		}

		var err error
		if c, err = svc.repo.CreateCourse(ctx, c); err != nil {
			return errors.Wrap(err, "creating course")
		}
		svc.audit.Log(ctx, usr.ID, audit.ActionCourseCreate, "course", c.ID, c.Name)
		return nil
	})
	if err != nil {
		return Course{}, err
	}
	return c, nil
}

// get returns the course `id` if usr may see it. Invisible courses are reported as not found.
func (svc *service) get(ctx context.Context, usr user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, GetFilter{ID: id})
	if err != nil {
		return Course{}, err
	}
	ok, err := svc.authz.CanAccessCourse(ctx, usr, c.ID)
	if err != nil {
		return Course{}, errors.Wrap(err, "checking course access")
	}
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

// getManaged returns the course `id` if usr may manage it.
// Visible but unmanageable courses yield ErrCannotManage.
func (svc *service) getManaged(ctx context.Context, usr user.User, id string) (Course, error) {
	c, err := svc.get(ctx, usr, id)
	if err != nil {
		return Course{}, err
	}
	ok, err := svc.authz.CanManageCourse(ctx, usr, c)
	if err != nil {
		return Course{}, errors.Wrap(err, "checking course management")
	}
	if !ok {
		return Course{}, ErrCannotManage
	}
	return c, nil
}

func (svc *service) Get(ctx context.Context, usr user.User, id string) (Course, error) {
	return svc.get(ctx, usr, id)
}

func (svc *service) List(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	ids, err := svc.authz.VisibleCourseIDs(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "resolving visible courses")
	}
	if filter == nil {
		filter = &QueryFilter{}
	}
	filter.IDs = ids
	return svc.repo.QueryCourses(ctx, filter, core.CleanOrderings(ordering, "name", "created_at", "updated_at"))
}

func (svc *service) Update(ctx context.Context, usr user.User, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.getManaged(ctx, usr, id)
	if err != nil {
		return Course{}, err
	}
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Subject != nil {
		c.Subject = *uc.Subject
	}
	if uc.IsPrivate != nil {
		c.IsPrivate = *uc.IsPrivate
	}
	c.UpdatedAt = core.Now()

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if c, err = svc.repo.UpdateCourse(ctx, c); err != nil {
			return errors.Wrap(err, "updating course")
		}
		svc.audit.Log(ctx, usr.ID, audit.ActionCourseUpdate, "course", c.ID)
		return nil
	})
	if err != nil {
		return Course{}, err
	}
	return c, nil
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	c, err := svc.getManaged(ctx, usr, id)
	if err != nil {
		return err
	}
	if c.IsDefault {
		return ErrDefaultCourse
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.DeleteCourse(ctx, c.ID); err != nil {
			return errors.Wrap(err, "deleting course")
		}
		svc.audit.Log(ctx, usr.ID, audit.ActionCourseDelete, "course", c.ID, c.Name)
		return nil
	})
}

// DefaultCourse returns the private catch-all course of usr, creating it on first use.
func (svc *service) DefaultCourse(ctx context.Context, usr user.User) (Course, error) {
	isDefault := true
	c, err := svc.repo.GetCourse(ctx, GetFilter{CreatedBy: usr.ID, IsDefault: &isDefault})
	if err == nil {
		return c, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Course{}, errors.Wrap(err, "getting default course")
	}

	now := core.Now()
	c, err = svc.repo.CreateCourse(ctx, Course{
		Name:      DefaultCourseName,
		CreatedBy: null.StringFrom(usr.ID),
		IsPrivate: true,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return c, errors.Wrap(err, "creating default course")
}

func (svc *service) AddStudent(ctx context.Context, usr user.User, courseID, studentEmail string) (RosterEntry, error) {
	c, err := svc.getManaged(ctx, usr, courseID)
	if err != nil {
		return RosterEntry{}, err
	}

	var entry RosterEntry
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		studentUsr, err := svc.users.GetUser(ctx, user.GetFilter{Email: core.CleanString(studentEmail, true /* lower */)})
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return roster.ErrStudentNotFound
			}
			return errors.Wrap(err, "getting student user")
		}
		if !studentUsr.HasRole(user.RoleStudent) {
			return roster.ErrStudentNotFound
		}
		profile, err := svc.rosterSvc.EnsureStudentProfile(ctx, studentUsr)
		if err != nil {
			return err
		}
		if err = svc.enroll(ctx, usr.ID, c.ID, profile.ID); err != nil {
			return err
		}
		entry = RosterEntry{
			StudentID:  profile.ID,
			UserID:     studentUsr.ID,
			Name:       studentUsr.Name,
			Email:      studentUsr.Email,
			EnrolledAt: core.Now(),
		}
		return nil
	})
	if err != nil {
		return RosterEntry{}, err
	}
	return entry, nil
}

func (svc *service) enroll(ctx context.Context, actorID, courseID, studentID string) error {
	existing, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{CourseIDs: []string{courseID}, StudentIDs: []string{studentID}})
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if len(existing) > 0 {
		return ErrAlreadyEnrolled
	}
	err = svc.repo.CreateEnrollment(ctx, Enrollment{StudentID: studentID, CourseID: courseID, CreatedAt: core.Now()})
	if err != nil {
		return errors.Wrap(err, "creating enrollment")
	}
	svc.audit.Log(ctx, actorID, audit.ActionEnroll, "course", courseID, "student ", studentID)
	return nil
}

func (svc *service) unenroll(ctx context.Context, actorID, courseID, studentID string) error {
	existing, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{CourseIDs: []string{courseID}, StudentIDs: []string{studentID}})
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if len(existing) == 0 {
		return ErrNotEnrolled
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.DeleteEnrollment(ctx, courseID, studentID); err != nil {
			return errors.Wrap(err, "deleting enrollment")
		}
		svc.audit.Log(ctx, actorID, audit.ActionUnenroll, "course", courseID, "student ", studentID)
		return nil
	})
}

func (svc *service) RemoveStudent(ctx context.Context, usr user.User, courseID, studentID string) error {
	c, err := svc.getManaged(ctx, usr, courseID)
	if err != nil {
		return err
	}
	return svc.unenroll(ctx, usr.ID, c.ID, studentID)
}

func (svc *service) Roster(ctx context.Context, usr user.User, courseID string) ([]RosterEntry, error) {
	c, err := svc.getManaged(ctx, usr, courseID)
	if err != nil {
		return nil, err
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{CourseIDs: []string{c.ID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	entries := make([]RosterEntry, 0, len(enrollments))
	for _, e := range enrollments {
		p, err := svc.rosterSvc.StudentProfileByID(ctx, e.StudentID)
		if err != nil {
			return nil, err
		}
		studentUsr, err := svc.users.GetUser(ctx, user.GetFilter{ID: p.UserID})
		if err != nil {
			return nil, errors.Wrap(err, "getting student user")
		}
		entries = append(entries, RosterEntry{
			StudentID:  e.StudentID,
			UserID:     studentUsr.ID,
			Name:       studentUsr.Name,
			Email:      studentUsr.Email,
			EnrolledAt: e.CreatedAt,
		})
	}
	return entries, nil
}

func (svc *service) Enroll(ctx context.Context, usr user.User, courseID string) error {
	if !usr.HasRole(user.RoleStudent) {
		return ErrNotStudent
	}
	c, err := svc.get(ctx, usr, courseID)
	if err != nil {
		return err
	}
	if c.IsPrivate && !c.IsCreator(usr.ID) {
		return ErrPrivateCourse
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := svc.rosterSvc.EnsureStudentProfile(ctx, usr)
		if err != nil {
			return err
		}
		return svc.enroll(ctx, usr.ID, c.ID, p.ID)
	})
}

func (svc *service) Unenroll(ctx context.Context, usr user.User, courseID string) error {
	p, err := svc.rosterSvc.StudentProfile(ctx, usr)
	if err != nil {
		if core.IsNotFound(err) {
			return ErrNotEnrolled
		}
		return err
	}
	return svc.unenroll(ctx, usr.ID, courseID, p.ID)
}

func (svc *service) EnrollStudent(ctx context.Context, courseID, studentID string) error {
	if _, err := svc.repo.GetCourse(ctx, GetFilter{ID: courseID}); err != nil {
		return err
	}
	err := svc.enroll(ctx, "", courseID, studentID)
	if errors.Cause(err) == ErrAlreadyEnrolled {
		return nil
	}
	return err
}

func (svc *service) CreateAssignment(ctx context.Context, usr user.User, courseID string, na NewAssignment) (Assignment, error) {
	c, err := svc.getManaged(ctx, usr, courseID)
	if err != nil {
		return Assignment{}, err
	}
	now := core.Now()
	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		CourseID:    c.ID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate,
		MaxPoints:   na.MaxPoints,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return a, errors.Wrap(err, "creating assignment")
}

func (svc *service) Assignments(ctx context.Context, usr user.User, courseID string) ([]Assignment, error) {
	c, err := svc.get(ctx, usr, courseID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignments(ctx, AssignmentFilter{CourseIDs: []string{c.ID}})
}

func (svc *service) DeleteAssignment(ctx context.Context, usr user.User, id string) error {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.getManaged(ctx, usr, a.CourseID); err != nil {
		if core.IsNotFound(err) {
			return ErrAssignmentNotFound
		}
		return err
	}
	return svc.repo.DeleteAssignment(ctx, a.ID)
}

// CreateContent adds material to a course the actor can see. Without a course, the actor's default course is used.
func (svc *service) CreateContent(ctx context.Context, usr user.User, nc NewContent) (Content, error) {
	var content Content
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var c Course
		var err error
		if nc.CourseID == "" {
			c, err = svc.DefaultCourse(ctx, usr)
		} else {
			c, err = svc.get(ctx, usr, nc.CourseID)
		}
		if err != nil {
			return err
		}

		now := core.Now()
		content, err = svc.repo.CreateContent(ctx, Content{
			CourseID:    c.ID,
			Title:       nc.Title,
			Description: nc.Description,
			ContentType: nc.ContentType,
			URL:         nc.URL,
			Text:        nc.Text,
			CreatedBy:   usr.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return errors.Wrap(err, "creating content")
	})
	if err != nil {
		return Content{}, err
	}
	return content, nil
}

func (svc *service) GetContent(ctx context.Context, usr user.User, id string) (Content, error) {
	content, err := svc.repo.GetContent(ctx, id)
	if err != nil {
		return Content{}, err
	}
	if _, err = svc.get(ctx, usr, content.CourseID); err != nil {
		if core.IsNotFound(err) {
			return Content{}, ErrContentNotFound
		}
		return Content{}, err
	}
	return content, nil
}

func (svc *service) Contents(ctx context.Context, usr user.User, courseID string) ([]Content, error) {
	c, err := svc.get(ctx, usr, courseID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryContents(ctx, ContentFilter{CourseIDs: []string{c.ID}})
}

// DeleteContent removes content. Its author and the course managers may delete it.
func (svc *service) DeleteContent(ctx context.Context, usr user.User, id string) error {
	content, err := svc.GetContent(ctx, usr, id)
	if err != nil {
		return err
	}
	if content.CreatedBy != usr.ID {
		if _, err = svc.getManaged(ctx, usr, content.CourseID); err != nil {
			return err
		}
	}
	return svc.repo.DeleteContent(ctx, content.ID)
}
