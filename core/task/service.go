package task

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("task not found")
	ErrCannotAssign    = core.NewForbiddenError("you cannot assign tasks to this user")
	ErrAdminAssign     = core.NewForbiddenError("admins cannot assign tasks to other users")
	ErrCreatorOnly     = core.NewForbiddenError("only the task creator can do this")
	ErrAlreadyArchived = core.NewConflictError("task is already archived")
	ErrNotArchived     = core.NewConflictError("task is not archived")
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTask(ctx context.Context, id string) (Task, error)
		QueryTasks(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTask(ctx context.Context, id string) error
	}

	// Access resolves the users whose tasks an actor may see.
	Access interface {
		AccessibleUserIDs(ctx context.Context, usr user.User) ([]string, error)
	}

	Service interface {
		// VerifyAssignmentRelationship fails with a forbidden error unless creator may assign tasks to assignee.
		VerifyAssignmentRelationship(ctx context.Context, creator, assignee user.User) error
		Create(ctx context.Context, usr user.User, nt NewTask) (Task, error)
		Get(ctx context.Context, usr user.User, id string) (Task, error)
		Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Task, error)
		Update(ctx context.Context, usr user.User, id string, ut UpdateTask) (Task, error)
		SetCompleted(ctx context.Context, usr user.User, id string, completed bool) (Task, error)
		Archive(ctx context.Context, usr user.User, id string) (Task, error)
		Restore(ctx context.Context, usr user.User, id string) (Task, error)
		PermanentlyDelete(ctx context.Context, usr user.User, id string) error
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		users    user.Repository
		rosters  roster.Repository
		courses  course.Repository
		access   Access
		notifSvc notification.Service
		audit    audit.Service
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	users user.Repository,
	rosters roster.Repository,
	courses course.Repository,
	access Access,
	notifSvc notification.Service,
	auditSvc audit.Service,
) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		users:    users,
		rosters:  rosters,
		courses:  courses,
		access:   access,
		notifSvc: notifSvc,
		audit:    auditSvc,
	}
}

func (svc *service) VerifyAssignmentRelationship(ctx context.Context, creator, assignee user.User) error {
	if creator.ID == assignee.ID {
		return nil
	}

	var ok bool
	var err error
	switch creator.ActiveRole {
	case user.RoleAdmin:
		return ErrAdminAssign
	case user.RoleParent:
		ok, err = svc.isParentOf(ctx, creator, assignee)
	case user.RoleTeacher:
		ok, err = svc.teaches(ctx, creator, assignee)
	case user.RoleStudent:
		ok, err = svc.isParentOf(ctx, assignee, creator)
	}
	if err != nil {
		return err
	}
	if !ok {
		return ErrCannotAssign
	}
	return nil
}

func (svc *service) studentProfile(ctx context.Context, usr user.User) (roster.StudentProfile, bool, error) {
	p, err := svc.rosters.GetStudentProfile(ctx, roster.StudentFilter{UserID: usr.ID})
	if err != nil {
		if errors.Cause(err) == roster.ErrStudentNotFound {
			return roster.StudentProfile{}, false, nil
		}
		return roster.StudentProfile{}, false, errors.Wrap(err, "getting student profile")
	}
	return p, true, nil
}

func (svc *service) isParentOf(ctx context.Context, parent, student user.User) (bool, error) {
	if !parent.HasRole(user.RoleParent) {
		return false, nil
	}
	p, ok, err := svc.studentProfile(ctx, student)
	if err != nil || !ok {
		return false, err
	}
	links, err := svc.rosters.QueryParentLinks(ctx, roster.LinkFilter{ParentIDs: []string{parent.ID}, StudentIDs: []string{p.ID}})
	if err != nil {
		return false, errors.Wrap(err, "querying parent links")
	}
	return len(links) > 0, nil
}

// teaches reports whether student is enrolled in a course taught by teacher.
func (svc *service) teaches(ctx context.Context, teacher, student user.User) (bool, error) {
	tp, err := svc.rosters.GetTeacherProfile(ctx, roster.TeacherFilter{UserID: teacher.ID})
	if err != nil {
		if errors.Cause(err) == roster.ErrTeacherNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "getting teacher profile")
	}
	p, ok, err := svc.studentProfile(ctx, student)
	if err != nil || !ok {
		return false, err
	}
	courseIDs, err := svc.courses.CourseIDsTaughtBy(ctx, []string{tp.ID})
	if err != nil {
		return false, errors.Wrap(err, "getting taught courses")
	}
	if len(courseIDs) == 0 {
		return false, nil
	}
	enrollments, err := svc.courses.QueryEnrollments(ctx, course.EnrollmentFilter{CourseIDs: courseIDs, StudentIDs: []string{p.ID}})
	if err != nil {
		return false, errors.Wrap(err, "querying enrollments")
	}
	return len(enrollments) > 0, nil
}

// assignee loads the user a task is assigned to and checks the relationship with usr.
func (svc *service) assignee(ctx context.Context, usr user.User, assigneeID string) (user.User, error) {
	if assigneeID == usr.ID {
		return usr, nil
	}
	if usr.IsAdmin() {
		return user.User{}, ErrAdminAssign
	}
	assignee, err := svc.users.GetUser(ctx, user.GetFilter{ID: assigneeID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrCannotAssign
		}
		return user.User{}, errors.Wrap(err, "getting assignee")
	}
	return assignee, svc.VerifyAssignmentRelationship(ctx, usr, assignee)
}

func (svc *service) Create(ctx context.Context, usr user.User, nt NewTask) (Task, error) {
	var assignee user.User
	if nt.AssignedTo.Valid {
		var err error
		if assignee, err = svc.assignee(ctx, usr, nt.AssignedTo.String); err != nil {
			return Task{}, err
		}
	}

	now := core.Now()
	t := Task{
		CreatedBy:       usr.ID,
		AssignedTo:      nt.AssignedTo,
		Title:           nt.Title,
		Description:     nt.Description,
		DueDate:         nt.DueDate,
		Priority:        nt.Priority,
		Category:        nt.Category,
		CourseID:        nt.CourseID,
		CourseContentID: nt.CourseContentID,
		StudyGuideID:    nt.StudyGuideID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if t, err = svc.repo.CreateTask(ctx, t); err != nil {
			return errors.Wrap(err, "creating task")
		}
		svc.audit.Log(ctx, usr.ID, audit.ActionTaskCreate, "task", t.ID, t.Title)
		return svc.notifyAssignee(ctx, usr, assignee, t)
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (svc *service) notifyAssignee(ctx context.Context, usr, assignee user.User, t Task) error {
	if assignee.ID == "" || assignee.ID == usr.ID {
		return nil
	}
	_, err := svc.notifSvc.Notify(ctx, assignee, notification.Notification{
		Type:    notification.TypeTaskAssigned,
		Title:   "New task from " + usr.Name + ": " + t.Title,
		Content: t.Description,
		Link:    null.StringFrom("/tasks/" + t.ID),
	}, true)
	return err
}

// Get returns a task created by or assigned to a user accessible to usr. Other tasks are not found.
func (svc *service) Get(ctx context.Context, usr user.User, id string) (Task, error) {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if usr.IsAdmin() {
		return t, nil
	}
	ids, err := svc.access.AccessibleUserIDs(ctx, usr)
	if err != nil {
		return Task{}, errors.Wrap(err, "resolving accessible users")
	}
	if !core.ContainsString(ids, t.CreatedBy) && !core.ContainsString(ids, t.AssignedTo.String) {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// party returns the task if usr created it or is assigned to it.
func (svc *service) party(ctx context.Context, usr user.User, id string) (Task, error) {
	t, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Task{}, err
	}
	if !t.IsParty(usr.ID) {
		return Task{}, ErrCreatorOnly
	}
	return t, nil
}

func (svc *service) Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Task, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}
	filter.UserIDs = nil
	if !usr.IsAdmin() {
		ids, err := svc.access.AccessibleUserIDs(ctx, usr)
		if err != nil {
			return nil, errors.Wrap(err, "resolving accessible users")
		}
		filter.UserIDs = ids
	}
	return svc.repo.QueryTasks(ctx, filter, core.CleanOrderings(ordering, "due_date", "created_at", "priority", "title"))
}

// Update edits a task. Assignees that did not create the task may only toggle its completion.
func (svc *service) Update(ctx context.Context, usr user.User, id string, ut UpdateTask) (Task, error) {
	t, err := svc.party(ctx, usr, id)
	if err != nil {
		return Task{}, err
	}
	if t.CreatedBy != usr.ID && !ut.onlyCompletion() {
		return Task{}, ErrCreatorOnly
	}

	var assignee user.User
	if ut.AssignedTo != nil && ut.AssignedTo.Valid && !t.IsAssignee(ut.AssignedTo.String) {
		if assignee, err = svc.assignee(ctx, usr, ut.AssignedTo.String); err != nil {
			return Task{}, err
		}
	}

	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.DueDate != nil {
		t.DueDate = *ut.DueDate
	}
	if ut.Priority != nil {
		t.Priority = *ut.Priority
	}
	if ut.Category != nil {
		t.Category = *ut.Category
	}
	if ut.AssignedTo != nil {
		t.AssignedTo = *ut.AssignedTo
	}
	now := core.Now()
	if ut.IsCompleted != nil && *ut.IsCompleted != t.IsCompleted {
		if *ut.IsCompleted {
			t.complete(now)
		} else {
			t.reopen()
		}
	}
	t.UpdatedAt = now

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if t, err = svc.repo.UpdateTask(ctx, t); err != nil {
			return errors.Wrap(err, "updating task")
		}
		return svc.notifyAssignee(ctx, usr, assignee, t)
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// SetCompleted completes (and archives) or reopens a task.
func (svc *service) SetCompleted(ctx context.Context, usr user.User, id string, completed bool) (Task, error) {
	return svc.Update(ctx, usr, id, UpdateTask{IsCompleted: &completed})
}

func (svc *service) Archive(ctx context.Context, usr user.User, id string) (Task, error) {
	t, err := svc.party(ctx, usr, id)
	if err != nil {
		return Task{}, err
	}
	if t.IsArchived() {
		return Task{}, ErrAlreadyArchived
	}
	now := core.Now()
	t.ArchivedAt = null.TimeFrom(now)
	t.UpdatedAt = now

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if t, err = svc.repo.UpdateTask(ctx, t); err != nil {
			return errors.Wrap(err, "archiving task")
		}
		svc.audit.Log(ctx, usr.ID, audit.ActionTaskArchive, "task", t.ID)
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (svc *service) Restore(ctx context.Context, usr user.User, id string) (Task, error) {
	t, err := svc.party(ctx, usr, id)
	if err != nil {
		return Task{}, err
	}
	if !t.IsArchived() {
		return Task{}, ErrNotArchived
	}
	t.reopen()
	t.UpdatedAt = core.Now()

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if t, err = svc.repo.UpdateTask(ctx, t); err != nil {
			return errors.Wrap(err, "restoring task")
		}
		svc.audit.Log(ctx, usr.ID, audit.ActionTaskRestore, "task", t.ID)
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// PermanentlyDelete removes an archived task. Active tasks must be archived first.
func (svc *service) PermanentlyDelete(ctx context.Context, usr user.User, id string) error {
	t, err := svc.Get(ctx, usr, id)
	if err != nil {
		return err
	}
	if t.CreatedBy != usr.ID {
		return ErrCreatorOnly
	}
	if !t.IsArchived() {
		return ErrNotArchived
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.DeleteTask(ctx, t.ID); err != nil {
			return errors.Wrap(err, "deleting task")
		}
		svc.audit.Log(ctx, usr.ID, audit.ActionTaskDelete, "task", t.ID, t.Title)
		return nil
	})
}
