// Package reminder emits due date reminders for assignments and tasks.
//
// For every configured offset N of a user, items due on the day that is N days after today
// produce one notification. A reminder whose title was already notified today is skipped,
// so running the jobs several times a day is harmless.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type Service interface {
	SendAssignmentReminders(ctx context.Context, today time.Time) (int, error)
	SendTaskReminders(ctx context.Context, today time.Time) (int, error)
}

type service struct {
	users    user.Repository
	rosters  roster.Repository
	courses  course.Repository
	tasks    task.Repository
	notifSvc notification.Service
	logger   core.Logger
	defaults []int
}

var _ Service = (*service)(nil)

func NewService(
	users user.Repository,
	rosters roster.Repository,
	courses course.Repository,
	tasks task.Repository,
	notifSvc notification.Service,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		users:    users,
		rosters:  rosters,
		courses:  courses,
		tasks:    tasks,
		notifSvc: notifSvc,
		logger:   logger,
		defaults: conf.Jobs.DefaultReminderDays,
	}
}

// window returns the bounds of the day `offset` days after today.
func window(today time.Time, offset int) (time.Time, time.Time) {
	from := core.StartOfDay(today).AddDate(0, 0, offset)
	return from, from.AddDate(0, 0, 1)
}

func dueIn(offset int) string {
	if offset == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", offset)
}

func (svc *service) activeUsers(ctx context.Context, roles ...user.Role) ([]user.User, error) {
	active := true
	users, err := svc.users.QueryUsers(ctx, &user.QueryFilter{Roles: roles, IsActive: &active}, nil)
	return users, errors.Wrap(err, "querying users")
}

// remind notifies usr unless a notification with the same title was emitted today.
func (svc *service) remind(ctx context.Context, usr user.User, today time.Time, n notification.Notification) (bool, error) {
	exists, err := svc.notifSvc.Exists(ctx, notification.QueryFilter{
		UserID: usr.ID,
		Type:   n.Type,
		Title:  n.Title,
		Since:  core.StartOfDay(today),
	})
	if err != nil || exists {
		return false, err
	}
	if _, err = svc.notifSvc.Notify(ctx, usr, n, true); err != nil {
		return false, err
	}
	return true, nil
}

// SendAssignmentReminders notifies students, and the parents of enrolled students, of due assignments.
// A failing user is logged and skipped.
func (svc *service) SendAssignmentReminders(ctx context.Context, today time.Time) (int, error) {
	var sent int

	students, err := svc.activeUsers(ctx, user.RoleStudent)
	if err != nil {
		return 0, err
	}
	for _, usr := range students {
		if err = ctx.Err(); err != nil {
			return sent, err
		}
		n, err := svc.remindStudent(ctx, usr, today)
		sent += n
		if err != nil {
			svc.logger.Error(fmt.Sprintf("reminding student %s: %v", usr.ID, err), err, usr)
		}
	}

	parents, err := svc.activeUsers(ctx, user.RoleParent)
	if err != nil {
		return sent, err
	}
	for _, usr := range parents {
		if err = ctx.Err(); err != nil {
			return sent, err
		}
		n, err := svc.remindParent(ctx, usr, today)
		sent += n
		if err != nil {
			svc.logger.Error(fmt.Sprintf("reminding parent %s: %v", usr.ID, err), err, usr)
		}
	}

	svc.logger.Info(fmt.Sprintf("assignment reminders: %d sent", sent))
	return sent, nil
}

func (svc *service) remindStudent(ctx context.Context, usr user.User, today time.Time) (int, error) {
	p, err := svc.rosters.GetStudentProfile(ctx, roster.StudentFilter{UserID: usr.ID})
	if err != nil {
		if errors.Cause(err) == roster.ErrStudentNotFound {
			return 0, nil
		}
		return 0, errors.Wrap(err, "getting student profile")
	}
	return svc.remindAssignments(ctx, usr, today, []string{p.ID}, nil)
}

func (svc *service) remindParent(ctx context.Context, usr user.User, today time.Time) (int, error) {
	links, err := svc.rosters.QueryParentLinks(ctx, roster.LinkFilter{ParentIDs: []string{usr.ID}})
	if err != nil {
		return 0, errors.Wrap(err, "querying parent links")
	}
	if len(links) == 0 {
		return 0, nil
	}
	studentIDs := make([]string, 0, len(links))
	for _, l := range links {
		studentIDs = append(studentIDs, l.StudentID)
	}
	names, err := svc.childNames(ctx, studentIDs)
	if err != nil {
		return 0, err
	}
	return svc.remindAssignments(ctx, usr, today, studentIDs, names)
}

func (svc *service) childNames(ctx context.Context, studentIDs []string) (map[string]string, error) {
	profiles, err := svc.rosters.ListStudentProfiles(ctx, studentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "listing student profiles")
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		child, err := svc.users.GetUser(ctx, user.GetFilter{ID: p.UserID})
		if err != nil {
			return nil, errors.Wrap(err, "getting child")
		}
		names[p.ID] = child.Name
	}
	return names, nil
}

// remindAssignments notifies usr of the assignments of the courses `studentIDs` are enrolled in.
// Child names, when given, prefix the titles.
func (svc *service) remindAssignments(ctx context.Context, usr user.User, today time.Time, studentIDs []string, childNames map[string]string) (int, error) {
	enrollments, err := svc.courses.QueryEnrollments(ctx, course.EnrollmentFilter{StudentIDs: studentIDs})
	if err != nil {
		return 0, errors.Wrap(err, "querying enrollments")
	}
	if len(enrollments) == 0 {
		return 0, nil
	}
	courseStudents := make(map[string][]string)
	courseIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		courseStudents[e.CourseID] = append(courseStudents[e.CourseID], e.StudentID)
		courseIDs = append(courseIDs, e.CourseID)
	}
	courseIDs = core.UniqueStrings(courseIDs)

	var sent int
	for _, offset := range usr.ReminderOffsets(svc.defaults) {
		from, to := window(today, offset)
		assignments, err := svc.courses.QueryAssignments(ctx, course.AssignmentFilter{CourseIDs: courseIDs, DueFrom: from, DueTo: to})
		if err != nil {
			return sent, errors.Wrap(err, "querying due assignments")
		}
		for _, a := range assignments {
			prefixes := []string{""}
			if childNames != nil {
				prefixes = prefixes[:0]
				for _, sid := range courseStudents[a.CourseID] {
					prefixes = append(prefixes, childNames[sid]+": ")
				}
			}
			for _, prefix := range prefixes {
				ok, err := svc.remind(ctx, usr, today, notification.Notification{
					Type:    notification.TypeAssignmentDue,
					Title:   fmt.Sprintf("%sAssignment due in %s: %s", prefix, dueIn(offset), a.Title),
					Content: a.Description,
					Link:    null.StringFrom("/courses/" + a.CourseID),
				})
				if err != nil {
					return sent, err
				}
				if ok {
					sent++
				}
			}
		}
	}
	return sent, nil
}

// SendTaskReminders notifies the creator and the assignee of open tasks.
// A failing user is logged and skipped.
func (svc *service) SendTaskReminders(ctx context.Context, today time.Time) (int, error) {
	users, err := svc.activeUsers(ctx)
	if err != nil {
		return 0, err
	}

	var sent int
	for _, usr := range users {
		if err = ctx.Err(); err != nil {
			return sent, err
		}
		n, err := svc.remindTasks(ctx, usr, today)
		sent += n
		if err != nil {
			svc.logger.Error(fmt.Sprintf("reminding tasks of user %s: %v", usr.ID, err), err, usr)
		}
	}

	svc.logger.Info(fmt.Sprintf("task reminders: %d sent", sent))
	return sent, nil
}

func (svc *service) remindTasks(ctx context.Context, usr user.User, today time.Time) (int, error) {
	var sent int
	notCompleted := false
	for _, offset := range usr.ReminderOffsets(svc.defaults) {
		from, to := window(today, offset)
		tasks, err := svc.tasks.QueryTasks(ctx, &task.QueryFilter{
			UserIDs:     []string{usr.ID},
			IsCompleted: &notCompleted,
			DueFrom:     from,
			DueTo:       to,
		}, nil)
		if err != nil {
			return sent, errors.Wrap(err, "querying due tasks")
		}
		for _, t := range tasks {
			ok, err := svc.remind(ctx, usr, today, notification.Notification{
				Type:    notification.TypeTaskDue,
				Title:   fmt.Sprintf("Task due in %s: %s", dueIn(offset), t.Title),
				Content: t.Description,
				Link:    null.StringFrom("/tasks/" + t.ID),
			})
			if err != nil {
				return sent, err
			}
			if ok {
				sent++
			}
		}
	}
	return sent, nil
}
