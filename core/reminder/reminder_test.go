package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
	"github.com/theepangnani/emai-dev-03-sub000/core/reminder"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

func dueOn(today time.Time, days int) null.Time {
	return null.TimeFrom(core.StartOfDay(today).AddDate(0, 0, days).Add(12 * time.Hour))
}

func titles(t *testing.T, env *testutil.Env, usr user.User) []string {
	notifs, err := env.Notifications.Query(context.Background(), usr, notification.QueryFilter{})
	require.NoError(t, err)
	out := make([]string, 0, len(notifs))
	for _, n := range notifs {
		out = append(out, n.Title)
	}
	return out
}

func TestService_SendTaskReminders(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	today := time.Now().UTC()

	usr := testutil.CreateUser(t, env.Users, "Awe", "awe@test.cd", "", []user.Role{user.RoleTeacher}, true)
	for _, nt := range []task.NewTask{
		{Title: "Tomorrow", DueDate: dueOn(today, 1), Priority: task.PriorityLow},
		{Title: "In two days", DueDate: dueOn(today, 2), Priority: task.PriorityLow},
		{Title: "In three days", DueDate: dueOn(today, 3), Priority: task.PriorityLow},
		{Title: "Someday", Priority: task.PriorityLow},
	} {
		_, err := env.Tasks.Create(ctx, usr, nt)
		require.NoError(t, err)
	}
	done, err := env.Tasks.Create(ctx, usr, task.NewTask{Title: "Done", DueDate: dueOn(today, 1), Priority: task.PriorityLow})
	require.NoError(t, err)
	_, err = env.Tasks.SetCompleted(ctx, usr, done.ID, true)
	require.NoError(t, err)

	sent, err := env.Reminders.SendTaskReminders(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.ElementsMatch(t, []string{"Task due in 1 day: Tomorrow", "Task due in 3 days: In three days"}, titles(t, env, usr))

	// running again the same day sends nothing new
	sent, err = env.Reminders.SendTaskReminders(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestService_SendTaskReminders_customDays(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	today := time.Now().UTC()

	usr := testutil.CreateUser(t, env.Users, "Awe", "awe@test.cd", "", []user.Role{user.RoleParent}, true)
	usr, err := env.Users.Update(ctx, usr, user.UpdateUser{Name: usr.Name, Email: usr.Email, ReminderDays: []int{2}})
	require.NoError(t, err)
	_, err = env.Tasks.Create(ctx, usr, task.NewTask{Title: "Tomorrow", DueDate: dueOn(today, 1), Priority: task.PriorityLow})
	require.NoError(t, err)
	_, err = env.Tasks.Create(ctx, usr, task.NewTask{Title: "In two days", DueDate: dueOn(today, 2), Priority: task.PriorityLow})
	require.NoError(t, err)

	sent, err := env.Reminders.SendTaskReminders(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"Task due in 2 days: In two days"}, titles(t, env, usr))
}

func TestService_SendAssignmentReminders(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	today := time.Now().UTC()

	teacher := testutil.CreateUser(t, env.Users, "Teach", "teach@test.cd", "", []user.Role{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, env.Users, "Kid", "kid@test.cd", "", []user.Role{user.RoleStudent}, true)
	parent := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)
	_, err := env.Rosters.LinkChild(ctx, parent, roster.LinkChild{StudentEmail: student.Email, Relationship: roster.RelationshipMother})
	require.NoError(t, err)

	math, err := env.Courses.Create(ctx, teacher, course.NewCourse{Name: "Math"})
	require.NoError(t, err)
	_, err = env.Courses.AddStudent(ctx, teacher, math.ID, student.Email)
	require.NoError(t, err)
	_, err = env.Courses.CreateAssignment(ctx, teacher, math.ID, course.NewAssignment{Title: "Fractions", DueDate: dueOn(today, 3)})
	require.NoError(t, err)
	_, err = env.Courses.CreateAssignment(ctx, teacher, math.ID, course.NewAssignment{Title: "Decimals", DueDate: dueOn(today, 5)})
	require.NoError(t, err)

	sent, err := env.Reminders.SendAssignmentReminders(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"Assignment due in 3 days: Fractions"}, titles(t, env, student))
	assert.Equal(t, []string{"Kid: Assignment due in 3 days: Fractions"}, titles(t, env, parent))
	assert.Empty(t, titles(t, env, teacher))

	sent, err = env.Reminders.SendAssignmentReminders(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

type brokenTasks struct {
	task.Repository
	userID string
}

func (r brokenTasks) QueryTasks(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]task.Task, error) {
	for _, id := range filter.UserIDs {
		if id == r.userID {
			return nil, errors.New("connection reset")
		}
	}
	return r.Repository.QueryTasks(ctx, filter, ordering)
}

func TestService_SendTaskReminders_userFailure(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	today := time.Now().UTC()

	broken := testutil.CreateUser(t, env.Users, "Broken", "broken@test.cd", "", []user.Role{user.RoleParent}, true)
	fine := testutil.CreateUser(t, env.Users, "Fine", "fine@test.cd", "", []user.Role{user.RoleParent}, true)
	for _, usr := range []user.User{broken, fine} {
		_, err := env.Tasks.Create(ctx, usr, task.NewTask{Title: "Tomorrow", DueDate: dueOn(today, 1), Priority: task.PriorityLow})
		require.NoError(t, err)
	}

	svc := reminder.NewService(
		env.Repos.Users, env.Repos.Rosters, env.Repos.Courses, brokenTasks{Repository: env.Repos.Tasks, userID: broken.ID},
		env.Notifications, env.Logger, env.Conf,
	)
	sent, err := svc.SendTaskReminders(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Empty(t, titles(t, env, broken))
	assert.Equal(t, []string{"Task due in 1 day: Tomorrow"}, titles(t, env, fine))
}
