package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/theepangnani/emai-dev-03-sub000/apps/api/echo"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

func Test_taskApi_lifecycle(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	parent := app.createUser(t, "Mom", "mom@test.cd", user.RoleParent)
	student := app.createUser(t, "Kid", "kid@test.cd", user.RoleStudent)
	_, err := app.Rosters.LinkChild(ctx, parent, roster.LinkChild{StudentEmail: student.Email, Relationship: roster.RelationshipMother})
	require.NoError(t, err)

	parentToken, studentToken := app.token(t, parent), app.token(t, student)

	rec := app.run(t, httpTest{
		method: http.MethodPost, path: "/api/tasks", token: parentToken,
		body:     []byte(`{"title": "  Read chapter 3 ", "assigned_to": "` + student.ID + `"}`),
		wantCode: http.StatusCreated,
	})
	var tsk task.Task
	decode(t, rec, &tsk)
	assert.Equal(t, "Read chapter 3", tsk.Title)
	assert.Equal(t, task.PriorityMedium, tsk.Priority)
	assert.Equal(t, parent.ID, tsk.CreatedBy)
	assert.True(t, tsk.IsAssignee(student.ID))

	t.Run("assignee is notified", func(t *testing.T) {
		app.run(t, httpTest{
			path: "/api/notifications/unread-count", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 1}),
		})
	})

	t.Run("assignee sees the task", func(t *testing.T) {
		rec := app.run(t, httpTest{path: "/api/tasks", token: studentToken, wantCode: http.StatusOK})
		var tasks []task.Task
		decode(t, rec, &tasks)
		require.Len(t, tasks, 1)
		assert.Equal(t, tsk.ID, tasks[0].ID)
	})

	t.Run("assignee may only toggle completion", func(t *testing.T) {
		app.run(t, httpTest{
			method: http.MethodPut, path: "/api/tasks/" + tsk.ID, token: studentToken,
			body: []byte(`{"title": "Skip chapter 3"}`), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "only the task creator can do this"}),
		})
	})

	t.Run("completing archives", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPut, path: "/api/tasks/" + tsk.ID + "/completion", token: studentToken,
			body: marchallObj(t, CompletionRequest{Completed: true}), wantCode: http.StatusOK,
		})
		var done task.Task
		decode(t, rec, &done)
		assert.True(t, done.IsCompleted)
		assert.True(t, done.CompletedAt.Valid)
		assert.True(t, done.IsArchived())

		app.run(t, httpTest{path: "/api/tasks", token: studentToken, wantCode: http.StatusOK, wantData: marchallList(t)})

		rec = app.run(t, httpTest{path: "/api/tasks?include_archived=true", token: studentToken, wantCode: http.StatusOK})
		var tasks []task.Task
		decode(t, rec, &tasks)
		assert.Len(t, tasks, 1)
	})

	t.Run("only the creator deletes", func(t *testing.T) {
		app.run(t, httpTest{
			method: http.MethodDelete, path: "/api/tasks/" + tsk.ID, token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the task creator can do this"}),
		})
		app.run(t, httpTest{method: http.MethodDelete, path: "/api/tasks/" + tsk.ID, token: parentToken, wantCode: http.StatusNoContent})
		app.run(t, httpTest{path: "/api/tasks/" + tsk.ID, token: parentToken, wantCode: http.StatusNotFound})
	})
}

func Test_taskApi_archive(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	usr := app.createUser(t, "Teach", "teach@test.cd", user.RoleTeacher)
	tsk, err := app.Tasks.Create(ctx, usr, task.NewTask{Title: "Grade essays", Priority: task.PriorityHigh})
	require.NoError(t, err)

	token := app.token(t, usr)
	path := "/api/tasks/" + tsk.ID

	tests := []httpTest{
		{
			name: "active task cannot be deleted", method: http.MethodDelete, path: path, token: token,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "task is not archived"}),
		},
		{
			name: "restore active task", method: http.MethodPost, path: path + "/restore", token: token,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "task is not archived"}),
		},
		{name: "archive", method: http.MethodPost, path: path + "/archive", token: token, wantCode: http.StatusOK},
		{
			name: "archive twice", method: http.MethodPost, path: path + "/archive", token: token,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "task is already archived"}),
		},
		{name: "hidden by default", path: "/api/tasks", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "restore", method: http.MethodPost, path: path + "/restore", token: token, wantCode: http.StatusOK},
		{name: "listed again", path: "/api/tasks?priority=high", token: token, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	restored, err := app.Tasks.Get(ctx, usr, tsk.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived())
	assert.False(t, restored.IsCompleted)
}

func Test_taskApi_assignment(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	parent := app.createUser(t, "Mom", "mom@test.cd", user.RoleParent)
	stranger := app.createUser(t, "Stranger", "stranger@test.cd", user.RoleParent)
	admin := app.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)
	student := app.createUser(t, "Kid", "kid@test.cd", user.RoleStudent)
	_, err := app.Rosters.LinkChild(ctx, parent, roster.LinkChild{StudentEmail: student.Email, Relationship: roster.RelationshipMother})
	require.NoError(t, err)

	assign := func(to string) []byte {
		return []byte(`{"title": "Practice piano", "assigned_to": "` + to + `"}`)
	}

	tests := []httpTest{
		{
			name: "title required", method: http.MethodPost, path: "/api/tasks", token: app.token(t, parent),
			body: []byte(`{"title": "   "}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "unrelated parent", method: http.MethodPost, path: "/api/tasks", token: app.token(t, stranger),
			body: assign(student.ID), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you cannot assign tasks to this user"}),
		},
		{
			name: "unknown assignee", method: http.MethodPost, path: "/api/tasks", token: app.token(t, parent),
			body: assign("lol"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you cannot assign tasks to this user"}),
		},
		{
			name: "admin", method: http.MethodPost, path: "/api/tasks", token: app.token(t, admin),
			body: assign(student.ID), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "admins cannot assign tasks to other users"}),
		},
		{
			name: "student to own parent", method: http.MethodPost, path: "/api/tasks", token: app.token(t, student),
			body: assign(parent.ID), wantCode: http.StatusCreated,
		},
		{
			name: "student to a stranger", method: http.MethodPost, path: "/api/tasks", token: app.token(t, student),
			body: assign(stranger.ID), wantCode: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("strangers do not see the task", func(t *testing.T) {
		app.run(t, httpTest{path: "/api/tasks", token: app.token(t, stranger), wantCode: http.StatusOK, wantData: marchallList(t)})
	})
}
