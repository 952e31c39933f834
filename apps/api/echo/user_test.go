package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/theepangnani/emai-dev-03-sub000/apps/api/echo"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	pwd := "Sup3r.Secret"
	usr := testutil.CreateUser(t, app.Users, "Awe", "awe@test.cd", pwd, []user.Role{user.RoleParent}, true)
	testutil.CreateUser(t, app.Users, "N Dog", "ndog@test.cd", pwd, []user.Role{user.RoleStudent}, false)

	tests := []httpTest{
		{
			name: "empty credentials", method: http.MethodPost, path: "/api/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/api/users/login",
			body:     marchallObj(t, LoginRequest{Email: "lol@test.cd", Password: pwd}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/users/login",
			body:     marchallObj(t, LoginRequest{Email: usr.Email, Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/api/users/login",
			body:     marchallObj(t, LoginRequest{Email: "ndog@test.cd", Password: pwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("success", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPost, path: "/api/users/login",
			body:     marchallObj(t, LoginRequest{Email: " AWE@test.cd ", Password: pwd}),
			wantCode: http.StatusOK,
		})
		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.User)
		assert.Equal(t, usr.ID, resp.User.ID)
		assert.True(t, resp.User.LastLogin.Valid)

		// the token grants access to the authed endpoints
		rec = app.run(t, httpTest{path: "/api/users/me", token: resp.Token, wantCode: http.StatusOK})
		var me user.User
		decode(t, rec, &me)
		assert.Equal(t, usr.ID, me.ID)
		assert.Equal(t, user.RoleParent, me.ActiveRole)
	})
}

func Test_userApi_register(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Taken", "taken@test.cd", user.RoleParent)

	nu := func(email string, roles ...user.Role) []byte {
		return marchallObj(t, user.NewUser{
			Name: "New Parent", Email: email, Password: "Sup3r.Secret", PasswordConfirm: "Sup3r.Secret", Roles: roles,
		})
	}

	tests := []httpTest{
		{
			name: "admin self-registration", method: http.MethodPost, path: "/api/users/register",
			body: nu("admin@test.cd", user.RoleAdmin), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "cannot self-register as admin"}),
		},
		{
			name: "unknown role", method: http.MethodPost, path: "/api/users/register",
			body: nu("lol@test.cd", "lol"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": "invalid roles"}),
		},
		{
			name: "email exists", method: http.MethodPost, path: "/api/users/register",
			body: nu("taken@test.cd", user.RoleParent), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "weak password", method: http.MethodPost, path: "/api/users/register",
			body: marchallObj(t, user.NewUser{
				Name: "Weak", Email: "weak@test.cd", Password: "12345678", PasswordConfirm: "12345678",
				Roles: []user.Role{user.RoleParent},
			}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("parent and student", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPost, path: "/api/users/register",
			body: nu("NEW@test.cd", user.RoleParent, user.RoleStudent), wantCode: http.StatusCreated,
		})
		var resp LoginResponse
		decode(t, rec, &resp)
		require.NotNil(t, resp.User)
		assert.Equal(t, "new@test.cd", resp.User.Email)
		assert.True(t, resp.User.HasRole(user.RoleParent))
		assert.True(t, resp.User.HasRole(user.RoleStudent))

		// the student role came with its profile
		_, err := app.Rosters.StudentProfile(context.Background(), *resp.User)
		assert.NoError(t, err)
	})
}

func Test_userApi_authorization(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, "Hero", "hero@test.cd", user.RoleStudent)
	admin := app.createUser(t, "Admin", "admin@test.cd", user.RoleAdmin)

	tests := []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/api/users", token: app.token(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Admin", path: "/api/users", token: app.token(t, admin), wantCode: http.StatusOK},
		{
			name: "Parent role required", path: "/api/children", token: app.token(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "invalid token", path: "/api/users/me", token: "lol", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("deleted user", func(t *testing.T) {
		ghost := app.createUser(t, "Ghost", "ghost@test.cd", user.RoleParent)
		token := app.token(t, ghost)
		require.NoError(t, app.Users.Delete(context.Background(), ghost.ID))
		app.run(t, httpTest{path: "/api/users/me", token: token, wantCode: http.StatusUnauthorized})
	})

	t.Run("deactivated user", func(t *testing.T) {
		naughty := app.createUser(t, "N Dog", "ndog@test.cd", user.RoleParent)
		token := app.token(t, naughty)
		inactive := false
		_, err := app.Users.Update(context.Background(), naughty, user.UpdateUser{Name: naughty.Name, Email: naughty.Email, IsActive: &inactive})
		require.NoError(t, err)
		app.run(t, httpTest{
			path: "/api/users/me", token: token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		})
	})

	t.Run("cannot delete self", func(t *testing.T) {
		app.run(t, httpTest{
			method: http.MethodDelete, path: "/api/users/" + admin.ID, token: app.token(t, admin),
			wantCode: http.StatusForbidden,
		})
	})
}

func Test_userApi_roles(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Multi", "multi@test.cd", user.RoleParent)
	token := app.token(t, usr)

	// add the teacher role, then act as teacher
	rec := app.run(t, httpTest{
		method: http.MethodPost, path: "/api/users/me/roles", token: token,
		body: marchallObj(t, RoleRequest{Role: user.RoleTeacher}), wantCode: http.StatusOK,
	})
	var resp LoginResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.User)
	assert.True(t, resp.User.HasRole(user.RoleTeacher))
	assert.Equal(t, user.RoleParent, resp.User.ActiveRole)

	rec = app.run(t, httpTest{
		method: http.MethodPost, path: "/api/users/me/switch-role", token: resp.Token,
		body: marchallObj(t, RoleRequest{Role: user.RoleTeacher}), wantCode: http.StatusOK,
	})
	decode(t, rec, &resp)
	assert.Equal(t, user.RoleTeacher, resp.User.ActiveRole)

	tests := []httpTest{
		{
			name: "switch to a role not held", method: http.MethodPost, path: "/api/users/me/switch-role", token: resp.Token,
			body: marchallObj(t, RoleRequest{Role: user.RoleStudent}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "user does not hold this role"}),
		},
		{
			name: "grant self admin", method: http.MethodPost, path: "/api/users/me/roles", token: resp.Token,
			body: marchallObj(t, RoleRequest{Role: user.RoleAdmin}), wantCode: http.StatusForbidden,
		},
		{
			name: "remove active role", method: http.MethodDelete, path: "/api/users/me/roles/teacher", token: resp.Token,
			wantCode: http.StatusOK,
		},
		{
			name: "remove last role", method: http.MethodDelete, path: "/api/users/me/roles/parent", token: resp.Token,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "cannot remove the last role"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}
}

func Test_userApi_updateMe(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, "Awe", "awe@test.cd", user.RoleParent)
	token := app.token(t, usr)

	app.run(t, httpTest{
		name: "cannot change own email", method: http.MethodPut, path: "/api/users/me", token: token,
		body: []byte(`{"email": "new@test.cd"}`), wantCode: http.StatusForbidden,
	})

	rec := app.run(t, httpTest{
		method: http.MethodPut, path: "/api/users/me", token: token,
		body: []byte(`{"name": "Awesome", "email_notifications": false, "reminder_days": [2]}`), wantCode: http.StatusOK,
	})
	var got user.User
	decode(t, rec, &got)
	assert.Equal(t, "Awesome", got.Name)
	assert.Equal(t, usr.Email, got.Email)
	assert.False(t, got.EmailNotifications)
	assert.Equal(t, []int{2}, got.ReminderDays)
}
