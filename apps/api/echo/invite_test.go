package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/theepangnani/emai-dev-03-sub000/apps/api/echo"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

func (app *testApp) inviteToken(t *testing.T, id string) string {
	inv, err := app.Repos.Invites.GetInvite(context.Background(), invite.GetFilter{ID: id})
	require.NoError(t, err)
	return inv.Token
}

func Test_inviteApi_create(t *testing.T) {
	app := setup(t)
	teacher := app.createUser(t, "Teach", "teach@test.cd", user.RoleTeacher)
	app.createUser(t, "Taken", "taken@test.cd", user.RoleParent)
	token := app.token(t, teacher)

	rec := app.run(t, httpTest{
		method: http.MethodPost, path: "/api/invites", token: token,
		body:     marchallObj(t, invite.NewInvite{Email: "New.Parent@test.cd", Role: user.RoleParent}),
		wantCode: http.StatusCreated,
	})
	var inv invite.Invite
	decode(t, rec, &inv)
	assert.Equal(t, "new.parent@test.cd", inv.Email)
	assert.Equal(t, invite.StatusPending, inv.Status)
	assert.Equal(t, teacher.ID, inv.InvitedBy)
	assert.True(t, inv.ExpiresAt.After(time.Now()))
	assert.NotContains(t, rec.Body.String(), app.inviteToken(t, inv.ID))

	sent := app.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "new.parent@test.cd", sent[0].To[0].Address)
	assert.Equal(t, app.inviteToken(t, inv.ID), sent[0].TemplateData.(map[string]interface{})["Token"])

	tests := []httpTest{
		{
			name: "pending invite exists", method: http.MethodPost, path: "/api/invites", token: token,
			body:     marchallObj(t, invite.NewInvite{Email: "new.parent@test.cd", Role: user.RoleParent}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "a pending invite already exists for this email"}),
		},
		{
			name: "user exists", method: http.MethodPost, path: "/api/invites", token: token,
			body:     marchallObj(t, invite.NewInvite{Email: "taken@test.cd", Role: user.RoleParent}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "a user with this email already exists"}),
		},
		{
			name: "admin invite", method: http.MethodPost, path: "/api/invites", token: token,
			body:     marchallObj(t, invite.NewInvite{Email: "boss@test.cd", Role: user.RoleAdmin}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only admins can invite admins"}),
		},
		{
			name: "invalid email", method: http.MethodPost, path: "/api/invites", token: token,
			body:     marchallObj(t, invite.NewInvite{Email: "lol", Role: user.RoleParent}),
			wantCode: http.StatusBadRequest,
		},
		{name: "sent invites", path: "/api/invites", token: token, wantCode: http.StatusOK, wantData: marchallList(t, inv)},
		{
			name: "resend by a stranger", method: http.MethodPost, path: "/api/invites/" + inv.ID + "/resend",
			token:    app.token(t, app.createUser(t, "Stranger", "stranger@test.cd", user.RoleTeacher)),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "invite not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("resend rotates the token", func(t *testing.T) {
		old := app.inviteToken(t, inv.ID)
		app.run(t, httpTest{method: http.MethodPost, path: "/api/invites/" + inv.ID + "/resend", token: token, wantCode: http.StatusOK})
		assert.NotEqual(t, old, app.inviteToken(t, inv.ID))
		app.run(t, httpTest{path: "/api/invites/token/" + old, wantCode: http.StatusNotFound})
	})
}

func Test_inviteApi_accept(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	teacher := app.createUser(t, "Teach", "teach@test.cd", user.RoleTeacher)
	math, err := app.Courses.Create(ctx, teacher, course.NewCourse{Name: "Math"})
	require.NoError(t, err)

	inv, err := app.Invites.Create(ctx, teacher, invite.NewInvite{Email: "newkid@test.cd", Role: user.RoleStudent, CourseID: math.ID})
	require.NoError(t, err)
	token := app.inviteToken(t, inv.ID)
	accept := marchallObj(t, AcceptInviteRequest{Name: "New Kid", Password: "Sup3r.Secret", PasswordConfirm: "Sup3r.Secret"})

	tests := []httpTest{
		{
			name: "unknown token", path: "/api/invites/token/lol",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "invite not found"}),
		},
		{
			name: "password mismatch", method: http.MethodPost, path: "/api/invites/token/" + token + "/accept",
			body:     marchallObj(t, AcceptInviteRequest{Name: "New Kid", Password: "Sup3r.Secret", PasswordConfirm: "lol"}),
			wantCode: http.StatusBadRequest,
		},
		{name: "retrieve", path: "/api/invites/token/" + token, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("accept", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPost, path: "/api/invites/token/" + token + "/accept", body: accept, wantCode: http.StatusCreated,
		})
		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.User)
		assert.Equal(t, "newkid@test.cd", resp.User.Email)
		assert.Equal(t, user.RoleStudent, resp.User.ActiveRole)

		// enrolled in the invite's course
		entries, err := app.Courses.Roster(ctx, teacher, math.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, resp.User.ID, entries[0].UserID)

		app.run(t, httpTest{path: "/api/users/me", token: resp.Token, wantCode: http.StatusOK})
	})

	t.Run("accept twice", func(t *testing.T) {
		app.run(t, httpTest{
			method: http.MethodPost, path: "/api/invites/token/" + token + "/accept", body: accept,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "invite already accepted"}),
		})
	})

	t.Run("expired", func(t *testing.T) {
		late, err := app.Invites.Create(ctx, teacher, invite.NewInvite{Email: "late@test.cd", Role: user.RoleParent})
		require.NoError(t, err)
		late, err = app.Repos.Invites.GetInvite(ctx, invite.GetFilter{ID: late.ID})
		require.NoError(t, err)
		late.ExpiresAt = time.Now().Add(-time.Minute)
		_, err = app.Repos.Invites.UpdateInvite(ctx, late)
		require.NoError(t, err)

		app.run(t, httpTest{
			method: http.MethodPost, path: "/api/invites/token/" + late.Token + "/accept",
			body:     marchallObj(t, AcceptInviteRequest{Name: "Late", Password: "Sup3r.Secret", PasswordConfirm: "Sup3r.Secret"}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "invite has expired"}),
		})
		got, err := app.Repos.Invites.GetInvite(ctx, invite.GetFilter{ID: late.ID})
		require.NoError(t, err)
		assert.Equal(t, invite.StatusExpired, got.Status)

		_, err = app.Users.GetByEmail(ctx, "late@test.cd")
		assert.Error(t, err)
	})
}
