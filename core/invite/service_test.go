package invite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

func newUser(name string) user.NewUser {
	return user.NewUser{Name: name, Password: "Sup3r.Secret", PasswordConfirm: "Sup3r.Secret"}
}

func accept(t *testing.T, env *testutil.Env, inv invite.Invite, name string) user.User {
	stored, err := env.Repos.Invites.GetInvite(context.Background(), invite.GetFilter{ID: inv.ID})
	require.NoError(t, err)
	usr, err := env.Invites.Accept(context.Background(), stored.Token, newUser(name))
	require.NoError(t, err)
	return usr
}

func TestService_parentInvitesStudent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	parent := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)

	inv, err := env.Invites.Create(ctx, parent, invite.NewInvite{Email: "kid@test.cd", Role: user.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, inv.Metadata.ParentID)
	assert.Equal(t, roster.RelationshipOther, inv.Metadata.Relationship)

	kid := accept(t, env, inv, "Kid")
	assert.Equal(t, user.RoleStudent, kid.ActiveRole)

	children, err := env.Rosters.Children(ctx, parent)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, kid.ID, children[0].User.ID)
	assert.Equal(t, roster.RelationshipOther, children[0].Relationship)

	got, err := env.Repos.Invites.GetInvite(ctx, invite.GetFilter{ID: inv.ID})
	require.NoError(t, err)
	assert.Equal(t, invite.StatusAccepted, got.Status)
	assert.True(t, got.AcceptedAt.Valid)
}

func TestService_teacherInvitesParent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.Users, "Teach", "teach@test.cd", "", []user.Role{user.RoleTeacher}, true)
	kid := testutil.CreateUser(t, env.Users, "Kid", "kid@test.cd", "", []user.Role{user.RoleStudent}, true)
	other := testutil.CreateUser(t, env.Users, "Other", "other@test.cd", "", []user.Role{user.RoleStudent}, true)

	math, err := env.Courses.Create(ctx, teacher, course.NewCourse{Name: "Math"})
	require.NoError(t, err)
	_, err = env.Courses.AddStudent(ctx, teacher, math.ID, kid.Email)
	require.NoError(t, err)

	kidProfile, err := env.Rosters.StudentProfile(ctx, kid)
	require.NoError(t, err)
	otherProfile, err := env.Rosters.StudentProfile(ctx, other)
	require.NoError(t, err)

	_, err = env.Invites.Create(ctx, teacher, invite.NewInvite{Email: "dad@test.cd", Role: user.RoleParent, StudentID: otherProfile.ID})
	assert.Equal(t, invite.ErrStudentNotLinked, err)

	inv, err := env.Invites.Create(ctx, teacher, invite.NewInvite{
		Email: "dad@test.cd", Role: user.RoleParent, StudentID: kidProfile.ID, Relationship: roster.RelationshipFather,
	})
	require.NoError(t, err)

	dad := accept(t, env, inv, "Dad")
	children, err := env.Rosters.Children(ctx, dad)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, kid.ID, children[0].User.ID)
	assert.Equal(t, roster.RelationshipFather, children[0].Relationship)
}

func TestService_teacherClaimsShadowProfile(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, env.Users, "Admin", "admin@test.cd", "", []user.Role{user.RoleAdmin}, true)

	chem, err := env.Courses.Create(ctx, admin, course.NewCourse{Name: "Chemistry", TeacherName: "Mr White", TeacherEmail: "white@test.cd"})
	require.NoError(t, err)
	require.True(t, chem.TeacherID.Valid)
	shadowID := chem.TeacherID.String

	inv, err := env.Invites.Create(ctx, admin, invite.NewInvite{Email: "white@test.cd", Role: user.RoleTeacher})
	require.NoError(t, err)
	white := accept(t, env, inv, "Walter White")

	profile, err := env.Rosters.TeacherProfile(ctx, white)
	require.NoError(t, err)
	assert.Equal(t, roster.TeacherClaimed, profile.Kind)
	assert.NotEqual(t, shadowID, profile.ID)

	chem, err = env.Courses.Get(ctx, admin, chem.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, chem.TeacherID.String)
}

func TestService_adminInvite(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.Users, "Teach", "teach@test.cd", "", []user.Role{user.RoleTeacher}, true)
	admin := testutil.CreateUser(t, env.Users, "Admin", "admin@test.cd", "", []user.Role{user.RoleAdmin}, true)

	_, err := env.Invites.Create(ctx, teacher, invite.NewInvite{Email: "boss@test.cd", Role: user.RoleAdmin})
	assert.Equal(t, invite.ErrAdminInvite, err)

	inv, err := env.Invites.Create(ctx, admin, invite.NewInvite{Email: "boss@test.cd", Role: user.RoleAdmin})
	require.NoError(t, err)
	boss := accept(t, env, inv, "Boss")
	assert.True(t, boss.IsAdmin())
}

func TestService_Accept_emailTaken(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	parent := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)

	inv, err := env.Invites.Create(ctx, parent, invite.NewInvite{Email: "kid@test.cd", Role: user.RoleStudent})
	require.NoError(t, err)
	stored, err := env.Repos.Invites.GetInvite(ctx, invite.GetFilter{ID: inv.ID})
	require.NoError(t, err)

	// registered on their own before following the link
	testutil.CreateUser(t, env.Users, "Kid", "kid@test.cd", "", []user.Role{user.RoleStudent}, true)

	_, err = env.Invites.Accept(ctx, stored.Token, newUser("Kid"))
	assert.Equal(t, invite.ErrUserExists, err)

	got, err := env.Repos.Invites.GetInvite(ctx, invite.GetFilter{ID: inv.ID})
	require.NoError(t, err)
	assert.Equal(t, invite.StatusPending, got.Status)
	assert.False(t, got.AcceptedAt.Valid)

	children, err := env.Rosters.Children(ctx, parent)
	require.NoError(t, err)
	assert.Empty(t, children)
}
