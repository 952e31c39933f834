package messaging_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/messaging"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

func TestService_notificationWindow(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, env.Users, "Admin", "admin@test.cd", "", []user.Role{user.RoleAdmin}, true)
	parent := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)

	start := time.Now()
	core.NowFunc = func() time.Time { return start }
	defer func() { core.NowFunc = time.Now }()

	send := func(content string) {
		_, err := env.Messaging.CreateOrContinue(ctx, parent, messaging.NewConversation{RecipientID: admin.ID, Content: content})
		require.NoError(t, err)
	}
	notifs := func() []notification.Notification {
		ns, err := env.Notifications.Query(ctx, admin, notification.QueryFilter{Type: notification.TypeMessage})
		require.NoError(t, err)
		return ns
	}

	send("Hello")
	core.NowFunc = func() time.Time { return start.Add(4 * time.Minute) }
	send("Are you there?")
	require.Len(t, notifs(), 1)
	assert.Equal(t, "New message from Mom", notifs()[0].Title)

	core.NowFunc = func() time.Time { return start.Add(10 * time.Minute) }
	send("Hello again")
	assert.Len(t, notifs(), 2)

	t.Run("a read notification does not suppress the next one", func(t *testing.T) {
		require.NoError(t, env.Notifications.MarkAllRead(ctx, admin))
		send("Still here")
		assert.Len(t, notifs(), 3)
	})
}

func recipients(t *testing.T, env *testutil.Env, usr user.User) map[string]messaging.Recipient {
	rs, err := env.Messaging.ValidRecipients(context.Background(), usr)
	require.NoError(t, err)
	byID := make(map[string]messaging.Recipient, len(rs))
	for _, r := range rs {
		byID[r.UserID] = r
	}
	return byID
}

func TestService_ValidRecipients_teacherLink(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	mom := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)
	other := testutil.CreateUser(t, env.Users, "Other", "other@test.cd", "", []user.Role{user.RoleParent}, true)
	kid := testutil.CreateUser(t, env.Users, "Kid", "kid@test.cd", "", []user.Role{user.RoleStudent}, true)
	tutor := testutil.CreateUser(t, env.Users, "Tutor", "tutor@test.cd", "", []user.Role{user.RoleTeacher}, true)

	child, err := env.Rosters.LinkChild(ctx, mom, roster.LinkChild{StudentEmail: kid.Email, Relationship: roster.RelationshipMother})
	require.NoError(t, err)

	assert.NotContains(t, recipients(t, env, mom), tutor.ID)
	assert.NotContains(t, recipients(t, env, tutor), mom.ID)

	link, err := env.Rosters.LinkTeacher(ctx, mom, roster.LinkTeacher{StudentID: child.Profile.ID, TeacherName: "Mr Tutor", TeacherEmail: tutor.Email})
	require.NoError(t, err)
	assert.Equal(t, tutor.ID, link.TeacherUserID.String)

	_, err = env.Rosters.LinkTeacher(ctx, mom, roster.LinkTeacher{StudentID: child.Profile.ID, TeacherName: "Tutor", TeacherEmail: tutor.Email})
	assert.Equal(t, roster.ErrTeacherAlreadyLinked, err)
	_, err = env.Rosters.LinkTeacher(ctx, other, roster.LinkTeacher{StudentID: child.Profile.ID, TeacherName: "Tutor", TeacherEmail: tutor.Email})
	assert.Equal(t, roster.ErrStudentNotFound, err)

	t.Run("both directions", func(t *testing.T) {
		r, ok := recipients(t, env, mom)[tutor.ID]
		require.True(t, ok)
		assert.Equal(t, user.RoleTeacher, r.Role)
		assert.Equal(t, []string{"Kid"}, r.StudentNames)

		r, ok = recipients(t, env, tutor)[mom.ID]
		require.True(t, ok)
		assert.Equal(t, user.RoleParent, r.Role)
		assert.Equal(t, []string{"Kid"}, r.StudentNames)
		assert.NotContains(t, recipients(t, env, tutor), other.ID)

		_, err := env.Messaging.CreateOrContinue(ctx, tutor, messaging.NewConversation{RecipientID: mom.ID, Content: "Kid did great"})
		assert.NoError(t, err)
	})

	t.Run("teacher registering later", func(t *testing.T) {
		link, err := env.Rosters.LinkTeacher(ctx, mom, roster.LinkTeacher{StudentID: child.Profile.ID, TeacherName: "Ms Late", TeacherEmail: "late@test.cd"})
		require.NoError(t, err)
		assert.False(t, link.TeacherUserID.Valid)

		late := testutil.CreateUser(t, env.Users, "Ms Late", "late@test.cd", "", []user.Role{user.RoleTeacher}, true)
		assert.Contains(t, recipients(t, env, mom), late.ID)
		assert.Contains(t, recipients(t, env, late), mom.ID)
	})
}

func TestService_SendMessage_adminFanOut(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, env.Users, "Ada", "ada@test.cd", "", []user.Role{user.RoleAdmin}, true)
	bob := testutil.CreateUser(t, env.Users, "Bob", "bob@test.cd", "", []user.Role{user.RoleAdmin}, true)
	mom := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)

	conv, err := env.Messaging.CreateOrContinue(ctx, mom, messaging.NewConversation{RecipientID: ada.ID, Content: "I need help"})
	require.NoError(t, err)
	for _, content := range []string{"Anyone?", "Still waiting"} {
		_, err = env.Messaging.SendMessage(ctx, mom, conv.ID, messaging.NewMessage{Content: content})
		require.NoError(t, err)
	}

	for _, admin := range []user.User{ada, bob} {
		convs, err := env.Messaging.Conversations(ctx, admin)
		require.NoError(t, err)
		require.Len(t, convs, 1, admin.Name)
		assert.Equal(t, mom.ID, convs[0].Other.ID)
		assert.Equal(t, 3, convs[0].UnreadCount)
		assert.NotNil(t, convs[0].LastMessage)

		unread, err := env.Messaging.UnreadCount(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, 3, unread)
	}

	convs, err := env.Messaging.Conversations(ctx, mom)
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}
