package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/theepangnani/emai-dev-03-sub000/apps/api/echo"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/messaging"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type messagingFixture struct {
	*testApp
	admin1, admin2, parent, stranger, teacher, student user.User
}

func setupMessaging(t *testing.T) messagingFixture {
	app := setup(t)
	ctx := context.Background()
	f := messagingFixture{
		testApp:  app,
		admin1:   app.createUser(t, "Ada", "ada@test.cd", user.RoleAdmin),
		admin2:   app.createUser(t, "Bob", "bob@test.cd", user.RoleAdmin),
		parent:   app.createUser(t, "Mom", "mom@test.cd", user.RoleParent),
		stranger: app.createUser(t, "Stranger", "stranger@test.cd", user.RoleParent),
		teacher:  app.createUser(t, "Teach", "teach@test.cd", user.RoleTeacher),
		student:  app.createUser(t, "Kid", "kid@test.cd", user.RoleStudent),
	}
	_, err := app.Rosters.LinkChild(ctx, f.parent, roster.LinkChild{StudentEmail: f.student.Email, Relationship: roster.RelationshipMother})
	require.NoError(t, err)
	math, err := app.Courses.Create(ctx, f.teacher, course.NewCourse{Name: "Math"})
	require.NoError(t, err)
	_, err = app.Courses.AddStudent(ctx, f.teacher, math.ID, f.student.Email)
	require.NoError(t, err)
	return f
}

func recipientIDs(t *testing.T, app *testApp, usr user.User) []string {
	rec := app.run(t, httpTest{path: "/api/messages/recipients", token: app.token(t, usr), wantCode: http.StatusOK})
	var recipients []messaging.Recipient
	decode(t, rec, &recipients)
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.UserID)
	}
	return ids
}

func Test_messagingApi_recipients(t *testing.T) {
	f := setupMessaging(t)

	assert.ElementsMatch(t, []string{f.admin1.ID, f.admin2.ID, f.teacher.ID}, recipientIDs(t, f.testApp, f.parent))
	assert.ElementsMatch(t, []string{f.admin1.ID, f.admin2.ID, f.parent.ID}, recipientIDs(t, f.testApp, f.teacher))
	assert.ElementsMatch(t, []string{f.admin1.ID, f.admin2.ID}, recipientIDs(t, f.testApp, f.stranger))
	assert.ElementsMatch(
		t,
		[]string{f.admin2.ID, f.parent.ID, f.stranger.ID, f.teacher.ID, f.student.ID},
		recipientIDs(t, f.testApp, f.admin1),
	)

	tests := []httpTest{
		{
			name: "not eligible", method: http.MethodPost, path: "/api/messages/conversations", token: f.token(t, f.stranger),
			body:     marchallObj(t, messaging.NewConversation{RecipientID: f.teacher.ID, Content: "Hello"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you cannot message this user"}),
		},
		{
			name: "empty content", method: http.MethodPost, path: "/api/messages/conversations", token: f.token(t, f.parent),
			body:     marchallObj(t, messaging.NewConversation{RecipientID: f.teacher.ID, Content: "  "}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"content": "this field is required"}),
		},
		{
			name: "self", method: http.MethodPost, path: "/api/messages/conversations", token: f.token(t, f.parent),
			body:     marchallObj(t, messaging.NewConversation{RecipientID: f.parent.ID, Content: "Hello"}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.run(t, tt)
		})
	}
}

func Test_messagingApi_conversation(t *testing.T) {
	f := setupMessaging(t)
	parentToken, teacherToken := f.token(t, f.parent), f.token(t, f.teacher)

	rec := f.run(t, httpTest{
		method: http.MethodPost, path: "/api/messages/conversations", token: parentToken,
		body:     marchallObj(t, messaging.NewConversation{RecipientID: f.teacher.ID, Content: "How is Kid doing?"}),
		wantCode: http.StatusCreated,
	})
	var conv messaging.ConversationDetail
	decode(t, rec, &conv)
	assert.True(t, conv.HasParticipant(f.parent.ID))
	assert.True(t, conv.HasParticipant(f.teacher.ID))
	assert.Equal(t, f.teacher.ID, conv.Other.ID)
	require.Len(t, conv.Messages, 1)

	t.Run("continues the existing conversation", func(t *testing.T) {
		rec := f.run(t, httpTest{
			method: http.MethodPost, path: "/api/messages/conversations", token: parentToken,
			body:     marchallObj(t, messaging.NewConversation{RecipientID: f.teacher.ID, Content: "Any homework?"}),
			wantCode: http.StatusCreated,
		})
		var again messaging.ConversationDetail
		decode(t, rec, &again)
		assert.Equal(t, conv.ID, again.ID)
		assert.Len(t, again.Messages, 2)
	})

	t.Run("unread until opened", func(t *testing.T) {
		f.run(t, httpTest{
			path: "/api/messages/unread-count", token: teacherToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 2}),
		})
		f.run(t, httpTest{path: "/api/messages/conversations/" + conv.ID, token: teacherToken, wantCode: http.StatusOK})
		f.run(t, httpTest{
			path: "/api/messages/unread-count", token: teacherToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 0}),
		})
	})

	t.Run("notifications are deduplicated", func(t *testing.T) {
		f.run(t, httpTest{
			path: "/api/notifications/unread-count", token: teacherToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 1}),
		})
	})

	t.Run("reply", func(t *testing.T) {
		f.run(t, httpTest{
			method: http.MethodPost, path: "/api/messages/conversations/" + conv.ID + "/messages", token: teacherToken,
			body: marchallObj(t, messaging.NewMessage{Content: "Doing great"}), wantCode: http.StatusCreated,
		})
		f.run(t, httpTest{
			path: "/api/messages/unread-count", token: parentToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 1}),
		})
	})

	t.Run("outsiders cannot read it", func(t *testing.T) {
		f.run(t, httpTest{
			path: "/api/messages/conversations/" + conv.ID, token: f.token(t, f.stranger),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "conversation not found"}),
		})
		f.run(t, httpTest{
			method: http.MethodPost, path: "/api/messages/conversations/" + conv.ID + "/messages", token: f.token(t, f.stranger),
			body: marchallObj(t, messaging.NewMessage{Content: "Hi"}), wantCode: http.StatusNotFound,
		})
	})
}

func Test_messagingApi_adminFanOut(t *testing.T) {
	f := setupMessaging(t)

	f.run(t, httpTest{
		method: http.MethodPost, path: "/api/messages/conversations", token: f.token(t, f.parent),
		body:     marchallObj(t, messaging.NewConversation{RecipientID: f.admin1.ID, Content: "I need help"}),
		wantCode: http.StatusCreated,
	})

	for _, admin := range []user.User{f.admin1, f.admin2} {
		rec := f.run(t, httpTest{path: "/api/messages/conversations", token: f.token(t, admin), wantCode: http.StatusOK})
		var convs []messaging.ConversationSummary
		decode(t, rec, &convs)
		require.Len(t, convs, 1, admin.Name)
		assert.Equal(t, f.parent.ID, convs[0].Other.ID)
		require.NotNil(t, convs[0].LastMessage)
		assert.Equal(t, "I need help", convs[0].LastMessage.Content)
		assert.Equal(t, 1, convs[0].UnreadCount)

		f.run(t, httpTest{
			path: "/api/notifications/unread-count", token: f.token(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 1}),
		})
	}

	// the sender has one conversation per admin
	rec := f.run(t, httpTest{path: "/api/messages/conversations", token: f.token(t, f.parent), wantCode: http.StatusOK})
	var convs []messaging.ConversationSummary
	decode(t, rec, &convs)
	assert.Len(t, convs, 2)
}
