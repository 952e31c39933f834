package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/theepangnani/emai-dev-03-sub000/apps/api/echo"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

func Test_rosterApi_children(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	parent := app.createUser(t, "Mom", "mom@test.cd", user.RoleParent)
	coParent := app.createUser(t, "Dad", "dad@test.cd", user.RoleParent)
	student := app.createUser(t, "Kid", "kid@test.cd", user.RoleStudent)
	teacher := app.createUser(t, "Teach", "teach@test.cd", user.RoleTeacher)

	math, err := app.Courses.Create(ctx, teacher, course.NewCourse{Name: "Math"})
	require.NoError(t, err)
	_, err = app.Courses.Create(ctx, teacher, course.NewCourse{Name: "Art", IsPrivate: true})
	require.NoError(t, err)
	_, err = app.Courses.AddStudent(ctx, teacher, math.ID, student.Email)
	require.NoError(t, err)

	token := app.token(t, parent)
	link := func(email string, inv bool) []byte {
		return marchallObj(t, LinkChildRequest{
			LinkChild: roster.LinkChild{StudentEmail: email, Relationship: roster.RelationshipMother},
			Invite:    inv,
		})
	}

	tests := []httpTest{
		{name: "no children yet", path: "/api/children", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "invalid relationship", method: http.MethodPost, path: "/api/children", token: token,
			body:     []byte(`{"student_email": "kid@test.cd", "relationship": "uncle"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"relationship": "relationship must be one of the allowed values"}),
		},
		{name: "link", method: http.MethodPost, path: "/api/children", token: token, body: link(student.Email, false), wantCode: http.StatusCreated},
		{
			name: "link twice", method: http.MethodPost, path: "/api/children", token: token, body: link(student.Email, false),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "already linked"}),
		},
		{
			name: "unknown student", method: http.MethodPost, path: "/api/children", token: token, body: link("lol@test.cd", false),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
		{
			name: "co-parent link", method: http.MethodPost, path: "/api/children", token: app.token(t, coParent),
			body: link(student.Email, false), wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("children see their courses", func(t *testing.T) {
		rec := app.run(t, httpTest{path: "/api/children", token: token, wantCode: http.StatusOK})
		var children []ChildResponse
		decode(t, rec, &children)
		require.Len(t, children, 1)
		assert.Equal(t, student.ID, children[0].User.ID)
		assert.Equal(t, roster.RelationshipMother, children[0].Relationship)
		require.Len(t, children[0].Courses, 1)
		assert.Equal(t, math.ID, children[0].Courses[0].ID)
	})

	t.Run("parent sees the child's courses only", func(t *testing.T) {
		rec := app.run(t, httpTest{path: "/api/courses", token: token, wantCode: http.StatusOK})
		var courses []course.Course
		decode(t, rec, &courses)
		require.Len(t, courses, 1)
		assert.Equal(t, math.ID, courses[0].ID)
	})

	t.Run("student sees both parents", func(t *testing.T) {
		rec := app.run(t, httpTest{path: "/api/students/me/parents", token: app.token(t, student), wantCode: http.StatusOK})
		var parents []user.User
		decode(t, rec, &parents)
		ids := make([]string, 0, len(parents))
		for _, p := range parents {
			ids = append(ids, p.ID)
		}
		assert.ElementsMatch(t, []string{parent.ID, coParent.ID}, ids)
	})

	t.Run("unknown student is invited", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPost, path: "/api/children", token: token, body: link("New.Kid@test.cd", true),
			wantCode: http.StatusAccepted,
		})
		var inv invite.Invite
		decode(t, rec, &inv)
		assert.Equal(t, "new.kid@test.cd", inv.Email)
		assert.Equal(t, user.RoleStudent, inv.Role)
		assert.Equal(t, parent.ID, inv.Metadata.ParentID)
		assert.Equal(t, invite.StatusPending, inv.Status)
	})

	t.Run("unlink", func(t *testing.T) {
		rec := app.run(t, httpTest{path: "/api/children", token: token, wantCode: http.StatusOK})
		var children []ChildResponse
		decode(t, rec, &children)
		require.Len(t, children, 1)

		path := "/api/children/" + children[0].Profile.ID
		app.run(t, httpTest{method: http.MethodDelete, path: path, token: token, wantCode: http.StatusNoContent})
		app.run(t, httpTest{path: "/api/children", token: token, wantCode: http.StatusOK, wantData: marchallList(t)})
		app.run(t, httpTest{method: http.MethodDelete, path: path, token: token, wantCode: http.StatusNotFound})
	})
}

func Test_rosterApi_teacherLinks(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	parent := app.createUser(t, "Mom", "mom@test.cd", user.RoleParent)
	stranger := app.createUser(t, "Stranger", "stranger@test.cd", user.RoleParent)
	student := app.createUser(t, "Kid", "kid@test.cd", user.RoleStudent)
	tutor := app.createUser(t, "Tutor", "tutor@test.cd", user.RoleTeacher)

	child, err := app.Rosters.LinkChild(ctx, parent, roster.LinkChild{StudentEmail: student.Email, Relationship: roster.RelationshipMother})
	require.NoError(t, err)
	studentID := child.Profile.ID

	token := app.token(t, parent)
	link := func(name, email string) []byte {
		return marchallObj(t, roster.LinkTeacher{StudentID: studentID, TeacherName: name, TeacherEmail: email})
	}

	tests := []httpTest{
		{
			name: "registered teacher", method: http.MethodPost, path: "/api/children/teachers", token: token,
			body: link("Mr Tutor", "Tutor@test.cd"), wantCode: http.StatusCreated,
		},
		{
			name: "same teacher twice", method: http.MethodPost, path: "/api/children/teachers", token: token,
			body:     link("Mr Tutor", "tutor@test.cd"),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "teacher already linked to this student"}),
		},
		{
			name: "not my child", method: http.MethodPost, path: "/api/children/teachers", token: app.token(t, stranger),
			body:     link("Mr Tutor", "tutor@test.cd"),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
		{
			name: "unregistered teacher", method: http.MethodPost, path: "/api/children/teachers", token: token,
			body: link("Ms Late", "late@test.cd"), wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	t.Run("links", func(t *testing.T) {
		rec := app.run(t, httpTest{path: "/api/children/" + studentID + "/teachers", token: token, wantCode: http.StatusOK})
		var links []roster.TeacherLink
		decode(t, rec, &links)
		require.Len(t, links, 2)
		for _, l := range links {
			switch l.TeacherEmail {
			case "tutor@test.cd":
				assert.Equal(t, tutor.ID, l.TeacherUserID.String)
				assert.Equal(t, "Tutor", l.TeacherName)
			case "late@test.cd":
				assert.False(t, l.TeacherUserID.Valid)
			default:
				t.Errorf("unexpected link to %s", l.TeacherEmail)
			}
		}
	})

	t.Run("linked teacher and parent can message each other", func(t *testing.T) {
		assert.Contains(t, recipientIDs(t, app, parent), tutor.ID)
		assert.Contains(t, recipientIDs(t, app, tutor), parent.ID)
		assert.NotContains(t, recipientIDs(t, app, tutor), stranger.ID)
	})

	t.Run("teacher registering later is resolved", func(t *testing.T) {
		late := app.createUser(t, "Ms Late", "late@test.cd", user.RoleTeacher)
		assert.Contains(t, recipientIDs(t, app, parent), late.ID)
		assert.Contains(t, recipientIDs(t, app, late), parent.ID)
	})
}
