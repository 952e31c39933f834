package googlesvc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/classroom/v1"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

const storedToken = `{"access_token": "abc", "refresh_token": "def", "token_type": "Bearer"}`

func testOAuth() *OAuth {
	conf := &core.Config{}
	conf.Google.ClientID = "id"
	conf.Google.ClientSecret = "secret"
	conf.Google.RedirectURL = "http://localhost/callback"
	return NewOAuth(conf)
}

// googleAPI serves canned JSON responses by request path.
func googleAPI(t *testing.T, routes map[string]interface{}) []option.ClientOption {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return []option.ClientOption{option.WithEndpoint(srv.URL + "/"), option.WithHTTPClient(srv.Client())}
}

func TestOAuth(t *testing.T) {
	o := testOAuth()
	assert.True(t, o.Enabled())
	assert.False(t, NewOAuth(&core.Config{}).Enabled())

	u := o.AuthCodeURL("state-jwt")
	assert.Contains(t, u, "state=state-jwt")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "client_id=id")
}

func Test_decodeToken(t *testing.T) {
	tok, err := decodeToken(storedToken)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "def", tok.RefreshToken)

	_, err = decodeToken("{}")
	assert.EqualError(t, err, "empty oauth token")
	_, err = decodeToken("lol")
	assert.Error(t, err)
}

func Test_refreshed(t *testing.T) {
	old := &oauth2.Token{AccessToken: "abc", RefreshToken: "def"}

	// unchanged tokens are not stored again
	got, err := refreshed(oauth2.StaticTokenSource(old), old)
	require.NoError(t, err)
	assert.Empty(t, got)

	// the refresh token is carried over when the provider omits it
	got, err = refreshed(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "new"}), old)
	require.NoError(t, err)
	tok, err := decodeToken(got)
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)
	assert.Equal(t, "def", tok.RefreshToken)
}

func Test_subjectOf(t *testing.T) {
	assert.Equal(t, "Field trip", subjectOf("  Field trip \nBring lunch"))
	long := strings.Repeat("a", 100)
	assert.Equal(t, strings.Repeat("a", 77)+"...", subjectOf(long))
}

func TestGmailFetcher_FetchSince(t *testing.T) {
	received := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	opts := googleAPI(t, map[string]interface{}{
		"/gmail/v1/users/me/messages": gmail.ListMessagesResponse{Messages: []*gmail.Message{{Id: "m1"}, {Id: "m2"}}},
		"/gmail/v1/users/me/messages/m1": gmail.Message{
			Id:           "m1",
			InternalDate: received.UnixMilli(),
			Payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Headers: []*gmail.MessagePartHeader{
					{Name: "Subject", Value: "Field trip"},
					{Name: "from", Value: "Ms Teach <Teach@School.org>"},
				},
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<p>html</p>"))}},
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(" Bring lunch. \n"))}},
				},
			},
		},
		"/gmail/v1/users/me/messages/m2": gmail.Message{Id: "m2", InternalDate: received.UnixMilli(), Snippet: "just a snippet"},
	})

	f := NewGmailFetcher(testOAuth(), opts...)
	assert.Equal(t, communication.SourceGmail, f.Source())

	items, token, err := f.FetchSince(context.Background(), user.User{GoogleToken: storedToken}, received.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, token)
	require.Len(t, items, 2)

	assert.Equal(t, communication.Item{
		SourceID:    "m1",
		SenderName:  "Ms Teach",
		SenderEmail: "teach@school.org",
		Subject:     "Field trip",
		Body:        "Bring lunch.",
		ReceivedAt:  received,
	}, items[0])
	assert.Equal(t, "just a snippet", items[1].Body)
}

func TestGmailFetcher_noToken(t *testing.T) {
	f := NewGmailFetcher(testOAuth())
	_, _, err := f.FetchSince(context.Background(), user.User{}, time.Now())
	assert.Error(t, err)
}

func TestClassroomFetcher_FetchSince(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	opts := googleAPI(t, map[string]interface{}{
		"/v1/courses": classroom.ListCoursesResponse{Courses: []*classroom.Course{{Id: "c1", Name: "Math"}}},
		"/v1/courses/c1/teachers": classroom.ListTeachersResponse{Teachers: []*classroom.Teacher{
			{UserId: "t1", Profile: &classroom.UserProfile{EmailAddress: "Teach@School.org", Name: &classroom.Name{FullName: "Ms Teach"}}},
			{UserId: "t2"},
		}},
		"/v1/courses/c1/announcements": classroom.ListAnnouncementsResponse{Announcements: []*classroom.Announcement{
			{Id: "a1", CreatorUserId: "t1", Text: "Quiz on Monday\nChapters 1 to 3", CreationTime: "2024-03-02T10:00:00Z"},
			{Id: "a2", CreatorUserId: "t1", Text: "Old news", CreationTime: "2024-02-02T10:00:00Z"},
		}},
	})

	f := NewClassroomFetcher(testOAuth(), opts...)
	assert.Equal(t, communication.SourceClassroom, f.Source())

	items, _, err := f.FetchSince(context.Background(), user.User{GoogleToken: storedToken}, since)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, communication.Item{
		SourceID:     "a1",
		SenderName:   "Ms Teach",
		SenderEmail:  "teach@school.org",
		Subject:      "Quiz on Monday",
		Body:         "Quiz on Monday\nChapters 1 to 3",
		CourseName:   "Math",
		ReceivedAt:   time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
		TeacherName:  "Ms Teach",
		TeacherEmail: "teach@school.org",
	}, items[0])
}
