package communication_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

type fakeFetcher struct {
	source communication.Source
	items  []communication.Item
	token  string
	err    error
	since  []time.Time
}

func (f *fakeFetcher) Source() communication.Source { return f.source }

func (f *fakeFetcher) FetchSince(_ context.Context, _ user.User, since time.Time) ([]communication.Item, string, error) {
	f.since = append(f.since, since)
	return f.items, f.token, f.err
}

type upperSummarizer struct{}

func (upperSummarizer) Summarize(_ context.Context, text string) (string, error) {
	if text == "boom" {
		return "", errors.New("summarizer down")
	}
	return strings.ToUpper(text), nil
}

func TestService_SyncUser(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)
	received := time.Now().Add(-time.Hour).UTC()
	gmail := &fakeFetcher{
		source: communication.SourceGmail,
		token:  `{"access_token":"new"}`,
		items: []communication.Item{
			{SourceID: "m1", SenderName: "Mr White", SenderEmail: "white@test.cd", Subject: "Lab", Body: "bring goggles", ReceivedAt: received},
			{SourceID: "m2", Subject: "Quiet", Body: "boom", ReceivedAt: received},
		},
	}
	classroom := &fakeFetcher{
		source: communication.SourceClassroom,
		items: []communication.Item{{
			SourceID: "a1", Subject: "Quiz", Body: "on friday", CourseName: "Chemistry", ReceivedAt: received,
			TeacherName: "Mr White", TeacherEmail: "white@test.cd",
		}},
	}
	broken := &fakeFetcher{source: "broken", err: errors.New("provider down")}
	svc := communication.NewService(env.Repos.Comms, env.Users, env.Rosters, upperSummarizer{}, env.Audit, env.Logger, gmail, broken, classroom)

	_, err := svc.SyncUser(ctx, usr)
	assert.Equal(t, communication.ErrNotConnected, err)

	usr, err = env.Users.SetGoogleToken(ctx, usr, `{"access_token":"old"}`)
	require.NoError(t, err)

	res, err := svc.SyncUser(ctx, usr)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "provider down")

	t.Run("records", func(t *testing.T) {
		records, err := svc.Query(ctx, usr, communication.QueryFilter{Source: communication.SourceGmail})
		require.NoError(t, err)
		require.Len(t, records, 2)
		for _, r := range records {
			switch r.SourceID {
			case "m1":
				assert.Equal(t, "BRING GOGGLES", r.Summary.String)
			case "m2":
				assert.False(t, r.Summary.Valid, "summaries are best effort")
			}
		}

		records, err = svc.Query(ctx, usr, communication.QueryFilter{Search: "quiz"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Chemistry", records[0].CourseName.String)
	})

	t.Run("refreshed token and last sync", func(t *testing.T) {
		got, err := env.Users.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, `{"access_token":"new"}`, got.GoogleToken)
		assert.True(t, got.LastSyncAt.Valid)
		usr = got
	})

	t.Run("teacher discovered", func(t *testing.T) {
		tp, err := env.Repos.Rosters.GetTeacherProfile(ctx, roster.TeacherFilter{Email: "white@test.cd"})
		require.NoError(t, err)
		assert.True(t, tp.IsShadow())
	})

	t.Run("resync skips known items", func(t *testing.T) {
		res, err := svc.SyncUser(ctx, usr)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Created)
		assert.Equal(t, 3, res.Skipped)
		assert.Equal(t, usr.LastSyncAt.Time, gmail.since[len(gmail.since)-1])
	})

	t.Run("mark read", func(t *testing.T) {
		unread, err := svc.Query(ctx, usr, communication.QueryFilter{UnreadOnly: true})
		require.NoError(t, err)
		require.Len(t, unread, 3)

		stranger := testutil.CreateUser(t, env.Users, "Stranger", "stranger@test.cd", "", []user.Role{user.RoleParent}, true)
		assert.Equal(t, communication.ErrNotFound, svc.MarkRead(ctx, stranger, unread[0].ID))

		require.NoError(t, svc.MarkRead(ctx, usr, unread[0].ID))
		unread, err = svc.Query(ctx, usr, communication.QueryFilter{UnreadOnly: true})
		require.NoError(t, err)
		assert.Len(t, unread, 2)
	})
}

func TestService_SyncAll(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	connected := testutil.CreateUser(t, env.Users, "Mom", "mom@test.cd", "", []user.Role{user.RoleParent}, true)
	_, err := env.Users.SetGoogleToken(ctx, connected, `{"access_token":"tok"}`)
	require.NoError(t, err)
	testutil.CreateUser(t, env.Users, "Dad", "dad@test.cd", "", []user.Role{user.RoleParent}, true)

	gmail := &fakeFetcher{
		source: communication.SourceGmail,
		items:  []communication.Item{{SourceID: "m1", Subject: "Hello", ReceivedAt: time.Now()}},
	}
	svc := communication.NewService(env.Repos.Comms, env.Users, env.Rosters, nil, env.Audit, env.Logger, gmail)

	require.NoError(t, svc.SyncAll(ctx))
	assert.Len(t, gmail.since, 1, "only connected users are synced")

	records, err := svc.Query(ctx, connected, communication.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
