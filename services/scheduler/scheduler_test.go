package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/services/scheduler"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

func noop(context.Context) error { return nil }

func TestNew(t *testing.T) {
	logger := testutil.Logger(testutil.Config())

	_, err := scheduler.New(logger, 0, scheduler.Job{Name: "a", Spec: "lol", Run: noop})
	assert.Error(t, err)

	_, err = scheduler.New(logger, 0,
		scheduler.Job{Name: "a", Spec: "@daily", Run: noop},
		scheduler.Job{Name: "a", Spec: "@hourly", Run: noop},
	)
	assert.EqualError(t, err, `duplicate job "a"`)

	s, err := scheduler.New(logger, 0,
		scheduler.Job{Name: "b", Spec: "*/5 * * * *", Run: noop},
		scheduler.Job{Name: "a", Spec: "@daily", Run: noop},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.JobNames())
}

func TestScheduler_RunJob(t *testing.T) {
	logger := testutil.Logger(testutil.Config())
	var runs int32
	boom := errors.New("boom")

	s, err := scheduler.New(logger, 50*time.Millisecond,
		scheduler.Job{Name: "count", Spec: "@daily", Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		}},
		scheduler.Job{Name: "fail", Spec: "@daily", Run: func(context.Context) error { return boom }},
		scheduler.Job{Name: "slow", Spec: "@daily", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)
	require.NoError(t, err)

	require.NoError(t, s.RunJob(context.Background(), "count"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
	assert.Equal(t, boom, s.RunJob(context.Background(), "fail"))
	assert.Equal(t, context.DeadlineExceeded, s.RunJob(context.Background(), "slow"))
	assert.EqualError(t, s.RunJob(context.Background(), "lol"), `unknown job "lol"`)

	s.Start()
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNewDefault(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	s, err := env.Scheduler()
	require.NoError(t, err)
	assert.Equal(t, []string{scheduler.JobSync, scheduler.JobExpireInvite, scheduler.JobReminders}, s.JobNames())

	admin := testutil.CreateUser(t, env.Users, "Admin", "admin@test.cd", "", []user.Role{user.RoleAdmin}, true)
	inv, err := env.Invites.Create(ctx, admin, invite.NewInvite{Email: "late@test.cd", Role: user.RoleTeacher})
	require.NoError(t, err)
	inv, err = env.Repos.Invites.GetInvite(ctx, invite.GetFilter{ID: inv.ID})
	require.NoError(t, err)
	inv.ExpiresAt = time.Now().Add(-time.Minute)
	_, err = env.Repos.Invites.UpdateInvite(ctx, inv)
	require.NoError(t, err)

	require.NoError(t, s.RunJob(ctx, scheduler.JobExpireInvite))
	got, err := env.Repos.Invites.GetInvite(ctx, invite.GetFilter{ID: inv.ID})
	require.NoError(t, err)
	assert.Equal(t, invite.StatusExpired, got.Status)

	assert.NoError(t, s.RunJob(ctx, scheduler.JobReminders))
	assert.NoError(t, s.RunJob(ctx, scheduler.JobSync))
}
