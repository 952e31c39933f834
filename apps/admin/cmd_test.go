package main

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	"github.com/theepangnani/emai-dev-03-sub000/services/scheduler"
	"github.com/theepangnani/emai-dev-03-sub000/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	sched, err := env.Scheduler()
	require.NoError(t, err)

	// start CLI
	return &commandLine{
		usrSvc:   env.Users,
		validate: env.Validate,
		jobs:     sched,
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantAnyErr bool
	extra      interface{}
}

// mockPasswords makes the prompts read pwd, then confirm.
func mockPasswords(pwd, confirm string) {
	answers := [][]byte{[]byte(pwd), []byte(confirm)}
	readPasswordFunc = func(fd int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, nil
		}
		answer := answers[0]
		answers = answers[1:]
		return answer, nil
	}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantAnyErr:
		if err == nil {
			t.Error("cli.run() expected an error")
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var ran []string
	for _, command := range []string{"up", "down", "status"} {
		command := command
		migrateFuncs[command] = func(db *sqlx.DB) error {
			ran = append(ran, command)
			return nil
		}
	}

	t.Run("memory engine", func(t *testing.T) {
		checkErr(t, cliTest{wantErr: errNoDatabase}, cli.run([]string{"admin", "migrate", "up"}))
	})

	cli.db = &sqlx.DB{}
	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
	assert.Equal(t, []string{"up", "down", "status"}, ran)
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()

	type extra struct {
		pwd, confirm string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no roles", args: []string{"adduser", "-name", "Awe", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"adduser", "-email", "awe@test.cd", "-roles", "lol"}, wantErrStr: "\"lol\": invalid role"},
		{name: "admin in roles", args: []string{"adduser", "-email", "awe@test.cd", "-roles", "admin"}, wantErrStr: "\"admin\": invalid role"},
		{name: "no password", args: []string{"adduser", "-name", "Awe", "-email", "awe@test.cd", "-admin"}, wantErr: errHelp},
		{
			name: "passwords mismatch", args: []string{"adduser", "-name", "Awe", "-email", "awe@test.cd", "-admin"},
			extra: extra{pwd: "Sup3r.Secret", confirm: "lol"}, wantAnyErr: true,
		},
		{
			name: "weak password", args: []string{"adduser", "-name", "Awe", "-email", "awe@test.cd", "-admin"},
			extra: extra{pwd: "12345678", confirm: "12345678"}, wantAnyErr: true,
		},
		{
			name: "create admin", args: []string{"adduser", "-name", "Awe", "-email", "AWE@test.cd", "-admin"},
			extra: extra{pwd: "Sup3r.Secret", confirm: "Sup3r.Secret"},
		},
		{
			name: "grant teacher", args: []string{"adduser", "-email", "awe@test.cd", "-roles", "teacher, parent"},
			extra: extra{pwd: "Sup3r.Secret2", confirm: "Sup3r.Secret2"},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		if e, ok := tt.extra.(extra); ok {
			mockPasswords(e.pwd, e.confirm)
		} else {
			mockPasswords("", "")
		}

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	usr, err := env.Users.GetByEmail(ctx, "awe@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "Awe", usr.Name)
	assert.True(t, usr.IsActive)
	assert.Equal(t, user.RoleAdmin, usr.ActiveRole)
	assert.ElementsMatch(t, []user.Role{user.RoleAdmin, user.RoleTeacher, user.RoleParent}, usr.Roles.Slice())
	assert.NoError(t, usr.CheckPassword("Sup3r.Secret2"))

	// the teacher role came with its profile
	_, err = env.Rosters.TeacherProfile(ctx, usr)
	assert.NoError(t, err)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)

	usr := testutil.CreateUser(t, env.Users, "User", "awe@test.cd", "", []user.Role{user.RoleParent}, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "N3w.Secret"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "AWE@test.cd"}, extra: extra{pwd: "N3w.Secret"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		if e, ok := tt.extra.(extra); ok {
			mockPasswords(e.pwd, e.pwd)
		} else {
			mockPasswords("", "")
		}

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	refreshedUsr, err := env.Users.GetByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshedUsr.CheckPassword("N3w.Secret"))
	assert.Equal(t, usr.Name, refreshedUsr.Name)
	assert.Equal(t, usr.Email, refreshedUsr.Email)
}

func Test_commandLine_jobs(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no subcommand", args: []string{"jobs"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"jobs", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "run without name", args: []string{"jobs", "run"}, wantErr: errHelp},
		{name: "unknown job", args: []string{"jobs", "run", "lol"}, wantErrStr: "unknown job \"lol\""},
		{name: "list", args: []string{"jobs", "list"}},
		{name: "run", args: []string{"jobs", "run", scheduler.JobExpireInvite}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}
