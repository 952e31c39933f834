package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/theepangnani/emai-dev-03-sub000/apps/api/di"
	"github.com/theepangnani/emai-dev-03-sub000/assets"
	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	emailsvc "github.com/theepangnani/emai-dev-03-sub000/services/email"
	logsvc "github.com/theepangnani/emai-dev-03-sub000/services/logger"
	"github.com/theepangnani/emai-dev-03-sub000/storage/database"
)

// Config returns the TEST configuration, on the in-memory store with every external provider off.
func Config() *core.Config {
	_ = os.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Database.Engine = "memory"
	conf.Jobs.Enabled = false
	conf.SendgridApiKey = ""
	conf.RollbarToken = ""
	conf.Google = core.GoogleConfig{}
	conf.OpenAI.APIKey = ""
	return conf
}

func Logger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// Env is a fully wired application over fresh in-memory repositories.
type Env struct {
	*di.Container
	Mail *emailsvc.MockService
}

func NewEnv(t *testing.T) *Env {
	conf := Config()
	logger := Logger(conf)

	tmpls, err := core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf.AppName, conf.FrontendBaseURL, true)
	if err != nil {
		t.Fatalf("NewEnv() failed: %v", err)
	}
	mail := emailsvc.NewMockService(conf, tmpls, logger)
	return &Env{
		Container: di.New(conf, logger, database.NewMemoryRepositories(), mail),
		Mail:      mail,
	}
}

// CreateUser registers a user through the service so that role profiles get created.
func CreateUser(
	t *testing.T,
	svc user.Service,
	name, email, pwd string,
	roles []user.Role,
	isActive bool,
) user.User {
	if pwd == "" {
		pwd = "Passw0rd!" + name
	}
	usr, err := svc.Create(context.Background(), user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           roles,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if !isActive {
		inactive := false
		if usr, err = svc.Update(context.Background(), usr, user.UpdateUser{Name: usr.Name, Email: usr.Email, IsActive: &inactive}); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	return usr
}

// CreateUserAt is CreateUser with a fixed creation time.
func CreateUserAt(t *testing.T, repo user.Repository, name, email string, roles []user.Role, createdAt time.Time) user.User {
	tstamp := createdAt.UTC()
	usr := user.User{
		Name:               name,
		Email:              email,
		Roles:              user.NewRoleSet(roles...),
		IsActive:           true,
		EmailNotifications: true,
		CreatedAt:          tstamp,
		UpdatedAt:          tstamp,
	}
	if len(roles) > 0 {
		usr.ActiveRole = roles[0]
	}
	if err := usr.SetPassword("Passw0rd!" + name); err != nil {
		t.Fatalf("CreateUserAt() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUserAt() failed: %v", err)
	}
	return usr
}
