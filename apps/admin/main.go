package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/theepangnani/emai-dev-03-sub000/apps/api/di"
	"github.com/theepangnani/emai-dev-03-sub000/assets"
	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	emailsvc "github.com/theepangnani/emai-dev-03-sub000/services/email"
	logsvc "github.com/theepangnani/emai-dev-03-sub000/services/logger"
	"github.com/theepangnani/emai-dev-03-sub000/storage/database"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up DB, unmigrated so that `migrate` stays in charge of the schema
	var db *sqlx.DB
	repos := database.NewMemoryRepositories()
	if conf.Database.Engine != "memory" {
		var err error
		errAndDie(database.CreateIfNotExist(conf))
		db, err = database.Open(conf)
		errAndDie(err)
		repos = database.NewPostgresRepositories(db)
	}

	errAndDie(user.LoadCommonPasswords(assets.FS, assets.CommonPasswordsFile))
	tmpls, err := core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf.AppName, conf.FrontendBaseURL, !conf.Debug)
	errAndDie(err)

	c := di.New(conf, appLogger, repos, emailsvc.NewService(conf, tmpls, appLogger))
	sched, err := c.Scheduler()
	errAndDie(err)

	// start CLI
	cli := commandLine{
		db:       db,
		usrSvc:   c.Users,
		validate: c.Validate,
		jobs:     sched,
	}
	err = cli.run(os.Args)
	_ = repos.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
