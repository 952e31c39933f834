// Package di builds the application services on top of a set of repositories.
package di

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/theepangnani/emai-dev-03-sub000/apps/api/echo"
	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/access"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/broadcast"
	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/inspiration"
	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/messaging"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
	"github.com/theepangnani/emai-dev-03-sub000/core/reminder"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/search"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	aisvc "github.com/theepangnani/emai-dev-03-sub000/services/ai"
	googlesvc "github.com/theepangnani/emai-dev-03-sub000/services/google"
	"github.com/theepangnani/emai-dev-03-sub000/services/scheduler"
	"github.com/theepangnani/emai-dev-03-sub000/storage/database"
)

type Container struct {
	Conf       *core.Config
	Logger     core.Logger
	Repos      *database.Repositories
	MailSvc    core.EmailService
	Validate   *validator.Validate
	Translator ut.Translator

	Access        *access.Resolver
	Audit         audit.Service
	Rosters       roster.Service
	Users         user.Service
	Courses       course.Service
	Notifications notification.Service
	Messaging     messaging.Service
	Tasks         task.Service
	Invites       invite.Service
	Broadcasts    broadcast.Service
	Inspirations  inspiration.Service
	Comms         communication.Service
	StudyGuides   studyguide.Service
	Search        search.Service
	Reminders     reminder.Service

	Google *googlesvc.OAuth
}

// New wires every service. Validators are registered on a fresh validator instance.
func New(conf *core.Config, logger core.Logger, repos *database.Repositories, mailSvc core.EmailService) *Container {
	c := &Container{
		Conf:       conf,
		Logger:     logger,
		Repos:      repos,
		MailSvc:    mailSvc,
		Validate:   validator.New(),
		Translator: core.NewTranslator(),
	}
	core.InitValidators(c.Validate, c.Translator)
	user.InitValidators(c.Validate, c.Translator)

	c.Access = access.NewResolver(repos.Users, repos.Rosters, repos.Courses)
	c.Audit = audit.NewService(repos.Tx, repos.Audit, logger)
	c.Rosters = roster.NewService(repos.Tx, repos.Rosters, repos.Users, c.Audit)
	c.Users = user.NewService(repos.Tx, repos.Users, mailSvc, conf, c.Rosters.OnRoleAdded)
	c.Courses = course.NewService(repos.Tx, repos.Courses, repos.Users, c.Rosters, c.Access, c.Audit)
	c.Notifications = notification.NewService(repos.Notifications, mailSvc)
	c.Messaging = messaging.NewService(
		repos.Tx, repos.Messaging, repos.Users, repos.Rosters, repos.Courses, c.Notifications, c.Audit, conf,
	)
	c.Tasks = task.NewService(repos.Tx, repos.Tasks, repos.Users, repos.Rosters, repos.Courses, c.Access, c.Notifications, c.Audit)
	c.Invites = invite.NewService(repos.Tx, repos.Invites, c.Users, c.Rosters, c.Courses, mailSvc, c.Audit, conf)
	c.Broadcasts = broadcast.NewService(repos.Tx, repos.Broadcasts, repos.Users, c.Notifications, mailSvc, c.Audit)
	c.Inspirations = inspiration.NewService(repos.Inspirations)
	c.Search = search.NewService(c.Access, repos.Courses, repos.StudyGuides, repos.Tasks)
	c.Reminders = reminder.NewService(repos.Users, repos.Rosters, repos.Courses, repos.Tasks, c.Notifications, logger, conf)

	// the AI client is optional: a nil *Client must not end up in a non-nil interface
	var (
		summarizer communication.Summarizer
		generator  studyguide.Generator
	)
	if ai := aisvc.NewClient(conf); ai != nil {
		summarizer, generator = ai, ai
	}

	c.Google = googlesvc.NewOAuth(conf)
	var fetchers []communication.Fetcher
	if c.Google.Enabled() {
		fetchers = append(fetchers, googlesvc.NewGmailFetcher(c.Google), googlesvc.NewClassroomFetcher(c.Google))
	}
	c.Comms = communication.NewService(repos.Comms, c.Users, c.Rosters, summarizer, c.Audit, logger, fetchers...)
	c.StudyGuides = studyguide.NewService(repos.StudyGuides, c.Courses, c.Access, generator, c.Audit, logger)

	return c
}

func (c *Container) ServerDeps() echoapi.Deps {
	return echoapi.Deps{
		Conf:             c.Conf,
		Logger:           c.Logger,
		Validate:         c.Validate,
		Translator:       c.Translator,
		UserSvc:          c.Users,
		RosterSvc:        c.Rosters,
		CourseSvc:        c.Courses,
		TaskSvc:          c.Tasks,
		MessagingSvc:     c.Messaging,
		NotificationSvc:  c.Notifications,
		InviteSvc:        c.Invites,
		AuditSvc:         c.Audit,
		BroadcastSvc:     c.Broadcasts,
		InspirationSvc:   c.Inspirations,
		CommunicationSvc: c.Comms,
		StudyGuideSvc:    c.StudyGuides,
		SearchSvc:        c.Search,
		Access:           c.Access,
		Google:           c.Google,
	}
}

func (c *Container) Scheduler() (*scheduler.Scheduler, error) {
	return scheduler.NewDefault(c.Conf, c.Logger, c.Reminders, c.Comms, c.Invites)
}
