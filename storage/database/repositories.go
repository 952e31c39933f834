package database

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/broadcast"
	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/inspiration"
	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/messaging"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
	"github.com/theepangnani/emai-dev-03-sub000/core/task"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
	inmemdb "github.com/theepangnani/emai-dev-03-sub000/storage/database/inmem"
	pgrepos "github.com/theepangnani/emai-dev-03-sub000/storage/database/postgres"
)

// Repositories groups every repository over a single store.
type Repositories struct {
	Tx            core.Transactor
	Users         user.Repository
	Rosters       roster.Repository
	Courses       course.Repository
	Tasks         task.Repository
	Messaging     messaging.Repository
	Notifications notification.Repository
	Invites       invite.Repository
	Audit         audit.Repository
	Broadcasts    broadcast.Repository
	Inspirations  inspiration.Repository
	Comms         communication.Repository
	StudyGuides   studyguide.Repository

	close func() error
}

func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

func NewMemoryRepositories() *Repositories {
	db := inmemdb.Open()
	return &Repositories{
		Tx:            inmemdb.NewTransactor(),
		Users:         inmemdb.NewUserRepository(db),
		Rosters:       inmemdb.NewRosterRepository(db),
		Courses:       inmemdb.NewCourseRepository(db),
		Tasks:         inmemdb.NewTaskRepository(db),
		Messaging:     inmemdb.NewMessagingRepository(db),
		Notifications: inmemdb.NewNotificationRepository(db),
		Invites:       inmemdb.NewInviteRepository(db),
		Audit:         inmemdb.NewAuditRepository(db),
		Broadcasts:    inmemdb.NewBroadcastRepository(db),
		Inspirations:  inmemdb.NewInspirationRepository(db),
		Comms:         inmemdb.NewCommunicationRepository(db),
		StudyGuides:   inmemdb.NewStudyGuideRepository(db),
	}
}

func NewPostgresRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Tx:            pgrepos.NewTransactor(db),
		Users:         pgrepos.NewUserRepository(db),
		Rosters:       pgrepos.NewRosterRepository(db),
		Courses:       pgrepos.NewCourseRepository(db),
		Tasks:         pgrepos.NewTaskRepository(db),
		Messaging:     pgrepos.NewMessagingRepository(db),
		Notifications: pgrepos.NewNotificationRepository(db),
		Invites:       pgrepos.NewInviteRepository(db),
		Audit:         pgrepos.NewAuditRepository(db),
		Broadcasts:    pgrepos.NewBroadcastRepository(db),
		Inspirations:  pgrepos.NewInspirationRepository(db),
		Comms:         pgrepos.NewCommunicationRepository(db),
		StudyGuides:   pgrepos.NewStudyGuideRepository(db),
		close:         db.Close,
	}
}

// OpenRepositories opens the store named by conf.Database.Engine.
// The postgres engine is migrated before use.
func OpenRepositories(conf *core.Config) (*Repositories, error) {
	switch conf.Database.Engine {
	case "memory":
		return NewMemoryRepositories(), nil
	case "", driverName:
		db, err := Open(conf)
		if err != nil {
			return nil, err
		}
		if err = Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewPostgresRepositories(db), nil
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}
