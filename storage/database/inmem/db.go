// Package inmemdb is a process local, map backed implementation of every repository.
// It is used by tests and by the "memory" database engine.
package inmemdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

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
)

// DB holds every table behind a single lock.
type DB struct {
	mu sync.RWMutex

	users           map[string]user.User
	studentProfiles map[string]roster.StudentProfile
	teacherProfiles map[string]roster.TeacherProfile
	parentLinks     map[string]roster.ParentLink
	teacherLinks    map[string]roster.TeacherLink
	courses         map[string]course.Course
	enrollments     map[enrollmentKey]course.Enrollment
	assignments     map[string]course.Assignment
	contents        map[string]course.Content
	tasks           map[string]task.Task
	conversations   map[string]messaging.Conversation
	messages        map[string]messaging.Message
	notifications   map[string]notification.Notification
	invites         map[string]invite.Invite
	auditEntries    map[string]audit.Entry
	broadcasts      map[string]broadcast.Broadcast
	inspirations    map[string]inspiration.Message
	communications  map[string]communication.Record
	studyGuides     map[string]studyguide.Guide
}

type enrollmentKey struct {
	courseID  string
	studentID string
}

func Open() *DB {
	return &DB{
		users:           make(map[string]user.User),
		studentProfiles: make(map[string]roster.StudentProfile),
		teacherProfiles: make(map[string]roster.TeacherProfile),
		parentLinks:     make(map[string]roster.ParentLink),
		teacherLinks:    make(map[string]roster.TeacherLink),
		courses:         make(map[string]course.Course),
		enrollments:     make(map[enrollmentKey]course.Enrollment),
		assignments:     make(map[string]course.Assignment),
		contents:        make(map[string]course.Content),
		tasks:           make(map[string]task.Task),
		conversations:   make(map[string]messaging.Conversation),
		messages:        make(map[string]messaging.Message),
		notifications:   make(map[string]notification.Notification),
		invites:         make(map[string]invite.Invite),
		auditEntries:    make(map[string]audit.Entry),
		broadcasts:      make(map[string]broadcast.Broadcast),
		inspirations:    make(map[string]inspiration.Message),
		communications:  make(map[string]communication.Record),
		studyGuides:     make(map[string]studyguide.Guide),
	}
}

func newID() string { return uuid.New().String() }

// transactor runs fn directly: each repository call is atomic on its own and nothing is rolled back.
type transactor struct{}

var _ core.Transactor = transactor{}

func NewTransactor() core.Transactor { return transactor{} }

func (transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (transactor) WithinSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// byCreatedAt sorts s by the time returned by at, newest first unless asc.
func byCreatedAt[T any](s []T, asc bool, at func(T) time.Time) {
	sort.SliceStable(s, func(i, j int) bool {
		if asc {
			return at(s[i]).Before(at(s[j]))
		}
		return at(s[i]).After(at(s[j]))
	})
}

// ascending reports the direction of the first ordering on field, defaulting to def.
func ascending(ordering []core.DBOrdering, field string, def bool) bool {
	for _, ord := range ordering {
		if ord.Field == field {
			return ord.Ascending
		}
	}
	return def
}
