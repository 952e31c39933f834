// Package communication ingests teacher emails and classroom announcements from external providers.
package communication

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type Source string

const (
	SourceGmail     Source = "gmail"
	SourceClassroom Source = "classroom"
)

// initialSyncWindow bounds how far back the first sync of a user looks.
const initialSyncWindow = 7 * 24 * time.Hour

var (
	ErrNotFound     = core.NewNotFoundError("communication not found")
	ErrNotConnected = core.NewConflictError("google account not connected")
)

type Record struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Source      Source      `json:"source"`
	SourceID    string      `json:"source_id"`
	SenderName  string      `json:"sender_name"`
	SenderEmail string      `json:"sender_email"`
	Subject     string      `json:"subject"`
	Body        string      `json:"body"`
	Summary     null.String `json:"summary"`
	CourseName  null.String `json:"course_name"`
	IsRead      bool        `json:"is_read"`
	ReceivedAt  time.Time   `json:"received_at"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Item is a message fetched from a provider.
type Item struct {
	SourceID    string
	SenderName  string
	SenderEmail string
	Subject     string
	Body        string
	CourseName  string
	ReceivedAt  time.Time
	// TeacherName and TeacherEmail identify the teacher behind the item, when known.
	TeacherName  string
	TeacherEmail string
}

type QueryFilter struct {
	UserID     string `query:"-"`
	Source     Source `query:"source"`
	UnreadOnly bool   `query:"unread"`
	Search     string `query:"search"`
}

func (qf QueryFilter) Match(r Record) bool {
	if qf.UserID != "" && r.UserID != qf.UserID {
		return false
	}
	if qf.Source != "" && r.Source != qf.Source {
		return false
	}
	if qf.UnreadOnly && r.IsRead {
		return false
	}
	if qf.Search != "" && !core.ContainsFold(r.Subject, qf.Search) && !core.ContainsFold(r.Body, qf.Search) &&
		!core.ContainsFold(r.SenderName, qf.Search) {
		return false
	}
	return true
}

type SyncResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

type (
	Repository interface {
		CreateCommunication(ctx context.Context, r Record) (Record, error)
		GetCommunication(ctx context.Context, id string) (Record, error)
		QueryCommunications(ctx context.Context, filter QueryFilter) ([]Record, error)
		CommunicationExists(ctx context.Context, userID string, source Source, sourceID string) (bool, error)
		MarkCommunicationRead(ctx context.Context, id string) error
	}

	// Fetcher pulls the items a provider received for a user since a given time.
	// A non empty refreshedToken replaces the stored credentials of the user.
	Fetcher interface {
		Source() Source
		FetchSince(ctx context.Context, usr user.User, since time.Time) (items []Item, refreshedToken string, err error)
	}

	Summarizer interface {
		Summarize(ctx context.Context, text string) (string, error)
	}

	Service interface {
		// SyncUser ingests new items from every provider. A failing provider does not stop the others.
		SyncUser(ctx context.Context, usr user.User) (SyncResult, error)
		// SyncAll syncs every active user with a connected google account.
		SyncAll(ctx context.Context) error
		Query(ctx context.Context, usr user.User, filter QueryFilter) ([]Record, error)
		MarkRead(ctx context.Context, usr user.User, id string) error
	}

	service struct {
		repo       Repository
		userSvc    user.Service
		rosterSvc  roster.Service
		fetchers   []Fetcher
		summarizer Summarizer
		audit      audit.Service
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

// NewService builds the service. summarizer may be nil.
func NewService(
	repo Repository,
	userSvc user.Service,
	rosterSvc roster.Service,
	summarizer Summarizer,
	auditSvc audit.Service,
	logger core.Logger,
	fetchers ...Fetcher,
) Service {
	return &service{
		repo:       repo,
		userSvc:    userSvc,
		rosterSvc:  rosterSvc,
		fetchers:   fetchers,
		summarizer: summarizer,
		audit:      auditSvc,
		logger:     logger,
	}
}

func (svc *service) SyncUser(ctx context.Context, usr user.User) (SyncResult, error) {
	res := SyncResult{Errors: []string{}}
	if !usr.HasGoogle() {
		return res, ErrNotConnected
	}

	syncStart := core.Now()
	since := syncStart.Add(-initialSyncWindow)
	if usr.LastSyncAt.Valid {
		since = usr.LastSyncAt.Time
	}

	for _, f := range svc.fetchers {
		items, token, err := f.FetchSince(ctx, usr, since)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("fetching %s items of user %s: %v", f.Source(), usr.ID, err), err, usr)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", f.Source(), err))
			continue
		}
		if token != "" && token != usr.GoogleToken {
			if usr, err = svc.userSvc.SetGoogleToken(ctx, usr, token); err != nil {
				return res, errors.Wrap(err, "storing refreshed token")
			}
		}
		for _, item := range items {
			created, err := svc.ingest(ctx, usr, f.Source(), item)
			if err != nil {
				return res, err
			}
			if created {
				res.Created++
			} else {
				res.Skipped++
			}
		}
	}

	if _, err := svc.userSvc.SetLastSync(ctx, usr, syncStart); err != nil {
		return res, errors.Wrap(err, "setting last sync")
	}
	svc.audit.Log(ctx, usr.ID, audit.ActionCommsSync, "user", usr.ID, res.Created, " created")
	return res, nil
}

// ingest stores an item unless already known. The summary is best effort.
func (svc *service) ingest(ctx context.Context, usr user.User, source Source, item Item) (bool, error) {
	exists, err := svc.repo.CommunicationExists(ctx, usr.ID, source, item.SourceID)
	if err != nil {
		return false, errors.Wrap(err, "checking communication")
	}
	if exists {
		return false, nil
	}

	r := Record{
		UserID:      usr.ID,
		Source:      source,
		SourceID:    item.SourceID,
		SenderName:  item.SenderName,
		SenderEmail: item.SenderEmail,
		Subject:     item.Subject,
		Body:        item.Body,
		CourseName:  null.NewString(item.CourseName, item.CourseName != ""),
		ReceivedAt:  item.ReceivedAt.UTC(),
		CreatedAt:   core.Now(),
	}
	if svc.summarizer != nil && item.Body != "" {
		summary, err := svc.summarizer.Summarize(ctx, item.Body)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("summarizing %s item %s: %v", source, item.SourceID, err), err)
		} else if summary != "" {
			r.Summary = null.StringFrom(summary)
		}
	}
	if _, err = svc.repo.CreateCommunication(ctx, r); err != nil {
		return false, errors.Wrap(err, "creating communication")
	}

	if item.TeacherEmail != "" {
		if _, err = svc.rosterSvc.GetOrCreateShadowTeacher(ctx, item.TeacherName, item.TeacherEmail); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (svc *service) SyncAll(ctx context.Context) error {
	active := true
	users, err := svc.userSvc.Query(ctx, &user.QueryFilter{IsActive: &active, WithGoogle: true}, nil)
	if err != nil {
		return errors.Wrap(err, "querying connected users")
	}
	for _, usr := range users {
		if err = ctx.Err(); err != nil {
			return err
		}
		res, err := svc.SyncUser(ctx, usr)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("syncing communications of user %s: %v", usr.ID, err), err, usr)
			continue
		}
		svc.logger.Debug(fmt.Sprintf("synced user %s: %d created, %d skipped", usr.ID, res.Created, res.Skipped))
	}
	return nil
}

func (svc *service) Query(ctx context.Context, usr user.User, filter QueryFilter) ([]Record, error) {
	filter.UserID = usr.ID
	return svc.repo.QueryCommunications(ctx, filter)
}

func (svc *service) MarkRead(ctx context.Context, usr user.User, id string) error {
	r, err := svc.repo.GetCommunication(ctx, id)
	if err != nil {
		return err
	}
	if r.UserID != usr.ID {
		return ErrNotFound
	}
	return svc.repo.MarkCommunicationRead(ctx, r.ID)
}
