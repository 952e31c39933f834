package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type Type string

const (
	TypeAssignmentDue Type = "assignment_due"
	TypeTaskDue       Type = "task_due"
	TypeMessage       Type = "message"
	TypeSystem        Type = "system"
	TypeTaskAssigned  Type = "task_assigned"
	TypeInvite        Type = "invite"
	TypeBroadcast     Type = "broadcast"
	TypeStudyGuide    Type = "study_guide"
)

var ErrNotFound = core.NewNotFoundError("notification not found")

type Notification struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Type      Type        `json:"type"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Link      null.String `json:"link"`
	IsRead    bool        `json:"is_read"`
	ReadAt    null.Time   `json:"read_at"`
	CreatedAt time.Time   `json:"created_at"`
}

type QueryFilter struct {
	UserID        string    `query:"-"`
	Type          Type      `query:"type"`
	UnreadOnly    bool      `query:"unread"`
	Link          string    `query:"-"`
	Title         string    `query:"-"`
	TitleContains string    `query:"-"`
	Since         time.Time `query:"-"`
}

func (qf QueryFilter) Match(n Notification) bool {
	if qf.UserID != "" && n.UserID != qf.UserID {
		return false
	}
	if qf.Type != "" && n.Type != qf.Type {
		return false
	}
	if qf.UnreadOnly && n.IsRead {
		return false
	}
	if qf.Link != "" && n.Link.String != qf.Link {
		return false
	}
	if qf.Title != "" && n.Title != qf.Title {
		return false
	}
	if qf.TitleContains != "" && !core.ContainsFold(n.Title, qf.TitleContains) {
		return false
	}
	if !qf.Since.IsZero() && n.CreatedAt.Before(qf.Since) {
		return false
	}
	return true
}

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		QueryNotifications(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Notification, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		// MarkRead marks the unread notifications of userID matching ids as read. Nil ids mark them all.
		MarkRead(ctx context.Context, userID string, ids []string, at time.Time) error
		DeleteNotification(ctx context.Context, id string) error
		CountNotifications(ctx context.Context, filter QueryFilter) (int, error)
	}

	Service interface {
		// Notify stores a notification for usr and, if sendEmail and usr accepts emails, mails it.
		Notify(ctx context.Context, usr user.User, n Notification, sendEmail bool) (Notification, error)
		// Exists reports whether a notification matching filter was already emitted.
		Exists(ctx context.Context, filter QueryFilter) (bool, error)
		Query(ctx context.Context, usr user.User, filter QueryFilter) ([]Notification, error)
		UnreadCount(ctx context.Context, usr user.User) (int, error)
		MarkRead(ctx context.Context, usr user.User, id string) error
		MarkAllRead(ctx context.Context, usr user.User) error
		Delete(ctx context.Context, usr user.User, id string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc}
}

func (svc *service) Notify(ctx context.Context, usr user.User, n Notification, sendEmail bool) (Notification, error) {
	n.UserID = usr.ID
	n.IsRead = false
	n.CreatedAt = core.Now()
	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}

	if sendEmail && usr.EmailNotifications && usr.IsActive {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      n.Title,
			TemplateName: "notification",
			TemplateData: map[string]interface{}{
				"Name":    usr.Name,
				"Title":   n.Title,
				"Content": n.Content,
				"Link":    n.Link.String,
			},
		})
	}
	return n, nil
}

func (svc *service) Exists(ctx context.Context, filter QueryFilter) (bool, error) {
	count, err := svc.repo.CountNotifications(ctx, filter)
	if err != nil {
		return false, errors.Wrap(err, "counting notifications")
	}
	return count > 0, nil
}

func (svc *service) Query(ctx context.Context, usr user.User, filter QueryFilter) ([]Notification, error) {
	filter.UserID = usr.ID
	return svc.repo.QueryNotifications(ctx, filter, []core.DBOrdering{{Field: "created_at"}})
}

func (svc *service) UnreadCount(ctx context.Context, usr user.User) (int, error) {
	return svc.repo.CountNotifications(ctx, QueryFilter{UserID: usr.ID, UnreadOnly: true})
}

func (svc *service) get(ctx context.Context, usr user.User, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != usr.ID {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (svc *service) MarkRead(ctx context.Context, usr user.User, id string) error {
	n, err := svc.get(ctx, usr, id)
	if err != nil {
		return err
	}
	return svc.repo.MarkRead(ctx, usr.ID, []string{n.ID}, core.Now())
}

func (svc *service) MarkAllRead(ctx context.Context, usr user.User) error {
	return svc.repo.MarkRead(ctx, usr.ID, nil, core.Now())
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	n, err := svc.get(ctx, usr, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteNotification(ctx, n.ID)
}
