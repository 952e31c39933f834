package broadcast

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

var ErrNotAdmin = core.NewForbiddenError("only admins can send broadcasts")

type Broadcast struct {
	ID             string      `json:"id"`
	SenderID       string      `json:"sender_id"`
	Subject        string      `json:"subject"`
	Body           string      `json:"body"`
	TargetRole     null.String `json:"target_role"`
	RecipientCount int         `json:"recipient_count"`
	EmailCount     int         `json:"email_count"`
	CreatedAt      time.Time   `json:"created_at"`
}

type NewBroadcast struct {
	Subject    string    `json:"subject" validate:"required,max=200"`
	Body       string    `json:"body" validate:"required"`
	TargetRole user.Role `json:"target_role" validate:"omitempty,roles"`
}

func (nb *NewBroadcast) Validate(validate *validator.Validate) error {
	nb.Subject = core.CleanString(nb.Subject)
	nb.Body = core.CleanString(nb.Body)
	return validate.Struct(nb)
}

type (
	Repository interface {
		CreateBroadcast(ctx context.Context, b Broadcast) (Broadcast, error)
		QueryBroadcasts(ctx context.Context) ([]Broadcast, error)
	}

	Service interface {
		// Send notifies every active user, or the holders of the target role, and emails those accepting emails.
		Send(ctx context.Context, sender user.User, nb NewBroadcast) (Broadcast, error)
		List(ctx context.Context, usr user.User) ([]Broadcast, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		users    user.Repository
		notifSvc notification.Service
		mailSvc  core.EmailService
		audit    audit.Service
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, users user.Repository, notifSvc notification.Service, mailSvc core.EmailService, auditSvc audit.Service) Service {
	return &service{tx: tx, repo: repo, users: users, notifSvc: notifSvc, mailSvc: mailSvc, audit: auditSvc}
}

func (svc *service) Send(ctx context.Context, sender user.User, nb NewBroadcast) (Broadcast, error) {
	if !sender.IsAdmin() {
		return Broadcast{}, ErrNotAdmin
	}

	active := true
	filter := &user.QueryFilter{IsActive: &active}
	b := Broadcast{SenderID: sender.ID, Subject: nb.Subject, Body: nb.Body, CreatedAt: core.Now()}
	if nb.TargetRole != "" {
		filter.Roles = []user.Role{nb.TargetRole}
		b.TargetRole = null.StringFrom(string(nb.TargetRole))
	}

	var emails []*core.EmailMessage
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		recipients, err := svc.users.QueryUsers(ctx, filter, nil)
		if err != nil {
			return errors.Wrap(err, "querying recipients")
		}
		for _, usr := range recipients {
			_, err = svc.notifSvc.Notify(ctx, usr, notification.Notification{
				Type:    notification.TypeBroadcast,
				Title:   nb.Subject,
				Content: nb.Body,
			}, false)
			if err != nil {
				return err
			}
			b.RecipientCount++
			if usr.EmailNotifications {
				emails = append(emails, &core.EmailMessage{
					To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
					Subject:      nb.Subject,
					TemplateName: "broadcast",
					TemplateData: map[string]interface{}{"Subject": nb.Subject, "Body": nb.Body},
				})
			}
		}
		b.EmailCount = len(emails)

		if b, err = svc.repo.CreateBroadcast(ctx, b); err != nil {
			return errors.Wrap(err, "creating broadcast")
		}
		svc.audit.Log(ctx, sender.ID, audit.ActionBroadcastSend, "broadcast", b.ID, b.RecipientCount, " recipients")
		return nil
	})
	if err != nil {
		return Broadcast{}, err
	}

	if len(emails) > 0 {
		svc.mailSvc.SendMessages(emails...)
	}
	return b, nil
}

func (svc *service) List(ctx context.Context, usr user.User) ([]Broadcast, error) {
	if !usr.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return svc.repo.QueryBroadcasts(ctx)
}
