// Package inspiration serves short motivational messages per role.
package inspiration

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

var (
	ErrNotFound = core.NewNotFoundError("inspiration message not found")
	ErrNotAdmin = core.NewForbiddenError("only admins can manage inspiration messages")
)

type Message struct {
	ID        string      `json:"id"`
	Role      user.Role   `json:"role"`
	Text      string      `json:"text"`
	Author    null.String `json:"author"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type NewMessage struct {
	Role   user.Role   `json:"role" validate:"required,roles"`
	Text   string      `json:"text" validate:"required,max=500"`
	Author null.String `json:"author"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Text = core.CleanString(nm.Text)
	return validate.Struct(nm)
}

type UpdateMessage struct {
	Text     *string      `json:"text" validate:"omitempty,min=1,max=500"`
	Author   *null.String `json:"author"`
	IsActive *bool        `json:"is_active"`
}

type QueryFilter struct {
	Role       user.Role `query:"role"`
	ActiveOnly bool      `query:"active"`
}

func (qf QueryFilter) Match(m Message) bool {
	if qf.Role != "" && m.Role != qf.Role {
		return false
	}
	if qf.ActiveOnly && !m.IsActive {
		return false
	}
	return true
}

type (
	Repository interface {
		CreateInspiration(ctx context.Context, m Message) (Message, error)
		GetInspiration(ctx context.Context, id string) (Message, error)
		QueryInspirations(ctx context.Context, filter QueryFilter) ([]Message, error)
		UpdateInspiration(ctx context.Context, m Message) (Message, error)
		DeleteInspiration(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, usr user.User, nm NewMessage) (Message, error)
		Query(ctx context.Context, usr user.User, filter QueryFilter) ([]Message, error)
		Update(ctx context.Context, usr user.User, id string, um UpdateMessage) (Message, error)
		Delete(ctx context.Context, usr user.User, id string) error
		// Random returns an active message for the active role of usr.
		Random(ctx context.Context, usr user.User) (Message, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, usr user.User, nm NewMessage) (Message, error) {
	if !usr.IsAdmin() {
		return Message{}, ErrNotAdmin
	}
	now := core.Now()
	m, err := svc.repo.CreateInspiration(ctx, Message{
		Role:      nm.Role,
		Text:      nm.Text,
		Author:    nm.Author,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return m, errors.Wrap(err, "creating inspiration message")
}

func (svc *service) Query(ctx context.Context, usr user.User, filter QueryFilter) ([]Message, error) {
	if !usr.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return svc.repo.QueryInspirations(ctx, filter)
}

func (svc *service) Update(ctx context.Context, usr user.User, id string, um UpdateMessage) (Message, error) {
	if !usr.IsAdmin() {
		return Message{}, ErrNotAdmin
	}
	m, err := svc.repo.GetInspiration(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if um.Text != nil {
		m.Text = core.CleanString(*um.Text)
	}
	if um.Author != nil {
		m.Author = *um.Author
	}
	if um.IsActive != nil {
		m.IsActive = *um.IsActive
	}
	m.UpdatedAt = core.Now()
	return svc.repo.UpdateInspiration(ctx, m)
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	if !usr.IsAdmin() {
		return ErrNotAdmin
	}
	if _, err := svc.repo.GetInspiration(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteInspiration(ctx, id)
}

func (svc *service) Random(ctx context.Context, usr user.User) (Message, error) {
	msgs, err := svc.repo.QueryInspirations(ctx, QueryFilter{Role: usr.ActiveRole, ActiveOnly: true})
	if err != nil {
		return Message{}, errors.Wrap(err, "querying inspiration messages")
	}
	if len(msgs) == 0 {
		return Message{}, ErrNotFound
	}
	return msgs[rand.Intn(len(msgs))], nil
}
