package pgrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type inviteRow struct {
	ID         string          `db:"id"`
	Email      string          `db:"email"`
	Role       string          `db:"role"`
	Token      string          `db:"token"`
	InvitedBy  string          `db:"invited_by"`
	Metadata   invite.Metadata `db:"metadata"`
	Status     string          `db:"status"`
	ExpiresAt  time.Time       `db:"expires_at"`
	AcceptedAt null.Time       `db:"accepted_at"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (r inviteRow) model() invite.Invite {
	return invite.Invite{
		ID:         r.ID,
		Email:      r.Email,
		Role:       user.Role(r.Role),
		Token:      r.Token,
		InvitedBy:  r.InvitedBy,
		Metadata:   r.Metadata,
		Status:     invite.Status(r.Status),
		ExpiresAt:  r.ExpiresAt,
		AcceptedAt: r.AcceptedAt,
		CreatedAt:  r.CreatedAt,
	}
}

var inviteColumns = []string{
	"id", "email", "role", "token", "invited_by", "metadata", "status", "expires_at", "accepted_at", "created_at",
}

type inviteRepository struct {
	db *sqlx.DB
}

var _ invite.Repository = (*inviteRepository)(nil)

func NewInviteRepository(db *sqlx.DB) invite.Repository {
	return &inviteRepository{db: db}
}

func (repo *inviteRepository) CreateInvite(ctx context.Context, inv invite.Invite) (invite.Invite, error) {
	inv.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("invite").
		Columns(inviteColumns...).
		Values(inv.ID, inv.Email, string(inv.Role), inv.Token, inv.InvitedBy, inv.Metadata, string(inv.Status),
			inv.ExpiresAt, inv.AcceptedAt, inv.CreatedAt))
	if err != nil {
		return invite.Invite{}, errors.Wrap(err, "inserting invite")
	}
	return inv, nil
}

func (repo *inviteRepository) GetInvite(ctx context.Context, filter invite.GetFilter) (invite.Invite, error) {
	b := psql.Select(inviteColumns...).From("invite")
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return invite.Invite{}, invite.ErrNotFound
		}
		b = b.Where(sq.Eq{"id": filter.ID})
	case filter.Token != "":
		b = b.Where(sq.Eq{"token": filter.Token})
	default:
		return invite.Invite{}, invite.ErrNotFound
	}

	var r inviteRow
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return invite.Invite{}, trapNoRowsErr(err, invite.ErrNotFound, "getting invite")
	}
	return r.model(), nil
}

func (repo *inviteRepository) QueryInvites(ctx context.Context, filter invite.QueryFilter) ([]invite.Invite, error) {
	b := psql.Select(inviteColumns...).From("invite").OrderBy("created_at DESC")
	if filter.InvitedBy != "" {
		b = b.Where(sq.Eq{"invited_by": filter.InvitedBy})
	}
	if filter.Email != "" {
		b = b.Where(sq.Eq{"email": filter.Email})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": string(filter.Status)})
	}

	var rows []inviteRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying invites")
	}
	invites := make([]invite.Invite, 0, len(rows))
	for _, r := range rows {
		invites = append(invites, r.model())
	}
	return invites, nil
}

func (repo *inviteRepository) UpdateInvite(ctx context.Context, inv invite.Invite) (invite.Invite, error) {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("invite").
		SetMap(map[string]interface{}{
			"token":       inv.Token,
			"metadata":    inv.Metadata,
			"status":      string(inv.Status),
			"expires_at":  inv.ExpiresAt,
			"accepted_at": inv.AcceptedAt,
		}).
		Where(sq.Eq{"id": inv.ID}))
	if err != nil {
		return invite.Invite{}, errors.Wrap(err, "updating invite")
	}
	if n == 0 {
		return invite.Invite{}, invite.ErrNotFound
	}
	return inv, nil
}

func (repo *inviteRepository) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("invite").
		SetMap(map[string]interface{}{"status": string(invite.StatusAccepted), "accepted_at": at}).
		Where(sq.Eq{"id": id, "status": string(invite.StatusPending)}))
	if err != nil {
		return false, errors.Wrap(err, "accepting invite")
	}
	return n == 1, nil
}

func (repo *inviteRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("invite").
		Set("status", string(invite.StatusExpired)).
		Where(sq.Eq{"status": string(invite.StatusPending)}).
		Where(sq.LtOrEq{"expires_at": now}))
	if err != nil {
		return 0, errors.Wrap(err, "expiring invites")
	}
	return int(n), nil
}
