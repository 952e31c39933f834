package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
)

type inviteRepository struct {
	db *DB
}

var _ invite.Repository = (*inviteRepository)(nil)

func NewInviteRepository(db *DB) invite.Repository {
	return &inviteRepository{db: db}
}

func (repo *inviteRepository) CreateInvite(_ context.Context, inv invite.Invite) (invite.Invite, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv.ID = newID()
	repo.db.invites[inv.ID] = inv
	return inv, nil
}

func (repo *inviteRepository) GetInvite(_ context.Context, filter invite.GetFilter) (invite.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if inv, ok := repo.db.invites[filter.ID]; ok {
			return inv, nil
		}
		return invite.Invite{}, invite.ErrNotFound
	}
	if filter.Token != "" {
		for _, inv := range repo.db.invites {
			if inv.Token == filter.Token {
				return inv, nil
			}
		}
	}
	return invite.Invite{}, invite.ErrNotFound
}

func (repo *inviteRepository) QueryInvites(_ context.Context, filter invite.QueryFilter) ([]invite.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	invites := make([]invite.Invite, 0)
	for _, inv := range repo.db.invites {
		if filter.Match(inv) {
			invites = append(invites, inv)
		}
	}
	byCreatedAt(invites, false, func(inv invite.Invite) time.Time { return inv.CreatedAt })
	return invites, nil
}

func (repo *inviteRepository) UpdateInvite(_ context.Context, inv invite.Invite) (invite.Invite, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.invites[inv.ID]; !ok {
		return invite.Invite{}, invite.ErrNotFound
	}
	repo.db.invites[inv.ID] = inv
	return inv, nil
}

func (repo *inviteRepository) MarkAccepted(_ context.Context, id string, at time.Time) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv, ok := repo.db.invites[id]
	if !ok || inv.Status != invite.StatusPending {
		return false, nil
	}
	inv.Status = invite.StatusAccepted
	inv.AcceptedAt = null.TimeFrom(at)
	repo.db.invites[id] = inv
	return true, nil
}

func (repo *inviteRepository) ExpirePending(_ context.Context, now time.Time) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for id, inv := range repo.db.invites {
		if inv.Expired(now) && inv.Status == invite.StatusPending {
			inv.Status = invite.StatusExpired
			repo.db.invites[id] = inv
			n++
		}
	}
	return n, nil
}
