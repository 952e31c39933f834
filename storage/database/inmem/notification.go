package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n.ID = newID()
	repo.db.notifications[n.ID] = n
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, filter notification.QueryFilter, ordering []core.DBOrdering) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ns := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if filter.Match(n) {
			ns = append(ns, n)
		}
	}
	byCreatedAt(ns, ascending(ordering, "created_at", false), func(n notification.Notification) time.Time { return n.CreatedAt })
	return ns, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if n, ok := repo.db.notifications[id]; ok {
		return n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) MarkRead(_ context.Context, userID string, ids []string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, n := range repo.db.notifications {
		if n.UserID != userID || n.IsRead || (ids != nil && !core.ContainsString(ids, id)) {
			continue
		}
		n.IsRead = true
		n.ReadAt = null.TimeFrom(at)
		repo.db.notifications[id] = n
	}
	return nil
}

func (repo *notificationRepository) DeleteNotification(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.notifications, id)
	return nil
}

func (repo *notificationRepository) CountNotifications(_ context.Context, filter notification.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, n := range repo.db.notifications {
		if filter.Match(n) {
			count++
		}
	}
	return count, nil
}
