package pgrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/notification"
)

type notificationRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	Type      string      `db:"type"`
	Title     string      `db:"title"`
	Content   string      `db:"content"`
	Link      null.String `db:"link"`
	IsRead    bool        `db:"is_read"`
	ReadAt    null.Time   `db:"read_at"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r notificationRow) model() notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      notification.Type(r.Type),
		Title:     r.Title,
		Content:   r.Content,
		Link:      r.Link,
		IsRead:    r.IsRead,
		ReadAt:    r.ReadAt,
		CreatedAt: r.CreatedAt,
	}
}

var notificationColumns = []string{"id", "user_id", "type", "title", "content", "link", "is_read", "read_at", "created_at"}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func applyNotificationFilter(b sq.SelectBuilder, filter notification.QueryFilter) sq.SelectBuilder {
	if filter.UserID != "" {
		b = b.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Type != "" {
		b = b.Where(sq.Eq{"type": string(filter.Type)})
	}
	if filter.UnreadOnly {
		b = b.Where(sq.Eq{"is_read": false})
	}
	if filter.Link != "" {
		b = b.Where(sq.Eq{"link": filter.Link})
	}
	if filter.Title != "" {
		b = b.Where(sq.Eq{"title": filter.Title})
	}
	if filter.TitleContains != "" {
		b = b.Where(sq.ILike{"title": ilike(filter.TitleContains)})
	}
	if !filter.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": filter.Since.UTC()})
	}
	return b
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("notification").
		Columns(notificationColumns...).
		Values(n.ID, n.UserID, string(n.Type), n.Title, n.Content, n.Link, n.IsRead, n.ReadAt, n.CreatedAt))
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter, ordering []core.DBOrdering) ([]notification.Notification, error) {
	b := applyNotificationFilter(psql.Select(notificationColumns...).From("notification"), filter)
	b = orderBy(b, ordering, "created_at DESC", "created_at")

	var rows []notificationRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.model())
	}
	return notifs, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return notification.Notification{}, notification.ErrNotFound
	}
	var r notificationRow
	b := psql.Select(notificationColumns...).From("notification").Where(sq.Eq{"id": id})
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "getting notification")
	}
	return r.model(), nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, userID string, ids []string, at time.Time) error {
	b := psql.Update("notification").
		SetMap(map[string]interface{}{"is_read": true, "read_at": at}).
		Where(sq.Eq{"user_id": userID, "is_read": false})
	if ids != nil {
		b = b.Where(sq.Eq{"id": ids})
	}
	_, err := execute(ctx, executor(ctx, repo.db), b)
	return errors.Wrap(err, "marking notifications read")
}

func (repo *notificationRepository) DeleteNotification(ctx context.Context, id string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("notification").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting notification")
}

func (repo *notificationRepository) CountNotifications(ctx context.Context, filter notification.QueryFilter) (int, error) {
	b := applyNotificationFilter(psql.Select("COUNT(*)").From("notification"), filter)
	q, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	var count int
	err = sqlx.GetContext(ctx, executor(ctx, repo.db), &count, q, args...)
	return count, errors.Wrap(err, "counting notifications")
}
