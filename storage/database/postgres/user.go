package pgrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type userRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Email              string         `db:"email"`
	Roles              pq.StringArray `db:"roles"`
	ActiveRole         string         `db:"active_role"`
	IsActive           bool           `db:"is_active"`
	EmailNotifications bool           `db:"email_notifications"`
	ReminderDays       pq.Int64Array  `db:"reminder_days"`
	PasswordHash       []byte         `db:"password_hash"`
	GoogleToken        string         `db:"google_token"`
	LastSyncAt         null.Time      `db:"last_sync_at"`
	LastLogin          null.Time      `db:"last_login"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r userRow) model() user.User {
	roles := make([]user.Role, 0, len(r.Roles))
	for _, role := range r.Roles {
		roles = append(roles, user.Role(role))
	}
	days := make([]int, 0, len(r.ReminderDays))
	for _, d := range r.ReminderDays {
		days = append(days, int(d))
	}
	return user.User{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		Roles:              user.NewRoleSet(roles...),
		ActiveRole:         user.Role(r.ActiveRole),
		IsActive:           r.IsActive,
		EmailNotifications: r.EmailNotifications,
		ReminderDays:       days,
		PasswordHash:       r.PasswordHash,
		GoogleToken:        r.GoogleToken,
		LastSyncAt:         r.LastSyncAt,
		LastLogin:          r.LastLogin,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func reminderDays(usr user.User) pq.Int64Array {
	days := make(pq.Int64Array, 0, len(usr.ReminderDays))
	for _, d := range usr.ReminderDays {
		days = append(days, int64(d))
	}
	return days
}

type userRepository struct {
	db *sqlx.DB
	tx *Transactor
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db, tx: NewTransactor(db)}
}

func (repo *userRepository) selectUsers() sq.SelectBuilder {
	return psql.Select(
		"u.id", "u.name", "u.email", "u.active_role", "u.is_active", "u.email_notifications", "u.reminder_days",
		"u.password_hash", "u.google_token", "u.last_sync_at", "u.last_login", "u.created_at", "u.updated_at",
		"COALESCE((SELECT array_agg(r.role ORDER BY r.role) FROM user_role r WHERE r.user_id = u.id), '{}') AS roles",
	).From(`"user" u`)
}

func (repo *userRepository) saveRoles(ctx context.Context, usr user.User) error {
	exec := executor(ctx, repo.db)
	if _, err := execute(ctx, exec, psql.Delete("user_role").Where(sq.Eq{"user_id": usr.ID})); err != nil {
		return errors.Wrap(err, "deleting roles")
	}
	if usr.Roles.Len() == 0 {
		return nil
	}
	ins := psql.Insert("user_role").Columns("user_id", "role")
	for _, role := range usr.Roles.Slice() {
		ins = ins.Values(usr.ID, string(role))
	}
	_, err := execute(ctx, exec, ins)
	return errors.Wrap(err, "inserting roles")
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	err := repo.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := execute(ctx, executor(ctx, repo.db), psql.Insert(`"user"`).
			Columns("id", "name", "email", "active_role", "is_active", "email_notifications", "reminder_days",
				"password_hash", "google_token", "last_sync_at", "last_login", "created_at", "updated_at").
			Values(usr.ID, usr.Name, usr.Email, string(usr.ActiveRole), usr.IsActive, usr.EmailNotifications, reminderDays(usr),
				usr.PasswordHash, usr.GoogleToken, usr.LastSyncAt, usr.LastLogin, usr.CreatedAt, usr.UpdatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "inserting user")
		}
		return repo.saveRoles(ctx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	b := repo.selectUsers()

	if filter != nil {
		if filter.Search != "" {
			val := ilike(filter.Search)
			b = b.Where(sq.Or{sq.ILike{"u.name": val}, sq.ILike{"u.email": val}})
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				roles = append(roles, string(r))
			}
			b = b.Where("EXISTS (SELECT 1 FROM user_role r WHERE r.user_id = u.id AND r.role = ANY(?))", pq.Array(roles))
		}
		if filter.IsActive != nil {
			b = b.Where(sq.Eq{"u.is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			b = b.Where(sq.GtOrEq{"u.created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			b = b.Where(sq.LtOrEq{"u.created_at": filter.CreatedTo.UTC()})
		}
		if filter.IDs != nil {
			b = b.Where(sq.Eq{"u.id": filter.IDs})
		}
		if filter.WithGoogle {
			b = b.Where(sq.NotEq{"u.google_token": ""})
		}
	}
	b = orderBy(b, ordering, "u.created_at ASC", "name", "email", "created_at")

	var rows []userRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.model())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	b := repo.selectUsers()
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		b = b.Where(sq.Eq{"u.id": filter.ID})
	case filter.Email != "":
		b = b.Where(sq.Eq{"u.email": filter.Email})
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return r.model(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := execute(ctx, executor(ctx, repo.db), psql.Update(`"user"`).
			SetMap(map[string]interface{}{
				"name":                usr.Name,
				"email":               usr.Email,
				"active_role":         string(usr.ActiveRole),
				"is_active":           usr.IsActive,
				"email_notifications": usr.EmailNotifications,
				"reminder_days":       reminderDays(usr),
				"password_hash":       usr.PasswordHash,
				"google_token":        usr.GoogleToken,
				"last_sync_at":        usr.LastSyncAt,
				"last_login":          usr.LastLogin,
				"updated_at":          usr.UpdatedAt,
			}).
			Where(sq.Eq{"id": usr.ID}))
		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "updating user")
		}
		if n == 0 {
			return user.ErrNotFound
		}
		return repo.saveRoles(ctx, usr)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete(`"user"`).Where(sq.Eq{"id": ids}))
	return errors.Wrap(err, "deleting users")
}

func (repo *userRepository) EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error) {
	b := psql.Select("1").From(`"user"`).Where(sq.Eq{"email": email})
	if len(excludedIDs) > 0 {
		b = b.Where(sq.NotEq{"id": excludedIDs})
	}
	found, err := exists(ctx, executor(ctx, repo.db), b)
	return found, errors.Wrap(err, "checking email")
}
