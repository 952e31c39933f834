package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("user not found")
	ErrEmailExists = core.NewValidationError(
		errors.New("a user with this email already exists"),
		core.FieldError{Field: "email", Error: "a user with this email already exists"},
	)
	ErrInvalidRole = core.NewValidationError(
		errors.New("invalid role"),
		core.FieldError{Field: "role", Error: "invalid role"},
	)
	ErrRoleNotHeld = core.NewValidationError(
		errors.New("user does not hold this role"),
		core.FieldError{Field: "role", Error: "user does not hold this role"},
	)
	ErrLastRole           = core.NewConflictError("cannot remove the last role")
	ErrAdminRegistration  = core.NewForbiddenError("cannot self-register as admin")
	ErrInvalidResetToken  = core.NewValidationError(errors.New("invalid or expired password reset link"))
	ErrNotEnoughPrivilege = core.NewForbiddenError("not enough rights to set these roles")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// UpdateUser saves all fields of usr, roles included.
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsers(ctx context.Context, ids ...string) error
		EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error)
	}

	// RoleHook is called, in the same transaction, whenever a user gains a role.
	RoleHook func(ctx context.Context, usr User, role Role) error

	Service interface {
		// Register creates a user through public sign-up. Admin accounts cannot be self-registered.
		Register(ctx context.Context, nu NewUser) (User, error)
		// Create creates a user of any role.
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetGoogleToken(ctx context.Context, usr User, token string) (User, error)
		SetLastSync(ctx context.Context, usr User, at time.Time) (User, error)
		AddRole(ctx context.Context, usr User, role Role) (User, error)
		RemoveRole(ctx context.Context, usr User, role Role) (User, error)
		SwitchRole(ctx context.Context, usr User, role Role) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		mailSvc  core.EmailService
		tokenGen tokenGenerator
		hooks    []RoleHook
		defaults struct {
			reminderDays []int
		}
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, mailSvc core.EmailService, conf *core.Config, hooks ...RoleHook) Service {
	svc := &service{
		tx:      tx,
		repo:    repo,
		mailSvc: mailSvc,
		tokenGen: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
		hooks: hooks,
	}
	svc.defaults.reminderDays = conf.Jobs.DefaultReminderDays
	return svc
}

func (svc *service) runHooks(ctx context.Context, usr User, roles ...Role) error {
	for _, role := range roles {
		for _, hook := range svc.hooks {
			if err := hook(ctx, usr, role); err != nil {
				return errors.Wrapf(err, "running %s role hook", role)
			}
		}
	}
	return nil
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	for _, r := range nu.Roles {
		if r == RoleAdmin {
			return User{}, ErrAdminRegistration
		}
	}
	return svc.Create(ctx, nu)
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	usr := User{
		Name:               nu.Name,
		Email:              nu.Email,
		Roles:              NewRoleSet(nu.Roles...),
		ActiveRole:         nu.ActiveRole,
		IsActive:           true,
		EmailNotifications: true,
		ReminderDays:       svc.defaults.reminderDays,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if usr.ActiveRole == "" && len(nu.Roles) > 0 {
		usr.ActiveRole = nu.Roles[0]
	}
	if err := usr.CheckRoles(); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := svc.repo.EmailExists(ctx, usr.Email)
		if err != nil {
			return errors.Wrap(err, "checking email uniqueness")
		}
		if exists {
			return ErrEmailExists
		}
		if usr, err = svc.repo.CreateUser(ctx, usr); err != nil {
			return errors.Wrap(err, "creating user")
		}
		return svc.runHooks(ctx, usr, usr.Roles.Slice()...)
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if uu.Email != usr.Email {
			exists, err := svc.repo.EmailExists(ctx, uu.Email, usr.ID)
			if err != nil {
				return errors.Wrap(err, "checking email uniqueness")
			}
			if exists {
				return ErrEmailExists
			}
		}

		usr.Name = uu.Name
		usr.Email = uu.Email
		if uu.IsActive != nil {
			usr.IsActive = *uu.IsActive
		}
		if uu.EmailNotifications != nil {
			usr.EmailNotifications = *uu.EmailNotifications
		}
		if uu.ReminderDays != nil {
			usr.ReminderDays = uu.ReminderDays
		}
		if uu.Password != "" {
			if err := usr.SetPassword(uu.Password); err != nil {
				return errors.Wrap(err, "setting password")
			}
		}
		usr.UpdatedAt = core.Now()

		var err error
		usr, err = svc.repo.UpdateUser(ctx, usr)
		return err
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(core.Now())
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetGoogleToken(ctx context.Context, usr User, token string) (User, error) {
	usr.GoogleToken = token
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastSync(ctx context.Context, usr User, at time.Time) (User, error) {
	usr.LastSyncAt = null.TimeFrom(at.UTC())
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) AddRole(ctx context.Context, usr User, role Role) (User, error) {
	if usr.HasRole(role) {
		return usr, nil
	}
	usr.Roles = usr.Roles.Clone()
	if err := usr.AddRole(role); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = core.Now()

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
			return errors.Wrap(err, "updating user")
		}
		return svc.runHooks(ctx, usr, role)
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) RemoveRole(ctx context.Context, usr User, role Role) (User, error) {
	usr.Roles = usr.Roles.Clone()
	if err := usr.RemoveRole(role); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SwitchRole(ctx context.Context, usr User, role Role) (User, error) {
	if err := usr.SwitchRole(role); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsers(ctx, ids...)
}

// RequestPasswordReset sends a password reset email to the active user owning `email`.
// ErrNotFound is returned for unknown or inactive accounts; callers must not leak it.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokenGen.makeToken(usr),
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	uid, err := decodeUID(data.UID)
	if err != nil {
		return ErrInvalidResetToken
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrInvalidResetToken
		}
		return errors.Wrap(err, "getting user")
	}
	if err = svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		return ErrInvalidResetToken
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
