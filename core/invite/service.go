package invite

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/course"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("invite not found")
	ErrDuplicate        = core.NewConflictError("a pending invite already exists for this email")
	ErrUserExists       = core.NewConflictError("a user with this email already exists")
	ErrAlreadyAccepted  = core.NewConflictError("invite already accepted")
	ErrExpired          = core.NewConflictError("invite has expired")
	ErrAdminInvite      = core.NewForbiddenError("only admins can invite admins")
	ErrNotInviter       = core.NewNotFoundError("invite not found")
	ErrStudentNotLinked = core.NewForbiddenError("you are not linked to this student")
)

type (
	Repository interface {
		CreateInvite(ctx context.Context, inv Invite) (Invite, error)
		GetInvite(ctx context.Context, filter GetFilter) (Invite, error)
		QueryInvites(ctx context.Context, filter QueryFilter) ([]Invite, error)
		UpdateInvite(ctx context.Context, inv Invite) (Invite, error)
		// MarkAccepted moves a pending invite to accepted. It reports false when the invite was not pending.
		MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error)
		// ExpirePending marks the pending invites expired at `now` as expired and returns how many were.
		ExpirePending(ctx context.Context, now time.Time) (int, error)
	}

	Service interface {
		Create(ctx context.Context, inviter user.User, ni NewInvite) (Invite, error)
		GetByToken(ctx context.Context, token string) (Invite, error)
		// Accept registers the invited user. Only the name and passwords of nu are used.
		Accept(ctx context.Context, token string, nu user.NewUser) (user.User, error)
		Resend(ctx context.Context, usr user.User, id string) (Invite, error)
		QuerySent(ctx context.Context, usr user.User, filter QueryFilter) ([]Invite, error)
		ExpireStale(ctx context.Context) (int, error)
	}

	service struct {
		tx         core.Transactor
		repo       Repository
		userSvc    user.Service
		rosterSvc  roster.Service
		courseSvc  course.Service
		mailSvc    core.EmailService
		audit      audit.Service
		expiration time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	userSvc user.Service,
	rosterSvc roster.Service,
	courseSvc course.Service,
	mailSvc core.EmailService,
	auditSvc audit.Service,
	conf *core.Config,
) Service {
	return &service{
		tx:         tx,
		repo:       repo,
		userSvc:    userSvc,
		rosterSvc:  rosterSvc,
		courseSvc:  courseSvc,
		mailSvc:    mailSvc,
		audit:      auditSvc,
		expiration: conf.InviteExpirationDelta,
	}
}

func (svc *service) Create(ctx context.Context, inviter user.User, ni NewInvite) (Invite, error) {
	if ni.Role == user.RoleAdmin && !inviter.IsAdmin() {
		return Invite{}, ErrAdminInvite
	}

	meta := Metadata{Relationship: ni.Relationship}
	if ni.CourseID != "" {
		// the course must at least be visible to the inviter
		c, err := svc.courseSvc.Get(ctx, inviter, ni.CourseID)
		if err != nil {
			return Invite{}, err
		}
		meta.CourseID = c.ID
	}
	switch {
	case ni.Role == user.RoleStudent && inviter.ActingAs(user.RoleParent):
		meta.ParentID = inviter.ID
		if meta.Relationship == "" {
			meta.Relationship = roster.RelationshipOther
		}
	case ni.Role == user.RoleParent && ni.StudentID != "":
		if err := svc.checkStudent(ctx, inviter, ni.StudentID); err != nil {
			return Invite{}, err
		}
		meta.StudentID = ni.StudentID
	}

	var inv Invite
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.userSvc.GetByEmail(ctx, ni.Email); err == nil {
			return ErrUserExists
		} else if errors.Cause(err) != user.ErrNotFound {
			return errors.Wrap(err, "getting user by email")
		}

		now := core.Now()
		pending, err := svc.repo.QueryInvites(ctx, QueryFilter{Email: ni.Email, Status: StatusPending})
		if err != nil {
			return errors.Wrap(err, "querying pending invites")
		}
		for _, p := range pending {
			if !p.Expired(now) {
				return ErrDuplicate
			}
		}

		inv, err = svc.repo.CreateInvite(ctx, Invite{
			Email:     ni.Email,
			Role:      ni.Role,
			Token:     uuid.New().String(),
			InvitedBy: inviter.ID,
			Metadata:  meta,
			Status:    StatusPending,
			ExpiresAt: now.Add(svc.expiration),
			CreatedAt: now,
		})
		if err != nil {
			return errors.Wrap(err, "creating invite")
		}
		svc.audit.Log(ctx, inviter.ID, audit.ActionInviteCreate, "invite", inv.ID, inv.Email, " as ", inv.Role)
		return nil
	})
	if err != nil {
		return Invite{}, err
	}

	svc.sendInviteMail(inviter, inv)
	return inv, nil
}

// checkStudent verifies that the inviter is related to the student profile studentID.
// Admins are related to everyone; parents through a link; teachers through an enrollment.
func (svc *service) checkStudent(ctx context.Context, inviter user.User, studentID string) error {
	if inviter.IsAdmin() {
		return nil
	}
	if inviter.ActingAs(user.RoleParent) {
		children, err := svc.rosterSvc.Children(ctx, inviter)
		if err != nil {
			return err
		}
		for _, c := range children {
			if c.Profile.ID == studentID {
				return nil
			}
		}
		return ErrStudentNotLinked
	}
	if inviter.ActingAs(user.RoleTeacher) {
		courses, err := svc.courseSvc.List(ctx, inviter, nil, nil)
		if err != nil {
			return err
		}
		for _, c := range courses {
			entries, err := svc.courseSvc.Roster(ctx, inviter, c.ID)
			if err != nil {
				if core.IsForbidden(err) {
					continue
				}
				return err
			}
			for _, e := range entries {
				if e.StudentID == studentID {
					return nil
				}
			}
		}
	}
	return ErrStudentNotLinked
}

func (svc *service) sendInviteMail(inviter user.User, inv Invite) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: inv.Email}},
		Subject:      "You're invited",
		TemplateName: "invite",
		TemplateData: map[string]interface{}{
			"InviterName": inviter.Name,
			"Role":        inv.Role,
			"Token":       inv.Token,
			"ExpiresAt":   inv.ExpiresAt,
		},
	})
}

func (svc *service) GetByToken(ctx context.Context, token string) (Invite, error) {
	if token == "" {
		return Invite{}, ErrNotFound
	}
	return svc.repo.GetInvite(ctx, GetFilter{Token: token})
}

// Accept creates the invited account and applies the invite metadata, exactly once.
// Expired invites are marked as such and create nothing.
func (svc *service) Accept(ctx context.Context, token string, nu user.NewUser) (user.User, error) {
	inv, err := svc.GetByToken(ctx, token)
	if err != nil {
		return user.User{}, err
	}
	switch {
	case inv.Status == StatusAccepted:
		return user.User{}, ErrAlreadyAccepted
	case inv.Expired(core.Now()):
		if inv.Status == StatusPending {
			inv.Status = StatusExpired
			if _, err = svc.repo.UpdateInvite(ctx, inv); err != nil {
				return user.User{}, errors.Wrap(err, "expiring invite")
			}
		}
		return user.User{}, ErrExpired
	}
	if _, err = svc.userSvc.GetByEmail(ctx, inv.Email); err == nil {
		return user.User{}, ErrUserExists
	} else if errors.Cause(err) != user.ErrNotFound {
		return user.User{}, errors.Wrap(err, "getting user by email")
	}

	nu.Email = inv.Email
	nu.Roles = []user.Role{inv.Role}
	nu.ActiveRole = inv.Role

	var usr user.User
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := svc.repo.MarkAccepted(ctx, inv.ID, core.Now())
		if err != nil {
			return errors.Wrap(err, "accepting invite")
		}
		if !ok {
			return ErrAlreadyAccepted
		}

		if usr, err = svc.userSvc.Create(ctx, nu); err != nil {
			return err
		}
		if err = svc.applyMetadata(ctx, usr, inv); err != nil {
			return err
		}
		svc.audit.Log(ctx, usr.ID, audit.ActionInviteAccept, "invite", inv.ID, inv.Role)
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (svc *service) applyMetadata(ctx context.Context, usr user.User, inv Invite) error {
	meta := inv.Metadata
	switch inv.Role {
	case user.RoleStudent:
		if meta.ParentID == "" && meta.CourseID == "" {
			return nil
		}
		sp, err := svc.rosterSvc.EnsureStudentProfile(ctx, usr)
		if err != nil {
			return err
		}
		if meta.ParentID != "" {
			_, err = svc.rosterSvc.LinkStudent(ctx, meta.ParentID, sp.ID, meta.Relationship)
			if err != nil && !core.IsConflict(err) {
				return err
			}
		}
		if meta.CourseID != "" {
			if err = svc.courseSvc.EnrollStudent(ctx, meta.CourseID, sp.ID); err != nil && !core.IsNotFound(err) {
				return err
			}
		}
	case user.RoleParent:
		if meta.StudentID != "" {
			_, err := svc.rosterSvc.LinkStudent(ctx, usr.ID, meta.StudentID, meta.Relationship)
			if err != nil && !core.IsConflict(err) {
				return err
			}
		}
	case user.RoleTeacher:
		// claims any shadow profile discovered under the invited email
		if _, err := svc.rosterSvc.EnsureTeacherProfile(ctx, usr); err != nil {
			return err
		}
	}
	return nil
}

// Resend issues a new token and expiry for a non accepted invite and mails it again.
func (svc *service) Resend(ctx context.Context, usr user.User, id string) (Invite, error) {
	inv, err := svc.repo.GetInvite(ctx, GetFilter{ID: id})
	if err != nil {
		return Invite{}, err
	}
	if inv.InvitedBy != usr.ID && !usr.IsAdmin() {
		return Invite{}, ErrNotInviter
	}
	if inv.Status == StatusAccepted {
		return Invite{}, ErrAlreadyAccepted
	}

	inv.Token = uuid.New().String()
	inv.Status = StatusPending
	inv.ExpiresAt = core.Now().Add(svc.expiration)
	if inv, err = svc.repo.UpdateInvite(ctx, inv); err != nil {
		return Invite{}, errors.Wrap(err, "updating invite")
	}
	svc.sendInviteMail(usr, inv)
	return inv, nil
}

func (svc *service) QuerySent(ctx context.Context, usr user.User, filter QueryFilter) ([]Invite, error) {
	filter.InvitedBy = usr.ID
	return svc.repo.QueryInvites(ctx, filter)
}

func (svc *service) ExpireStale(ctx context.Context) (int, error) {
	return svc.repo.ExpirePending(ctx, core.Now())
}
