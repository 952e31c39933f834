// Package audit records who did what. Writing an entry never fails the operation being audited.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
)

type Action string

const (
	ActionLogin          Action = "login"
	ActionRegister       Action = "register"
	ActionRoleChange     Action = "role_change"
	ActionInviteCreate   Action = "invite_create"
	ActionInviteAccept   Action = "invite_accept"
	ActionCourseCreate   Action = "course_create"
	ActionCourseUpdate   Action = "course_update"
	ActionCourseDelete   Action = "course_delete"
	ActionEnroll         Action = "enroll"
	ActionUnenroll       Action = "unenroll"
	ActionLinkCreate     Action = "link_create"
	ActionLinkDelete     Action = "link_delete"
	ActionTeacherClaim   Action = "teacher_claim"
	ActionTaskCreate     Action = "task_create"
	ActionTaskArchive    Action = "task_archive"
	ActionTaskRestore    Action = "task_restore"
	ActionTaskDelete     Action = "task_delete"
	ActionBroadcastSend  Action = "broadcast_send"
	ActionMessageSend    Action = "message_send"
	ActionCommsSync      Action = "communications_sync"
	ActionStudyGuideGen  Action = "study_guide_generate"
	ActionPasswordChange Action = "password_change"
)

type Entry struct {
	ID           string      `json:"id"`
	UserID       null.String `json:"user_id"`
	Action       Action      `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   null.String `json:"resource_id"`
	Details      string      `json:"details"`
	IPAddress    null.String `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}

type QueryFilter struct {
	UserID       string    `query:"user_id"`
	Action       Action    `query:"action"`
	ResourceType string    `query:"resource_type"`
	From         time.Time `query:"from"`
	To           time.Time `query:"to"`
}

func (qf QueryFilter) Match(e Entry) bool {
	if qf.UserID != "" && e.UserID.String != qf.UserID {
		return false
	}
	if qf.Action != "" && e.Action != qf.Action {
		return false
	}
	if qf.ResourceType != "" && e.ResourceType != qf.ResourceType {
		return false
	}
	if !qf.From.IsZero() && e.CreatedAt.Before(qf.From.UTC()) {
		return false
	}
	if !qf.To.IsZero() && e.CreatedAt.After(qf.To.UTC()) {
		return false
	}
	return true
}

type (
	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		QueryEntries(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Entry, error)
	}

	Service interface {
		// Log writes an entry in a savepoint of the current transaction.
		// Failures are logged and swallowed.
		Log(ctx context.Context, actorID string, action Action, resourceType, resourceID string, details ...interface{})
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Entry, error)
	}

	service struct {
		tx     core.Transactor
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, logger core.Logger) Service {
	return &service{tx: tx, repo: repo, logger: logger}
}

type ipKey struct{}

// WithIP attaches the client IP of the current request to ctx.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

func (svc *service) Log(ctx context.Context, actorID string, action Action, resourceType, resourceID string, details ...interface{}) {
	e := Entry{
		UserID:       null.NewString(actorID, actorID != ""),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   null.NewString(resourceID, resourceID != ""),
		CreatedAt:    core.Now(),
	}
	if len(details) > 0 {
		e.Details = fmt.Sprint(details...)
	}
	if ip, ok := ctx.Value(ipKey{}).(string); ok && ip != "" {
		e.IPAddress = null.StringFrom(ip)
	}

	err := svc.tx.WithinSavepoint(ctx, func(ctx context.Context) error {
		_, err := svc.repo.CreateEntry(ctx, e)
		return err
	})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("writing audit entry %q: %v", action, err), err)
	}
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, filter, core.CleanOrderings(ordering, "created_at", "action", "resource_type"))
}
