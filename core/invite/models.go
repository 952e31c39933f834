package invite

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
)

// Metadata tells what to link the new account to on acceptance.
type Metadata struct {
	CourseID     string              `json:"course_id,omitempty"`
	StudentID    string              `json:"student_id,omitempty"` // student profile a new parent gets linked to
	ParentID     string              `json:"parent_id,omitempty"`  // parent a new student gets linked to
	Relationship roster.Relationship `json:"relationship,omitempty"`
}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into invite metadata", src)
	}
	return json.Unmarshal(data, m)
}

type Invite struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Role       user.Role `json:"role"`
	Token      string    `json:"-"`
	InvitedBy  string    `json:"invited_by"`
	Metadata   Metadata  `json:"metadata"`
	Status     Status    `json:"status"`
	ExpiresAt  time.Time `json:"expires_at"`
	AcceptedAt null.Time `json:"accepted_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the invite can no longer be accepted because of its age.
func (inv Invite) Expired(now time.Time) bool {
	return inv.Status == StatusExpired || (inv.Status == StatusPending && !now.Before(inv.ExpiresAt))
}

type NewInvite struct {
	Email        string              `json:"email" validate:"required,email"`
	Role         user.Role           `json:"role" validate:"required,roles"`
	CourseID     string              `json:"course_id"`
	StudentID    string              `json:"student_id"`
	Relationship roster.Relationship `json:"relationship" validate:"omitempty,oneof=mother father guardian other"`
}

func (ni *NewInvite) Validate(validate *validator.Validate) error {
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	return validate.Struct(ni)
}

type GetFilter struct {
	ID    string
	Token string
}

type QueryFilter struct {
	InvitedBy string `query:"-"`
	Email     string `query:"email"`
	Status    Status `query:"status"`
}

func (qf QueryFilter) Match(inv Invite) bool {
	if qf.InvitedBy != "" && inv.InvitedBy != qf.InvitedBy {
		return false
	}
	if qf.Email != "" && inv.Email != qf.Email {
		return false
	}
	if qf.Status != "" && inv.Status != qf.Status {
		return false
	}
	return true
}
