package user

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/theepangnani/emai-dev-03-sub000/core"
)

type Role string

// Roles
const (
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

var (
	AllRoles = []Role{RoleParent, RoleStudent, RoleTeacher, RoleAdmin}

	rolePriorities = map[Role]int{
		RoleAdmin:   4,
		RoleTeacher: 3,
		RoleParent:  2,
		RoleStudent: 1,
	}

	Roles = []RoleInfo{
		{Name: "Parent", Value: RoleParent},
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

func (r Role) Valid() bool {
	_, ok := rolePriorities[r]
	return ok
}

func RolePriority(role Role) int {
	return rolePriorities[role]
}

// RoleSet is the set of roles held by a user.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	rs := make(RoleSet, len(roles))
	for _, r := range roles {
		rs[r] = struct{}{}
	}
	return rs
}

func (rs RoleSet) Has(r Role) bool {
	_, ok := rs[r]
	return ok
}

func (rs RoleSet) Len() int { return len(rs) }

// Slice returns the roles ordered by descending priority.
func (rs RoleSet) Slice() []Role {
	roles := make([]Role, 0, len(rs))
	for r := range rs {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return RolePriority(roles[i]) > RolePriority(roles[j]) })
	return roles
}

func (rs RoleSet) Strings() []string {
	roles := rs.Slice()
	strs := make([]string, 0, len(roles))
	for _, r := range roles {
		strs = append(strs, string(r))
	}
	return strs
}

func (rs RoleSet) String() string {
	return strings.Join(rs.Strings(), ",")
}

func (rs RoleSet) Clone() RoleSet {
	return NewRoleSet(rs.Slice()...)
}

func (rs RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Strings())
}

func (rs *RoleSet) UnmarshalJSON(data []byte) error {
	var roles []Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return err
	}
	*rs = NewRoleSet(roles...)
	return nil
}

type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Roles              RoleSet   `json:"roles"`
	ActiveRole         Role      `json:"active_role"`
	IsActive           bool      `json:"is_active"`
	EmailNotifications bool      `json:"email_notifications"`
	ReminderDays       []int     `json:"reminder_days"`
	PasswordHash       []byte    `json:"-"`
	GoogleToken        string    `json:"-"` // oauth2 token, JSON encoded
	LastSyncAt         null.Time `json:"last_sync_at"`
	LastLogin          null.Time `json:"last_login"`
	CreatedAt          time.Time `json:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) HasRole(r Role) bool { return u.Roles.Has(r) }

// ActingAs reports whether the user's active role is r.
func (u User) ActingAs(r Role) bool { return u.ActiveRole == r }

func (u User) IsAdmin() bool { return u.ActingAs(RoleAdmin) }

func (u User) HasGoogle() bool { return u.GoogleToken != "" }

// ReminderOffsets returns the user's reminder days, or `defaults` when none are configured.
func (u User) ReminderOffsets(defaults []int) []int {
	if len(u.ReminderDays) > 0 {
		return u.ReminderDays
	}
	return defaults
}

// AddRole grants r. The active role is set to r when the user had none.
func (u *User) AddRole(r Role) error {
	if !r.Valid() {
		return ErrInvalidRole
	}
	if u.Roles == nil {
		u.Roles = NewRoleSet()
	}
	u.Roles[r] = struct{}{}
	if u.ActiveRole == "" {
		u.ActiveRole = r
	}
	return nil
}

// RemoveRole revokes r. The last role cannot be removed.
// Removing the active role switches to the highest priority remaining role.
func (u *User) RemoveRole(r Role) error {
	if !u.Roles.Has(r) {
		return ErrRoleNotHeld
	}
	if u.Roles.Len() == 1 {
		return ErrLastRole
	}
	delete(u.Roles, r)
	if u.ActiveRole == r {
		u.ActiveRole = u.Roles.Slice()[0]
	}
	return nil
}

func (u *User) SwitchRole(r Role) error {
	if !u.Roles.Has(r) {
		return ErrRoleNotHeld
	}
	u.ActiveRole = r
	return nil
}

// CheckRoles verifies the role invariants: at least one role, active role held.
func (u User) CheckRoles() error {
	if u.Roles.Len() == 0 {
		return ErrLastRole
	}
	if !u.Roles.Has(u.ActiveRole) {
		return ErrRoleNotHeld
	}
	return nil
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []Role `json:"roles" validate:"required,min=1,roles"`
	ActiveRole      Role   `json:"active_role" validate:"omitempty,roles"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name               string `json:"name"`
	Email              string `json:"email" validate:"omitempty,email"`
	IsActive           *bool  `json:"is_active"`
	EmailNotifications *bool  `json:"email_notifications"`
	ReminderDays       []int  `json:"reminder_days" validate:"omitempty,max=7,dive,min=0,max=30"`
	Password           string `json:"password" validate:"omitempty"`
	PasswordConfirm    string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Clean(origUsr User) {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []Role    `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
	IDs         []string  `query:"-"` // nil: no restriction
	WithGoogle  bool      `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero() &&
		qf.IDs == nil && !qf.WithGoogle
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match reports whether usr satisfies the filter. Repositories without a query language use it.
func (qf *QueryFilter) Match(usr User) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !strings.Contains(strings.ToLower(usr.Name), s) && !strings.Contains(strings.ToLower(usr.Email), s) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		var found bool
		for _, r := range qf.Roles {
			if usr.HasRole(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom.UTC()) {
		return false
	}
	if !qf.CreatedTo.IsZero() && usr.CreatedAt.After(qf.CreatedTo.UTC()) {
		return false
	}
	if qf.IDs != nil && !core.ContainsString(qf.IDs, usr.ID) {
		return false
	}
	if qf.WithGoogle && !usr.HasGoogle() {
		return false
	}
	return true
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Clean()
	return validate.Struct(nu)
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	uu.Clean(origUsr)
	return validate.Struct(uu)
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }
