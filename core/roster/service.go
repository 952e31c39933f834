package roster

import (
	"context"

	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

var (
	// errors
	ErrStudentNotFound      = core.NewNotFoundError("student not found")
	ErrTeacherNotFound      = core.NewNotFoundError("teacher not found")
	ErrLinkNotFound         = core.NewNotFoundError("link not found")
	ErrAlreadyLinked        = core.NewConflictError("already linked")
	ErrTeacherAlreadyLinked = core.NewConflictError("teacher already linked to this student")
	ErrNotParent            = core.NewForbiddenError("only parents can manage children")
	ErrSelfLink             = core.NewValidationError(errors.New("cannot link yourself"))
)

type (
	Repository interface {
		CreateStudentProfile(ctx context.Context, p StudentProfile) (StudentProfile, error)
		GetStudentProfile(ctx context.Context, filter StudentFilter) (StudentProfile, error)
		ListStudentProfiles(ctx context.Context, ids []string) ([]StudentProfile, error)
		UpdateStudentProfile(ctx context.Context, p StudentProfile) (StudentProfile, error)

		CreateTeacherProfile(ctx context.Context, p TeacherProfile) (TeacherProfile, error)
		GetTeacherProfile(ctx context.Context, filter TeacherFilter) (TeacherProfile, error)
		ListTeacherProfiles(ctx context.Context, ids []string) ([]TeacherProfile, error)
		UpdateTeacherProfile(ctx context.Context, p TeacherProfile) (TeacherProfile, error)
		DeleteTeacherProfile(ctx context.Context, id string) error
		// TransferTeacherReferences points every reference to teacher profile `fromID` at `toID`.
		TransferTeacherReferences(ctx context.Context, fromID, toID string) error

		CreateParentLink(ctx context.Context, l ParentLink) (ParentLink, error)
		DeleteParentLink(ctx context.Context, parentID, studentID string) error
		QueryParentLinks(ctx context.Context, filter LinkFilter) ([]ParentLink, error)

		CreateTeacherLink(ctx context.Context, l TeacherLink) (TeacherLink, error)
		GetTeacherLink(ctx context.Context, id string) (TeacherLink, error)
		DeleteTeacherLink(ctx context.Context, id string) error
		QueryTeacherLinks(ctx context.Context, filter TeacherLinkFilter) ([]TeacherLink, error)
		// SetTeacherLinkUser resolves the links made to `email` to the registered teacher `userID`.
		SetTeacherLinkUser(ctx context.Context, email, userID string) error
	}

	Service interface {
		// OnRoleAdded creates the profile matching a newly acquired role. It is a user.RoleHook.
		OnRoleAdded(ctx context.Context, usr user.User, role user.Role) error
		EnsureStudentProfile(ctx context.Context, usr user.User) (StudentProfile, error)
		EnsureTeacherProfile(ctx context.Context, usr user.User) (TeacherProfile, error)
		StudentProfile(ctx context.Context, usr user.User) (StudentProfile, error)
		StudentProfileByID(ctx context.Context, id string) (StudentProfile, error)
		UpdateStudentProfile(ctx context.Context, usr user.User, upd UpdateStudentProfile) (StudentProfile, error)
		TeacherProfile(ctx context.Context, usr user.User) (TeacherProfile, error)
		GetOrCreateShadowTeacher(ctx context.Context, name, email string) (TeacherProfile, error)

		LinkChild(ctx context.Context, parent user.User, lc LinkChild) (Child, error)
		// LinkStudent links a known student profile to a parent; used on invite acceptance.
		LinkStudent(ctx context.Context, parentID, studentID string, rel Relationship) (ParentLink, error)
		UnlinkChild(ctx context.Context, parent user.User, studentID string) error
		Children(ctx context.Context, parent user.User) ([]Child, error)
		Parents(ctx context.Context, studentID string) ([]user.User, error)

		LinkTeacher(ctx context.Context, parent user.User, lt LinkTeacher) (TeacherLink, error)
		UnlinkTeacher(ctx context.Context, parent user.User, linkID string) error
		TeacherLinks(ctx context.Context, parent user.User, studentID string) ([]TeacherLink, error)
	}

	service struct {
		tx    core.Transactor
		repo  Repository
		users user.Repository
		audit audit.Service
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, users user.Repository, auditSvc audit.Service) Service {
	return &service{tx: tx, repo: repo, users: users, audit: auditSvc}
}

func (svc *service) OnRoleAdded(ctx context.Context, usr user.User, role user.Role) error {
	switch role {
	case user.RoleStudent:
		_, err := svc.EnsureStudentProfile(ctx, usr)
		return err
	case user.RoleTeacher:
		_, err := svc.EnsureTeacherProfile(ctx, usr)
		return err
	}
	return nil
}

func (svc *service) EnsureStudentProfile(ctx context.Context, usr user.User) (StudentProfile, error) {
	p, err := svc.repo.GetStudentProfile(ctx, StudentFilter{UserID: usr.ID})
	if err == nil {
		return p, nil
	}
	if errors.Cause(err) != ErrStudentNotFound {
		return StudentProfile{}, errors.Wrap(err, "getting student profile")
	}

	now := core.Now()
	p, err = svc.repo.CreateStudentProfile(ctx, StudentProfile{UserID: usr.ID, CreatedAt: now, UpdatedAt: now})
	return p, errors.Wrap(err, "creating student profile")
}

// EnsureTeacherProfile returns the claimed teacher profile of usr, creating it when missing.
// A shadow profile registered under the user's email is claimed: its references move to the
// claimed profile and the shadow is removed.
func (svc *service) EnsureTeacherProfile(ctx context.Context, usr user.User) (TeacherProfile, error) {
	var claimed TeacherProfile
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		claimed, err = svc.repo.GetTeacherProfile(ctx, TeacherFilter{UserID: usr.ID})
		if err != nil {
			if errors.Cause(err) != ErrTeacherNotFound {
				return errors.Wrap(err, "getting teacher profile")
			}
			if claimed, err = svc.repo.CreateTeacherProfile(ctx, NewClaimedTeacher(usr)); err != nil {
				return errors.Wrap(err, "creating teacher profile")
			}
		}
		return svc.claim(ctx, usr, claimed)
	})
	if err != nil {
		return TeacherProfile{}, err
	}
	return claimed, nil
}

func (svc *service) claim(ctx context.Context, usr user.User, claimed TeacherProfile) error {
	shadow, err := svc.repo.GetTeacherProfile(ctx, TeacherFilter{Email: usr.Email, Kind: TeacherShadow})
	if err != nil {
		if errors.Cause(err) == ErrTeacherNotFound {
			return errors.Wrap(svc.repo.SetTeacherLinkUser(ctx, usr.Email, usr.ID), "resolving teacher links")
		}
		return errors.Wrap(err, "getting shadow teacher")
	}

	if err = svc.repo.TransferTeacherReferences(ctx, shadow.ID, claimed.ID); err != nil {
		return errors.Wrap(err, "transferring teacher references")
	}
	if err = svc.repo.DeleteTeacherProfile(ctx, shadow.ID); err != nil {
		return errors.Wrap(err, "deleting shadow teacher")
	}
	if err = svc.repo.SetTeacherLinkUser(ctx, usr.Email, usr.ID); err != nil {
		return errors.Wrap(err, "resolving teacher links")
	}
	svc.audit.Log(ctx, usr.ID, audit.ActionTeacherClaim, "teacher_profile", claimed.ID, "claimed shadow ", shadow.ID)
	return nil
}

func (svc *service) StudentProfile(ctx context.Context, usr user.User) (StudentProfile, error) {
	return svc.repo.GetStudentProfile(ctx, StudentFilter{UserID: usr.ID})
}

func (svc *service) StudentProfileByID(ctx context.Context, id string) (StudentProfile, error) {
	return svc.repo.GetStudentProfile(ctx, StudentFilter{ID: id})
}

func (svc *service) UpdateStudentProfile(ctx context.Context, usr user.User, upd UpdateStudentProfile) (StudentProfile, error) {
	p, err := svc.StudentProfile(ctx, usr)
	if err != nil {
		return StudentProfile{}, err
	}
	p.GradeLevel = upd.GradeLevel
	p.School = upd.School
	p.Phone = upd.Phone
	p.UpdatedAt = core.Now()
	return svc.repo.UpdateStudentProfile(ctx, p)
}

func (svc *service) TeacherProfile(ctx context.Context, usr user.User) (TeacherProfile, error) {
	return svc.repo.GetTeacherProfile(ctx, TeacherFilter{UserID: usr.ID})
}

// GetOrCreateShadowTeacher returns the teacher known under email, registering a shadow teacher if none exists.
func (svc *service) GetOrCreateShadowTeacher(ctx context.Context, name, email string) (TeacherProfile, error) {
	email = core.CleanString(email, true /* lower */)
	p, err := svc.repo.GetTeacherProfile(ctx, TeacherFilter{Email: email})
	if err == nil {
		return p, nil
	}
	if errors.Cause(err) != ErrTeacherNotFound {
		return TeacherProfile{}, errors.Wrap(err, "getting teacher by email")
	}
	if name == "" {
		name = email
	}
	p, err = svc.repo.CreateTeacherProfile(ctx, NewShadowTeacher(name, email))
	return p, errors.Wrap(err, "creating shadow teacher")
}

func (svc *service) LinkChild(ctx context.Context, parent user.User, lc LinkChild) (Child, error) {
	if !parent.HasRole(user.RoleParent) {
		return Child{}, ErrNotParent
	}
	if lc.StudentEmail == parent.Email {
		return Child{}, ErrSelfLink
	}

	var child Child
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		studentUsr, err := svc.users.GetUser(ctx, user.GetFilter{Email: lc.StudentEmail})
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return ErrStudentNotFound
			}
			return errors.Wrap(err, "getting student user")
		}
		if !studentUsr.HasRole(user.RoleStudent) {
			return ErrStudentNotFound
		}

		profile, err := svc.EnsureStudentProfile(ctx, studentUsr)
		if err != nil {
			return err
		}
		link, err := svc.LinkStudent(ctx, parent.ID, profile.ID, lc.Relationship)
		if err != nil {
			return err
		}
		child = Child{Profile: profile, User: studentUsr, Relationship: link.Relationship}
		return nil
	})
	if err != nil {
		return Child{}, err
	}
	return child, nil
}

func (svc *service) LinkStudent(ctx context.Context, parentID, studentID string, rel Relationship) (ParentLink, error) {
	if !rel.Valid() {
		rel = RelationshipOther
	}
	links, err := svc.repo.QueryParentLinks(ctx, LinkFilter{ParentIDs: []string{parentID}, StudentIDs: []string{studentID}})
	if err != nil {
		return ParentLink{}, errors.Wrap(err, "querying parent links")
	}
	if len(links) > 0 {
		return ParentLink{}, ErrAlreadyLinked
	}

	link, err := svc.repo.CreateParentLink(ctx, ParentLink{
		ParentID:     parentID,
		StudentID:    studentID,
		Relationship: rel,
		CreatedAt:    core.Now(),
	})
	if err != nil {
		return ParentLink{}, errors.Wrap(err, "creating parent link")
	}
	svc.audit.Log(ctx, parentID, audit.ActionLinkCreate, "student", studentID, rel)
	return link, nil
}

func (svc *service) UnlinkChild(ctx context.Context, parent user.User, studentID string) error {
	links, err := svc.repo.QueryParentLinks(ctx, LinkFilter{ParentIDs: []string{parent.ID}, StudentIDs: []string{studentID}})
	if err != nil {
		return errors.Wrap(err, "querying parent links")
	}
	if len(links) == 0 {
		return ErrStudentNotFound
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.DeleteParentLink(ctx, parent.ID, studentID); err != nil {
			return errors.Wrap(err, "deleting parent link")
		}
		svc.audit.Log(ctx, parent.ID, audit.ActionLinkDelete, "student", studentID)
		return nil
	})
}

func (svc *service) Children(ctx context.Context, parent user.User) ([]Child, error) {
	links, err := svc.repo.QueryParentLinks(ctx, LinkFilter{ParentIDs: []string{parent.ID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying parent links")
	}
	if len(links) == 0 {
		return []Child{}, nil
	}

	rels := make(map[string]Relationship, len(links))
	studentIDs := make([]string, 0, len(links))
	for _, l := range links {
		rels[l.StudentID] = l.Relationship
		studentIDs = append(studentIDs, l.StudentID)
	}
	profiles, err := svc.repo.ListStudentProfiles(ctx, studentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "listing student profiles")
	}

	userIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		userIDs = append(userIDs, p.UserID)
	}
	users, err := svc.users.QueryUsers(ctx, &user.QueryFilter{IDs: userIDs}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying children users")
	}
	usersByID := make(map[string]user.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	children := make([]Child, 0, len(profiles))
	for _, p := range profiles {
		children = append(children, Child{Profile: p, User: usersByID[p.UserID], Relationship: rels[p.ID]})
	}
	return children, nil
}

func (svc *service) Parents(ctx context.Context, studentID string) ([]user.User, error) {
	links, err := svc.repo.QueryParentLinks(ctx, LinkFilter{StudentIDs: []string{studentID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying parent links")
	}
	if len(links) == 0 {
		return []user.User{}, nil
	}
	parentIDs := make([]string, 0, len(links))
	for _, l := range links {
		parentIDs = append(parentIDs, l.ParentID)
	}
	return svc.users.QueryUsers(ctx, &user.QueryFilter{IDs: parentIDs}, nil)
}

// isParentOf reports whether parentID is linked to student profile studentID.
func (svc *service) isParentOf(ctx context.Context, parentID, studentID string) (bool, error) {
	links, err := svc.repo.QueryParentLinks(ctx, LinkFilter{ParentIDs: []string{parentID}, StudentIDs: []string{studentID}})
	if err != nil {
		return false, errors.Wrap(err, "querying parent links")
	}
	return len(links) > 0, nil
}

func (svc *service) LinkTeacher(ctx context.Context, parent user.User, lt LinkTeacher) (TeacherLink, error) {
	ok, err := svc.isParentOf(ctx, parent.ID, lt.StudentID)
	if err != nil {
		return TeacherLink{}, err
	}
	if !ok {
		return TeacherLink{}, ErrStudentNotFound
	}

	var link TeacherLink
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := svc.repo.QueryTeacherLinks(ctx, TeacherLinkFilter{StudentIDs: []string{lt.StudentID}, TeacherEmail: lt.TeacherEmail})
		if err != nil {
			return errors.Wrap(err, "querying teacher links")
		}
		if len(existing) > 0 {
			return ErrTeacherAlreadyLinked
		}

		link = TeacherLink{
			StudentID:    lt.StudentID,
			TeacherName:  lt.TeacherName,
			TeacherEmail: lt.TeacherEmail,
			CreatedBy:    parent.ID,
			CreatedAt:    core.Now(),
		}
		teacher, err := svc.users.GetUser(ctx, user.GetFilter{Email: lt.TeacherEmail})
		switch {
		case err == nil:
			if teacher.HasRole(user.RoleTeacher) {
				link.TeacherUserID.SetValid(teacher.ID)
				link.TeacherName = teacher.Name
			}
		case errors.Cause(err) != user.ErrNotFound:
			return errors.Wrap(err, "getting teacher user")
		}

		if link, err = svc.repo.CreateTeacherLink(ctx, link); err != nil {
			return errors.Wrap(err, "creating teacher link")
		}
		svc.audit.Log(ctx, parent.ID, audit.ActionLinkCreate, "teacher_link", link.ID, lt.TeacherEmail)
		return nil
	})
	if err != nil {
		return TeacherLink{}, err
	}
	return link, nil
}

func (svc *service) UnlinkTeacher(ctx context.Context, parent user.User, linkID string) error {
	link, err := svc.repo.GetTeacherLink(ctx, linkID)
	if err != nil {
		return err
	}
	ok, err := svc.isParentOf(ctx, parent.ID, link.StudentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLinkNotFound
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.DeleteTeacherLink(ctx, linkID); err != nil {
			return errors.Wrap(err, "deleting teacher link")
		}
		svc.audit.Log(ctx, parent.ID, audit.ActionLinkDelete, "teacher_link", linkID)
		return nil
	})
}

func (svc *service) TeacherLinks(ctx context.Context, parent user.User, studentID string) ([]TeacherLink, error) {
	ok, err := svc.isParentOf(ctx, parent.ID, studentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStudentNotFound
	}
	return svc.repo.QueryTeacherLinks(ctx, TeacherLinkFilter{StudentIDs: []string{studentID}})
}
