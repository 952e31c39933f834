package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) CreateStudentProfile(_ context.Context, p roster.StudentProfile) (roster.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = newID()
	repo.db.studentProfiles[p.ID] = p
	return p, nil
}

func (repo *rosterRepository) GetStudentProfile(_ context.Context, filter roster.StudentFilter) (roster.StudentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.studentProfiles {
		if (filter.ID == "" || p.ID == filter.ID) && (filter.UserID == "" || p.UserID == filter.UserID) {
			return p, nil
		}
	}
	return roster.StudentProfile{}, roster.ErrStudentNotFound
}

func (repo *rosterRepository) ListStudentProfiles(_ context.Context, ids []string) ([]roster.StudentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	profiles := make([]roster.StudentProfile, 0, len(ids))
	for _, id := range ids {
		if p, ok := repo.db.studentProfiles[id]; ok {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

func (repo *rosterRepository) UpdateStudentProfile(_ context.Context, p roster.StudentProfile) (roster.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.studentProfiles[p.ID]; !ok {
		return roster.StudentProfile{}, roster.ErrStudentNotFound
	}
	repo.db.studentProfiles[p.ID] = p
	return p, nil
}

func (repo *rosterRepository) CreateTeacherProfile(_ context.Context, p roster.TeacherProfile) (roster.TeacherProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = newID()
	repo.db.teacherProfiles[p.ID] = p
	return p, nil
}

func (repo *rosterRepository) GetTeacherProfile(_ context.Context, filter roster.TeacherFilter) (roster.TeacherProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var found *roster.TeacherProfile
	for _, p := range repo.db.teacherProfiles {
		p := p
		if filter.ID != "" && p.ID != filter.ID {
			continue
		}
		if filter.UserID != "" && p.UserID.String != filter.UserID {
			continue
		}
		if filter.Email != "" && p.Email != filter.Email {
			continue
		}
		if filter.Kind != "" && p.Kind != filter.Kind {
			continue
		}
		// a claimed profile wins over a shadow sharing its email
		if found == nil || (found.Kind == roster.TeacherShadow && p.Kind == roster.TeacherClaimed) {
			found = &p
		}
	}
	if found == nil {
		return roster.TeacherProfile{}, roster.ErrTeacherNotFound
	}
	return *found, nil
}

func (repo *rosterRepository) ListTeacherProfiles(_ context.Context, ids []string) ([]roster.TeacherProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	profiles := make([]roster.TeacherProfile, 0, len(ids))
	for _, id := range ids {
		if p, ok := repo.db.teacherProfiles[id]; ok {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

func (repo *rosterRepository) UpdateTeacherProfile(_ context.Context, p roster.TeacherProfile) (roster.TeacherProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.teacherProfiles[p.ID]; !ok {
		return roster.TeacherProfile{}, roster.ErrTeacherNotFound
	}
	repo.db.teacherProfiles[p.ID] = p
	return p, nil
}

func (repo *rosterRepository) DeleteTeacherProfile(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.teacherProfiles, id)
	return nil
}

func (repo *rosterRepository) TransferTeacherReferences(_ context.Context, fromID, toID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, c := range repo.db.courses {
		if c.TeacherID.String == fromID {
			c.TeacherID = null.StringFrom(toID)
			repo.db.courses[id] = c
		}
	}
	return nil
}

func (repo *rosterRepository) CreateParentLink(_ context.Context, l roster.ParentLink) (roster.ParentLink, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.parentLinks {
		if existing.ParentID == l.ParentID && existing.StudentID == l.StudentID {
			return roster.ParentLink{}, roster.ErrAlreadyLinked
		}
	}
	l.ID = newID()
	repo.db.parentLinks[l.ID] = l
	return l, nil
}

func (repo *rosterRepository) DeleteParentLink(_ context.Context, parentID, studentID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, l := range repo.db.parentLinks {
		if l.ParentID == parentID && l.StudentID == studentID {
			delete(repo.db.parentLinks, id)
		}
	}
	return nil
}

func (repo *rosterRepository) QueryParentLinks(_ context.Context, filter roster.LinkFilter) ([]roster.ParentLink, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	links := make([]roster.ParentLink, 0)
	for _, l := range repo.db.parentLinks {
		if filter.Match(l) {
			links = append(links, l)
		}
	}
	byCreatedAt(links, true, func(l roster.ParentLink) time.Time { return l.CreatedAt })
	return links, nil
}

func (repo *rosterRepository) CreateTeacherLink(_ context.Context, l roster.TeacherLink) (roster.TeacherLink, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.teacherLinks {
		if existing.StudentID == l.StudentID && existing.TeacherEmail == l.TeacherEmail {
			return roster.TeacherLink{}, roster.ErrTeacherAlreadyLinked
		}
	}
	l.ID = newID()
	repo.db.teacherLinks[l.ID] = l
	return l, nil
}

func (repo *rosterRepository) GetTeacherLink(_ context.Context, id string) (roster.TeacherLink, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if l, ok := repo.db.teacherLinks[id]; ok {
		return l, nil
	}
	return roster.TeacherLink{}, roster.ErrLinkNotFound
}

func (repo *rosterRepository) DeleteTeacherLink(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.teacherLinks, id)
	return nil
}

func (repo *rosterRepository) QueryTeacherLinks(_ context.Context, filter roster.TeacherLinkFilter) ([]roster.TeacherLink, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	links := make([]roster.TeacherLink, 0)
	for _, l := range repo.db.teacherLinks {
		if filter.Match(l) {
			links = append(links, l)
		}
	}
	byCreatedAt(links, true, func(l roster.TeacherLink) time.Time { return l.CreatedAt })
	return links, nil
}

func (repo *rosterRepository) SetTeacherLinkUser(_ context.Context, email, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	email = core.CleanString(email, true /* lower */)
	for id, l := range repo.db.teacherLinks {
		if l.TeacherEmail == email {
			l.TeacherUserID = null.StringFrom(userID)
			repo.db.teacherLinks[id] = l
		}
	}
	return nil
}
