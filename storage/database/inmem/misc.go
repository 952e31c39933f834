package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/broadcast"
	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/inspiration"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(_ context.Context, e audit.Entry) (audit.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	e.ID = newID()
	repo.db.auditEntries[e.ID] = e
	return e, nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, filter audit.QueryFilter, ordering []core.DBOrdering) ([]audit.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]audit.Entry, 0)
	for _, e := range repo.db.auditEntries {
		if filter.Match(e) {
			entries = append(entries, e)
		}
	}
	byCreatedAt(entries, ascending(ordering, "created_at", false), func(e audit.Entry) time.Time { return e.CreatedAt })
	return entries, nil
}

type broadcastRepository struct {
	db *DB
}

var _ broadcast.Repository = (*broadcastRepository)(nil)

func NewBroadcastRepository(db *DB) broadcast.Repository {
	return &broadcastRepository{db: db}
}

func (repo *broadcastRepository) CreateBroadcast(_ context.Context, b broadcast.Broadcast) (broadcast.Broadcast, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	b.ID = newID()
	repo.db.broadcasts[b.ID] = b
	return b, nil
}

func (repo *broadcastRepository) QueryBroadcasts(_ context.Context) ([]broadcast.Broadcast, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bs := make([]broadcast.Broadcast, 0, len(repo.db.broadcasts))
	for _, b := range repo.db.broadcasts {
		bs = append(bs, b)
	}
	byCreatedAt(bs, false, func(b broadcast.Broadcast) time.Time { return b.CreatedAt })
	return bs, nil
}

type inspirationRepository struct {
	db *DB
}

var _ inspiration.Repository = (*inspirationRepository)(nil)

func NewInspirationRepository(db *DB) inspiration.Repository {
	return &inspirationRepository{db: db}
}

func (repo *inspirationRepository) CreateInspiration(_ context.Context, m inspiration.Message) (inspiration.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m.ID = newID()
	repo.db.inspirations[m.ID] = m
	return m, nil
}

func (repo *inspirationRepository) GetInspiration(_ context.Context, id string) (inspiration.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.inspirations[id]; ok {
		return m, nil
	}
	return inspiration.Message{}, inspiration.ErrNotFound
}

func (repo *inspirationRepository) QueryInspirations(_ context.Context, filter inspiration.QueryFilter) ([]inspiration.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := make([]inspiration.Message, 0)
	for _, m := range repo.db.inspirations {
		if filter.Match(m) {
			msgs = append(msgs, m)
		}
	}
	byCreatedAt(msgs, true, func(m inspiration.Message) time.Time { return m.CreatedAt })
	return msgs, nil
}

func (repo *inspirationRepository) UpdateInspiration(_ context.Context, m inspiration.Message) (inspiration.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.inspirations[m.ID]; !ok {
		return inspiration.Message{}, inspiration.ErrNotFound
	}
	repo.db.inspirations[m.ID] = m
	return m, nil
}

func (repo *inspirationRepository) DeleteInspiration(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.inspirations, id)
	return nil
}

type communicationRepository struct {
	db *DB
}

var _ communication.Repository = (*communicationRepository)(nil)

func NewCommunicationRepository(db *DB) communication.Repository {
	return &communicationRepository{db: db}
}

func (repo *communicationRepository) CreateCommunication(_ context.Context, r communication.Record) (communication.Record, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r.ID = newID()
	repo.db.communications[r.ID] = r
	return r, nil
}

func (repo *communicationRepository) GetCommunication(_ context.Context, id string) (communication.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.communications[id]; ok {
		return r, nil
	}
	return communication.Record{}, communication.ErrNotFound
}

func (repo *communicationRepository) QueryCommunications(_ context.Context, filter communication.QueryFilter) ([]communication.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	records := make([]communication.Record, 0)
	for _, r := range repo.db.communications {
		if filter.Match(r) {
			records = append(records, r)
		}
	}
	byCreatedAt(records, false, func(r communication.Record) time.Time { return r.ReceivedAt })
	return records, nil
}

func (repo *communicationRepository) CommunicationExists(_ context.Context, userID string, source communication.Source, sourceID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, r := range repo.db.communications {
		if r.UserID == userID && r.Source == source && r.SourceID == sourceID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *communicationRepository) MarkCommunicationRead(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.communications[id]
	if !ok {
		return communication.ErrNotFound
	}
	r.IsRead = true
	repo.db.communications[id] = r
	return nil
}

type studyGuideRepository struct {
	db *DB
}

var _ studyguide.Repository = (*studyGuideRepository)(nil)

func NewStudyGuideRepository(db *DB) studyguide.Repository {
	return &studyGuideRepository{db: db}
}

func (repo *studyGuideRepository) CreateGuide(_ context.Context, g studyguide.Guide) (studyguide.Guide, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	g.ID = newID()
	repo.db.studyGuides[g.ID] = g
	return g, nil
}

func (repo *studyGuideRepository) GetGuide(_ context.Context, id string) (studyguide.Guide, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.studyGuides[id]; ok {
		return g, nil
	}
	return studyguide.Guide{}, studyguide.ErrNotFound
}

func (repo *studyGuideRepository) QueryGuides(_ context.Context, filter *studyguide.QueryFilter) ([]studyguide.Guide, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	guides := make([]studyguide.Guide, 0)
	for _, g := range repo.db.studyGuides {
		if filter.Match(g) {
			guides = append(guides, g)
		}
	}
	byCreatedAt(guides, false, func(g studyguide.Guide) time.Time { return g.CreatedAt })
	return guides, nil
}

func (repo *studyGuideRepository) DeleteGuide(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.studyGuides, id)
	for tid, t := range repo.db.tasks {
		if t.StudyGuideID.String == id {
			t.StudyGuideID = null.String{}
			repo.db.tasks[tid] = t
		}
	}
	return nil
}
