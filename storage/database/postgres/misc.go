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
	"github.com/theepangnani/emai-dev-03-sub000/core/audit"
	"github.com/theepangnani/emai-dev-03-sub000/core/broadcast"
	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/inspiration"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

// audit

type auditRow struct {
	ID           string      `db:"id"`
	UserID       null.String `db:"user_id"`
	Action       string      `db:"action"`
	ResourceType string      `db:"resource_type"`
	ResourceID   null.String `db:"resource_id"`
	Details      string      `db:"details"`
	IPAddress    null.String `db:"ip_address"`
	CreatedAt    time.Time   `db:"created_at"`
}

var auditColumns = []string{"id", "user_id", "action", "resource_type", "resource_id", "details", "ip_address", "created_at"}

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *sqlx.DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	e.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("audit_log").
		Columns(auditColumns...).
		Values(e.ID, e.UserID, string(e.Action), e.ResourceType, e.ResourceID, e.Details, e.IPAddress, e.CreatedAt))
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return e, nil
}

func (repo *auditRepository) QueryEntries(ctx context.Context, filter audit.QueryFilter, ordering []core.DBOrdering) ([]audit.Entry, error) {
	b := psql.Select(auditColumns...).From("audit_log")
	if filter.UserID != "" {
		b = b.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Action != "" {
		b = b.Where(sq.Eq{"action": string(filter.Action)})
	}
	if filter.ResourceType != "" {
		b = b.Where(sq.Eq{"resource_type": filter.ResourceType})
	}
	if !filter.From.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		b = b.Where(sq.LtOrEq{"created_at": filter.To.UTC()})
	}
	b = orderBy(b, ordering, "created_at DESC", "created_at")

	var rows []auditRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, audit.Entry{
			ID:           r.ID,
			UserID:       r.UserID,
			Action:       audit.Action(r.Action),
			ResourceType: r.ResourceType,
			ResourceID:   r.ResourceID,
			Details:      r.Details,
			IPAddress:    r.IPAddress,
			CreatedAt:    r.CreatedAt,
		})
	}
	return entries, nil
}

// broadcast

type broadcastRow struct {
	ID             string      `db:"id"`
	SenderID       string      `db:"sender_id"`
	Subject        string      `db:"subject"`
	Body           string      `db:"body"`
	TargetRole     null.String `db:"target_role"`
	RecipientCount int         `db:"recipient_count"`
	EmailCount     int         `db:"email_count"`
	CreatedAt      time.Time   `db:"created_at"`
}

var broadcastColumns = []string{
	"id", "sender_id", "subject", "body", "target_role", "recipient_count", "email_count", "created_at",
}

type broadcastRepository struct {
	db *sqlx.DB
}

var _ broadcast.Repository = (*broadcastRepository)(nil)

func NewBroadcastRepository(db *sqlx.DB) broadcast.Repository {
	return &broadcastRepository{db: db}
}

func (repo *broadcastRepository) CreateBroadcast(ctx context.Context, b broadcast.Broadcast) (broadcast.Broadcast, error) {
	b.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("broadcast").
		Columns(broadcastColumns...).
		Values(b.ID, b.SenderID, b.Subject, b.Body, b.TargetRole, b.RecipientCount, b.EmailCount, b.CreatedAt))
	if err != nil {
		return broadcast.Broadcast{}, errors.Wrap(err, "inserting broadcast")
	}
	return b, nil
}

func (repo *broadcastRepository) QueryBroadcasts(ctx context.Context) ([]broadcast.Broadcast, error) {
	var rows []broadcastRow
	b := psql.Select(broadcastColumns...).From("broadcast").OrderBy("created_at DESC")
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying broadcasts")
	}
	bs := make([]broadcast.Broadcast, 0, len(rows))
	for _, r := range rows {
		bs = append(bs, broadcast.Broadcast(r))
	}
	return bs, nil
}

// inspiration

type inspirationRow struct {
	ID        string      `db:"id"`
	Role      string      `db:"role"`
	Text      string      `db:"text"`
	Author    null.String `db:"author"`
	IsActive  bool        `db:"is_active"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r inspirationRow) model() inspiration.Message {
	return inspiration.Message{
		ID:        r.ID,
		Role:      user.Role(r.Role),
		Text:      r.Text,
		Author:    r.Author,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

var inspirationColumns = []string{"id", "role", "text", "author", "is_active", "created_at", "updated_at"}

type inspirationRepository struct {
	db *sqlx.DB
}

var _ inspiration.Repository = (*inspirationRepository)(nil)

func NewInspirationRepository(db *sqlx.DB) inspiration.Repository {
	return &inspirationRepository{db: db}
}

func (repo *inspirationRepository) CreateInspiration(ctx context.Context, m inspiration.Message) (inspiration.Message, error) {
	m.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("inspiration_message").
		Columns(inspirationColumns...).
		Values(m.ID, string(m.Role), m.Text, m.Author, m.IsActive, m.CreatedAt, m.UpdatedAt))
	if err != nil {
		return inspiration.Message{}, errors.Wrap(err, "inserting inspiration message")
	}
	return m, nil
}

func (repo *inspirationRepository) GetInspiration(ctx context.Context, id string) (inspiration.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return inspiration.Message{}, inspiration.ErrNotFound
	}
	var r inspirationRow
	b := psql.Select(inspirationColumns...).From("inspiration_message").Where(sq.Eq{"id": id})
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return inspiration.Message{}, trapNoRowsErr(err, inspiration.ErrNotFound, "getting inspiration message")
	}
	return r.model(), nil
}

func (repo *inspirationRepository) QueryInspirations(ctx context.Context, filter inspiration.QueryFilter) ([]inspiration.Message, error) {
	b := psql.Select(inspirationColumns...).From("inspiration_message").OrderBy("created_at")
	if filter.Role != "" {
		b = b.Where(sq.Eq{"role": string(filter.Role)})
	}
	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}

	var rows []inspirationRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying inspiration messages")
	}
	msgs := make([]inspiration.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.model())
	}
	return msgs, nil
}

func (repo *inspirationRepository) UpdateInspiration(ctx context.Context, m inspiration.Message) (inspiration.Message, error) {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("inspiration_message").
		SetMap(map[string]interface{}{
			"text":       m.Text,
			"author":     m.Author,
			"is_active":  m.IsActive,
			"updated_at": m.UpdatedAt,
		}).
		Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return inspiration.Message{}, errors.Wrap(err, "updating inspiration message")
	}
	if n == 0 {
		return inspiration.Message{}, inspiration.ErrNotFound
	}
	return m, nil
}

func (repo *inspirationRepository) DeleteInspiration(ctx context.Context, id string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("inspiration_message").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting inspiration message")
}

// communication

type communicationRow struct {
	ID          string      `db:"id"`
	UserID      string      `db:"user_id"`
	Source      string      `db:"source"`
	SourceID    string      `db:"source_id"`
	SenderName  string      `db:"sender_name"`
	SenderEmail string      `db:"sender_email"`
	Subject     string      `db:"subject"`
	Body        string      `db:"body"`
	Summary     null.String `db:"summary"`
	CourseName  null.String `db:"course_name"`
	IsRead      bool        `db:"is_read"`
	ReceivedAt  time.Time   `db:"received_at"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r communicationRow) model() communication.Record {
	return communication.Record{
		ID:          r.ID,
		UserID:      r.UserID,
		Source:      communication.Source(r.Source),
		SourceID:    r.SourceID,
		SenderName:  r.SenderName,
		SenderEmail: r.SenderEmail,
		Subject:     r.Subject,
		Body:        r.Body,
		Summary:     r.Summary,
		CourseName:  r.CourseName,
		IsRead:      r.IsRead,
		ReceivedAt:  r.ReceivedAt,
		CreatedAt:   r.CreatedAt,
	}
}

var communicationColumns = []string{
	"id", "user_id", "source", "source_id", "sender_name", "sender_email", "subject", "body", "summary",
	"course_name", "is_read", "received_at", "created_at",
}

type communicationRepository struct {
	db *sqlx.DB
}

var _ communication.Repository = (*communicationRepository)(nil)

func NewCommunicationRepository(db *sqlx.DB) communication.Repository {
	return &communicationRepository{db: db}
}

func (repo *communicationRepository) CreateCommunication(ctx context.Context, r communication.Record) (communication.Record, error) {
	r.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("teacher_communication").
		Columns(communicationColumns...).
		Values(r.ID, r.UserID, string(r.Source), r.SourceID, r.SenderName, r.SenderEmail, r.Subject, r.Body,
			r.Summary, r.CourseName, r.IsRead, r.ReceivedAt, r.CreatedAt))
	if err != nil {
		return communication.Record{}, errors.Wrap(err, "inserting communication")
	}
	return r, nil
}

func (repo *communicationRepository) GetCommunication(ctx context.Context, id string) (communication.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return communication.Record{}, communication.ErrNotFound
	}
	var r communicationRow
	b := psql.Select(communicationColumns...).From("teacher_communication").Where(sq.Eq{"id": id})
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return communication.Record{}, trapNoRowsErr(err, communication.ErrNotFound, "getting communication")
	}
	return r.model(), nil
}

func (repo *communicationRepository) QueryCommunications(ctx context.Context, filter communication.QueryFilter) ([]communication.Record, error) {
	b := psql.Select(communicationColumns...).From("teacher_communication").OrderBy("received_at DESC")
	if filter.UserID != "" {
		b = b.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Source != "" {
		b = b.Where(sq.Eq{"source": string(filter.Source)})
	}
	if filter.UnreadOnly {
		b = b.Where(sq.Eq{"is_read": false})
	}
	if filter.Search != "" {
		val := ilike(filter.Search)
		b = b.Where(sq.Or{sq.ILike{"subject": val}, sq.ILike{"body": val}, sq.ILike{"sender_name": val}})
	}

	var rows []communicationRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying communications")
	}
	records := make([]communication.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.model())
	}
	return records, nil
}

func (repo *communicationRepository) CommunicationExists(ctx context.Context, userID string, source communication.Source, sourceID string) (bool, error) {
	b := psql.Select("1").From("teacher_communication").
		Where(sq.Eq{"user_id": userID, "source": string(source), "source_id": sourceID})
	found, err := exists(ctx, executor(ctx, repo.db), b)
	return found, errors.Wrap(err, "checking communication")
}

func (repo *communicationRepository) MarkCommunicationRead(ctx context.Context, id string) error {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("teacher_communication").
		Set("is_read", true).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "marking communication read")
	}
	if n == 0 {
		return communication.ErrNotFound
	}
	return nil
}

// study guides

type studyGuideRow struct {
	ID              string      `db:"id"`
	UserID          string      `db:"user_id"`
	CourseID        null.String `db:"course_id"`
	CourseContentID null.String `db:"course_content_id"`
	GuideType       string      `db:"guide_type"`
	Title           string      `db:"title"`
	Content         string      `db:"content"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r studyGuideRow) model() studyguide.Guide {
	return studyguide.Guide{
		ID:              r.ID,
		UserID:          r.UserID,
		CourseID:        r.CourseID,
		CourseContentID: r.CourseContentID,
		GuideType:       studyguide.Type(r.GuideType),
		Title:           r.Title,
		Content:         r.Content,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

var studyGuideColumns = []string{
	"id", "user_id", "course_id", "course_content_id", "guide_type", "title", "content", "created_at", "updated_at",
}

type studyGuideRepository struct {
	db *sqlx.DB
}

var _ studyguide.Repository = (*studyGuideRepository)(nil)

func NewStudyGuideRepository(db *sqlx.DB) studyguide.Repository {
	return &studyGuideRepository{db: db}
}

func (repo *studyGuideRepository) CreateGuide(ctx context.Context, g studyguide.Guide) (studyguide.Guide, error) {
	g.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("study_guide").
		Columns(studyGuideColumns...).
		Values(g.ID, g.UserID, g.CourseID, g.CourseContentID, string(g.GuideType), g.Title, g.Content,
			g.CreatedAt, g.UpdatedAt))
	if err != nil {
		return studyguide.Guide{}, errors.Wrap(err, "inserting study guide")
	}
	return g, nil
}

func (repo *studyGuideRepository) GetGuide(ctx context.Context, id string) (studyguide.Guide, error) {
	if _, err := uuid.Parse(id); err != nil {
		return studyguide.Guide{}, studyguide.ErrNotFound
	}
	var r studyGuideRow
	b := psql.Select(studyGuideColumns...).From("study_guide").Where(sq.Eq{"id": id})
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return studyguide.Guide{}, trapNoRowsErr(err, studyguide.ErrNotFound, "getting study guide")
	}
	return r.model(), nil
}

func (repo *studyGuideRepository) QueryGuides(ctx context.Context, filter *studyguide.QueryFilter) ([]studyguide.Guide, error) {
	b := psql.Select(studyGuideColumns...).From("study_guide").OrderBy("created_at DESC")
	if filter != nil {
		if filter.GuideType != "" {
			b = b.Where(sq.Eq{"guide_type": string(filter.GuideType)})
		}
		if filter.CourseID != "" {
			b = b.Where(sq.Eq{"course_id": filter.CourseID})
		}
		if filter.Search != "" {
			val := ilike(filter.Search)
			b = b.Where(sq.Or{sq.ILike{"title": val}, sq.ILike{"content": val}})
		}
		if filter.UserIDs != nil {
			b = b.Where(sq.Eq{"user_id": filter.UserIDs})
		}
	}

	var rows []studyGuideRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying study guides")
	}
	guides := make([]studyguide.Guide, 0, len(rows))
	for _, r := range rows {
		guides = append(guides, r.model())
	}
	return guides, nil
}

func (repo *studyGuideRepository) DeleteGuide(ctx context.Context, id string) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Delete("study_guide").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting study guide")
}
