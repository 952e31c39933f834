package pgrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core/messaging"
)

type (
	conversationRow struct {
		ID             string      `db:"id"`
		Participant1ID string      `db:"participant_1_id"`
		Participant2ID string      `db:"participant_2_id"`
		StudentID      null.String `db:"student_id"`
		Subject        null.String `db:"subject"`
		CreatedAt      time.Time   `db:"created_at"`
		UpdatedAt      time.Time   `db:"updated_at"`
	}

	messageRow struct {
		ID             string    `db:"id"`
		ConversationID string    `db:"conversation_id"`
		SenderID       string    `db:"sender_id"`
		Content        string    `db:"content"`
		IsRead         bool      `db:"is_read"`
		ReadAt         null.Time `db:"read_at"`
		CreatedAt      time.Time `db:"created_at"`
	}
)

var (
	conversationColumns = []string{
		"id", "participant_1_id", "participant_2_id", "student_id", "subject", "created_at", "updated_at",
	}
	messageColumns = []string{"id", "conversation_id", "sender_id", "content", "is_read", "read_at", "created_at"}
)

type messagingRepository struct {
	db *sqlx.DB
}

var _ messaging.Repository = (*messagingRepository)(nil)

func NewMessagingRepository(db *sqlx.DB) messaging.Repository {
	return &messagingRepository{db: db}
}

func (repo *messagingRepository) CreateConversation(ctx context.Context, c messaging.Conversation) (messaging.Conversation, error) {
	c.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("conversation").
		Columns(conversationColumns...).
		Values(c.ID, c.Participant1ID, c.Participant2ID, c.StudentID, c.Subject, c.CreatedAt, c.UpdatedAt))
	if err != nil {
		return messaging.Conversation{}, errors.Wrap(err, "inserting conversation")
	}
	return c, nil
}

func (repo *messagingRepository) getConversation(ctx context.Context, where sq.Sqlizer) (messaging.Conversation, error) {
	var r conversationRow
	b := psql.Select(conversationColumns...).From("conversation").Where(where).OrderBy("created_at")
	if err := selectOne(ctx, executor(ctx, repo.db), &r, b); err != nil {
		return messaging.Conversation{}, trapNoRowsErr(err, messaging.ErrConversationNotFound, "getting conversation")
	}
	return messaging.Conversation(r), nil
}

func (repo *messagingRepository) GetConversation(ctx context.Context, id string) (messaging.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return messaging.Conversation{}, messaging.ErrConversationNotFound
	}
	return repo.getConversation(ctx, sq.Eq{"id": id})
}

func (repo *messagingRepository) FindConversation(ctx context.Context, a, b string) (messaging.Conversation, error) {
	return repo.getConversation(ctx, sq.Or{
		sq.Eq{"participant_1_id": a, "participant_2_id": b},
		sq.Eq{"participant_1_id": b, "participant_2_id": a},
	})
}

func (repo *messagingRepository) QueryConversations(ctx context.Context, userID string) ([]messaging.Conversation, error) {
	b := psql.Select(conversationColumns...).From("conversation").
		Where(sq.Or{sq.Eq{"participant_1_id": userID}, sq.Eq{"participant_2_id": userID}}).
		OrderBy("updated_at DESC")

	var rows []conversationRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	convs := make([]messaging.Conversation, 0, len(rows))
	for _, r := range rows {
		convs = append(convs, messaging.Conversation(r))
	}
	return convs, nil
}

func (repo *messagingRepository) TouchConversation(ctx context.Context, id string, at time.Time) error {
	n, err := execute(ctx, executor(ctx, repo.db), psql.Update("conversation").
		Set("updated_at", at).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "touching conversation")
	}
	if n == 0 {
		return messaging.ErrConversationNotFound
	}
	return nil
}

func (repo *messagingRepository) CreateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	m.ID = uuid.New().String()
	_, err := execute(ctx, executor(ctx, repo.db), psql.Insert("message").
		Columns(messageColumns...).
		Values(m.ID, m.ConversationID, m.SenderID, m.Content, m.IsRead, m.ReadAt, m.CreatedAt))
	if err != nil {
		return messaging.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo *messagingRepository) QueryMessages(ctx context.Context, conversationID string) ([]messaging.Message, error) {
	b := psql.Select(messageColumns...).From("message").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at")

	var rows []messageRow
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]messaging.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, messaging.Message(r))
	}
	return msgs, nil
}

func (repo *messagingRepository) MarkMessagesRead(ctx context.Context, conversationID, readerID string, at time.Time) error {
	_, err := execute(ctx, executor(ctx, repo.db), psql.Update("message").
		SetMap(map[string]interface{}{"is_read": true, "read_at": at}).
		Where(sq.Eq{"conversation_id": conversationID, "is_read": false}).
		Where(sq.NotEq{"sender_id": readerID}))
	return errors.Wrap(err, "marking messages read")
}

func (repo *messagingRepository) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	b := psql.Select("m.conversation_id", "COUNT(*) AS unread").
		From("message m").
		Join("conversation c ON c.id = m.conversation_id").
		Where(sq.Or{sq.Eq{"c.participant_1_id": userID}, sq.Eq{"c.participant_2_id": userID}}).
		Where(sq.Eq{"m.is_read": false}).
		Where(sq.NotEq{"m.sender_id": userID}).
		GroupBy("m.conversation_id")

	var rows []struct {
		ConversationID string `db:"conversation_id"`
		Unread         int    `db:"unread"`
	}
	if err := selectAll(ctx, executor(ctx, repo.db), &rows, b); err != nil {
		return nil, errors.Wrap(err, "counting unread messages")
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.ConversationID] = r.Unread
	}
	return counts, nil
}
