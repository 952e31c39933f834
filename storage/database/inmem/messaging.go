package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core/messaging"
)

type messagingRepository struct {
	db *DB
}

var _ messaging.Repository = (*messagingRepository)(nil)

func NewMessagingRepository(db *DB) messaging.Repository {
	return &messagingRepository{db: db}
}

func (repo *messagingRepository) CreateConversation(_ context.Context, c messaging.Conversation) (messaging.Conversation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = newID()
	repo.db.conversations[c.ID] = c
	return c, nil
}

func (repo *messagingRepository) GetConversation(_ context.Context, id string) (messaging.Conversation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.conversations[id]; ok {
		return c, nil
	}
	return messaging.Conversation{}, messaging.ErrConversationNotFound
}

func (repo *messagingRepository) FindConversation(_ context.Context, a, b string) (messaging.Conversation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var found []messaging.Conversation
	for _, c := range repo.db.conversations {
		if (c.Participant1ID == a && c.Participant2ID == b) || (c.Participant1ID == b && c.Participant2ID == a) {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return messaging.Conversation{}, messaging.ErrConversationNotFound
	}
	// the oldest one wins when concurrent creations left duplicates
	byCreatedAt(found, true, func(c messaging.Conversation) time.Time { return c.CreatedAt })
	return found[0], nil
}

func (repo *messagingRepository) QueryConversations(_ context.Context, userID string) ([]messaging.Conversation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	convs := make([]messaging.Conversation, 0)
	for _, c := range repo.db.conversations {
		if c.HasParticipant(userID) {
			convs = append(convs, c)
		}
	}
	byCreatedAt(convs, false, func(c messaging.Conversation) time.Time { return c.UpdatedAt })
	return convs, nil
}

func (repo *messagingRepository) TouchConversation(_ context.Context, id string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c, ok := repo.db.conversations[id]
	if !ok {
		return messaging.ErrConversationNotFound
	}
	c.UpdatedAt = at
	repo.db.conversations[id] = c
	return nil
}

func (repo *messagingRepository) CreateMessage(_ context.Context, m messaging.Message) (messaging.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m.ID = newID()
	repo.db.messages[m.ID] = m
	return m, nil
}

func (repo *messagingRepository) QueryMessages(_ context.Context, conversationID string) ([]messaging.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := make([]messaging.Message, 0)
	for _, m := range repo.db.messages {
		if m.ConversationID == conversationID {
			msgs = append(msgs, m)
		}
	}
	byCreatedAt(msgs, true, func(m messaging.Message) time.Time { return m.CreatedAt })
	return msgs, nil
}

func (repo *messagingRepository) MarkMessagesRead(_ context.Context, conversationID, readerID string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, m := range repo.db.messages {
		if m.ConversationID == conversationID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			m.ReadAt = null.TimeFrom(at)
			repo.db.messages[id] = m
		}
	}
	return nil
}

func (repo *messagingRepository) UnreadCounts(_ context.Context, userID string) (map[string]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int)
	for _, m := range repo.db.messages {
		if m.IsRead || m.SenderID == userID {
			continue
		}
		if c, ok := repo.db.conversations[m.ConversationID]; ok && c.HasParticipant(userID) {
			counts[m.ConversationID]++
		}
	}
	return counts, nil
}
