package messaging

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

// Conversation is held by an unordered pair of participants.
type Conversation struct {
	ID             string      `json:"id"`
	Participant1ID string      `json:"participant_1_id"`
	Participant2ID string      `json:"participant_2_id"`
	StudentID      null.String `json:"student_id"` // student profile the conversation is about
	Subject        null.String `json:"subject"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (c Conversation) HasParticipant(userID string) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) string {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	ReadAt         null.Time `json:"read_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recipient is a user the caller may start a conversation with.
type Recipient struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Role         user.Role `json:"role"`
	StudentNames []string  `json:"student_names"`
}

type Participant struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Roles user.RoleSet `json:"roles"`
}

func participantOf(usr user.User) Participant {
	return Participant{ID: usr.ID, Name: usr.Name, Roles: usr.Roles}
}

type ConversationSummary struct {
	Conversation
	Other       Participant `json:"other_participant"`
	LastMessage *Message    `json:"last_message"`
	UnreadCount int         `json:"unread_count"`
}

type ConversationDetail struct {
	Conversation
	Other    Participant `json:"other_participant"`
	Messages []Message   `json:"messages"`
}

type NewConversation struct {
	RecipientID string      `json:"recipient_id" validate:"required"`
	Content     string      `json:"content" validate:"required,max=10000"`
	Subject     null.String `json:"subject"`
	StudentID   null.String `json:"student_id"`
}

func (nc *NewConversation) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

type NewMessage struct {
	Content string `json:"content" validate:"required,max=10000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}
