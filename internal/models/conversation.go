package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is a direct message thread. UnreadBy is a "has unread" set:
// every send overwrites it with the participants other than the sender.
type Conversation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Participants   []string           `bson:"participants" json:"participants"`
	ParticipantKey string             `bson:"participant_key" json:"-"`
	LastMessage    string             `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	LastMessageAt  *time.Time         `bson:"last_message_at,omitempty" json:"lastMessageAt,omitempty"`
	UnreadBy       []string           `bson:"unread_by" json:"unreadBy"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Others returns the participants except userID.
func (c *Conversation) Others(userID string) []string {
	out := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			out = append(out, p)
		}
	}
	return out
}

// ParticipantKey is the order-independent identity of a participant set.
func ParticipantKey(participants ...string) string {
	sorted := append([]string(nil), participants...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// Message is an immutable direct message.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversation_id" json:"conversationId"`
	Sender         string             `bson:"sender" json:"sender"`
	Text           string             `bson:"text" json:"text"`
	SentAt         time.Time          `bson:"sent_at" json:"sentAt"`
}

// GroupMessage is an immutable group chat message.
type GroupMessage struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID primitive.ObjectID `bson:"group_id" json:"groupId"`
	Sender  string             `bson:"sender" json:"sender"`
	Text    string             `bson:"text" json:"text"`
	SentAt  time.Time          `bson:"sent_at" json:"sentAt"`
}
