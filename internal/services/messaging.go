package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/realtime"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

const (
	maxMessageLen  = 2000
	lastMessageLen = 200
)

var errNotParticipant = apperr.Forbidden("you are not a participant of this conversation")

type StartConversationInput struct {
	ParticipantID string `json:"participantId"`
}

type SendMessageInput struct {
	Text string `json:"text"`
}

// MessagePayload is the data of a message:new realtime event.
type MessagePayload struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversationId,omitempty"`
	GroupID        string             `json:"groupId,omitempty"`
	Sender         models.UserProfile `json:"sender"`
	Text           string             `json:"text"`
	SentAt         time.Time          `json:"sentAt"`
}

// History is one page of messages, oldest first.
type History struct {
	Messages interface{} `json:"messages"`
	HasMore  bool        `json:"hasMore"`
}

// MessagingService handles direct conversations and group chat. Messages
// are always persisted before they are broadcast.
type MessagingService struct {
	store       repository.Store
	policy      *Policy
	broadcaster Broadcaster
	recent      RecentMessageCache
	profiles    ProfileLookup
}

func cleanMessageText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.Validation("text is required")
	}
	return text, checkLen("text", text, maxMessageLen)
}

// GetOrCreateConversation returns the direct conversation between the two
// users, creating it on first contact. created reports whether it is new.
func (s *MessagingService) GetOrCreateConversation(ctx context.Context, userID, otherID string) (conv *models.Conversation, created bool, err error) {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" {
		return nil, false, apperr.Validation("participantId is required")
	}
	if otherID == userID {
		return nil, false, apperr.Validation("cannot start a conversation with yourself")
	}

	key := models.ParticipantKey(userID, otherID)
	conv, err = s.store.Conversations().FindByParticipants(ctx, key)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	conv = &models.Conversation{
		Participants:   []string{userID, otherID},
		ParticipantKey: key,
		UnreadBy:       []string{},
		CreatedAt:      now(),
	}
	err = s.store.Conversations().Create(ctx, conv)
	if errors.Is(err, repository.ErrDuplicate) {
		// Both users opened the conversation at the same time.
		conv, err = s.store.Conversations().FindByParticipants(ctx, key)
		return conv, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// ListConversations returns the caller's conversations, most recently
// active first.
func (s *MessagingService) ListConversations(ctx context.Context, userID string, p utils.PageParams) (utils.Page, error) {
	items, total, err := s.store.Conversations().ListForUser(ctx, userID, p.Skip(), int64(p.Limit))
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(items, total, p), nil
}

func (s *MessagingService) GetConversation(ctx context.Context, userID, rawID string) (*models.Conversation, error) {
	id, err := ParseID(rawID, "conversation")
	if err != nil {
		return nil, err
	}
	conv, err := s.store.Conversations().FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "conversation not found")
	}
	if !conv.HasParticipant(userID) {
		return nil, errNotParticipant
	}
	return conv, nil
}

// SendMessage stores the message, updates the conversation summary and
// marks it unread for everyone but the sender. The realtime push happens
// afterwards and cannot fail the send.
func (s *MessagingService) SendMessage(ctx context.Context, userID, rawConversationID string, in SendMessageInput) (*models.Message, error) {
	text, err := cleanMessageText(in.Text)
	if err != nil {
		return nil, err
	}
	conv, err := s.GetConversation(ctx, userID, rawConversationID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{ConversationID: conv.ID, Sender: userID, Text: text, SentAt: now()}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Messages().Create(ctx, msg); err != nil {
			return err
		}
		return s.store.Conversations().SetLastMessage(ctx, conv.ID, preview(text), msg.SentAt, conv.Others(userID))
	})
	if err != nil {
		return nil, notFound(err, "conversation not found")
	}

	s.broadcast(ctx, realtime.ConversationRoom(conv.ID.Hex()), MessagePayload{
		ID:             msg.ID.Hex(),
		ConversationID: conv.ID.Hex(),
		Text:           msg.Text,
		SentAt:         msg.SentAt,
	}, userID)
	return msg, nil
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= lastMessageLen {
		return text
	}
	return string([]rune(text)[:lastMessageLen])
}

func (s *MessagingService) ListMessages(ctx context.Context, userID, rawConversationID string, c utils.CursorParams) (History, error) {
	conv, err := s.GetConversation(ctx, userID, rawConversationID)
	if err != nil {
		return History{}, err
	}
	msgs, more, err := s.store.Messages().List(ctx, conv.ID, repository.MessageQuery{Before: c.Before, Limit: int64(c.Limit)})
	if err != nil {
		return History{}, err
	}
	return History{Messages: msgs, HasMore: more}, nil
}

// MarkAsRead removes the caller from unreadBy. Calling it twice is harmless.
func (s *MessagingService) MarkAsRead(ctx context.Context, userID, rawConversationID string) error {
	conv, err := s.GetConversation(ctx, userID, rawConversationID)
	if err != nil {
		return err
	}
	return notFound(s.store.Conversations().RemoveUnread(ctx, conv.ID, userID), "conversation not found")
}

// SendGroupMessage posts to the group chat. Only active members may send.
func (s *MessagingService) SendGroupMessage(ctx context.Context, userID, rawGroupID string, in SendMessageInput) (*models.GroupMessage, error) {
	text, err := cleanMessageText(in.Text)
	if err != nil {
		return nil, err
	}
	g, err := s.chatGroup(ctx, userID, rawGroupID)
	if err != nil {
		return nil, err
	}

	msg := &models.GroupMessage{GroupID: g.ID, Sender: userID, Text: text, SentAt: now()}
	if err := s.store.GroupMessages().Create(ctx, msg); err != nil {
		return nil, err
	}
	s.recent.Push(ctx, *msg)

	s.broadcast(ctx, realtime.GroupRoom(g.ID.Hex()), MessagePayload{
		ID:      msg.ID.Hex(),
		GroupID: g.ID.Hex(),
		Text:    msg.Text,
		SentAt:  msg.SentAt,
	}, userID)
	return msg, nil
}

// ListGroupMessages pages through group chat history. The first page is
// served from the recent cache when it is warm.
func (s *MessagingService) ListGroupMessages(ctx context.Context, userID, rawGroupID string, c utils.CursorParams) (History, error) {
	g, err := s.chatGroup(ctx, userID, rawGroupID)
	if err != nil {
		return History{}, err
	}
	groupID := g.ID.Hex()

	var mark int64
	if c.Before == nil {
		if c.Limit <= recentMaxLen {
			if cached, ok := s.recent.Recent(ctx, groupID); ok {
				out := cached
				if len(out) > c.Limit {
					out = out[len(out)-c.Limit:]
				}
				return History{Messages: out, HasMore: len(cached) > c.Limit || len(cached) >= recentMaxLen}, nil
			}
		}
		mark = s.recent.Mark(ctx, groupID)
	}

	msgs, more, err := s.store.GroupMessages().List(ctx, g.ID, repository.MessageQuery{Before: c.Before, Limit: int64(c.Limit)})
	if err != nil {
		return History{}, err
	}
	if c.Before == nil && len(msgs) > 0 && (c.Limit >= recentMaxLen || !more) {
		s.recent.Warm(ctx, groupID, mark, msgs)
	}
	return History{Messages: msgs, HasMore: more}, nil
}

// chatGroup loads the group and requires the caller to be an active member.
func (s *MessagingService) chatGroup(ctx context.Context, userID, rawGroupID string) (*models.Group, error) {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return nil, err
	}
	g, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	subject, err := subjectFor(ctx, s.store, userID, g)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(CapParticipate, subject); err != nil {
		return nil, err
	}
	return g, nil
}

// broadcast pushes payload to room in the background with the sender's
// profile attached.
func (s *MessagingService) broadcast(ctx context.Context, room string, payload MessagePayload, senderID string) {
	detached(ctx, "broadcast:"+room, func(ctx context.Context) error {
		payload.Sender = s.profiles.Lookup(ctx, senderID)
		return s.broadcaster.Publish(ctx, room, realtime.EventMessageNew, payload)
	})
}

// RoomAccess authorizes realtime room subscriptions with the same rules
// as the REST endpoints.
type RoomAccess struct {
	messaging *MessagingService
}

var _ realtime.Authorizer = (*RoomAccess)(nil)

func (r *RoomAccess) AuthorizeRoom(ctx context.Context, userID, kind, id string) error {
	switch kind {
	case realtime.KindConversation:
		_, err := r.messaging.GetConversation(ctx, userID, id)
		return err
	case realtime.KindGroup:
		_, err := r.messaging.chatGroup(ctx, userID, id)
		return err
	case realtime.KindUser:
		if id != userID {
			return apperr.Forbidden("you can only subscribe to your own notifications")
		}
		return nil
	}
	return apperr.Validation("unknown room type")
}
