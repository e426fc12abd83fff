package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type conversationRepo struct{ s *Store }

func cloneConversation(c models.Conversation) *models.Conversation {
	c.Participants = cloneStrings(c.Participants)
	c.UnreadBy = cloneStrings(c.UnreadBy)
	if c.UnreadBy == nil {
		c.UnreadBy = []string{}
	}
	return &c
}

func (r conversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	defer r.s.lock(ctx)()
	if c.ParticipantKey == "" {
		c.ParticipantKey = models.ParticipantKey(c.Participants...)
	}
	for _, existing := range r.s.data.conversations {
		if existing.ParticipantKey == c.ParticipantKey {
			return repository.ErrDuplicate
		}
	}
	ensureID(&c.ID)
	if c.UnreadBy == nil {
		c.UnreadBy = []string{}
	}
	r.s.data.conversations[c.ID] = *cloneConversation(*c)
	return nil
}

func (r conversationRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.data.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (r conversationRepo) FindByParticipants(ctx context.Context, key string) (*models.Conversation, error) {
	defer r.s.lock(ctx)()
	for _, c := range r.s.data.conversations {
		if c.ParticipantKey == key {
			return cloneConversation(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r conversationRepo) ListForUser(ctx context.Context, userID string, skip, limit int64) ([]models.Conversation, int64, error) {
	defer r.s.lock(ctx)()
	var items []models.Conversation
	for _, c := range r.s.data.conversations {
		if c.HasParticipant(userID) {
			items = append(items, *cloneConversation(c))
		}
	}
	out, total := page(items, func(a, b models.Conversation) bool {
		return lastActivity(a).After(lastActivity(b))
	}, skip, limit)
	return out, total, nil
}

func lastActivity(c models.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (r conversationRepo) SetLastMessage(ctx context.Context, id primitive.ObjectID, text string, at time.Time, unreadBy []string) error {
	defer r.s.lock(ctx)()
	c, ok := r.s.data.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.LastMessage = text
	c.LastMessageAt = &at
	c.UnreadBy = cloneStrings(unreadBy)
	if c.UnreadBy == nil {
		c.UnreadBy = []string{}
	}
	r.s.data.conversations[id] = c
	return nil
}

func (r conversationRepo) RemoveUnread(ctx context.Context, id primitive.ObjectID, userID string) error {
	defer r.s.lock(ctx)()
	c, ok := r.s.data.conversations[id]
	if !ok {
		return repository.ErrNotFound
	}
	unread := make([]string, 0, len(c.UnreadBy))
	for _, u := range c.UnreadBy {
		if u != userID {
			unread = append(unread, u)
		}
	}
	c.UnreadBy = unread
	r.s.data.conversations[id] = c
	return nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, m *models.Message) error {
	defer r.s.lock(ctx)()
	ensureID(&m.ID)
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	r.s.data.messages[m.ID] = *m
	return nil
}

func (r messageRepo) List(ctx context.Context, conversationID primitive.ObjectID, q repository.MessageQuery) ([]models.Message, bool, error) {
	defer r.s.lock(ctx)()
	var items []models.Message
	for _, m := range r.s.data.messages {
		if m.ConversationID == conversationID && (q.Before == nil || m.SentAt.Before(*q.Before)) {
			items = append(items, m)
		}
	}
	out, more := history(items, func(m models.Message) (time.Time, primitive.ObjectID) { return m.SentAt, m.ID }, q.Limit)
	return out, more, nil
}

type groupMessageRepo struct{ s *Store }

func (r groupMessageRepo) Create(ctx context.Context, m *models.GroupMessage) error {
	defer r.s.lock(ctx)()
	ensureID(&m.ID)
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	r.s.data.groupMessages[m.ID] = *m
	return nil
}

func (r groupMessageRepo) List(ctx context.Context, groupID primitive.ObjectID, q repository.MessageQuery) ([]models.GroupMessage, bool, error) {
	defer r.s.lock(ctx)()
	var items []models.GroupMessage
	for _, m := range r.s.data.groupMessages {
		if m.GroupID == groupID && (q.Before == nil || m.SentAt.Before(*q.Before)) {
			items = append(items, m)
		}
	}
	out, more := history(items, func(m models.GroupMessage) (time.Time, primitive.ObjectID) { return m.SentAt, m.ID }, q.Limit)
	return out, more, nil
}

func (r groupMessageRepo) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	for id, m := range r.s.data.groupMessages {
		if m.GroupID == groupID {
			delete(r.s.data.groupMessages, id)
		}
	}
	return nil
}

// history mirrors the Mongo driver: newest-first window of limit, returned
// oldest-first, with a flag for older rows.
func history[T any](items []T, key func(T) (time.Time, primitive.ObjectID), limit int64) ([]T, bool) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if ti.Equal(tj) {
			return idi.Hex() > idj.Hex()
		}
		return ti.After(tj)
	})

	hasMore := int64(len(items)) > limit
	if hasMore {
		items = items[:limit]
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	if items == nil {
		items = []T{}
	}
	return items, hasMore
}
