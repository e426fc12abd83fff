package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/realtime"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

func (f *fixture) conversation(t *testing.T, a, b string) *models.Conversation {
	t.Helper()
	conv, _, err := f.svc.Messaging.GetOrCreateConversation(f.ctx, a, b)
	require.NoError(t, err)
	return conv
}

func TestGetOrCreateConversationIsIdempotent(t *testing.T) {
	f := newFixture(t)

	conv, created, err := f.svc.Messaging.GetOrCreateConversation(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.ElementsMatch(t, []string{"alice", "bob"}, conv.Participants)
	assert.Empty(t, conv.UnreadBy)

	again, created, err := f.svc.Messaging.GetOrCreateConversation(f.ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)

	_, _, err = f.svc.Messaging.GetOrCreateConversation(f.ctx, "alice", "alice")
	assertAppError(t, err, http.StatusBadRequest, "cannot start a conversation with yourself")
	_, _, err = f.svc.Messaging.GetOrCreateConversation(f.ctx, "alice", " ")
	assertAppError(t, err, http.StatusBadRequest, "participantId is required")
}

func TestSendMessageTracksUnread(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")

	msg, err := f.svc.Messaging.SendMessage(f.ctx, "alice", conv.ID.Hex(), SendMessageInput{Text: " first light at the saddle "})
	require.NoError(t, err)
	assert.Equal(t, "first light at the saddle", msg.Text)

	stored, err := f.store.Conversations().FindByID(f.ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, stored.UnreadBy)
	assert.Equal(t, "first light at the saddle", stored.LastMessage)
	require.NotNil(t, stored.LastMessageAt)

	// A second send by the same user keeps a single unread marker.
	_, err = f.svc.Messaging.SendMessage(f.ctx, "alice", conv.ID.Hex(), SendMessageInput{Text: "still there?"})
	require.NoError(t, err)
	stored, err = f.store.Conversations().FindByID(f.ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, stored.UnreadBy)

	require.NoError(t, f.svc.Messaging.MarkAsRead(f.ctx, "bob", conv.ID.Hex()))
	require.NoError(t, f.svc.Messaging.MarkAsRead(f.ctx, "bob", conv.ID.Hex()))
	stored, err = f.store.Conversations().FindByID(f.ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.UnreadBy)

	_, err = f.svc.Messaging.SendMessage(f.ctx, "bob", conv.ID.Hex(), SendMessageInput{Text: "yes"})
	require.NoError(t, err)
	stored, err = f.store.Conversations().FindByID(f.ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, stored.UnreadBy)

	history, err := f.svc.Messaging.ListMessages(f.ctx, "alice", conv.ID.Hex(), utils.CursorParams{Limit: 50})
	require.NoError(t, err)
	msgs := history.Messages.([]models.Message)
	require.Len(t, msgs, 3)
	assert.Equal(t, "yes", msgs[2].Text)
	assert.False(t, history.HasMore)
}

func TestConversationRejectsOutsiders(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")

	_, err := f.svc.Messaging.SendMessage(f.ctx, "mallory", conv.ID.Hex(), SendMessageInput{Text: "hi"})
	assertAppError(t, err, http.StatusForbidden, "you are not a participant of this conversation")
	_, err = f.svc.Messaging.ListMessages(f.ctx, "mallory", conv.ID.Hex(), utils.CursorParams{Limit: 50})
	assertAppError(t, err, http.StatusForbidden, "")
	err = f.svc.Messaging.MarkAsRead(f.ctx, "mallory", conv.ID.Hex())
	assertAppError(t, err, http.StatusForbidden, "")

	_, err = f.svc.Messaging.SendMessage(f.ctx, "alice", primitive.NewObjectID().Hex(), SendMessageInput{Text: "hi"})
	assertAppError(t, err, http.StatusNotFound, "conversation not found")
	_, err = f.svc.Messaging.SendMessage(f.ctx, "alice", conv.ID.Hex(), SendMessageInput{Text: ""})
	assertAppError(t, err, http.StatusBadRequest, "text is required")
}

func TestMessageIsBroadcastAfterItIsStored(t *testing.T) {
	f := newFixture(t)
	f.store.SeedUser(models.UserProfile{ID: "alice", Name: "Alice Ridge", AvatarURL: "https://img.example/alice.png"})
	conv := f.conversation(t, "alice", "bob")

	storedAtPublish := make(chan int, 1)
	f.bus.onPublish = func(room string, _ interface{}) {
		msgs, _, err := f.store.Messages().List(context.Background(), conv.ID, repository.MessageQuery{Limit: 10})
		if err != nil {
			storedAtPublish <- -1
			return
		}
		storedAtPublish <- len(msgs)
	}

	msg, err := f.svc.Messaging.SendMessage(f.ctx, "alice", conv.ID.Hex(), SendMessageInput{Text: "on my way"})
	require.NoError(t, err)

	select {
	case n := <-storedAtPublish:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("message was never broadcast")
	}

	events := f.bus.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.ConversationRoom(conv.ID.Hex()), events[0].Room)
	assert.Equal(t, realtime.EventMessageNew, events[0].Event)
	payload, ok := events[0].Data.(MessagePayload)
	require.True(t, ok)
	assert.Equal(t, msg.ID.Hex(), payload.ID)
	assert.Equal(t, "Alice Ridge", payload.Sender.Name)
	assert.Equal(t, "on my way", payload.Text)
}

func TestBroadcastFailureDoesNotFailSend(t *testing.T) {
	f := newFixture(t)
	f.bus.err = errors.New("bus down")
	conv := f.conversation(t, "alice", "bob")

	msg, err := f.svc.Messaging.SendMessage(f.ctx, "alice", conv.ID.Hex(), SendMessageInput{Text: "anyone?"})
	require.NoError(t, err)
	assert.False(t, msg.ID.IsZero())

	assert.Eventually(t, func() bool { return len(f.bus.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	msgs, _, err := f.store.Messages().List(f.ctx, conv.ID, repository.MessageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestListConversationsNewestActivityFirst(t *testing.T) {
	f := newFixture(t)
	older := f.conversation(t, "alice", "bob")
	newer := f.conversation(t, "alice", "carol")
	_, err := f.svc.Messaging.SendMessage(f.ctx, "alice", older.ID.Hex(), SendMessageInput{Text: "bump"})
	require.NoError(t, err)

	page, err := f.svc.Messaging.ListConversations(f.ctx, "alice", firstPage())
	require.NoError(t, err)
	items := page.Items.([]models.Conversation)
	require.Len(t, items, 2)
	assert.Equal(t, older.ID, items[0].ID)
	assert.Equal(t, newer.ID, items[1].ID)

	page, err = f.svc.Messaging.ListConversations(f.ctx, "bob", firstPage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

// fakeRecentCache is an in-process RecentMessageCache. beforeWarm runs
// between the snapshot read and the write.
type fakeRecentCache struct {
	mu         sync.Mutex
	groups     map[string][]models.GroupMessage
	versions   map[string]int64
	hits       int
	beforeWarm func()
}

func newFakeRecentCache() *fakeRecentCache {
	return &fakeRecentCache{
		groups:   make(map[string][]models.GroupMessage),
		versions: make(map[string]int64),
	}
}

func (c *fakeRecentCache) Push(_ context.Context, msg models.GroupMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := msg.GroupID.Hex()
	c.versions[key]++
	if cached, ok := c.groups[key]; ok {
		c.groups[key] = append(cached, msg)
	}
}

func (c *fakeRecentCache) Mark(_ context.Context, groupID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[groupID]
}

func (c *fakeRecentCache) Recent(_ context.Context, groupID string) ([]models.GroupMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.groups[groupID]
	if ok {
		c.hits++
	}
	return append([]models.GroupMessage(nil), cached...), ok
}

func (c *fakeRecentCache) Warm(_ context.Context, groupID string, mark int64, msgs []models.GroupMessage) {
	if c.beforeWarm != nil {
		c.beforeWarm()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[groupID] != mark {
		return
	}
	c.groups[groupID] = append([]models.GroupMessage(nil), msgs...)
}

func (c *fakeRecentCache) Invalidate(_ context.Context, groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[groupID]++
	delete(c.groups, groupID)
}

func (c *fakeRecentCache) warm(groupID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.groups[groupID]
	return ok
}

func TestGroupChat(t *testing.T) {
	cache := newFakeRecentCache()
	f := newFixture(t, func(o *Options) { o.RecentCache = cache })
	g := f.createGroup(t, "alice", models.GroupPublic)

	_, err := f.svc.Messaging.SendGroupMessage(f.ctx, "bob", g.ID.Hex(), SendMessageInput{Text: "hello"})
	assertAppError(t, err, http.StatusForbidden, "you must be a member of this group")

	f.join(t, g, "bob")
	_, err = f.svc.Messaging.SendGroupMessage(f.ctx, "bob", g.ID.Hex(), SendMessageInput{Text: "hello"})
	require.NoError(t, err)

	// First read misses the cache and warms it.
	history, err := f.svc.Messaging.ListGroupMessages(f.ctx, "alice", g.ID.Hex(), utils.CursorParams{Limit: 50})
	require.NoError(t, err)
	require.Len(t, history.Messages.([]models.GroupMessage), 1)
	assert.Zero(t, cache.hits)

	_, err = f.svc.Messaging.SendGroupMessage(f.ctx, "alice", g.ID.Hex(), SendMessageInput{Text: "welcome"})
	require.NoError(t, err)

	history, err = f.svc.Messaging.ListGroupMessages(f.ctx, "alice", g.ID.Hex(), utils.CursorParams{Limit: 50})
	require.NoError(t, err)
	msgs := history.Messages.([]models.GroupMessage)
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "welcome", msgs[1].Text)

	assert.Eventually(t, func() bool {
		for _, e := range f.bus.snapshot() {
			if e.Room == realtime.GroupRoom(g.ID.Hex()) && e.Event == realtime.EventMessageNew {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, f.svc.Groups.Delete(f.ctx, "alice", g.ID.Hex()))
	_, ok := cache.Recent(f.ctx, g.ID.Hex())
	assert.False(t, ok, "deleting the group drops its cached chat")
}

func TestRoomAccess(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, "alice", "bob")
	g := f.createGroup(t, "alice", models.GroupPublic)

	tests := []struct {
		name   string
		user   string
		kind   string
		id     string
		status int
	}{
		{"conversation participant", "bob", realtime.KindConversation, conv.ID.Hex(), 0},
		{"conversation outsider", "carol", realtime.KindConversation, conv.ID.Hex(), http.StatusForbidden},
		{"group member", "alice", realtime.KindGroup, g.ID.Hex(), 0},
		{"group outsider", "carol", realtime.KindGroup, g.ID.Hex(), http.StatusForbidden},
		{"own notifications", "carol", realtime.KindUser, "carol", 0},
		{"someone else's notifications", "carol", realtime.KindUser, "alice", http.StatusForbidden},
		{"unknown kind", "alice", "weather", "x", http.StatusBadRequest},
		{"bad id", "alice", realtime.KindGroup, "nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Rooms.AuthorizeRoom(f.ctx, tt.user, tt.kind, tt.id)
			if tt.status == 0 {
				assert.NoError(t, err)
				return
			}
			assertAppError(t, err, tt.status, "")
		})
	}
}

func TestGroupChatCacheKeepsMessageSentDuringWarm(t *testing.T) {
	cache := newFakeRecentCache()
	f := newFixture(t, func(o *Options) { o.RecentCache = cache })
	g := f.createGroup(t, "alice", models.GroupPublic)
	f.join(t, g, "bob")

	_, err := f.svc.Messaging.SendGroupMessage(f.ctx, "alice", g.ID.Hex(), SendMessageInput{Text: "meet at the lot"})
	require.NoError(t, err)

	cache.beforeWarm = func() {
		cache.beforeWarm = nil
		_, err := f.svc.Messaging.SendGroupMessage(f.ctx, "bob", g.ID.Hex(), SendMessageInput{Text: "running late"})
		require.NoError(t, err)
	}
	h, err := f.svc.Messaging.ListGroupMessages(f.ctx, "alice", g.ID.Hex(), utils.CursorParams{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, h.Messages.([]models.GroupMessage), 1)
	assert.False(t, cache.warm(g.ID.Hex()), "a stale snapshot must not be cached")

	h, err = f.svc.Messaging.ListGroupMessages(f.ctx, "alice", g.ID.Hex(), utils.CursorParams{Limit: 20})
	require.NoError(t, err)
	msgs := h.Messages.([]models.GroupMessage)
	require.Len(t, msgs, 2)
	assert.Equal(t, "running late", msgs[1].Text)
	assert.True(t, cache.warm(g.ID.Hex()))

	h, err = f.svc.Messaging.ListGroupMessages(f.ctx, "alice", g.ID.Hex(), utils.CursorParams{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, h.Messages.([]models.GroupMessage), 2)
}
