package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/queue"
	"github.com/AnshRaj112/trailhub-backend/internal/realtime"
	"github.com/AnshRaj112/trailhub-backend/internal/repository/memory"
)

func TestStoreNotifierDeliver(t *testing.T) {
	store := memory.New()
	bus := &recordingBroadcaster{}
	notifier := NewStoreNotifier(store, bus)
	ctx := context.Background()

	err := notifier.Deliver(ctx, models.Notification{UserID: "bob", Actor: "alice", Type: models.NotifyPostLiked, Message: "liked", IsRead: true})
	require.NoError(t, err)

	items, total, err := store.Notifications().ListForUser(ctx, "bob", false, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.False(t, items[0].IsRead, "new notifications start unread")
	assert.False(t, items[0].CreatedAt.IsZero())

	events := bus.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.UserRoom("bob"), events[0].Room)
	assert.Equal(t, realtime.EventNotificationNew, events[0].Event)

	err = notifier.Deliver(ctx, models.Notification{Type: models.NotifyPostLiked})
	assertAppError(t, err, http.StatusBadRequest, "")
}

func TestStoreNotifierPushFailureStillPersists(t *testing.T) {
	store := memory.New()
	notifier := NewStoreNotifier(store, &recordingBroadcaster{err: errors.New("offline")})

	require.NoError(t, notifier.Deliver(context.Background(), models.Notification{UserID: "bob", Type: models.NotifyJoinApproved}))
	n, err := store.Notifications().CountUnread(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStoreNotifierNotifyIsAsyncAndSkipsSelf(t *testing.T) {
	store := memory.New()
	notifier := NewStoreNotifier(store, nil)
	ctx := context.Background()

	notifier.Notify(ctx, models.Notification{UserID: "alice", Actor: "alice", Type: models.NotifyPostLiked})
	notifier.Notify(ctx, models.Notification{UserID: "bob", Actor: "alice", Type: models.NotifyPostLiked})

	assert.Eventually(t, func() bool {
		n, err := store.Notifications().CountUnread(ctx, "bob")
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
	n, err := store.Notifications().CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotificationInbox(t *testing.T) {
	store := memory.New()
	notifier := NewStoreNotifier(store, nil)
	svc := NewNotificationService(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, notifier.Deliver(ctx, models.Notification{UserID: "bob", Type: models.NotifyEventCreated}))
	}
	require.NoError(t, notifier.Deliver(ctx, models.Notification{UserID: "carol", Type: models.NotifyEventCreated}))

	count, err := svc.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	page, err := svc.List(ctx, "bob", false, firstPage())
	require.NoError(t, err)
	items := page.Items.([]models.Notification)
	require.Len(t, items, 3)

	require.NoError(t, svc.MarkRead(ctx, "bob", items[0].ID.Hex()))
	err = svc.MarkRead(ctx, "carol", items[1].ID.Hex())
	assertAppError(t, err, http.StatusNotFound, "notification not found")
	err = svc.MarkRead(ctx, "bob", primitive.NewObjectID().Hex())
	assertAppError(t, err, http.StatusNotFound, "notification not found")

	unread, err := svc.List(ctx, "bob", true, firstPage())
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread.Total)

	updated, err := svc.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)
	count, err = svc.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = svc.UnreadCount(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
}

func (q *fakeQueue) Enqueue(_ context.Context, t queue.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return "task-id", nil
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) snapshot() []queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Task(nil), q.tasks...)
}

func TestQueueNotifierRoundTrip(t *testing.T) {
	q := &fakeQueue{}
	notifier := NewQueueNotifier(q)
	ctx := context.Background()

	notifier.Notify(ctx, models.Notification{UserID: "bob", Actor: "bob", Type: models.NotifyPostLiked})
	notifier.Notify(ctx, models.Notification{UserID: "bob", Actor: "alice", Type: models.NotifyPostLiked, Message: "liked"})

	require.Eventually(t, func() bool { return len(q.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	task := q.snapshot()[0]
	assert.Equal(t, TaskDeliverNotification, task.Type)

	var queued models.Notification
	require.NoError(t, json.Unmarshal(task.Payload, &queued))
	assert.Equal(t, "bob", queued.UserID)
	assert.False(t, queued.CreatedAt.IsZero(), "creation time is fixed when enqueued")

	store := memory.New()
	handler := NotificationTaskHandler(NewStoreNotifier(store, nil))
	require.NoError(t, handler(ctx, task))

	items, _, err := store.Notifications().ListForUser(ctx, "bob", false, 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "liked", items[0].Message)
	assert.True(t, items[0].CreatedAt.Equal(queued.CreatedAt))
}

func TestNotificationTaskDropsMalformedPayload(t *testing.T) {
	store := memory.New()
	handler := NotificationTaskHandler(NewStoreNotifier(store, nil))

	err := handler(context.Background(), queue.Task{Type: TaskDeliverNotification, Payload: []byte("{not json")})
	assert.NoError(t, err)
}
