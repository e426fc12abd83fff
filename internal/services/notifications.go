package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/queue"
	"github.com/AnshRaj112/trailhub-backend/internal/realtime"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

// TaskDeliverNotification is the asynq task type handled by the worker.
const TaskDeliverNotification = "notification:deliver"

// Notifier records a notification for a user. It never fails the caller:
// delivery happens in the background and errors are only logged.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// skipNotification drops notifications a user would send to themselves.
func skipNotification(n models.Notification) bool {
	return n.UserID == "" || n.UserID == n.Actor
}

// StoreNotifier writes the notification and pushes it to the user's room.
type StoreNotifier struct {
	store       repository.Store
	broadcaster Broadcaster
}

func NewStoreNotifier(store repository.Store, broadcaster Broadcaster) *StoreNotifier {
	return &StoreNotifier{store: store, broadcaster: broadcaster}
}

func (s *StoreNotifier) Notify(ctx context.Context, n models.Notification) {
	if skipNotification(n) {
		return
	}
	detached(ctx, "notify:"+string(n.Type), func(ctx context.Context) error {
		return s.Deliver(ctx, n)
	})
}

// Deliver persists n synchronously. The realtime push is best-effort.
func (s *StoreNotifier) Deliver(ctx context.Context, n models.Notification) error {
	if n.UserID == "" {
		return apperr.Validation("notification recipient is required")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	n.IsRead = false
	if err := s.store.Notifications().Create(ctx, &n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(ctx, realtime.UserRoom(n.UserID), realtime.EventNotificationNew, n); err != nil {
			slog.Warn("notification push failed", "user_id", n.UserID, "type", n.Type, "error", err)
		}
	}
	return nil
}

// QueueNotifier hands notifications to the worker through asynq.
type QueueNotifier struct {
	client queue.Client
}

func NewQueueNotifier(client queue.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func (q *QueueNotifier) Notify(ctx context.Context, n models.Notification) {
	if skipNotification(n) {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	detached(ctx, "enqueue:"+string(n.Type), func(ctx context.Context) error {
		payload, err := json.Marshal(n)
		if err != nil {
			return err
		}
		_, err = q.client.Enqueue(ctx, queue.Task{Type: TaskDeliverNotification, Payload: payload})
		return err
	})
}

// NotificationTaskHandler delivers queued notifications. Malformed payloads
// are dropped rather than retried.
func NotificationTaskHandler(deliverer *StoreNotifier) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		var n models.Notification
		if err := json.Unmarshal(task.Payload, &n); err != nil {
			slog.Error("dropping malformed notification task", "error", err)
			return nil
		}
		return deliverer.Deliver(ctx, n)
	}
}

// NotificationService is the caller-facing inbox.
type NotificationService struct {
	store repository.Store
}

func NewNotificationService(store repository.Store) *NotificationService {
	return &NotificationService{store: store}
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, p utils.PageParams) (utils.Page, error) {
	items, total, err := s.store.Notifications().ListForUser(ctx, userID, unreadOnly, p.Skip(), int64(p.Limit))
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(items, total, p), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.Notifications().CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, rawID string) error {
	id, err := ParseID(rawID, "notification")
	if err != nil {
		return err
	}
	return notFound(s.store.Notifications().MarkRead(ctx, id, userID), "notification not found")
}

// MarkAllRead returns how many notifications changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.Notifications().MarkAllRead(ctx, userID)
}
