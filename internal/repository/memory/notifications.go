package memory

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	defer r.s.lock(ctx)()
	ensureID(&n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.s.data.notifications[n.ID] = *n
	return nil
}

func (r notificationRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool, skip, limit int64) ([]models.Notification, int64, error) {
	defer r.s.lock(ctx)()
	var items []models.Notification
	for _, n := range r.s.data.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			items = append(items, n)
		}
	}
	out, total := page(items, func(a, b models.Notification) bool { return a.CreatedAt.After(b.CreatedAt) }, skip, limit)
	return out, total, nil
}

func (r notificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, item := range r.s.data.notifications {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id primitive.ObjectID, userID string) error {
	defer r.s.lock(ctx)()
	n, ok := r.s.data.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	n.IsRead = true
	r.s.data.notifications[id] = n
	return nil
}

func (r notificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	defer r.s.lock(ctx)()
	var changed int64
	for id, n := range r.s.data.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			r.s.data.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

type userRepo struct{ s *Store }

func (r userRepo) FindByID(ctx context.Context, id string) (*models.UserProfile, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}
