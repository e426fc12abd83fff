package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
)

const backgroundTimeout = 5 * time.Second

// Broadcaster delivers a realtime event to everyone subscribed to room.
// Evict revokes userID's live subscription to room; an empty userID
// revokes everyone's.
type Broadcaster interface {
	Publish(ctx context.Context, room, eventType string, data interface{}) error
	Evict(ctx context.Context, room, userID string) error
}

// ParseID turns a path parameter into an ObjectID. what names the resource
// in the error message.
func ParseID(raw, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid " + what + " id")
	}
	return id, nil
}

// notFound maps repository.ErrNotFound to a 404 with msg and passes other
// errors through.
func notFound(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}

func loadGroup(ctx context.Context, store repository.Store, id primitive.ObjectID) (*models.Group, error) {
	g, err := store.Groups().FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "group not found")
	}
	return g, nil
}

// membershipOf returns the caller's membership or nil when there is none.
func membershipOf(ctx context.Context, store repository.Store, groupID primitive.ObjectID, userID string) (*models.Membership, error) {
	if userID == "" {
		return nil, nil
	}
	m, err := store.Memberships().Find(ctx, groupID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// subjectFor loads the caller's membership and packages it for the policy.
func subjectFor(ctx context.Context, store repository.Store, userID string, g *models.Group) (Subject, error) {
	m, err := membershipOf(ctx, store, g.ID, userID)
	if err != nil {
		return Subject{}, err
	}
	return Subject{UserID: userID, Group: g, Membership: m}, nil
}

// detached runs fn on its own goroutine with a bounded context that
// survives the request. Failures are logged and never surface to the caller.
func detached(ctx context.Context, what string, fn func(ctx context.Context) error) {
	base := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(base, backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Warn("background task failed", "task", what, "error", err)
		}
	}()
}

// revokeRoom drops live subscriptions once access has been taken away.
// It runs inline so a message sent right after cannot reach the user;
// failures are logged because the stored change already stands.
func revokeRoom(ctx context.Context, b Broadcaster, room, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
	defer cancel()
	if err := b.Evict(ctx, room, userID); err != nil {
		slog.Warn("revoke realtime room failed", "room", room, "user_id", userID, "error", err)
	}
}

// forEachPage calls fetch with growing offsets until it returns a short page.
func forEachPage(fetch func(skip, limit int64) (int, error)) error {
	const batch = 200
	for skip := int64(0); ; skip += batch {
		n, err := fetch(skip, batch)
		if err != nil {
			return err
		}
		if n < batch {
			return nil
		}
	}
}

// notifyMembers sends a copy of n to every active member of the group
// except the actor.
func notifyMembers(ctx context.Context, store repository.Store, notifier Notifier, groupID primitive.ObjectID, n models.Notification) {
	detached(ctx, "notify:"+string(n.Type), func(ctx context.Context) error {
		return forEachPage(func(skip, limit int64) (int, error) {
			members, _, err := store.Memberships().List(ctx, groupID, models.MembershipActive, skip, limit)
			for _, m := range members {
				n.UserID = m.UserID
				notifier.Notify(ctx, n)
			}
			return len(members), err
		})
	})
}

func now() time.Time {
	return time.Now().UTC()
}
