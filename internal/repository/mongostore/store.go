// Package mongostore implements repository.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

const (
	colGroups        = "groups"
	colMemberships   = "memberships"
	colEvents        = "events"
	colAttendance    = "event_attendance"
	colPosts         = "posts"
	colLikes         = "post_likes"
	colComments      = "comments"
	colConversations = "conversations"
	colMessages      = "messages"
	colGroupMessages = "group_messages"
	colNotifications = "notifications"
	colUsers         = "users"
)

// Store is the MongoDB repository.Store. Multi-document transactions need a
// replica set; when they are disabled WithTransaction runs fn directly and the
// recount command repairs any counter drift left by a partial failure.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool

	groups        *groupRepo
	memberships   *membershipRepo
	events        *eventRepo
	attendance    *attendanceRepo
	posts         *postRepo
	likes         *likeRepo
	comments      *commentRepo
	conversations *conversationRepo
	messages      *messageRepo
	groupMessages *groupMessageRepo
	notifications *notificationRepo
	users         *userRepo
}

var _ repository.Store = (*Store)(nil)

func New(client *mongo.Client, db *mongo.Database, transactions bool) *Store {
	return &Store{
		client:        client,
		db:            db,
		transactions:  transactions,
		groups:        &groupRepo{col: db.Collection(colGroups)},
		memberships:   &membershipRepo{col: db.Collection(colMemberships)},
		events:        &eventRepo{col: db.Collection(colEvents)},
		attendance:    &attendanceRepo{col: db.Collection(colAttendance)},
		posts:         &postRepo{col: db.Collection(colPosts)},
		likes:         &likeRepo{col: db.Collection(colLikes)},
		comments:      &commentRepo{col: db.Collection(colComments)},
		conversations: &conversationRepo{col: db.Collection(colConversations)},
		messages:      &messageRepo{col: db.Collection(colMessages)},
		groupMessages: &groupMessageRepo{col: db.Collection(colGroupMessages)},
		notifications: &notificationRepo{col: db.Collection(colNotifications)},
		users:         &userRepo{col: db.Collection(colUsers)},
	}
}

func (s *Store) Groups() repository.GroupRepository                 { return s.groups }
func (s *Store) Memberships() repository.MembershipRepository       { return s.memberships }
func (s *Store) Events() repository.EventRepository                 { return s.events }
func (s *Store) Attendance() repository.AttendanceRepository        { return s.attendance }
func (s *Store) Posts() repository.PostRepository                   { return s.posts }
func (s *Store) Likes() repository.LikeRepository                   { return s.likes }
func (s *Store) Comments() repository.CommentRepository             { return s.comments }
func (s *Store) Conversations() repository.ConversationRepository   { return s.conversations }
func (s *Store) Messages() repository.MessageRepository             { return s.messages }
func (s *Store) GroupMessages() repository.GroupMessageRepository   { return s.groupMessages }
func (s *Store) Notifications() repository.NotificationRepository   { return s.notifications }
func (s *Store) Users() repository.UserRepository                   { return s.users }

// WithTransaction runs fn inside a session transaction. Calls nested inside an
// existing session reuse it.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}

// incrementFloored adds delta to field with an update pipeline so the stored
// value never drops below zero.
func incrementFloored(ctx context.Context, col *mongo.Collection, id primitive.ObjectID, field string, delta int64) error {
	var update interface{}
	if delta >= 0 {
		update = bson.M{"$inc": bson.M{field: delta}}
	} else {
		update = mongo.Pipeline{
			{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}}, delta}}},
			}}}}}}},
		}
	}

	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func setField(ctx context.Context, col *mongo.Collection, id primitive.ObjectID, set bson.M) error {
	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id primitive.ObjectID) error {
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// findPage counts the filter and returns one page sorted by sort.
func findPage[T any](ctx context.Context, col *mongo.Collection, filter interface{}, sort bson.D, skip, limit int64) ([]T, int64, error) {
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(sort).SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	items := make([]T, 0)
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func distinctIDs(ctx context.Context, col *mongo.Collection, filter interface{}) ([]primitive.ObjectID, error) {
	cur, err := col.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			slog.Warn("skipping undecodable document id", "collection", col.Name(), "error", err)
			continue
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}
