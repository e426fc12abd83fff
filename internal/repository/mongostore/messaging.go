package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type conversationRepo struct {
	col *mongo.Collection
}

func (r *conversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.ParticipantKey == "" {
		c.ParticipantKey = models.ParticipantKey(c.Participants...)
	}
	if c.UnreadBy == nil {
		c.UnreadBy = []string{}
	}
	_, err := r.col.InsertOne(ctx, c)
	return mapErr(err)
}

func (r *conversationRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *conversationRepo) FindByParticipants(ctx context.Context, key string) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.col.FindOne(ctx, bson.M{"participant_key": key}).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *conversationRepo) ListForUser(ctx context.Context, userID string, skip, limit int64) ([]models.Conversation, int64, error) {
	sort := bson.D{{Key: "last_message_at", Value: -1}, {Key: "created_at", Value: -1}}
	return findPage[models.Conversation](ctx, r.col, bson.M{"participants": userID}, sort, skip, limit)
}

func (r *conversationRepo) SetLastMessage(ctx context.Context, id primitive.ObjectID, text string, at time.Time, unreadBy []string) error {
	if unreadBy == nil {
		unreadBy = []string{}
	}
	return setField(ctx, r.col, id, bson.M{
		"last_message":    text,
		"last_message_at": at,
		"unread_by":       unreadBy,
	})
}

func (r *conversationRepo) RemoveUnread(ctx context.Context, id primitive.ObjectID, userID string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"unread_by": userID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type messageRepo struct {
	col *mongo.Collection
}

func (r *messageRepo) Create(ctx context.Context, m *models.Message) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, m)
	return mapErr(err)
}

func (r *messageRepo) List(ctx context.Context, conversationID primitive.ObjectID, q repository.MessageQuery) ([]models.Message, bool, error) {
	return loadHistory[models.Message](ctx, r.col, bson.M{"conversation_id": conversationID}, q)
}

type groupMessageRepo struct {
	col *mongo.Collection
}

func (r *groupMessageRepo) Create(ctx context.Context, m *models.GroupMessage) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, m)
	return mapErr(err)
}

func (r *groupMessageRepo) List(ctx context.Context, groupID primitive.ObjectID, q repository.MessageQuery) ([]models.GroupMessage, bool, error) {
	return loadHistory[models.GroupMessage](ctx, r.col, bson.M{"group_id": groupID}, q)
}

func (r *groupMessageRepo) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"group_id": groupID})
	return err
}

// loadHistory reads newest-first with one extra row to learn whether older
// messages remain, then flips the page to oldest-first for display.
func loadHistory[T any](ctx context.Context, col *mongo.Collection, filter bson.M, q repository.MessageQuery) ([]T, bool, error) {
	limit := q.Limit
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	if q.Before != nil {
		filter["sent_at"] = bson.M{"$lt": q.Before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit + 1)

	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	msgs := make([]T, 0, limit+1)
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(msgs)) > limit
	if hasMore {
		msgs = msgs[:limit]
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, hasMore, nil
}
