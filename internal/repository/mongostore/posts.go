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

type postRepo struct {
	col *mongo.Collection
}

func (r *postRepo) Create(ctx context.Context, p *models.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, p)
	return mapErr(err)
}

func (r *postRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var p models.Post
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *postRepo) ListByGroup(ctx context.Context, groupID primitive.ObjectID, skip, limit int64) ([]models.Post, int64, error) {
	return findPage[models.Post](ctx, r.col, bson.M{"group_id": groupID}, bson.D{{Key: "created_at", Value: -1}}, skip, limit)
}

func (r *postRepo) ListIDsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, r.col, bson.M{"group_id": groupID})
}

func (r *postRepo) Count(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"group_id": groupID})
}

func (r *postRepo) UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Post, error) {
	var p models.Post
	update := bson.M{"$set": bson.M{"content": content, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *postRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func (r *postRepo) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"group_id": groupID})
	return err
}

func (r *postRepo) IncrementCounter(ctx context.Context, id primitive.ObjectID, field string, delta int64) error {
	return incrementFloored(ctx, r.col, id, field, delta)
}

func (r *postRepo) SetCounter(ctx context.Context, id primitive.ObjectID, field string, value int64) error {
	return setField(ctx, r.col, id, bson.M{field: value})
}

type likeRepo struct {
	col *mongo.Collection
}

func (r *likeRepo) Create(ctx context.Context, l *models.PostLike) error {
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, l)
	return mapErr(err)
}

func (r *likeRepo) Delete(ctx context.Context, postID primitive.ObjectID, userID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"post_id": postID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *likeRepo) Count(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"post_id": postID})
}

func (r *likeRepo) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"post_id": bson.M{"$in": postIDs}})
	return err
}

type commentRepo struct {
	col *mongo.Collection
}

func (r *commentRepo) Create(ctx context.Context, c *models.Comment) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, c)
	return mapErr(err)
}

func (r *commentRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var c models.Comment
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *commentRepo) ListByPost(ctx context.Context, postID primitive.ObjectID, skip, limit int64) ([]models.Comment, int64, error) {
	return findPage[models.Comment](ctx, r.col, bson.M{"post_id": postID}, bson.D{{Key: "created_at", Value: 1}}, skip, limit)
}

func (r *commentRepo) Count(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"post_id": postID})
}

func (r *commentRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func (r *commentRepo) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"post_id": bson.M{"$in": postIDs}})
	return err
}
