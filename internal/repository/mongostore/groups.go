package mongostore

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

type groupRepo struct {
	col *mongo.Collection
}

func (r *groupRepo) Create(ctx context.Context, g *models.Group) error {
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, g)
	return mapErr(err)
}

func (r *groupRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	var g models.Group
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (r *groupRepo) List(ctx context.Context, f repository.GroupFilter) ([]models.Group, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Privacy != "" {
		filter["privacy"] = f.Privacy
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	}
	return findPage[models.Group](ctx, r.col, filter, bson.D{{Key: "created_at", Value: -1}}, f.Skip, f.Limit)
}

func (r *groupRepo) Update(ctx context.Context, id primitive.ObjectID, u repository.GroupUpdate) (*models.Group, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Privacy != nil {
		set["privacy"] = *u.Privacy
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}

	var g models.Group
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&g); err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (r *groupRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func (r *groupRepo) IncrementCounter(ctx context.Context, id primitive.ObjectID, field string, delta int64) error {
	return incrementFloored(ctx, r.col, id, field, delta)
}

func (r *groupRepo) SetCounters(ctx context.Context, id primitive.ObjectID, c repository.GroupCounters) error {
	return setField(ctx, r.col, id, bson.M{
		models.GroupMemberCount:        c.MemberCount,
		models.GroupPostCount:          c.PostCount,
		models.GroupUpcomingEventCount: c.UpcomingEventCount,
	})
}

func (r *groupRepo) AddAdmin(ctx context.Context, id primitive.ObjectID, userID string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"admins": userID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *groupRepo) RemoveAdmin(ctx context.Context, id primitive.ObjectID, userID string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"admins": userID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type membershipRepo struct {
	col *mongo.Collection
}

func (r *membershipRepo) Create(ctx context.Context, m *models.Membership) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, m)
	return mapErr(err)
}

func (r *membershipRepo) Find(ctx context.Context, groupID primitive.ObjectID, userID string) (*models.Membership, error) {
	var m models.Membership
	if err := r.col.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&m); err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (r *membershipRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Membership, error) {
	var m models.Membership
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (r *membershipRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.MembershipStatus, joinedAt *time.Time) error {
	set := bson.M{"status": status}
	if joinedAt != nil {
		set["joined_at"] = *joinedAt
	}
	return setField(ctx, r.col, id, set)
}

func (r *membershipRepo) UpdateRole(ctx context.Context, id primitive.ObjectID, role models.MemberRole) error {
	return setField(ctx, r.col, id, bson.M{"role": role})
}

func (r *membershipRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func (r *membershipRepo) List(ctx context.Context, groupID primitive.ObjectID, status models.MembershipStatus, skip, limit int64) ([]models.Membership, int64, error) {
	filter := bson.M{"group_id": groupID}
	if status != "" {
		filter["status"] = status
	}
	return findPage[models.Membership](ctx, r.col, filter, bson.D{{Key: "created_at", Value: 1}}, skip, limit)
}

func (r *membershipRepo) Count(ctx context.Context, groupID primitive.ObjectID, status models.MembershipStatus) (int64, error) {
	filter := bson.M{"group_id": groupID}
	if status != "" {
		filter["status"] = status
	}
	return r.col.CountDocuments(ctx, filter)
}

func (r *membershipRepo) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"group_id": groupID})
	return err
}
