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

type eventRepo struct {
	col *mongo.Collection
}

func (r *eventRepo) Create(ctx context.Context, e *models.Event) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, e)
	return mapErr(err)
}

func (r *eventRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var e models.Event
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *eventRepo) ListByGroup(ctx context.Context, groupID primitive.ObjectID, status models.EventStatus, skip, limit int64) ([]models.Event, int64, error) {
	filter := bson.M{"group_id": groupID}
	if status != "" {
		filter["status"] = status
	}
	return findPage[models.Event](ctx, r.col, filter, bson.D{{Key: "start_date_time", Value: 1}}, skip, limit)
}

func (r *eventRepo) ListIDsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return distinctIDs(ctx, r.col, bson.M{"group_id": groupID})
}

func (r *eventRepo) Count(ctx context.Context, groupID primitive.ObjectID, status models.EventStatus) (int64, error) {
	filter := bson.M{"group_id": groupID}
	if status != "" {
		filter["status"] = status
	}
	return r.col.CountDocuments(ctx, filter)
}

func (r *eventRepo) Update(ctx context.Context, id primitive.ObjectID, u repository.EventUpdate) (*models.Event, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Location != nil {
		set["location"] = *u.Location
	}
	if u.Difficulty != nil {
		set["difficulty"] = *u.Difficulty
	}
	if u.StartDateTime != nil {
		set["start_date_time"] = u.StartDateTime.UTC()
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}

	var e models.Event
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&e); err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *eventRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func (r *eventRepo) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"group_id": groupID})
	return err
}

func (r *eventRepo) IncrementCounter(ctx context.Context, id primitive.ObjectID, field string, delta int64) error {
	return incrementFloored(ctx, r.col, id, field, delta)
}

func (r *eventRepo) SetCounter(ctx context.Context, id primitive.ObjectID, field string, value int64) error {
	return setField(ctx, r.col, id, bson.M{field: value})
}

type attendanceRepo struct {
	col *mongo.Collection
}

func (r *attendanceRepo) Create(ctx context.Context, a *models.EventAttendance) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, a)
	return mapErr(err)
}

func (r *attendanceRepo) Find(ctx context.Context, eventID primitive.ObjectID, userID string) (*models.EventAttendance, error) {
	var a models.EventAttendance
	if err := r.col.FindOne(ctx, bson.M{"event_id": eventID, "user_id": userID}).Decode(&a); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *attendanceRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, r.col, id)
}

func (r *attendanceRepo) ListByEvent(ctx context.Context, eventID primitive.ObjectID, skip, limit int64) ([]models.EventAttendance, int64, error) {
	return findPage[models.EventAttendance](ctx, r.col, bson.M{"event_id": eventID}, bson.D{{Key: "created_at", Value: 1}}, skip, limit)
}

func (r *attendanceRepo) CountActive(ctx context.Context, eventID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{
		"event_id": eventID,
		"status":   bson.M{"$ne": models.AttendanceCancelled},
	})
}

func (r *attendanceRepo) DeleteByEvents(ctx context.Context, eventIDs []primitive.ObjectID) error {
	if len(eventIDs) == 0 {
		return nil
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"event_id": bson.M{"$in": eventIDs}})
	return err
}
