package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the unique relationship indexes and the history
// indexes. Called on startup after Mongo has connected.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colMemberships: {
			{
				Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetName("uniq_group_user").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("idx_group_status"),
			},
		},
		colAttendance: {
			{
				Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetName("uniq_event_user").SetUnique(true),
			},
		},
		colLikes: {
			{
				Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetName("uniq_post_user").SetUnique(true),
			},
		},
		colConversations: {
			{
				Keys:    bson.D{{Key: "participant_key", Value: 1}},
				Options: options.Index().SetName("uniq_participant_key").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}},
				Options: options.Index().SetName("idx_participants_last"),
			},
		},
		colMessages: {
			{
				Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: -1}},
				Options: options.Index().SetName("idx_conversation_sent"),
			},
		},
		colGroupMessages: {
			{
				Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "sent_at", Value: -1}},
				Options: options.Index().SetName("idx_group_sent"),
			},
		},
		colEvents: {
			{
				Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "start_date_time", Value: 1}},
				Options: options.Index().SetName("idx_group_start"),
			},
		},
		colPosts: {
			{
				Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("idx_group_created"),
			},
		},
		colComments: {
			{
				Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("idx_post_created"),
			},
		},
		colNotifications: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("idx_user_read_created"),
			},
		},
		colGroups: {
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("idx_status_created"),
			},
		},
	}

	for name, models := range specs {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", name, err)
		}
	}
	return nil
}
