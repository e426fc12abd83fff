package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotifyJoinRequest   NotificationType = "join_request"
	NotifyJoinApproved  NotificationType = "join_approved"
	NotifyJoinDenied    NotificationType = "join_denied"
	NotifyMemberRemoved NotificationType = "member_removed"
	NotifyMemberBanned  NotificationType = "member_banned"
	NotifyRoleChanged   NotificationType = "role_changed"
	NotifyGroupReviewed NotificationType = "group_reviewed"
	NotifyEventCreated  NotificationType = "event_created"
	NotifyEventUpdated  NotificationType = "event_updated"
	NotifyPostLiked     NotificationType = "post_liked"
	NotifyPostComment   NotificationType = "post_commented"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"userId"`
	Actor     string             `bson:"actor,omitempty" json:"actor,omitempty"`
	Type      NotificationType   `bson:"type" json:"type"`
	Message   string             `bson:"message" json:"message"`
	RefType   string             `bson:"ref_type,omitempty" json:"refType,omitempty"`
	RefID     string             `bson:"ref_id,omitempty" json:"refId,omitempty"`
	IsRead    bool               `bson:"is_read" json:"isRead"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}
