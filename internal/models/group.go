package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GroupPrivacy string

const (
	GroupPublic  GroupPrivacy = "public"
	GroupPrivate GroupPrivacy = "private"
)

func (p GroupPrivacy) Valid() bool {
	return p == GroupPublic || p == GroupPrivate
}

// GroupStatus is the platform review state of a group.
type GroupStatus string

const (
	GroupPending  GroupStatus = "pending"
	GroupApproved GroupStatus = "approved"
	GroupRejected GroupStatus = "rejected"
)

func (s GroupStatus) Valid() bool {
	return s == GroupPending || s == GroupApproved || s == GroupRejected
}

// Group is a hiking community. The three counters are denormalized from the
// memberships, posts and events collections and are kept in step inside the
// same transaction as the source write.
type Group struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	Description        string             `bson:"description" json:"description"`
	Privacy            GroupPrivacy       `bson:"privacy" json:"privacy"`
	Owner              string             `bson:"owner" json:"owner"`
	Admins             []string           `bson:"admins" json:"admins"`
	MemberCount        int64              `bson:"member_count" json:"memberCount"`
	PostCount          int64              `bson:"post_count" json:"postCount"`
	UpcomingEventCount int64              `bson:"upcoming_event_count" json:"upcomingEventCount"`
	Status             GroupStatus        `bson:"status" json:"status"`
	CreatedAt          time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updatedAt"`
}

// HasAdmin reports whether userID may administer the group.
func (g *Group) HasAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	if g.Owner == userID {
		return true
	}
	for _, a := range g.Admins {
		if a == userID {
			return true
		}
	}
	return false
}

// Counter fields shared by the group repositories.
const (
	GroupMemberCount        = "member_count"
	GroupPostCount          = "post_count"
	GroupUpcomingEventCount = "upcoming_event_count"
)
