package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipPending MembershipStatus = "pending"
	MembershipBanned  MembershipStatus = "banned"
)

// Membership is the (group, user) relationship. There is at most one per
// pair, enforced by a unique index; a pending record doubles as a join request.
type Membership struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"groupId"`
	UserID    string             `bson:"user_id" json:"userId"`
	Role      MemberRole         `bson:"role" json:"role"`
	Status    MembershipStatus   `bson:"status" json:"status"`
	Message   string             `bson:"message,omitempty" json:"message,omitempty"`
	JoinedAt  *time.Time         `bson:"joined_at,omitempty" json:"joinedAt,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

func (m *Membership) IsActive() bool {
	return m != nil && m.Status == MembershipActive
}
