// Package repository defines the persistence boundary. The mongo package is
// the production driver; the memory package backs local runs and tests.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate key")
)

// Store groups every repository behind one handle. WithTransaction runs fn
// so that all writes issued with the ctx it receives commit or fail together.
type Store interface {
	Groups() GroupRepository
	Memberships() MembershipRepository
	Events() EventRepository
	Attendance() AttendanceRepository
	Posts() PostRepository
	Likes() LikeRepository
	Comments() CommentRepository
	Conversations() ConversationRepository
	Messages() MessageRepository
	GroupMessages() GroupMessageRepository
	Notifications() NotificationRepository
	Users() UserRepository

	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	EnsureIndexes(ctx context.Context) error
	Close(ctx context.Context) error
}

type GroupFilter struct {
	Status  models.GroupStatus
	Privacy models.GroupPrivacy
	Query   string
	Skip    int64
	Limit   int64
}

// GroupUpdate carries the optional fields of a group edit.
type GroupUpdate struct {
	Name        *string
	Description *string
	Privacy     *models.GroupPrivacy
	Status      *models.GroupStatus
}

// GroupCounters are absolute counter values written by reconciliation.
type GroupCounters struct {
	MemberCount        int64
	PostCount          int64
	UpcomingEventCount int64
}

type GroupRepository interface {
	Create(ctx context.Context, g *models.Group) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error)
	List(ctx context.Context, f GroupFilter) ([]models.Group, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, u GroupUpdate) (*models.Group, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// IncrementCounter adds delta to field. Negative deltas never take the
	// counter below zero.
	IncrementCounter(ctx context.Context, id primitive.ObjectID, field string, delta int64) error
	SetCounters(ctx context.Context, id primitive.ObjectID, c GroupCounters) error
	AddAdmin(ctx context.Context, id primitive.ObjectID, userID string) error
	RemoveAdmin(ctx context.Context, id primitive.ObjectID, userID string) error
}

type MembershipRepository interface {
	// Create returns ErrDuplicate when the (group, user) pair already exists.
	Create(ctx context.Context, m *models.Membership) error
	Find(ctx context.Context, groupID primitive.ObjectID, userID string) (*models.Membership, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Membership, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.MembershipStatus, joinedAt *time.Time) error
	UpdateRole(ctx context.Context, id primitive.ObjectID, role models.MemberRole) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, groupID primitive.ObjectID, status models.MembershipStatus, skip, limit int64) ([]models.Membership, int64, error)
	Count(ctx context.Context, groupID primitive.ObjectID, status models.MembershipStatus) (int64, error)
	DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error
}

type EventUpdate struct {
	Title         *string
	Description   *string
	Location      *string
	Difficulty    *models.Difficulty
	StartDateTime *time.Time
	Status        *models.EventStatus
}

type EventRepository interface {
	Create(ctx context.Context, e *models.Event) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error)
	ListByGroup(ctx context.Context, groupID primitive.ObjectID, status models.EventStatus, skip, limit int64) ([]models.Event, int64, error)
	ListIDsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]primitive.ObjectID, error)
	Count(ctx context.Context, groupID primitive.ObjectID, status models.EventStatus) (int64, error)
	Update(ctx context.Context, id primitive.ObjectID, u EventUpdate) (*models.Event, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error
	IncrementCounter(ctx context.Context, id primitive.ObjectID, field string, delta int64) error
	SetCounter(ctx context.Context, id primitive.ObjectID, field string, value int64) error
}

type AttendanceRepository interface {
	// Create returns ErrDuplicate when the (event, user) pair already exists.
	Create(ctx context.Context, a *models.EventAttendance) error
	Find(ctx context.Context, eventID primitive.ObjectID, userID string) (*models.EventAttendance, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByEvent(ctx context.Context, eventID primitive.ObjectID, skip, limit int64) ([]models.EventAttendance, int64, error)
	CountActive(ctx context.Context, eventID primitive.ObjectID) (int64, error)
	DeleteByEvents(ctx context.Context, eventIDs []primitive.ObjectID) error
}

type PostRepository interface {
	Create(ctx context.Context, p *models.Post) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	ListByGroup(ctx context.Context, groupID primitive.ObjectID, skip, limit int64) ([]models.Post, int64, error)
	ListIDsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]primitive.ObjectID, error)
	Count(ctx context.Context, groupID primitive.ObjectID) (int64, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Post, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error
	IncrementCounter(ctx context.Context, id primitive.ObjectID, field string, delta int64) error
	SetCounter(ctx context.Context, id primitive.ObjectID, field string, value int64) error
}

type LikeRepository interface {
	// Create returns ErrDuplicate when the (post, user) pair already exists.
	Create(ctx context.Context, l *models.PostLike) error
	// Delete returns ErrNotFound when the user has not liked the post.
	Delete(ctx context.Context, postID primitive.ObjectID, userID string) error
	Count(ctx context.Context, postID primitive.ObjectID) (int64, error)
	DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) error
}

type CommentRepository interface {
	Create(ctx context.Context, c *models.Comment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	ListByPost(ctx context.Context, postID primitive.ObjectID, skip, limit int64) ([]models.Comment, int64, error)
	Count(ctx context.Context, postID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) error
}

type ConversationRepository interface {
	// Create returns ErrDuplicate when a conversation with the same
	// participant set already exists.
	Create(ctx context.Context, c *models.Conversation) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	FindByParticipants(ctx context.Context, key string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string, skip, limit int64) ([]models.Conversation, int64, error)
	// SetLastMessage records the latest message and replaces unreadBy.
	SetLastMessage(ctx context.Context, id primitive.ObjectID, text string, at time.Time, unreadBy []string) error
	RemoveUnread(ctx context.Context, id primitive.ObjectID, userID string) error
}

// MessageQuery pages backwards through history: newest first up to Limit,
// strictly older than Before when set.
type MessageQuery struct {
	Before *time.Time
	Limit  int64
}

type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	// List returns messages oldest-first plus whether older ones remain.
	List(ctx context.Context, conversationID primitive.ObjectID, q MessageQuery) ([]models.Message, bool, error)
}

type GroupMessageRepository interface {
	Create(ctx context.Context, m *models.GroupMessage) error
	List(ctx context.Context, groupID primitive.ObjectID, q MessageQuery) ([]models.GroupMessage, bool, error)
	DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool, skip, limit int64) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	// MarkRead returns ErrNotFound unless the notification belongs to userID.
	MarkRead(ctx context.Context, id primitive.ObjectID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.UserProfile, error)
}
