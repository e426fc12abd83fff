package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID       primitive.ObjectID `bson:"group_id" json:"groupId"`
	Author        string             `bson:"author" json:"author"`
	Content       string             `bson:"content" json:"content"`
	ImageURLs     []string           `bson:"image_urls,omitempty" json:"imageUrls,omitempty"`
	LikesCount    int64              `bson:"likes_count" json:"likesCount"`
	CommentsCount int64              `bson:"comments_count" json:"commentsCount"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

const (
	PostLikesCount    = "likes_count"
	PostCommentsCount = "comments_count"
)

// PostLike is unique per (post, user).
type PostLike struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID `bson:"post_id" json:"postId"`
	UserID    string             `bson:"user_id" json:"userId"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID `bson:"post_id" json:"postId"`
	Author    string             `bson:"author" json:"author"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}
