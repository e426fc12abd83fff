package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

const (
	maxPostLen      = 5000
	maxPostImages   = 10
	maxCommentLen   = 2000
	maxImageURLSize = 2048
)

type CreatePostInput struct {
	Content   string   `json:"content"`
	ImageURLs []string `json:"imageUrls"`
}

type UpdatePostInput struct {
	Content string `json:"content"`
}

type CommentInput struct {
	Text string `json:"text"`
}

// PostService owns group posts plus their likes and comments, and keeps
// postCount, likesCount and commentsCount in step.
type PostService struct {
	store    repository.Store
	policy   *Policy
	notifier Notifier
}

func cleanPostContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Validation("content is required")
	}
	return content, checkLen("content", content, maxPostLen)
}

func (s *PostService) Create(ctx context.Context, userID, rawGroupID string, in CreatePostInput) (*models.Post, error) {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return nil, err
	}
	g, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	subject, err := subjectFor(ctx, s.store, userID, g)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(CapParticipate, subject); err != nil {
		return nil, err
	}
	content, err := cleanPostContent(in.Content)
	if err != nil {
		return nil, err
	}
	if len(in.ImageURLs) > maxPostImages {
		return nil, apperr.Validation(fmt.Sprintf("a post can have at most %d images", maxPostImages))
	}
	images := make([]string, 0, len(in.ImageURLs))
	for _, u := range in.ImageURLs {
		u = strings.TrimSpace(u)
		if u == "" || len(u) > maxImageURLSize {
			return nil, apperr.Validation("invalid image url")
		}
		images = append(images, u)
	}

	ts := now()
	p := &models.Post{
		GroupID:   groupID,
		Author:    userID,
		Content:   content,
		ImageURLs: images,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Posts().Create(ctx, p); err != nil {
			return err
		}
		return s.store.Groups().IncrementCounter(ctx, groupID, models.GroupPostCount, 1)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// loadPost returns the post, its group and the caller's policy subject.
func (s *PostService) loadPost(ctx context.Context, userID string, postID primitive.ObjectID) (*models.Post, Subject, error) {
	p, err := s.store.Posts().FindByID(ctx, postID)
	if err != nil {
		return nil, Subject{}, notFound(err, "post not found")
	}
	g, err := loadGroup(ctx, s.store, p.GroupID)
	if err != nil {
		return nil, Subject{}, err
	}
	subject, err := subjectFor(ctx, s.store, userID, g)
	if err != nil {
		return nil, Subject{}, err
	}
	return p, subject, nil
}

func (s *PostService) ListByGroup(ctx context.Context, userID, rawGroupID string, pp utils.PageParams) (utils.Page, error) {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return utils.Page{}, err
	}
	g, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return utils.Page{}, err
	}
	subject, err := subjectFor(ctx, s.store, userID, g)
	if err != nil {
		return utils.Page{}, err
	}
	if err := s.policy.Require(CapViewGroup, subject); err != nil {
		return utils.Page{}, err
	}
	items, total, err := s.store.Posts().ListByGroup(ctx, groupID, pp.Skip(), int64(pp.Limit))
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(items, total, pp), nil
}

func (s *PostService) Update(ctx context.Context, userID, rawID string, in UpdatePostInput) (*models.Post, error) {
	id, err := ParseID(rawID, "post")
	if err != nil {
		return nil, err
	}
	p, subject, err := s.loadPost(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	subject.ResourceOwner = p.Author
	if err := s.policy.Require(CapEditPost, subject); err != nil {
		return nil, err
	}
	content, err := cleanPostContent(in.Content)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Posts().UpdateContent(ctx, id, content)
	if err != nil {
		return nil, notFound(err, "post not found")
	}
	return updated, nil
}

// Delete removes the post with its likes and comments.
func (s *PostService) Delete(ctx context.Context, userID, rawID string) error {
	id, err := ParseID(rawID, "post")
	if err != nil {
		return err
	}
	p, subject, err := s.loadPost(ctx, userID, id)
	if err != nil {
		return err
	}
	subject.ResourceOwner = p.Author
	if err := s.policy.Require(CapDeleteContent, subject); err != nil {
		return err
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		ids := []primitive.ObjectID{id}
		if err := s.store.Likes().DeleteByPosts(ctx, ids); err != nil {
			return err
		}
		if err := s.store.Comments().DeleteByPosts(ctx, ids); err != nil {
			return err
		}
		if err := s.store.Posts().Delete(ctx, id); err != nil {
			return err
		}
		return s.store.Groups().IncrementCounter(ctx, p.GroupID, models.GroupPostCount, -1)
	})
	return notFound(err, "post not found")
}

func (s *PostService) Like(ctx context.Context, userID, rawID string) error {
	id, err := ParseID(rawID, "post")
	if err != nil {
		return err
	}
	p, subject, err := s.loadPost(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.policy.Require(CapInteract, subject); err != nil {
		return err
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Likes().Create(ctx, &models.PostLike{PostID: id, UserID: userID, CreatedAt: now()}); err != nil {
			return err
		}
		return s.store.Posts().IncrementCounter(ctx, id, models.PostLikesCount, 1)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return apperr.Conflict("already liked")
	}
	if err != nil {
		return notFound(err, "post not found")
	}

	s.notifier.Notify(ctx, models.Notification{
		UserID:  p.Author,
		Actor:   userID,
		Type:    models.NotifyPostLiked,
		Message: "Someone liked your post",
		RefType: "post",
		RefID:   id.Hex(),
	})
	return nil
}

func (s *PostService) Unlike(ctx context.Context, userID, rawID string) error {
	id, err := ParseID(rawID, "post")
	if err != nil {
		return err
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Likes().Delete(ctx, id, userID); err != nil {
			return err
		}
		return s.store.Posts().IncrementCounter(ctx, id, models.PostLikesCount, -1)
	})
	return notFound(err, "not liked")
}

func (s *PostService) AddComment(ctx context.Context, userID, rawPostID string, in CommentInput) (*models.Comment, error) {
	id, err := ParseID(rawPostID, "post")
	if err != nil {
		return nil, err
	}
	p, subject, err := s.loadPost(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(CapInteract, subject); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, apperr.Validation("text is required")
	}
	if err := checkLen("text", text, maxCommentLen); err != nil {
		return nil, err
	}

	c := &models.Comment{PostID: id, Author: userID, Text: text, CreatedAt: now()}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Comments().Create(ctx, c); err != nil {
			return err
		}
		return s.store.Posts().IncrementCounter(ctx, id, models.PostCommentsCount, 1)
	})
	if err != nil {
		return nil, notFound(err, "post not found")
	}

	s.notifier.Notify(ctx, models.Notification{
		UserID:  p.Author,
		Actor:   userID,
		Type:    models.NotifyPostComment,
		Message: "New comment on your post",
		RefType: "post",
		RefID:   id.Hex(),
	})
	return c, nil
}

func (s *PostService) ListComments(ctx context.Context, userID, rawPostID string, pp utils.PageParams) (utils.Page, error) {
	id, err := ParseID(rawPostID, "post")
	if err != nil {
		return utils.Page{}, err
	}
	_, subject, err := s.loadPost(ctx, userID, id)
	if err != nil {
		return utils.Page{}, err
	}
	if err := s.policy.Require(CapViewGroup, subject); err != nil {
		return utils.Page{}, err
	}
	items, total, err := s.store.Comments().ListByPost(ctx, id, pp.Skip(), int64(pp.Limit))
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(items, total, pp), nil
}

// DeleteComment is allowed for the comment author and group admins.
func (s *PostService) DeleteComment(ctx context.Context, userID, rawID string) error {
	id, err := ParseID(rawID, "comment")
	if err != nil {
		return err
	}
	c, err := s.store.Comments().FindByID(ctx, id)
	if err != nil {
		return notFound(err, "comment not found")
	}
	_, subject, err := s.loadPost(ctx, userID, c.PostID)
	if err != nil {
		return err
	}
	subject.ResourceOwner = c.Author
	if err := s.policy.Require(CapDeleteContent, subject); err != nil {
		return err
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Comments().Delete(ctx, id); err != nil {
			return err
		}
		return s.store.Posts().IncrementCounter(ctx, c.PostID, models.PostCommentsCount, -1)
	})
	return notFound(err, "comment not found")
}
