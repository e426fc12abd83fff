package memory

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

type postRepo struct{ s *Store }

func (r postRepo) Create(ctx context.Context, p *models.Post) error {
	defer r.s.lock(ctx)()
	ensureID(&p.ID)
	stored := *p
	stored.ImageURLs = cloneStrings(p.ImageURLs)
	r.s.data.posts[p.ID] = stored
	return nil
}

func (r postRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.data.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.ImageURLs = cloneStrings(p.ImageURLs)
	return &p, nil
}

func (r postRepo) ListByGroup(ctx context.Context, groupID primitive.ObjectID, skip, limit int64) ([]models.Post, int64, error) {
	defer r.s.lock(ctx)()
	var items []models.Post
	for _, p := range r.s.data.posts {
		if p.GroupID == groupID {
			p.ImageURLs = cloneStrings(p.ImageURLs)
			items = append(items, p)
		}
	}
	out, total := page(items, func(a, b models.Post) bool { return a.CreatedAt.After(b.CreatedAt) }, skip, limit)
	return out, total, nil
}

func (r postRepo) ListIDsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	var ids []primitive.ObjectID
	for id, p := range r.s.data.posts {
		if p.GroupID == groupID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r postRepo) Count(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, p := range r.s.data.posts {
		if p.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (r postRepo) UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Post, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.data.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Content = content
	p.UpdatedAt = time.Now().UTC()
	r.s.data.posts[id] = p
	p.ImageURLs = cloneStrings(p.ImageURLs)
	return &p, nil
}

func (r postRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.data.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.posts, id)
	return nil
}

func (r postRepo) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	for id, p := range r.s.data.posts {
		if p.GroupID == groupID {
			delete(r.s.data.posts, id)
		}
	}
	return nil
}

func (r postRepo) IncrementCounter(ctx context.Context, id primitive.ObjectID, field string, delta int64) error {
	defer r.s.lock(ctx)()
	p, ok := r.s.data.posts[id]
	if !ok {
		return repository.ErrNotFound
	}
	switch field {
	case models.PostLikesCount:
		p.LikesCount = floorAdd(p.LikesCount, delta)
	case models.PostCommentsCount:
		p.CommentsCount = floorAdd(p.CommentsCount, delta)
	}
	r.s.data.posts[id] = p
	return nil
}

func (r postRepo) SetCounter(ctx context.Context, id primitive.ObjectID, field string, value int64) error {
	defer r.s.lock(ctx)()
	p, ok := r.s.data.posts[id]
	if !ok {
		return repository.ErrNotFound
	}
	switch field {
	case models.PostLikesCount:
		p.LikesCount = value
	case models.PostCommentsCount:
		p.CommentsCount = value
	}
	r.s.data.posts[id] = p
	return nil
}

type likeRepo struct{ s *Store }

func (r likeRepo) Create(ctx context.Context, l *models.PostLike) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.data.likes {
		if existing.PostID == l.PostID && existing.UserID == l.UserID {
			return repository.ErrDuplicate
		}
	}
	ensureID(&l.ID)
	r.s.data.likes[l.ID] = *l
	return nil
}

func (r likeRepo) Delete(ctx context.Context, postID primitive.ObjectID, userID string) error {
	defer r.s.lock(ctx)()
	for id, l := range r.s.data.likes {
		if l.PostID == postID && l.UserID == userID {
			delete(r.s.data.likes, id)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r likeRepo) Count(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, l := range r.s.data.likes {
		if l.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (r likeRepo) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	set := idSet(postIDs)
	for id, l := range r.s.data.likes {
		if _, ok := set[l.PostID]; ok {
			delete(r.s.data.likes, id)
		}
	}
	return nil
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(ctx context.Context, c *models.Comment) error {
	defer r.s.lock(ctx)()
	ensureID(&c.ID)
	r.s.data.comments[c.ID] = *c
	return nil
}

func (r commentRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.data.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r commentRepo) ListByPost(ctx context.Context, postID primitive.ObjectID, skip, limit int64) ([]models.Comment, int64, error) {
	defer r.s.lock(ctx)()
	var items []models.Comment
	for _, c := range r.s.data.comments {
		if c.PostID == postID {
			items = append(items, c)
		}
	}
	out, total := page(items, func(a, b models.Comment) bool { return a.CreatedAt.Before(b.CreatedAt) }, skip, limit)
	return out, total, nil
}

func (r commentRepo) Count(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, c := range r.s.data.comments {
		if c.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (r commentRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.data.comments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.comments, id)
	return nil
}

func (r commentRepo) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	set := idSet(postIDs)
	for id, c := range r.s.data.comments {
		if _, ok := set[c.PostID]; ok {
			delete(r.s.data.comments, id)
		}
	}
	return nil
}
