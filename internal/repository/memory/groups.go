package memory

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

type groupRepo struct{ s *Store }

func cloneGroup(g models.Group) *models.Group {
	g.Admins = cloneStrings(g.Admins)
	return &g
}

func (r groupRepo) Create(ctx context.Context, g *models.Group) error {
	defer r.s.lock(ctx)()
	ensureID(&g.ID)
	if _, ok := r.s.data.groups[g.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.data.groups[g.ID] = *cloneGroup(*g)
	return nil
}

func (r groupRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	defer r.s.lock(ctx)()
	g, ok := r.s.data.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneGroup(g), nil
}

func (r groupRepo) List(ctx context.Context, f repository.GroupFilter) ([]models.Group, int64, error) {
	defer r.s.lock(ctx)()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	var items []models.Group
	for _, g := range r.s.data.groups {
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if f.Privacy != "" && g.Privacy != f.Privacy {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(g.Name), q) {
			continue
		}
		items = append(items, *cloneGroup(g))
	}
	out, total := page(items, func(a, b models.Group) bool { return a.CreatedAt.After(b.CreatedAt) }, f.Skip, f.Limit)
	return out, total, nil
}

func (r groupRepo) Update(ctx context.Context, id primitive.ObjectID, u repository.GroupUpdate) (*models.Group, error) {
	defer r.s.lock(ctx)()
	g, ok := r.s.data.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if u.Name != nil {
		g.Name = *u.Name
	}
	if u.Description != nil {
		g.Description = *u.Description
	}
	if u.Privacy != nil {
		g.Privacy = *u.Privacy
	}
	if u.Status != nil {
		g.Status = *u.Status
	}
	g.UpdatedAt = time.Now().UTC()
	r.s.data.groups[id] = g
	return cloneGroup(g), nil
}

func (r groupRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.data.groups[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.groups, id)
	return nil
}

func (r groupRepo) IncrementCounter(ctx context.Context, id primitive.ObjectID, field string, delta int64) error {
	defer r.s.lock(ctx)()
	g, ok := r.s.data.groups[id]
	if !ok {
		return repository.ErrNotFound
	}
	switch field {
	case models.GroupMemberCount:
		g.MemberCount = floorAdd(g.MemberCount, delta)
	case models.GroupPostCount:
		g.PostCount = floorAdd(g.PostCount, delta)
	case models.GroupUpcomingEventCount:
		g.UpcomingEventCount = floorAdd(g.UpcomingEventCount, delta)
	}
	r.s.data.groups[id] = g
	return nil
}

func (r groupRepo) SetCounters(ctx context.Context, id primitive.ObjectID, c repository.GroupCounters) error {
	defer r.s.lock(ctx)()
	g, ok := r.s.data.groups[id]
	if !ok {
		return repository.ErrNotFound
	}
	g.MemberCount = c.MemberCount
	g.PostCount = c.PostCount
	g.UpcomingEventCount = c.UpcomingEventCount
	r.s.data.groups[id] = g
	return nil
}

func (r groupRepo) AddAdmin(ctx context.Context, id primitive.ObjectID, userID string) error {
	defer r.s.lock(ctx)()
	g, ok := r.s.data.groups[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, a := range g.Admins {
		if a == userID {
			return nil
		}
	}
	g.Admins = append(cloneStrings(g.Admins), userID)
	r.s.data.groups[id] = g
	return nil
}

func (r groupRepo) RemoveAdmin(ctx context.Context, id primitive.ObjectID, userID string) error {
	defer r.s.lock(ctx)()
	g, ok := r.s.data.groups[id]
	if !ok {
		return repository.ErrNotFound
	}
	admins := make([]string, 0, len(g.Admins))
	for _, a := range g.Admins {
		if a != userID {
			admins = append(admins, a)
		}
	}
	g.Admins = admins
	r.s.data.groups[id] = g
	return nil
}

type membershipRepo struct{ s *Store }

func (r membershipRepo) Create(ctx context.Context, m *models.Membership) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.data.memberships {
		if existing.GroupID == m.GroupID && existing.UserID == m.UserID {
			return repository.ErrDuplicate
		}
	}
	ensureID(&m.ID)
	r.s.data.memberships[m.ID] = *m
	return nil
}

func (r membershipRepo) Find(ctx context.Context, groupID primitive.ObjectID, userID string) (*models.Membership, error) {
	defer r.s.lock(ctx)()
	for _, m := range r.s.data.memberships {
		if m.GroupID == groupID && m.UserID == userID {
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r membershipRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Membership, error) {
	defer r.s.lock(ctx)()
	m, ok := r.s.data.memberships[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r membershipRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.MembershipStatus, joinedAt *time.Time) error {
	defer r.s.lock(ctx)()
	m, ok := r.s.data.memberships[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.Status = status
	if joinedAt != nil {
		t := *joinedAt
		m.JoinedAt = &t
	}
	r.s.data.memberships[id] = m
	return nil
}

func (r membershipRepo) UpdateRole(ctx context.Context, id primitive.ObjectID, role models.MemberRole) error {
	defer r.s.lock(ctx)()
	m, ok := r.s.data.memberships[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.Role = role
	r.s.data.memberships[id] = m
	return nil
}

func (r membershipRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.data.memberships[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.memberships, id)
	return nil
}

func (r membershipRepo) List(ctx context.Context, groupID primitive.ObjectID, status models.MembershipStatus, skip, limit int64) ([]models.Membership, int64, error) {
	defer r.s.lock(ctx)()
	var items []models.Membership
	for _, m := range r.s.data.memberships {
		if m.GroupID == groupID && (status == "" || m.Status == status) {
			items = append(items, m)
		}
	}
	out, total := page(items, func(a, b models.Membership) bool { return a.CreatedAt.Before(b.CreatedAt) }, skip, limit)
	return out, total, nil
}

func (r membershipRepo) Count(ctx context.Context, groupID primitive.ObjectID, status models.MembershipStatus) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, m := range r.s.data.memberships {
		if m.GroupID == groupID && (status == "" || m.Status == status) {
			n++
		}
	}
	return n, nil
}

func (r membershipRepo) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	for id, m := range r.s.data.memberships {
		if m.GroupID == groupID {
			delete(r.s.data.memberships, id)
		}
	}
	return nil
}
