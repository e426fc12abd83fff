package memory

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

type eventRepo struct{ s *Store }

func (r eventRepo) Create(ctx context.Context, e *models.Event) error {
	defer r.s.lock(ctx)()
	ensureID(&e.ID)
	r.s.data.events[e.ID] = *e
	return nil
}

func (r eventRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.data.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r eventRepo) ListByGroup(ctx context.Context, groupID primitive.ObjectID, status models.EventStatus, skip, limit int64) ([]models.Event, int64, error) {
	defer r.s.lock(ctx)()
	var items []models.Event
	for _, e := range r.s.data.events {
		if e.GroupID == groupID && (status == "" || e.Status == status) {
			items = append(items, e)
		}
	}
	out, total := page(items, func(a, b models.Event) bool { return a.StartDateTime.Before(b.StartDateTime) }, skip, limit)
	return out, total, nil
}

func (r eventRepo) ListIDsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	var ids []primitive.ObjectID
	for id, e := range r.s.data.events {
		if e.GroupID == groupID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r eventRepo) Count(ctx context.Context, groupID primitive.ObjectID, status models.EventStatus) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, e := range r.s.data.events {
		if e.GroupID == groupID && (status == "" || e.Status == status) {
			n++
		}
	}
	return n, nil
}

func (r eventRepo) Update(ctx context.Context, id primitive.ObjectID, u repository.EventUpdate) (*models.Event, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.data.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.Difficulty != nil {
		e.Difficulty = *u.Difficulty
	}
	if u.StartDateTime != nil {
		e.StartDateTime = u.StartDateTime.UTC()
	}
	if u.Status != nil {
		e.Status = *u.Status
	}
	e.UpdatedAt = time.Now().UTC()
	r.s.data.events[id] = e
	return &e, nil
}

func (r eventRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.data.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.events, id)
	return nil
}

func (r eventRepo) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	for id, e := range r.s.data.events {
		if e.GroupID == groupID {
			delete(r.s.data.events, id)
		}
	}
	return nil
}

func (r eventRepo) IncrementCounter(ctx context.Context, id primitive.ObjectID, field string, delta int64) error {
	defer r.s.lock(ctx)()
	e, ok := r.s.data.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	if field == models.EventParticipantsCount {
		e.ParticipantsCount = floorAdd(e.ParticipantsCount, delta)
	}
	r.s.data.events[id] = e
	return nil
}

func (r eventRepo) SetCounter(ctx context.Context, id primitive.ObjectID, field string, value int64) error {
	defer r.s.lock(ctx)()
	e, ok := r.s.data.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	if field == models.EventParticipantsCount {
		e.ParticipantsCount = value
	}
	r.s.data.events[id] = e
	return nil
}

type attendanceRepo struct{ s *Store }

func (r attendanceRepo) Create(ctx context.Context, a *models.EventAttendance) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.data.attendance {
		if existing.EventID == a.EventID && existing.UserID == a.UserID {
			return repository.ErrDuplicate
		}
	}
	ensureID(&a.ID)
	r.s.data.attendance[a.ID] = *a
	return nil
}

func (r attendanceRepo) Find(ctx context.Context, eventID primitive.ObjectID, userID string) (*models.EventAttendance, error) {
	defer r.s.lock(ctx)()
	for _, a := range r.s.data.attendance {
		if a.EventID == eventID && a.UserID == userID {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r attendanceRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.data.attendance[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.attendance, id)
	return nil
}

func (r attendanceRepo) ListByEvent(ctx context.Context, eventID primitive.ObjectID, skip, limit int64) ([]models.EventAttendance, int64, error) {
	defer r.s.lock(ctx)()
	var items []models.EventAttendance
	for _, a := range r.s.data.attendance {
		if a.EventID == eventID {
			items = append(items, a)
		}
	}
	out, total := page(items, func(a, b models.EventAttendance) bool { return a.CreatedAt.Before(b.CreatedAt) }, skip, limit)
	return out, total, nil
}

func (r attendanceRepo) CountActive(ctx context.Context, eventID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, a := range r.s.data.attendance {
		if a.EventID == eventID && a.Status != models.AttendanceCancelled {
			n++
		}
	}
	return n, nil
}

func (r attendanceRepo) DeleteByEvents(ctx context.Context, eventIDs []primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	set := idSet(eventIDs)
	for id, a := range r.s.data.attendance {
		if _, ok := set[a.EventID]; ok {
			delete(r.s.data.attendance, id)
		}
	}
	return nil
}
