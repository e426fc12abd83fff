package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

const (
	maxEventTitleLen       = 200
	maxEventDescriptionLen = 5000
	maxEventLocationLen    = 300
)

type CreateEventInput struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Location      string            `json:"location"`
	Difficulty    models.Difficulty `json:"difficulty"`
	StartDateTime *time.Time        `json:"startDateTime"`
}

// UpdateEventInput leaves nil fields unchanged.
type UpdateEventInput struct {
	Title         *string             `json:"title"`
	Description   *string             `json:"description"`
	Location      *string             `json:"location"`
	Difficulty    *models.Difficulty  `json:"difficulty"`
	StartDateTime *time.Time          `json:"startDateTime"`
	Status        *models.EventStatus `json:"status"`
}

type AttendInput struct {
	Status models.AttendanceStatus `json:"status"`
}

// EventService owns group events, attendance records and the
// participantsCount and upcomingEventCount counters.
type EventService struct {
	store    repository.Store
	policy   *Policy
	notifier Notifier
}

func checkLen(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return apperr.Validation(fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return nil
}

func (s *EventService) Create(ctx context.Context, userID, rawGroupID string, in CreateEventInput) (*models.Event, error) {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return nil, err
	}
	g, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(CapCreateEvent, Subject{UserID: userID, Group: g}); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.StartDateTime == nil || in.StartDateTime.IsZero() {
		return nil, apperr.Validation("startDateTime is required")
	}
	if in.Difficulty != "" && !in.Difficulty.Valid() {
		return nil, apperr.Validation("difficulty must be easy, moderate, hard or expert")
	}
	desc := strings.TrimSpace(in.Description)
	location := strings.TrimSpace(in.Location)
	if err := checkLen("title", title, maxEventTitleLen); err != nil {
		return nil, err
	}
	if err := checkLen("description", desc, maxEventDescriptionLen); err != nil {
		return nil, err
	}
	if err := checkLen("location", location, maxEventLocationLen); err != nil {
		return nil, err
	}

	ts := now()
	e := &models.Event{
		GroupID:       groupID,
		Host:          userID,
		Title:         title,
		Description:   desc,
		Location:      location,
		Difficulty:    in.Difficulty,
		StartDateTime: in.StartDateTime.UTC(),
		Status:        models.EventUpcoming,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Events().Create(ctx, e); err != nil {
			return err
		}
		return s.store.Groups().IncrementCounter(ctx, groupID, models.GroupUpcomingEventCount, 1)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("event created", "event_id", e.ID.Hex(), "group_id", groupID.Hex(), "user_id", userID)
	notifyMembers(ctx, s.store, s.notifier, groupID, models.Notification{
		Actor:   userID,
		Type:    models.NotifyEventCreated,
		Message: fmt.Sprintf("New hike in %q: %s", g.Name, e.Title),
		RefType: "event",
		RefID:   e.ID.Hex(),
	})
	return e, nil
}

// loadEvent returns the event and its group.
func (s *EventService) loadEvent(ctx context.Context, rawID string) (*models.Event, *models.Group, error) {
	id, err := ParseID(rawID, "event")
	if err != nil {
		return nil, nil, err
	}
	e, err := s.store.Events().FindByID(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "event not found")
	}
	g, err := loadGroup(ctx, s.store, e.GroupID)
	if err != nil {
		return nil, nil, err
	}
	return e, g, nil
}

func (s *EventService) Get(ctx context.Context, userID, rawID string) (*models.Event, error) {
	e, g, err := s.loadEvent(ctx, rawID)
	if err != nil {
		return nil, err
	}
	subject, err := subjectFor(ctx, s.store, userID, g)
	if err != nil {
		return nil, err
	}
	if !s.policy.Allows(CapViewGroup, subject) {
		return nil, apperr.NotFound("event not found")
	}
	return e, nil
}

func (s *EventService) ListByGroup(ctx context.Context, userID, rawGroupID string, status models.EventStatus, p utils.PageParams) (utils.Page, error) {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return utils.Page{}, err
	}
	if status != "" && !status.Valid() {
		return utils.Page{}, apperr.Validation("status must be Upcoming, Completed or Cancelled")
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
	items, total, err := s.store.Events().ListByGroup(ctx, groupID, status, p.Skip(), int64(p.Limit))
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(items, total, p), nil
}

// Update edits the event. Moving the status away from Upcoming, or back to
// it, adjusts the group's upcomingEventCount in the same transaction.
func (s *EventService) Update(ctx context.Context, userID, rawID string, in UpdateEventInput) (*models.Event, error) {
	e, g, err := s.loadEvent(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(CapEditEvent, Subject{UserID: userID, Group: g, ResourceOwner: e.Host}); err != nil {
		return nil, err
	}

	var u repository.EventUpdate
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.Validation("title cannot be empty")
		}
		if err := checkLen("title", title, maxEventTitleLen); err != nil {
			return nil, err
		}
		u.Title = &title
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if err := checkLen("description", desc, maxEventDescriptionLen); err != nil {
			return nil, err
		}
		u.Description = &desc
	}
	if in.Location != nil {
		location := strings.TrimSpace(*in.Location)
		if err := checkLen("location", location, maxEventLocationLen); err != nil {
			return nil, err
		}
		u.Location = &location
	}
	if in.Difficulty != nil {
		if !in.Difficulty.Valid() {
			return nil, apperr.Validation("difficulty must be easy, moderate, hard or expert")
		}
		u.Difficulty = in.Difficulty
	}
	if in.StartDateTime != nil {
		if in.StartDateTime.IsZero() {
			return nil, apperr.Validation("startDateTime cannot be empty")
		}
		start := in.StartDateTime.UTC()
		u.StartDateTime = &start
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("status must be Upcoming, Completed or Cancelled")
		}
		u.Status = in.Status
	}

	var previous models.EventStatus
	var updated *models.Event
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.store.Events().FindByID(ctx, e.ID)
		if err != nil {
			return err
		}
		previous = current.Status
		if updated, err = s.store.Events().Update(ctx, e.ID, u); err != nil {
			return err
		}
		if delta := upcomingDelta(previous, updated.Status); delta != 0 {
			return s.store.Groups().IncrementCounter(ctx, e.GroupID, models.GroupUpcomingEventCount, delta)
		}
		return nil
	})
	if err != nil {
		return nil, notFound(err, "event not found")
	}

	if previous != updated.Status || u.StartDateTime != nil {
		s.notifyAttendees(ctx, updated, userID, eventChangeMessage(updated, previous))
	}
	return updated, nil
}

func upcomingDelta(from, to models.EventStatus) int64 {
	switch {
	case from == to:
		return 0
	case from == models.EventUpcoming:
		return -1
	case to == models.EventUpcoming:
		return 1
	}
	return 0
}

func eventChangeMessage(e *models.Event, previous models.EventStatus) string {
	if e.Status != previous {
		return fmt.Sprintf("%s is now %s", e.Title, e.Status)
	}
	return fmt.Sprintf("%s was rescheduled to %s", e.Title, e.StartDateTime.Format(time.RFC1123))
}

// Delete removes the event and its attendance records.
func (s *EventService) Delete(ctx context.Context, userID, rawID string) error {
	e, g, err := s.loadEvent(ctx, rawID)
	if err != nil {
		return err
	}
	if err := s.policy.Require(CapEditEvent, Subject{UserID: userID, Group: g, ResourceOwner: e.Host}); err != nil {
		return err
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.store.Events().FindByID(ctx, e.ID)
		if err != nil {
			return err
		}
		if err := s.store.Attendance().DeleteByEvents(ctx, []primitive.ObjectID{e.ID}); err != nil {
			return err
		}
		if err := s.store.Events().Delete(ctx, e.ID); err != nil {
			return err
		}
		if current.Status == models.EventUpcoming {
			return s.store.Groups().IncrementCounter(ctx, e.GroupID, models.GroupUpcomingEventCount, -1)
		}
		return nil
	})
	if err != nil {
		return notFound(err, "event not found")
	}

	slog.Info("event deleted", "event_id", e.ID.Hex(), "user_id", userID)
	return nil
}

// Attend records the caller's attendance and bumps participantsCount.
func (s *EventService) Attend(ctx context.Context, userID, rawID string, in AttendInput) (*models.EventAttendance, error) {
	e, g, err := s.loadEvent(ctx, rawID)
	if err != nil {
		return nil, err
	}
	subject, err := subjectFor(ctx, s.store, userID, g)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(CapInteract, subject); err != nil {
		return nil, err
	}
	if e.Status != models.EventUpcoming {
		return nil, apperr.Validation("cannot attend a cancelled or completed event")
	}
	status := in.Status
	if status == "" {
		status = models.AttendanceGoing
	}
	if status != models.AttendanceGoing && status != models.AttendanceInterested {
		return nil, apperr.Validation("status must be going or interested")
	}

	a := &models.EventAttendance{EventID: e.ID, UserID: userID, Status: status, CreatedAt: now()}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Attendance().Create(ctx, a); err != nil {
			return err
		}
		return s.store.Events().IncrementCounter(ctx, e.ID, models.EventParticipantsCount, 1)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.Conflict("already attending")
	}
	if err != nil {
		return nil, notFound(err, "event not found")
	}
	return a, nil
}

// Unattend deletes the caller's attendance record.
func (s *EventService) Unattend(ctx context.Context, userID, rawID string) error {
	id, err := ParseID(rawID, "event")
	if err != nil {
		return err
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		a, err := s.store.Attendance().Find(ctx, id, userID)
		if err != nil {
			return err
		}
		if err := s.store.Attendance().Delete(ctx, a.ID); err != nil {
			return err
		}
		if a.Status == models.AttendanceCancelled {
			return nil
		}
		return s.store.Events().IncrementCounter(ctx, id, models.EventParticipantsCount, -1)
	})
	return notFound(err, "not attending")
}

func (s *EventService) ListAttendees(ctx context.Context, userID, rawID string, p utils.PageParams) (utils.Page, error) {
	e, g, err := s.loadEvent(ctx, rawID)
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
	items, total, err := s.store.Attendance().ListByEvent(ctx, e.ID, p.Skip(), int64(p.Limit))
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(items, total, p), nil
}

func (s *EventService) notifyAttendees(ctx context.Context, e *models.Event, actor, message string) {
	detached(ctx, "notify:event_attendees", func(ctx context.Context) error {
		return forEachPage(func(skip, limit int64) (int, error) {
			items, _, err := s.store.Attendance().ListByEvent(ctx, e.ID, skip, limit)
			for _, a := range items {
				s.notifier.Notify(ctx, models.Notification{
					UserID:  a.UserID,
					Actor:   actor,
					Type:    models.NotifyEventUpdated,
					Message: message,
					RefType: "event",
					RefID:   e.ID.Hex(),
				})
			}
			return len(items), err
		})
	})
}
