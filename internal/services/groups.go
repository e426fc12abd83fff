package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/realtime"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

const (
	maxGroupNameLen        = 100
	maxGroupDescriptionLen = 2000
)

type CreateGroupInput struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Privacy     models.GroupPrivacy `json:"privacy"`
}

// UpdateGroupInput leaves nil fields unchanged.
type UpdateGroupInput struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Privacy     *models.GroupPrivacy `json:"privacy"`
}

type GroupListQuery struct {
	Query   string
	Privacy models.GroupPrivacy
	Page    utils.PageParams
}

// GroupService owns the group registry and its denormalized counters.
type GroupService struct {
	store           repository.Store
	policy          *Policy
	notifier        Notifier
	broadcaster     Broadcaster
	recent          RecentMessageCache
	requireApproval bool
}

func cleanGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("group name is required")
	}
	if utf8.RuneCountInString(name) > maxGroupNameLen {
		return "", apperr.Validation(fmt.Sprintf("group name must be at most %d characters", maxGroupNameLen))
	}
	return name, nil
}

func cleanGroupDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > maxGroupDescriptionLen {
		return "", apperr.Validation(fmt.Sprintf("description must be at most %d characters", maxGroupDescriptionLen))
	}
	return desc, nil
}

// Create stores the group and the owner's active membership together.
// The owner starts as the only admin and the only member.
func (s *GroupService) Create(ctx context.Context, userID string, in CreateGroupInput) (*models.Group, error) {
	name, err := cleanGroupName(in.Name)
	if err != nil {
		return nil, err
	}
	desc, err := cleanGroupDescription(in.Description)
	if err != nil {
		return nil, err
	}
	privacy := in.Privacy
	if privacy == "" {
		privacy = models.GroupPublic
	}
	if !privacy.Valid() {
		return nil, apperr.Validation("privacy must be public or private")
	}

	status := models.GroupApproved
	if s.requireApproval && !s.policy.IsPlatformAdmin(userID) {
		status = models.GroupPending
	}

	ts := now()
	g := &models.Group{
		Name:        name,
		Description: desc,
		Privacy:     privacy,
		Owner:       userID,
		Admins:      []string{userID},
		MemberCount: 1,
		Status:      status,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Groups().Create(ctx, g); err != nil {
			return err
		}
		return s.store.Memberships().Create(ctx, &models.Membership{
			GroupID:   g.ID,
			UserID:    userID,
			Role:      models.RoleOwner,
			Status:    models.MembershipActive,
			JoinedAt:  &ts,
			CreatedAt: ts,
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("group created", "group_id", g.ID.Hex(), "user_id", userID, "status", status)
	return g, nil
}

// Get returns the group if the caller can see it at all. Groups still
// under review are only visible to their admins and platform admins.
func (s *GroupService) Get(ctx context.Context, userID, rawID string) (*models.Group, error) {
	id, err := ParseID(rawID, "group")
	if err != nil {
		return nil, err
	}
	g, err := loadGroup(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.Allows(CapDiscoverGroup, Subject{UserID: userID, Group: g}) {
		return nil, apperr.NotFound("group not found")
	}
	return g, nil
}

// List returns approved groups, newest first.
func (s *GroupService) List(ctx context.Context, q GroupListQuery) (utils.Page, error) {
	if q.Privacy != "" && !q.Privacy.Valid() {
		return utils.Page{}, apperr.Validation("privacy must be public or private")
	}
	items, total, err := s.store.Groups().List(ctx, repository.GroupFilter{
		Status:  models.GroupApproved,
		Privacy: q.Privacy,
		Query:   q.Query,
		Skip:    q.Page.Skip(),
		Limit:   int64(q.Page.Limit),
	})
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(items, total, q.Page), nil
}

func (s *GroupService) Update(ctx context.Context, userID, rawID string, in UpdateGroupInput) (*models.Group, error) {
	id, err := ParseID(rawID, "group")
	if err != nil {
		return nil, err
	}
	g, err := loadGroup(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(CapManageGroup, Subject{UserID: userID, Group: g}); err != nil {
		return nil, err
	}

	var u repository.GroupUpdate
	if in.Name != nil {
		name, err := cleanGroupName(*in.Name)
		if err != nil {
			return nil, err
		}
		u.Name = &name
	}
	if in.Description != nil {
		desc, err := cleanGroupDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		u.Description = &desc
	}
	if in.Privacy != nil {
		if !in.Privacy.Valid() {
			return nil, apperr.Validation("privacy must be public or private")
		}
		u.Privacy = in.Privacy
	}

	updated, err := s.store.Groups().Update(ctx, id, u)
	if err != nil {
		return nil, notFound(err, "group not found")
	}
	return updated, nil
}

// Delete removes the group and everything scoped to it in one transaction.
func (s *GroupService) Delete(ctx context.Context, userID, rawID string) error {
	id, err := ParseID(rawID, "group")
	if err != nil {
		return err
	}
	g, err := loadGroup(ctx, s.store, id)
	if err != nil {
		return err
	}
	if err := s.policy.Require(CapDeleteGroup, Subject{UserID: userID, Group: g}); err != nil {
		return err
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		eventIDs, err := s.store.Events().ListIDsByGroup(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.Attendance().DeleteByEvents(ctx, eventIDs); err != nil {
			return err
		}
		if err := s.store.Events().DeleteByGroup(ctx, id); err != nil {
			return err
		}

		postIDs, err := s.store.Posts().ListIDsByGroup(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.Likes().DeleteByPosts(ctx, postIDs); err != nil {
			return err
		}
		if err := s.store.Comments().DeleteByPosts(ctx, postIDs); err != nil {
			return err
		}
		if err := s.store.Posts().DeleteByGroup(ctx, id); err != nil {
			return err
		}

		if err := s.store.GroupMessages().DeleteByGroup(ctx, id); err != nil {
			return err
		}
		if err := s.store.Memberships().DeleteByGroup(ctx, id); err != nil {
			return err
		}
		return s.store.Groups().Delete(ctx, id)
	})
	if err != nil {
		return notFound(err, "group not found")
	}

	s.recent.Invalidate(ctx, id.Hex())
	revokeRoom(ctx, s.broadcaster, realtime.GroupRoom(id.Hex()), "")
	slog.Info("group deleted", "group_id", id.Hex(), "user_id", userID)
	return nil
}

// SetStatus records a platform admin's review decision and tells the owner.
func (s *GroupService) SetStatus(ctx context.Context, userID, rawID string, status models.GroupStatus) (*models.Group, error) {
	if err := s.policy.Require(CapReviewGroups, Subject{UserID: userID}); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Validation("status must be pending, approved or rejected")
	}
	id, err := ParseID(rawID, "group")
	if err != nil {
		return nil, err
	}
	g, err := s.store.Groups().Update(ctx, id, repository.GroupUpdate{Status: &status})
	if err != nil {
		return nil, notFound(err, "group not found")
	}

	s.notifier.Notify(ctx, models.Notification{
		UserID:  g.Owner,
		Actor:   userID,
		Type:    models.NotifyGroupReviewed,
		Message: fmt.Sprintf("Your group %q is now %s", g.Name, status),
		RefType: "group",
		RefID:   g.ID.Hex(),
	})
	return g, nil
}

// Reconcile recomputes every counter of the group and of its events and
// posts from the source collections.
func (s *GroupService) Reconcile(ctx context.Context, id primitive.ObjectID) (repository.GroupCounters, error) {
	var counters repository.GroupCounters
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if counters.MemberCount, err = s.store.Memberships().Count(ctx, id, models.MembershipActive); err != nil {
			return err
		}
		if counters.PostCount, err = s.store.Posts().Count(ctx, id); err != nil {
			return err
		}
		if counters.UpcomingEventCount, err = s.store.Events().Count(ctx, id, models.EventUpcoming); err != nil {
			return err
		}
		if err := s.store.Groups().SetCounters(ctx, id, counters); err != nil {
			return err
		}

		eventIDs, err := s.store.Events().ListIDsByGroup(ctx, id)
		if err != nil {
			return err
		}
		for _, eventID := range eventIDs {
			n, err := s.store.Attendance().CountActive(ctx, eventID)
			if err != nil {
				return err
			}
			if err := s.store.Events().SetCounter(ctx, eventID, models.EventParticipantsCount, n); err != nil {
				return err
			}
		}

		postIDs, err := s.store.Posts().ListIDsByGroup(ctx, id)
		if err != nil {
			return err
		}
		for _, postID := range postIDs {
			likes, err := s.store.Likes().Count(ctx, postID)
			if err != nil {
				return err
			}
			comments, err := s.store.Comments().Count(ctx, postID)
			if err != nil {
				return err
			}
			if err := s.store.Posts().SetCounter(ctx, postID, models.PostLikesCount, likes); err != nil {
				return err
			}
			if err := s.store.Posts().SetCounter(ctx, postID, models.PostCommentsCount, comments); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return counters, notFound(err, "group not found")
	}
	return counters, nil
}

// ReconcileAll walks every group, whatever its status, and returns how many
// were reconciled.
func (s *GroupService) ReconcileAll(ctx context.Context) (int, error) {
	const batch = 100
	done := 0
	for skip := int64(0); ; skip += batch {
		groups, _, err := s.store.Groups().List(ctx, repository.GroupFilter{Skip: skip, Limit: batch})
		if err != nil {
			return done, err
		}
		for _, g := range groups {
			if err := ctx.Err(); err != nil {
				return done, err
			}
			counters, err := s.Reconcile(ctx, g.ID)
			if err != nil {
				return done, fmt.Errorf("reconcile group %s: %w", g.ID.Hex(), err)
			}
			if counters.MemberCount != g.MemberCount || counters.PostCount != g.PostCount || counters.UpcomingEventCount != g.UpcomingEventCount {
				slog.Info("group counters corrected", "group_id", g.ID.Hex(),
					"member_count", counters.MemberCount, "post_count", counters.PostCount,
					"upcoming_event_count", counters.UpcomingEventCount)
			}
			done++
		}
		if len(groups) < batch {
			return done, nil
		}
	}
}
