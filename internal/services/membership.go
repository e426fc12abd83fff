package services

import (
	"context"
	"errors"
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

const maxJoinMessageLen = 500

var (
	errAlreadyMember   = apperr.Conflict("already a member")
	errBannedFromGroup = apperr.Forbidden("you are banned from this group")
	errGroupNotOpen    = apperr.Forbidden("this group is not accepting members")
	errPrivateGroup    = apperr.Forbidden("this group is private; send a join request")
)

// MembershipService owns the (group, user) ledger and keeps
// Group.MemberCount equal to the number of active memberships.
type MembershipService struct {
	store       repository.Store
	policy      *Policy
	notifier    Notifier
	broadcaster Broadcaster
}

// checkJoinable rejects a join or request when the pair already has a record.
func checkJoinable(existing *models.Membership) error {
	if existing == nil {
		return nil
	}
	if existing.Status == models.MembershipBanned {
		return errBannedFromGroup
	}
	return errAlreadyMember
}

// Join makes the caller an active member of a public group.
func (s *MembershipService) Join(ctx context.Context, userID, rawGroupID string) (*models.Membership, error) {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return nil, err
	}
	g, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GroupApproved {
		return nil, errGroupNotOpen
	}
	existing, err := membershipOf(ctx, s.store, groupID, userID)
	if err != nil {
		return nil, err
	}
	if err := checkJoinable(existing); err != nil {
		return nil, err
	}
	if g.Privacy == models.GroupPrivate {
		return nil, errPrivateGroup
	}

	ts := now()
	m := &models.Membership{
		GroupID:   groupID,
		UserID:    userID,
		Role:      models.RoleMember,
		Status:    models.MembershipActive,
		JoinedAt:  &ts,
		CreatedAt: ts,
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Memberships().Create(ctx, m); err != nil {
			return err
		}
		return s.store.Groups().IncrementCounter(ctx, groupID, models.GroupMemberCount, 1)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, errAlreadyMember
	}
	if err != nil {
		return nil, err
	}

	slog.Info("member joined", "group_id", groupID.Hex(), "user_id", userID)
	return m, nil
}

// RequestToJoin files a pending membership. The member count only changes
// on approval.
func (s *MembershipService) RequestToJoin(ctx context.Context, userID, rawGroupID, message string) (*models.Membership, error) {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > maxJoinMessageLen {
		return nil, apperr.Validation(fmt.Sprintf("message must be at most %d characters", maxJoinMessageLen))
	}
	g, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GroupApproved {
		return nil, errGroupNotOpen
	}
	existing, err := membershipOf(ctx, s.store, groupID, userID)
	if err != nil {
		return nil, err
	}
	if err := checkJoinable(existing); err != nil {
		return nil, err
	}

	m := &models.Membership{
		GroupID:   groupID,
		UserID:    userID,
		Role:      models.RoleMember,
		Status:    models.MembershipPending,
		Message:   message,
		CreatedAt: now(),
	}
	if err := s.store.Memberships().Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errAlreadyMember
		}
		return nil, err
	}

	for _, admin := range groupAdmins(g) {
		s.notifier.Notify(ctx, models.Notification{
			UserID:  admin,
			Actor:   userID,
			Type:    models.NotifyJoinRequest,
			Message: fmt.Sprintf("New request to join %q", g.Name),
			RefType: "group",
			RefID:   groupID.Hex(),
		})
	}
	return m, nil
}

// groupAdmins returns the owner and admins without duplicates.
func groupAdmins(g *models.Group) []string {
	seen := map[string]struct{}{g.Owner: {}}
	out := []string{g.Owner}
	for _, a := range g.Admins {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// loadRequest finds a pending request that belongs to the group.
func (s *MembershipService) loadRequest(ctx context.Context, groupID primitive.ObjectID, rawRequestID string) (*models.Membership, error) {
	reqID, err := ParseID(rawRequestID, "request")
	if err != nil {
		return nil, err
	}
	m, err := s.store.Memberships().FindByID(ctx, reqID)
	if err != nil {
		return nil, notFound(err, "join request not found")
	}
	if m.GroupID != groupID || m.Status != models.MembershipPending {
		return nil, apperr.NotFound("join request not found")
	}
	return m, nil
}

// moderate loads the group and checks that the caller may manage its members.
func (s *MembershipService) moderate(ctx context.Context, userID, rawGroupID string) (*models.Group, error) {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return nil, err
	}
	g, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(CapModerateMembers, Subject{UserID: userID, Group: g}); err != nil {
		return nil, err
	}
	return g, nil
}

// Approve activates a pending request.
func (s *MembershipService) Approve(ctx context.Context, userID, rawGroupID, rawRequestID string) (*models.Membership, error) {
	g, err := s.moderate(ctx, userID, rawGroupID)
	if err != nil {
		return nil, err
	}
	m, err := s.loadRequest(ctx, g.ID, rawRequestID)
	if err != nil {
		return nil, err
	}

	ts := now()
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.store.Memberships().FindByID(ctx, m.ID)
		if err != nil {
			return err
		}
		if current.Status != models.MembershipPending {
			return repository.ErrNotFound
		}
		if err := s.store.Memberships().UpdateStatus(ctx, m.ID, models.MembershipActive, &ts); err != nil {
			return err
		}
		return s.store.Groups().IncrementCounter(ctx, g.ID, models.GroupMemberCount, 1)
	})
	if err != nil {
		return nil, notFound(err, "join request not found")
	}
	m.Status = models.MembershipActive
	m.JoinedAt = &ts

	s.notifier.Notify(ctx, models.Notification{
		UserID:  m.UserID,
		Actor:   userID,
		Type:    models.NotifyJoinApproved,
		Message: fmt.Sprintf("Your request to join %q was approved", g.Name),
		RefType: "group",
		RefID:   g.ID.Hex(),
	})
	return m, nil
}

// Deny deletes a pending request.
func (s *MembershipService) Deny(ctx context.Context, userID, rawGroupID, rawRequestID string) error {
	g, err := s.moderate(ctx, userID, rawGroupID)
	if err != nil {
		return err
	}
	m, err := s.loadRequest(ctx, g.ID, rawRequestID)
	if err != nil {
		return err
	}
	if err := s.store.Memberships().Delete(ctx, m.ID); err != nil {
		return notFound(err, "join request not found")
	}

	s.notifier.Notify(ctx, models.Notification{
		UserID:  m.UserID,
		Actor:   userID,
		Type:    models.NotifyJoinDenied,
		Message: fmt.Sprintf("Your request to join %q was declined", g.Name),
		RefType: "group",
		RefID:   g.ID.Hex(),
	})
	return nil
}

// removeMembership deletes m, decrements the count when it was active and
// drops the user from the admin set.
func (s *MembershipService) removeMembership(ctx context.Context, g *models.Group, m *models.Membership) error {
	return s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Memberships().Delete(ctx, m.ID); err != nil {
			return err
		}
		if m.IsActive() {
			if err := s.store.Groups().IncrementCounter(ctx, g.ID, models.GroupMemberCount, -1); err != nil {
				return err
			}
		}
		return s.store.Groups().RemoveAdmin(ctx, g.ID, m.UserID)
	})
}

// Leave removes the caller's own membership or pending request. The owner
// has to delete the group instead.
func (s *MembershipService) Leave(ctx context.Context, userID, rawGroupID string) error {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return err
	}
	g, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return err
	}
	if g.Owner == userID {
		return apperr.Validation("the group owner cannot leave; delete the group instead")
	}
	m, err := membershipOf(ctx, s.store, groupID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return apperr.NotFound("you are not a member of this group")
	}
	if m.Status == models.MembershipBanned {
		return errBannedFromGroup
	}
	if err := s.removeMembership(ctx, g, m); err != nil {
		return notFound(err, "you are not a member of this group")
	}
	revokeRoom(ctx, s.broadcaster, realtime.GroupRoom(groupID.Hex()), userID)

	slog.Info("member left", "group_id", groupID.Hex(), "user_id", userID)
	return nil
}

// targetMember loads another user's membership for a moderation action.
func (s *MembershipService) targetMember(ctx context.Context, g *models.Group, actorID, targetID string) (*models.Membership, error) {
	if targetID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if targetID == g.Owner {
		return nil, apperr.Forbidden("the group owner cannot be changed this way")
	}
	if targetID == actorID {
		return nil, apperr.Validation("use leave to remove yourself")
	}
	m, err := membershipOf(ctx, s.store, g.ID, targetID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound("member not found")
	}
	// Only the owner may act on other admins.
	if g.HasAdmin(targetID) && g.Owner != actorID {
		return nil, apperr.Forbidden("only the group owner can remove an admin")
	}
	return m, nil
}

func (s *MembershipService) RemoveMember(ctx context.Context, userID, rawGroupID, targetID string) error {
	g, err := s.moderate(ctx, userID, rawGroupID)
	if err != nil {
		return err
	}
	m, err := s.targetMember(ctx, g, userID, targetID)
	if err != nil {
		return err
	}
	if err := s.removeMembership(ctx, g, m); err != nil {
		return notFound(err, "member not found")
	}
	revokeRoom(ctx, s.broadcaster, realtime.GroupRoom(g.ID.Hex()), targetID)

	s.notifier.Notify(ctx, models.Notification{
		UserID:  targetID,
		Actor:   userID,
		Type:    models.NotifyMemberRemoved,
		Message: fmt.Sprintf("You were removed from %q", g.Name),
		RefType: "group",
		RefID:   g.ID.Hex(),
	})
	return nil
}

// Ban marks the user banned so they cannot join or request again. A user
// with no record gets a banned record.
func (s *MembershipService) Ban(ctx context.Context, userID, rawGroupID, targetID string) error {
	g, err := s.moderate(ctx, userID, rawGroupID)
	if err != nil {
		return err
	}
	if targetID == "" {
		return apperr.Validation("user id is required")
	}
	if targetID == g.Owner {
		return apperr.Forbidden("the group owner cannot be changed this way")
	}
	if targetID == userID {
		return apperr.Validation("you cannot ban yourself")
	}
	if g.HasAdmin(targetID) && g.Owner != userID {
		return apperr.Forbidden("only the group owner can remove an admin")
	}
	m, err := membershipOf(ctx, s.store, g.ID, targetID)
	if err != nil {
		return err
	}
	if m != nil && m.Status == models.MembershipBanned {
		return nil
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if m == nil {
			return s.store.Memberships().Create(ctx, &models.Membership{
				GroupID:   g.ID,
				UserID:    targetID,
				Role:      models.RoleMember,
				Status:    models.MembershipBanned,
				CreatedAt: now(),
			})
		}
		if err := s.store.Memberships().UpdateStatus(ctx, m.ID, models.MembershipBanned, nil); err != nil {
			return err
		}
		if m.Role == models.RoleAdmin {
			if err := s.store.Memberships().UpdateRole(ctx, m.ID, models.RoleMember); err != nil {
				return err
			}
		}
		if m.IsActive() {
			if err := s.store.Groups().IncrementCounter(ctx, g.ID, models.GroupMemberCount, -1); err != nil {
				return err
			}
		}
		return s.store.Groups().RemoveAdmin(ctx, g.ID, targetID)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent join; the caller can retry.
		return apperr.Conflict("membership changed, try again")
	}
	if err != nil {
		return err
	}
	revokeRoom(ctx, s.broadcaster, realtime.GroupRoom(g.ID.Hex()), targetID)

	s.notifier.Notify(ctx, models.Notification{
		UserID:  targetID,
		Actor:   userID,
		Type:    models.NotifyMemberBanned,
		Message: fmt.Sprintf("You were banned from %q", g.Name),
		RefType: "group",
		RefID:   g.ID.Hex(),
	})
	return nil
}

// SetRole promotes an active member to admin or demotes an admin to member.
func (s *MembershipService) SetRole(ctx context.Context, userID, rawGroupID, targetID string, role models.MemberRole) (*models.Membership, error) {
	groupID, err := ParseID(rawGroupID, "group")
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, apperr.Validation("role must be admin or member")
	}
	g, err := loadGroup(ctx, s.store, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Require(CapManageRoles, Subject{UserID: userID, Group: g}); err != nil {
		return nil, err
	}
	m, err := s.targetMember(ctx, g, userID, targetID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive() {
		return nil, apperr.Validation("only active members can change role")
	}
	if m.Role == role {
		return m, nil
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Memberships().UpdateRole(ctx, m.ID, role); err != nil {
			return err
		}
		if role == models.RoleAdmin {
			return s.store.Groups().AddAdmin(ctx, groupID, targetID)
		}
		return s.store.Groups().RemoveAdmin(ctx, groupID, targetID)
	})
	if err != nil {
		return nil, notFound(err, "member not found")
	}
	m.Role = role

	s.notifier.Notify(ctx, models.Notification{
		UserID:  targetID,
		Actor:   userID,
		Type:    models.NotifyRoleChanged,
		Message: fmt.Sprintf("You are now %s of %q", roleLabel(role), g.Name),
		RefType: "group",
		RefID:   groupID.Hex(),
	})
	return m, nil
}

func roleLabel(role models.MemberRole) string {
	if role == models.RoleAdmin {
		return "an admin"
	}
	return "a member"
}

// ListMembers returns active members to anyone who can view the group.
func (s *MembershipService) ListMembers(ctx context.Context, userID, rawGroupID string, p utils.PageParams) (utils.Page, error) {
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
	items, total, err := s.store.Memberships().List(ctx, groupID, models.MembershipActive, p.Skip(), int64(p.Limit))
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(items, total, p), nil
}

// ListRequests returns pending join requests to group admins.
func (s *MembershipService) ListRequests(ctx context.Context, userID, rawGroupID string, p utils.PageParams) (utils.Page, error) {
	g, err := s.moderate(ctx, userID, rawGroupID)
	if err != nil {
		return utils.Page{}, err
	}
	items, total, err := s.store.Memberships().List(ctx, g.ID, models.MembershipPending, p.Skip(), int64(p.Limit))
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(items, total, p), nil
}
