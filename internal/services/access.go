package services

import (
	"strings"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
)

// Capability names an action on a group or on content inside it.
type Capability string

const (
	CapDiscoverGroup   Capability = "group:discover"
	CapViewGroup       Capability = "group:view"
	CapInteract        Capability = "group:interact"
	CapParticipate     Capability = "group:participate"
	CapManageGroup     Capability = "group:manage"
	CapDeleteGroup     Capability = "group:delete"
	CapReviewGroups    Capability = "group:review"
	CapModerateMembers Capability = "members:moderate"
	CapManageRoles     Capability = "members:roles"
	CapCreateEvent     Capability = "event:create"
	CapEditEvent       Capability = "event:edit"
	CapEditPost        Capability = "post:edit"
	CapDeleteContent   Capability = "content:delete"
)

// Subject is everything the policy needs to decide: the caller, the group,
// the caller's membership in it (nil when none) and, for content, its author.
type Subject struct {
	UserID        string
	Group         *models.Group
	Membership    *models.Membership
	ResourceOwner string
}

// Policy is the single place authorization is decided. A group admin is a
// user listed in Group.Admins or the group owner.
type Policy struct {
	platformAdmins map[string]struct{}
}

func NewPolicy(platformAdmins []string) *Policy {
	p := &Policy{platformAdmins: make(map[string]struct{})}
	for _, id := range platformAdmins {
		if id = strings.TrimSpace(id); id != "" {
			p.platformAdmins[id] = struct{}{}
		}
	}
	return p
}

func (p *Policy) IsPlatformAdmin(userID string) bool {
	_, ok := p.platformAdmins[userID]
	return ok
}

func (p *Policy) IsGroupAdmin(userID string, g *models.Group) bool {
	return g != nil && g.HasAdmin(userID)
}

// Allows reports whether s may perform c.
func (p *Policy) Allows(c Capability, s Subject) bool {
	g := s.Group
	if g == nil && c != CapReviewGroups {
		return false
	}
	admin := p.IsGroupAdmin(s.UserID, g)

	switch c {
	case CapReviewGroups:
		return p.IsPlatformAdmin(s.UserID)
	case CapDiscoverGroup:
		return admin || p.IsPlatformAdmin(s.UserID) || g.Status == models.GroupApproved
	case CapViewGroup:
		if admin || p.IsPlatformAdmin(s.UserID) {
			return true
		}
		if g.Status != models.GroupApproved {
			return false
		}
		return g.Privacy == models.GroupPublic || s.Membership.IsActive()
	case CapInteract:
		if s.Membership != nil && s.Membership.Status == models.MembershipBanned {
			return false
		}
		if g.Status != models.GroupApproved {
			return false
		}
		return admin || g.Privacy == models.GroupPublic || s.Membership.IsActive()
	case CapParticipate:
		return g.Status == models.GroupApproved && s.Membership.IsActive()
	case CapManageGroup, CapModerateMembers:
		return admin
	case CapDeleteGroup:
		return g.Owner == s.UserID || p.IsPlatformAdmin(s.UserID)
	case CapManageRoles:
		return g.Owner == s.UserID
	case CapCreateEvent:
		return admin && g.Status == models.GroupApproved
	case CapEditEvent, CapDeleteContent:
		return (s.ResourceOwner != "" && s.ResourceOwner == s.UserID) || admin
	case CapEditPost:
		return s.ResourceOwner != "" && s.ResourceOwner == s.UserID
	}
	return false
}

var denials = map[Capability]string{
	CapViewGroup:       "you do not have access to this group",
	CapInteract:        "you do not have access to this group",
	CapParticipate:     "you must be a member of this group",
	CapManageGroup:     "only group admins can edit this group",
	CapDeleteGroup:     "only the group owner can delete this group",
	CapReviewGroups:    "only platform admins can review groups",
	CapModerateMembers: "only group admins can manage members",
	CapManageRoles:     "only the group owner can change roles",
	CapCreateEvent:     "only group admins can create events",
	CapEditEvent:       "only the host or a group admin can change this event",
	CapEditPost:        "only the author can edit this post",
	CapDeleteContent:   "only the author or a group admin can delete this",
}

// Require returns a 403 AppError when s may not perform c.
func (p *Policy) Require(c Capability, s Subject) error {
	if p.Allows(c, s) {
		return nil
	}
	msg, ok := denials[c]
	if !ok {
		msg = "forbidden"
	}
	return apperr.Forbidden(msg)
}
