package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)

	g, err := f.svc.Groups.Create(f.ctx, "alice", CreateGroupInput{Name: "  Alpine Club  ", Description: " weekend scrambles "})
	require.NoError(t, err)
	assert.Equal(t, "Alpine Club", g.Name)
	assert.Equal(t, "weekend scrambles", g.Description)
	assert.Equal(t, models.GroupPublic, g.Privacy)
	assert.Equal(t, models.GroupApproved, g.Status)
	assert.Equal(t, "alice", g.Owner)
	assert.Equal(t, []string{"alice"}, g.Admins)
	assert.Equal(t, int64(1), g.MemberCount)
	assert.Zero(t, g.PostCount)
	assert.Zero(t, g.UpcomingEventCount)

	_, err = f.svc.Groups.Create(f.ctx, "alice", CreateGroupInput{Name: "   "})
	assertAppError(t, err, http.StatusBadRequest, "group name is required")

	_, err = f.svc.Groups.Create(f.ctx, "alice", CreateGroupInput{Name: "x", Privacy: "secret"})
	assertAppError(t, err, http.StatusBadRequest, "privacy must be public or private")
}

func TestGroupReview(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RequireGroupApproval = true })

	g := f.createGroup(t, "alice", models.GroupPublic)
	assert.Equal(t, models.GroupPending, g.Status)

	// Pending groups are visible to their admins and platform admins only.
	_, err := f.svc.Groups.Get(f.ctx, "bob", g.ID.Hex())
	assertAppError(t, err, http.StatusNotFound, "group not found")
	_, err = f.svc.Groups.Get(f.ctx, "alice", g.ID.Hex())
	require.NoError(t, err)
	_, err = f.svc.Groups.Get(f.ctx, platformAdmin, g.ID.Hex())
	require.NoError(t, err)

	_, err = f.svc.Members.Join(f.ctx, "bob", g.ID.Hex())
	assertAppError(t, err, http.StatusForbidden, "this group is not accepting members")

	page, err := f.svc.Groups.List(f.ctx, GroupListQuery{Page: firstPage()})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	_, err = f.svc.Groups.SetStatus(f.ctx, "alice", g.ID.Hex(), models.GroupApproved)
	assertAppError(t, err, http.StatusForbidden, "only platform admins can review groups")

	reviewed, err := f.svc.Groups.SetStatus(f.ctx, platformAdmin, g.ID.Hex(), models.GroupApproved)
	require.NoError(t, err)
	assert.Equal(t, models.GroupApproved, reviewed.Status)
	assert.Len(t, f.notifier.to("alice", models.NotifyGroupReviewed), 1)

	f.join(t, g, "bob")

	own, err := f.svc.Groups.Create(f.ctx, platformAdmin, CreateGroupInput{Name: "Staff Hikes"})
	require.NoError(t, err)
	assert.Equal(t, models.GroupApproved, own.Status, "platform admins skip review")
}

func TestListGroupsFilters(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Groups.Create(f.ctx, "alice", CreateGroupInput{Name: "Desert Rats"})
	require.NoError(t, err)
	_, err = f.svc.Groups.Create(f.ctx, "alice", CreateGroupInput{Name: "Desert Night Walks", Privacy: models.GroupPrivate})
	require.NoError(t, err)
	_, err = f.svc.Groups.Create(f.ctx, "bob", CreateGroupInput{Name: "Coastal Trails"})
	require.NoError(t, err)

	page, err := f.svc.Groups.List(f.ctx, GroupListQuery{Query: "desert", Page: firstPage()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = f.svc.Groups.List(f.ctx, GroupListQuery{Query: "desert", Privacy: models.GroupPublic, Page: firstPage()})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, "Desert Rats", page.Items.([]models.Group)[0].Name)

	page, err = f.svc.Groups.List(f.ctx, GroupListQuery{Page: utils.PageParams{Page: 1, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.True(t, page.HasMore)
}

func TestUpdateGroup(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	f.join(t, g, "bob")

	name := "Renamed"
	_, err := f.svc.Groups.Update(f.ctx, "bob", g.ID.Hex(), UpdateGroupInput{Name: &name})
	assertAppError(t, err, http.StatusForbidden, "only group admins can edit this group")

	private := models.GroupPrivate
	updated, err := f.svc.Groups.Update(f.ctx, "alice", g.ID.Hex(), UpdateGroupInput{Name: &name, Privacy: &private})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, models.GroupPrivate, updated.Privacy)
	assert.Equal(t, g.Description, updated.Description)
}

func TestDeleteGroupCascades(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	f.join(t, g, "bob")
	e := f.createEvent(t, g, "alice")
	_, err := f.svc.Events.Attend(f.ctx, "bob", e.ID.Hex(), AttendInput{})
	require.NoError(t, err)
	p, err := f.svc.Posts.Create(f.ctx, "bob", g.ID.Hex(), CreatePostInput{Content: "trail report"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Posts.Like(f.ctx, "alice", p.ID.Hex()))
	_, err = f.svc.Messaging.SendGroupMessage(f.ctx, "bob", g.ID.Hex(), SendMessageInput{Text: "see you there"})
	require.NoError(t, err)

	err = f.svc.Groups.Delete(f.ctx, "bob", g.ID.Hex())
	assertAppError(t, err, http.StatusForbidden, "only the group owner can delete this group")

	require.NoError(t, f.svc.Groups.Delete(f.ctx, "alice", g.ID.Hex()))

	_, err = f.store.Groups().FindByID(f.ctx, g.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.store.Events().FindByID(f.ctx, e.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.store.Attendance().Find(f.ctx, e.ID, "bob")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.store.Posts().FindByID(f.ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	likes, err := f.store.Likes().Count(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, likes)
	members, err := f.store.Memberships().Count(f.ctx, g.ID, models.MembershipActive)
	require.NoError(t, err)
	assert.Zero(t, members)
	msgs, _, err := f.store.GroupMessages().List(f.ctx, g.ID, repository.MessageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, []string{"group:" + g.ID.Hex() + "/"}, f.bus.evicted())
}

func TestPlatformAdminCanDeleteGroup(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	require.NoError(t, f.svc.Groups.Delete(f.ctx, platformAdmin, g.ID.Hex()))
}

func TestReconcileRepairsDrift(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	f.join(t, g, "bob")
	e := f.createEvent(t, g, "alice")
	_, err := f.svc.Events.Attend(f.ctx, "bob", e.ID.Hex(), AttendInput{})
	require.NoError(t, err)

	require.NoError(t, f.store.Groups().SetCounters(f.ctx, g.ID, repository.GroupCounters{MemberCount: 40, PostCount: 7}))
	require.NoError(t, f.store.Events().SetCounter(f.ctx, e.ID, models.EventParticipantsCount, 12))

	counters, err := f.svc.Groups.Reconcile(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.GroupCounters{MemberCount: 2, PostCount: 0, UpcomingEventCount: 1}, counters)

	got := f.group(t, g)
	assert.Equal(t, int64(2), got.MemberCount)
	assert.Zero(t, got.PostCount)
	assert.Equal(t, int64(1), got.UpcomingEventCount)
	assert.Equal(t, int64(1), f.event(t, e).ParticipantsCount)
}

func TestReconcileAllVisitsEveryGroup(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RequireGroupApproval = true })
	a := f.createGroup(t, "alice", models.GroupPublic)
	b := f.createGroup(t, "bob", models.GroupPrivate)
	require.NoError(t, f.store.Groups().SetCounters(f.ctx, a.ID, repository.GroupCounters{MemberCount: 9}))
	require.NoError(t, f.store.Groups().SetCounters(f.ctx, b.ID, repository.GroupCounters{MemberCount: 0}))

	n, err := f.svc.Groups.ReconcileAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(1), f.group(t, a).MemberCount)
	assert.Equal(t, int64(1), f.group(t, b).MemberCount)
}

func TestNewestGroupsListFirst(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.Groups.Create(f.ctx, "alice", CreateGroupInput{Name: "First"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := f.svc.Groups.Create(f.ctx, "alice", CreateGroupInput{Name: "Second"})
	require.NoError(t, err)

	page, err := f.svc.Groups.List(f.ctx, GroupListQuery{Page: firstPage()})
	require.NoError(t, err)
	items := page.Items.([]models.Group)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)
}
