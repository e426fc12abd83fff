package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

func TestAttendanceScenario(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	e := f.createEvent(t, g, "alice")
	assert.Equal(t, models.EventUpcoming, e.Status)
	assert.Equal(t, int64(1), f.group(t, g).UpcomingEventCount)

	a, err := f.svc.Events.Attend(f.ctx, "carol", e.ID.Hex(), AttendInput{})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceGoing, a.Status)
	assert.Equal(t, int64(1), f.event(t, e).ParticipantsCount)

	_, err = f.svc.Events.Attend(f.ctx, "carol", e.ID.Hex(), AttendInput{})
	assertAppError(t, err, http.StatusBadRequest, "already attending")
	assert.Equal(t, int64(1), f.event(t, e).ParticipantsCount)

	require.NoError(t, f.svc.Events.Unattend(f.ctx, "carol", e.ID.Hex()))
	assert.Zero(t, f.event(t, e).ParticipantsCount)

	err = f.svc.Events.Unattend(f.ctx, "carol", e.ID.Hex())
	assertAppError(t, err, http.StatusNotFound, "not attending")
}

func TestParticipantsCountMatchesAttendance(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	e := f.createEvent(t, g, "alice")

	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		_, err := f.svc.Events.Attend(f.ctx, u, e.ID.Hex(), AttendInput{Status: models.AttendanceInterested})
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.Events.Unattend(f.ctx, "u2", e.ID.Hex()))

	active, err := f.store.Attendance().CountActive(f.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), active)
	assert.Equal(t, active, f.event(t, e).ParticipantsCount)

	page, err := f.svc.Events.ListAttendees(f.ctx, "bob", e.ID.Hex(), firstPage())
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
}

func TestCreateEventRules(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	f.join(t, g, "bob")
	start := time.Now().Add(time.Hour)

	_, err := f.svc.Events.Create(f.ctx, "bob", g.ID.Hex(), CreateEventInput{Title: "x", StartDateTime: &start})
	assertAppError(t, err, http.StatusForbidden, "only group admins can create events")

	_, err = f.svc.Events.Create(f.ctx, "alice", g.ID.Hex(), CreateEventInput{Title: "  ", StartDateTime: &start})
	assertAppError(t, err, http.StatusBadRequest, "title is required")

	_, err = f.svc.Events.Create(f.ctx, "alice", g.ID.Hex(), CreateEventInput{Title: "Loop"})
	assertAppError(t, err, http.StatusBadRequest, "startDateTime is required")

	_, err = f.svc.Events.Create(f.ctx, "alice", g.ID.Hex(), CreateEventInput{Title: "Loop", StartDateTime: &start, Difficulty: "brutal"})
	assertAppError(t, err, http.StatusBadRequest, "")

	assert.Zero(t, f.group(t, g).UpcomingEventCount)
}

func TestEventCreatedNotifiesMembers(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	f.join(t, g, "bob")
	f.join(t, g, "carol")

	f.createEvent(t, g, "alice")

	assert.Eventually(t, func() bool {
		return len(f.notifier.to("bob", models.NotifyEventCreated)) == 1 &&
			len(f.notifier.to("carol", models.NotifyEventCreated)) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, f.notifier.to("alice", models.NotifyEventCreated), "the host is not notified of their own event")
}

func TestCannotAttendFinishedEvents(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	e := f.createEvent(t, g, "alice")

	cancelled := models.EventCancelled
	updated, err := f.svc.Events.Update(f.ctx, "alice", e.ID.Hex(), UpdateEventInput{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, models.EventCancelled, updated.Status)

	_, err = f.svc.Events.Attend(f.ctx, "bob", e.ID.Hex(), AttendInput{})
	assertAppError(t, err, http.StatusBadRequest, "cannot attend a cancelled or completed event")
}

func TestStatusChangesMoveUpcomingCount(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	e := f.createEvent(t, g, "alice")
	f.createEvent(t, g, "alice")
	assert.Equal(t, int64(2), f.group(t, g).UpcomingEventCount)

	set := func(s models.EventStatus) {
		t.Helper()
		_, err := f.svc.Events.Update(f.ctx, "alice", e.ID.Hex(), UpdateEventInput{Status: &s})
		require.NoError(t, err)
	}

	set(models.EventCompleted)
	assert.Equal(t, int64(1), f.group(t, g).UpcomingEventCount)
	set(models.EventCancelled)
	assert.Equal(t, int64(1), f.group(t, g).UpcomingEventCount)
	set(models.EventUpcoming)
	assert.Equal(t, int64(2), f.group(t, g).UpcomingEventCount)
	set(models.EventUpcoming)
	assert.Equal(t, int64(2), f.group(t, g).UpcomingEventCount)

	upcoming, err := f.store.Events().Count(f.ctx, g.ID, models.EventUpcoming)
	require.NoError(t, err)
	assert.Equal(t, upcoming, f.group(t, g).UpcomingEventCount)
}

func TestRescheduleNotifiesAttendees(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	e := f.createEvent(t, g, "alice")
	_, err := f.svc.Events.Attend(f.ctx, "bob", e.ID.Hex(), AttendInput{})
	require.NoError(t, err)

	later := time.Now().Add(96 * time.Hour)
	_, err = f.svc.Events.Update(f.ctx, "alice", e.ID.Hex(), UpdateEventInput{StartDateTime: &later})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(f.notifier.to("bob", models.NotifyEventUpdated)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestOnlyHostOrAdminEditsEvent(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	f.join(t, g, "bob")
	e := f.createEvent(t, g, "alice")

	title := "Hijacked"
	_, err := f.svc.Events.Update(f.ctx, "bob", e.ID.Hex(), UpdateEventInput{Title: &title})
	assertAppError(t, err, http.StatusForbidden, "only the host or a group admin can change this event")

	err = f.svc.Events.Delete(f.ctx, "bob", e.ID.Hex())
	assertAppError(t, err, http.StatusForbidden, "")
}

func TestDeleteEventRemovesAttendance(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPublic)
	e := f.createEvent(t, g, "alice")
	for _, u := range []string{"bob", "carol"} {
		_, err := f.svc.Events.Attend(f.ctx, u, e.ID.Hex(), AttendInput{})
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.Events.Delete(f.ctx, "alice", e.ID.Hex()))

	_, err := f.store.Events().FindByID(f.ctx, e.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.store.Attendance().Find(f.ctx, e.ID, "bob")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Zero(t, f.group(t, g).UpcomingEventCount)

	_, err = f.svc.Events.Get(f.ctx, "alice", e.ID.Hex())
	assertAppError(t, err, http.StatusNotFound, "event not found")
}

func TestPrivateGroupEventsNeedMembership(t *testing.T) {
	f := newFixture(t)
	g := f.createGroup(t, "alice", models.GroupPrivate)
	e := f.createEvent(t, g, "alice")

	_, err := f.svc.Events.Get(f.ctx, "stranger", e.ID.Hex())
	assertAppError(t, err, http.StatusNotFound, "event not found")
	_, err = f.svc.Events.Attend(f.ctx, "stranger", e.ID.Hex(), AttendInput{})
	assertAppError(t, err, http.StatusForbidden, "")
	_, err = f.svc.Events.ListByGroup(f.ctx, "stranger", g.ID.Hex(), "", firstPage())
	assertAppError(t, err, http.StatusForbidden, "")

	page, err := f.svc.Events.ListByGroup(f.ctx, "alice", g.ID.Hex(), models.EventUpcoming, firstPage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}
