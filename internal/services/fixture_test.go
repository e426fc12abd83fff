package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository/memory"
	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

const platformAdmin = "root"

type publishedEvent struct {
	Room  string
	Event string
	Data  interface{}
}

// recordingBroadcaster remembers every publish. When err is set Publish
// records the call and then fails. onPublish runs before recording.
type recordingBroadcaster struct {
	mu        sync.Mutex
	events    []publishedEvent
	evictions []string
	err       error
	onPublish func(room string, data interface{})
}

func (b *recordingBroadcaster) Publish(_ context.Context, room, eventType string, data interface{}) error {
	if b.onPublish != nil {
		b.onPublish(room, data)
	}
	b.mu.Lock()
	b.events = append(b.events, publishedEvent{Room: room, Event: eventType, Data: data})
	b.mu.Unlock()
	return b.err
}

func (b *recordingBroadcaster) Evict(_ context.Context, room, userID string) error {
	b.mu.Lock()
	b.evictions = append(b.evictions, room+"/"+userID)
	b.mu.Unlock()
	return b.err
}

func (b *recordingBroadcaster) evicted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.evictions...)
}

func (b *recordingBroadcaster) snapshot() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedEvent(nil), b.events...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note models.Notification) {
	if skipNotification(note) {
		return
	}
	n.mu.Lock()
	n.notes = append(n.notes, note)
	n.mu.Unlock()
}

// to returns the notifications of type t addressed to userID.
func (n *recordingNotifier) to(userID string, t models.NotificationType) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, note := range n.notes {
		if note.UserID == userID && note.Type == t {
			out = append(out, note)
		}
	}
	return out
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	svc      *Services
	notifier *recordingNotifier
	bus      *recordingBroadcaster
}

func newFixture(t *testing.T, configure ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.New(),
		notifier: &recordingNotifier{},
		bus:      &recordingBroadcaster{},
	}
	opts := Options{
		Policy:      NewPolicy([]string{platformAdmin}),
		Notifier:    f.notifier,
		Broadcaster: f.bus,
	}
	for _, c := range configure {
		c(&opts)
	}
	f.svc = New(f.store, opts)
	return f
}

func (f *fixture) createGroup(t *testing.T, owner string, privacy models.GroupPrivacy) *models.Group {
	t.Helper()
	g, err := f.svc.Groups.Create(f.ctx, owner, CreateGroupInput{Name: "Cascade Ramblers", Privacy: privacy})
	require.NoError(t, err)
	return g
}

func (f *fixture) group(t *testing.T, g *models.Group) *models.Group {
	t.Helper()
	got, err := f.store.Groups().FindByID(f.ctx, g.ID)
	require.NoError(t, err)
	return got
}

func (f *fixture) join(t *testing.T, g *models.Group, userID string) {
	t.Helper()
	_, err := f.svc.Members.Join(f.ctx, userID, g.ID.Hex())
	require.NoError(t, err)
}

func (f *fixture) createEvent(t *testing.T, g *models.Group, host string) *models.Event {
	t.Helper()
	start := time.Now().Add(72 * time.Hour)
	e, err := f.svc.Events.Create(f.ctx, host, g.ID.Hex(), CreateEventInput{
		Title:         "Sunrise on Mount Si",
		Location:      "Mount Si trailhead",
		Difficulty:    models.DifficultyModerate,
		StartDateTime: &start,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) event(t *testing.T, e *models.Event) *models.Event {
	t.Helper()
	got, err := f.store.Events().FindByID(f.ctx, e.ID)
	require.NoError(t, err)
	return got
}

func firstPage() utils.PageParams {
	return utils.PageParams{Page: 1, Limit: utils.DefaultPageLimit}
}

// assertAppError checks both the status and the client-facing message.
func assertAppError(t *testing.T, err error, status int, message string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.Status)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}
