// Package memory is an in-process repository.Store. It honours the same
// unique pairs, floored counters and transaction rollback as the Mongo
// driver, and serves STORE_DRIVER=memory as well as the test suites.
package memory

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

type txKey struct{}

type state struct {
	groups        map[primitive.ObjectID]models.Group
	memberships   map[primitive.ObjectID]models.Membership
	events        map[primitive.ObjectID]models.Event
	attendance    map[primitive.ObjectID]models.EventAttendance
	posts         map[primitive.ObjectID]models.Post
	likes         map[primitive.ObjectID]models.PostLike
	comments      map[primitive.ObjectID]models.Comment
	conversations map[primitive.ObjectID]models.Conversation
	messages      map[primitive.ObjectID]models.Message
	groupMessages map[primitive.ObjectID]models.GroupMessage
	notifications map[primitive.ObjectID]models.Notification
	users         map[string]models.UserProfile
}

func newState() *state {
	return &state{
		groups:        make(map[primitive.ObjectID]models.Group),
		memberships:   make(map[primitive.ObjectID]models.Membership),
		events:        make(map[primitive.ObjectID]models.Event),
		attendance:    make(map[primitive.ObjectID]models.EventAttendance),
		posts:         make(map[primitive.ObjectID]models.Post),
		likes:         make(map[primitive.ObjectID]models.PostLike),
		comments:      make(map[primitive.ObjectID]models.Comment),
		conversations: make(map[primitive.ObjectID]models.Conversation),
		messages:      make(map[primitive.ObjectID]models.Message),
		groupMessages: make(map[primitive.ObjectID]models.GroupMessage),
		notifications: make(map[primitive.ObjectID]models.Notification),
		users:         make(map[string]models.UserProfile),
	}
}

// clone copies every map. Slice fields are shared because writers always
// replace slices instead of editing them in place.
func (s *state) clone() *state {
	return &state{
		groups:        copyMap(s.groups),
		memberships:   copyMap(s.memberships),
		events:        copyMap(s.events),
		attendance:    copyMap(s.attendance),
		posts:         copyMap(s.posts),
		likes:         copyMap(s.likes),
		comments:      copyMap(s.comments),
		conversations: copyMap(s.conversations),
		messages:      copyMap(s.messages),
		groupMessages: copyMap(s.groupMessages),
		notifications: copyMap(s.notifications),
		users:         copyMap(s.users),
	}
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type Store struct {
	mu   sync.Mutex
	data *state
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newState()}
}

// lock takes the store mutex unless ctx already belongs to a transaction
// on this store.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTransaction serializes fn against every other store call and restores
// the previous state when fn fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) EnsureIndexes(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

// SeedUser stores a profile the way the external user service would.
func (s *Store) SeedUser(p models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[p.ID] = p
}

func (s *Store) Groups() repository.GroupRepository               { return groupRepo{s} }
func (s *Store) Memberships() repository.MembershipRepository     { return membershipRepo{s} }
func (s *Store) Events() repository.EventRepository               { return eventRepo{s} }
func (s *Store) Attendance() repository.AttendanceRepository      { return attendanceRepo{s} }
func (s *Store) Posts() repository.PostRepository                 { return postRepo{s} }
func (s *Store) Likes() repository.LikeRepository                 { return likeRepo{s} }
func (s *Store) Comments() repository.CommentRepository           { return commentRepo{s} }
func (s *Store) Conversations() repository.ConversationRepository { return conversationRepo{s} }
func (s *Store) Messages() repository.MessageRepository           { return messageRepo{s} }
func (s *Store) GroupMessages() repository.GroupMessageRepository { return groupMessageRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }

func ensureID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func floorAdd(v, delta int64) int64 {
	v += delta
	if v < 0 {
		return 0
	}
	return v
}

// page sorts items with less and returns the requested window plus the total.
func page[T any](items []T, less func(a, b T) bool, skip, limit int64) ([]T, int64) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	total := int64(len(items))
	if skip < 0 {
		skip = 0
	}
	if skip >= total {
		return []T{}, total
	}
	end := total
	if limit > 0 && skip+limit < total {
		end = skip + limit
	}
	return items[skip:end], total
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func idSet(ids []primitive.ObjectID) map[primitive.ObjectID]struct{} {
	set := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
