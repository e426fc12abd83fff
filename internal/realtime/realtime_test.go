package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
)

type fakeSocket struct {
	mu     sync.Mutex
	frames chan []byte
	closed bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{frames: make(chan []byte, 128)}
}

func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.TextMessage {
		f.frames <- data
	}
	return nil
}

func (f *fakeSocket) WriteControl(int, []byte, time.Time) error { return nil }

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSocket) next(t *testing.T) Envelope {
	t.Helper()
	select {
	case raw := <-f.frames:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return Envelope{}
	}
}

type roomAuth struct {
	allowed map[string]bool
}

func (a roomAuth) AuthorizeRoom(_ context.Context, userID, kind, id string) error {
	if a.allowed[userID+"@"+Room(kind, id)] {
		return nil
	}
	return apperr.Forbidden("you are not a participant of this conversation")
}

func TestParseRoom(t *testing.T) {
	kind, id, ok := ParseRoom("conversation:abc")
	assert.True(t, ok)
	assert.Equal(t, KindConversation, kind)
	assert.Equal(t, "abc", id)

	_, _, ok = ParseRoom("nocolon")
	assert.False(t, ok)
	_, _, ok = ParseRoom("group:")
	assert.False(t, ok)
}

func TestRouterBroadcastReachesEverySessionInRoom(t *testing.T) {
	r := NewRouter()
	defer r.Close()

	s1, s2, s3 := newFakeSocket(), newFakeSocket(), newFakeSocket()
	a1 := NewConnection("alice", s1)
	a2 := NewConnection("alice", s2)
	b := NewConnection("bob", s3)
	for _, c := range []*Connection{a1, a2, b} {
		r.Attach(c)
	}
	r.Join("group:g1", a1)
	r.Join("group:g1", a2)

	assert.Equal(t, 2, r.Broadcast("group:g1", []byte(`{"type":"x"}`)))
	assert.Equal(t, 0, r.Broadcast("group:none", []byte(`{}`)))

	r.Leave("group:g1", a2)
	assert.False(t, r.InRoom("group:g1", a2))
	assert.Equal(t, 1, r.Broadcast("group:g1", []byte(`{}`)))

	r.Detach(a1)
	assert.Equal(t, 0, r.Broadcast("group:g1", []byte(`{}`)))
	assert.Equal(t, 2, r.SessionCount())
}

func TestRouterJoinIgnoresDetachedSession(t *testing.T) {
	r := NewRouter()
	c := NewConnection("u", newFakeSocket())
	r.Join("group:g", c)
	assert.False(t, r.InRoom("group:g", c))
}

func TestConnectionSendAfterClose(t *testing.T) {
	sock := newFakeSocket()
	c := NewConnection("u", sock)
	c.Close(websocket.CloseNormalClosure, "bye")
	c.Close(websocket.CloseNormalClosure, "again")
	assert.ErrorIs(t, c.Send([]byte("x")), ErrConnectionClosed)
	assert.True(t, sock.closed)
}

func TestHubJoinRequiresAuthorization(t *testing.T) {
	hub := NewHub(NewLocalBus(), roomAuth{allowed: map[string]bool{"alice@conversation:c1": true}})
	require.NoError(t, hub.Start(context.Background()))
	defer hub.Close()

	sock := newFakeSocket()
	conn := NewConnection("alice", sock)
	hub.Router().Attach(conn)

	hub.handleFrame(context.Background(), conn, []byte(`{"type":"join_conversation","roomId":"c2"}`))
	env := sock.next(t)
	assert.Equal(t, EventError, env.Type)
	assert.Equal(t, "you are not a participant of this conversation", env.Message)
	assert.False(t, hub.Router().InRoom("conversation:c2", conn))

	hub.handleFrame(context.Background(), conn, []byte(`{"type":"join_conversation","roomId":"c1"}`))
	env = sock.next(t)
	assert.Equal(t, EventJoined, env.Type)
	assert.Equal(t, "conversation:c1", env.Room)

	require.NoError(t, hub.Publish(context.Background(), "conversation:c1", EventMessageNew, map[string]string{"text": "hi"}))
	env = sock.next(t)
	assert.Equal(t, EventMessageNew, env.Type)
	assert.JSONEq(t, `{"text":"hi"}`, string(env.Data))

	hub.handleFrame(context.Background(), conn, []byte(`{"type":"leave_conversation","roomId":"c1"}`))
	assert.Equal(t, EventLeft, sock.next(t).Type)
	assert.False(t, hub.Router().InRoom("conversation:c1", conn))
}

func TestHubRejectsMalformedFrames(t *testing.T) {
	hub := NewHub(NewLocalBus(), nil)
	sock := newFakeSocket()
	conn := NewConnection("u", sock)
	hub.Router().Attach(conn)
	defer hub.Close()

	hub.handleFrame(context.Background(), conn, []byte(`not json`))
	assert.Equal(t, "invalid frame", sock.next(t).Message)

	hub.handleFrame(context.Background(), conn, []byte(`{"type":"dance"}`))
	assert.Equal(t, "unknown frame type", sock.next(t).Message)

	hub.handleFrame(context.Background(), conn, []byte(`{"type":"join_group"}`))
	assert.Equal(t, "roomId is required", sock.next(t).Message)

	hub.handleFrame(context.Background(), conn, []byte(`{"type":"ping"}`))
	assert.Equal(t, EventPong, sock.next(t).Type)
}

func TestHubServeOverWebsocket(t *testing.T) {
	hub := NewHub(NewLocalBus(), roomAuth{allowed: map[string]bool{"bob@group:g1": true}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.Start(ctx))
	defer hub.Close()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(ctx, ws, "bob")
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	read := func() Envelope {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
		var env Envelope
		require.NoError(t, client.ReadJSON(&env))
		return env
	}

	assert.Equal(t, EventConnected, read().Type)

	require.NoError(t, hub.Publish(ctx, UserRoom("bob"), EventNotificationNew, map[string]string{"type": "join_approved"}))
	assert.Equal(t, EventNotificationNew, read().Type)

	require.NoError(t, client.WriteJSON(ClientFrame{Type: FrameJoinGroup, RoomID: "g1"}))
	assert.Equal(t, EventJoined, read().Type)

	require.NoError(t, hub.Publish(ctx, GroupRoom("g1"), EventMessageNew, map[string]string{"text": "summit"}))
	env := read()
	assert.Equal(t, EventMessageNew, env.Type)
	assert.Equal(t, "group:g1", env.Room)
}

func TestRouterEvict(t *testing.T) {
	r := NewRouter()
	defer r.Close()

	a1 := NewConnection("alice", newFakeSocket())
	a2 := NewConnection("alice", newFakeSocket())
	b := NewConnection("bob", newFakeSocket())
	for _, c := range []*Connection{a1, a2, b} {
		r.Attach(c)
		r.Join("group:g1", c)
	}
	r.Join("group:g2", a1)

	evicted := r.Evict("group:g1", "alice")
	assert.Len(t, evicted, 2)
	assert.False(t, r.InRoom("group:g1", a1))
	assert.False(t, r.InRoom("group:g1", a2))
	assert.True(t, r.InRoom("group:g1", b))
	assert.True(t, r.InRoom("group:g2", a1))

	assert.Len(t, r.Evict("group:g1", ""), 1)
	assert.Equal(t, 0, r.Broadcast("group:g1", []byte(`{}`)))
	assert.Empty(t, r.Evict("group:missing", "alice"))
}

func TestHubEvictionTravelsOverBus(t *testing.T) {
	hub := NewHub(NewLocalBus(), nil)
	require.NoError(t, hub.Start(context.Background()))
	defer hub.Close()

	sock := newFakeSocket()
	conn := NewConnection("bob", sock)
	hub.Router().Attach(conn)
	hub.Router().Join(UserRoom("bob"), conn)
	hub.handleFrame(context.Background(), conn, []byte(`{"type":"join_group","roomId":"g1"}`))
	require.Equal(t, EventJoined, sock.next(t).Type)

	// A separate publisher stands in for another instance sharing the bus.
	remote := NewPublisher(hub.bus)
	require.NoError(t, remote.Evict(context.Background(), GroupRoom("g1"), "bob"))

	env := sock.next(t)
	assert.Equal(t, EventLeft, env.Type)
	assert.Equal(t, "group:g1", env.Room)
	assert.False(t, hub.Router().InRoom("group:g1", conn))

	require.NoError(t, hub.Publish(context.Background(), GroupRoom("g1"), EventMessageNew, map[string]string{"text": "hi"}))
	require.NoError(t, hub.Publish(context.Background(), "control:unknown", EventMessageNew, nil))
	require.NoError(t, hub.Publish(context.Background(), UserRoom("bob"), EventPong, nil))
	assert.Equal(t, EventPong, sock.next(t).Type)
}
