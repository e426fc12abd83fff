package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
)

const maxFrameSize = 8 << 10

// Publisher encodes events and hands them to the bus. Worker processes that
// hold no sockets use it on its own.
type Publisher struct {
	bus Bus
}

func NewPublisher(bus Bus) *Publisher {
	return &Publisher{bus: bus}
}

// Publish sends eventType with data to everyone subscribed to room.
func (p *Publisher) Publish(ctx context.Context, room, eventType string, data interface{}) error {
	payload, err := encode(room, eventType, data)
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, room, payload)
}

// Evict removes userID's sessions from room on every instance. An empty
// userID empties the room.
func (p *Publisher) Evict(ctx context.Context, room, userID string) error {
	payload, err := json.Marshal(eviction{Room: room, UserID: userID})
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, evictRoom, payload)
}

// Hub serves websocket sessions and delivers bus traffic to them.
type Hub struct {
	*Publisher
	router *Router
	auth   Authorizer
}

func NewHub(bus Bus, auth Authorizer) *Hub {
	return &Hub{Publisher: NewPublisher(bus), router: NewRouter(), auth: auth}
}

// Start subscribes the hub to the bus.
func (h *Hub) Start(ctx context.Context) error {
	return h.bus.Subscribe(ctx, h.deliver)
}

func (h *Hub) deliver(room string, payload []byte) {
	kind, _, ok := ParseRoom(room)
	if !ok {
		slog.Warn("realtime frame for malformed room dropped", "room", room)
		return
	}
	if kind != KindControl {
		h.router.Broadcast(room, payload)
		return
	}
	if room != evictRoom {
		return
	}
	var ev eviction
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Room == "" {
		slog.Warn("invalid eviction dropped", "error", err)
		return
	}
	for _, conn := range h.router.Evict(ev.Room, ev.UserID) {
		h.reply(conn, EventLeft, ev.Room, nil)
	}
}

// Router exposes session state, mainly for tests and health checks.
func (h *Hub) Router() *Router {
	return h.router
}

// Close drops every session and releases the bus.
func (h *Hub) Close() error {
	h.router.Close()
	return h.bus.Close()
}

// Serve runs one websocket session for userID until the socket closes or
// ctx is done. The user's own room is joined automatically.
func (h *Hub) Serve(ctx context.Context, ws *websocket.Conn, userID string) {
	conn := NewConnection(userID, ws)
	h.router.Attach(conn)
	h.router.Join(UserRoom(userID), conn)
	defer func() {
		h.router.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "bye")
	}()

	h.reply(conn, EventConnected, "", map[string]string{"userId": userID})

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		select {
		case <-ctx.Done():
			conn.Close(websocket.CloseGoingAway, "server shutdown")
		case <-conn.Done():
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read failed", "user_id", userID, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		h.handleFrame(ctx, conn, data)
	}
}

func (h *Hub) handleFrame(ctx context.Context, conn *Connection, data []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.fail(conn, "", "invalid frame")
		return
	}

	var kind string
	switch frame.Type {
	case FramePing:
		h.reply(conn, EventPong, "", nil)
		return
	case FrameJoinConversation, FrameLeaveConversation:
		kind = KindConversation
	case FrameJoinGroup, FrameLeaveGroup:
		kind = KindGroup
	default:
		h.fail(conn, "", "unknown frame type")
		return
	}

	if frame.RoomID == "" {
		h.fail(conn, "", "roomId is required")
		return
	}
	room := Room(kind, frame.RoomID)

	if frame.Type == FrameLeaveConversation || frame.Type == FrameLeaveGroup {
		h.router.Leave(room, conn)
		h.reply(conn, EventLeft, room, nil)
		return
	}

	if h.auth != nil {
		if err := h.auth.AuthorizeRoom(ctx, conn.UserID, kind, frame.RoomID); err != nil {
			h.fail(conn, room, errorMessage(err))
			return
		}
	}
	h.router.Join(room, conn)
	h.reply(conn, EventJoined, room, nil)
}

func (h *Hub) reply(conn *Connection, eventType, room string, data interface{}) {
	payload, err := encode(room, eventType, data)
	if err != nil {
		slog.Error("encode realtime frame", "type", eventType, "error", err)
		return
	}
	_ = conn.Send(payload)
}

func (h *Hub) fail(conn *Connection, room, message string) {
	payload, _ := json.Marshal(Envelope{Type: EventError, Room: room, Message: message, Timestamp: time.Now().UTC()})
	_ = conn.Send(payload)
}

func encode(room, eventType string, data interface{}) ([]byte, error) {
	env := Envelope{Type: eventType, Room: room, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// errorMessage hides internal failures from the client.
func errorMessage(err error) string {
	if apperr.StatusOf(err) >= http.StatusInternalServerError {
		slog.Error("authorize room", "error", err)
		return "could not join room"
	}
	return apperr.MessageOf(err)
}
