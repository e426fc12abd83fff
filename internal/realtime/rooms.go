package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Room kinds. A room name is "<kind>:<id>".
const (
	KindConversation = "conversation"
	KindGroup        = "group"
	KindUser         = "user"
	// KindControl rooms carry instructions between hubs and never reach clients.
	KindControl      = "control"
)

var evictRoom = Room(KindControl, "evict")

// Server to client event types.
const (
	EventConnected       = "connected"
	EventJoined          = "joined"
	EventLeft            = "left"
	EventMessageNew      = "message:new"
	EventNotificationNew = "notification:new"
	EventPong            = "pong"
	EventError           = "error"
)

// Client to server frame types.
const (
	FrameJoinConversation  = "join_conversation"
	FrameLeaveConversation = "leave_conversation"
	FrameJoinGroup         = "join_group"
	FrameLeaveGroup        = "leave_group"
	FramePing              = "ping"
)

func Room(kind, id string) string {
	return kind + ":" + id
}

func ConversationRoom(id string) string { return Room(KindConversation, id) }
func GroupRoom(id string) string        { return Room(KindGroup, id) }
func UserRoom(id string) string         { return Room(KindUser, id) }

// ParseRoom splits a room name into kind and id.
func ParseRoom(room string) (kind, id string, ok bool) {
	kind, id, ok = strings.Cut(room, ":")
	if !ok || kind == "" || id == "" {
		return "", "", false
	}
	return kind, id, true
}

// eviction asks every hub to drop UserID's sessions from Room. An empty
// UserID drops every session.
type eviction struct {
	Room   string `json:"room"`
	UserID string `json:"userId,omitempty"`
}

// Envelope is every frame the server writes.
type Envelope struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ClientFrame is every frame a client sends.
type ClientFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// Authorizer decides whether userID may subscribe to the room kind/id.
type Authorizer interface {
	AuthorizeRoom(ctx context.Context, userID, kind, id string) error
}
