package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AnshRaj112/trailhub-backend/internal/auth"
	"github.com/AnshRaj112/trailhub-backend/internal/handlers"
	"github.com/AnshRaj112/trailhub-backend/internal/middleware"
)

type Options struct {
	Verifier          auth.Verifier
	AllowedOrigins    []string
	Production        bool
	RateLimitRPS      float64
	RateLimitBurst    int
	MessagesPerMinute int
	RequestTimeout    time.Duration
	// AbuseGuard is optional; it needs Redis.
	AbuseGuard *middleware.AbuseGuard
}

// NewRouter builds the full HTTP surface: /health, the REST API under /api
// and the websocket endpoint at /ws.
func NewRouter(h *handlers.Handler, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(opts.Production))
	r.Use(middleware.IPRateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	if opts.AbuseGuard != nil {
		r.Use(opts.AbuseGuard.Middleware)
	}

	r.Get("/health", h.Health)

	authenticated := middleware.Authenticate(opts.Verifier)

	// The websocket outlives any request timeout.
	r.With(authenticated).Get("/ws", h.WebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticated)
		r.Use(middleware.Timeout(opts.RequestTimeout))
		SetupRoutes(r, h, middleware.MessageRateLimit(opts.MessagesPerMinute))
	})

	return r
}

// SetupRoutes registers the API routes on r, which is already mounted at /api.
func SetupRoutes(r chi.Router, h *handlers.Handler, messageLimit func(http.Handler) http.Handler) {
	// Groups
	r.Post("/groups", h.CreateGroup)
	r.Get("/groups", h.ListGroups)
	r.Get("/groups/{id}", h.GetGroup)
	r.Put("/groups/{id}", h.UpdateGroup)
	r.Delete("/groups/{id}", h.DeleteGroup)

	// Membership
	r.Post("/groups/{id}/join", h.JoinGroup)
	r.Post("/groups/{id}/request-join", h.RequestToJoin)
	r.Delete("/groups/{id}/leave", h.LeaveGroup)
	r.Get("/groups/{id}/members", h.ListMembers)
	r.Get("/groups/{id}/requests", h.ListJoinRequests)
	r.Patch("/groups/{id}/requests/{reqId}/approve", h.ApproveJoinRequest)
	r.Patch("/groups/{id}/requests/{reqId}/deny", h.DenyJoinRequest)
	r.Delete("/groups/{id}/members/{userId}", h.RemoveMember)
	r.Patch("/groups/{id}/members/{userId}/role", h.SetMemberRole)
	r.Patch("/groups/{id}/members/{userId}/ban", h.BanMember)

	// Events
	r.Get("/groups/{id}/events", h.ListEvents)
	r.Post("/groups/{id}/events", h.CreateEvent)
	r.Get("/events/{id}", h.GetEvent)
	r.Put("/events/{id}", h.UpdateEvent)
	r.Delete("/events/{id}", h.DeleteEvent)
	r.Post("/events/{id}/attend", h.AttendEvent)
	r.Post("/events/{id}/unattend", h.UnattendEvent)
	r.Get("/events/{id}/attendees", h.ListAttendees)

	// Posts
	r.Get("/groups/{id}/posts", h.ListPosts)
	r.Post("/groups/{id}/posts", h.CreatePost)
	r.Put("/posts/{id}", h.UpdatePost)
	r.Delete("/posts/{id}", h.DeletePost)
	r.Post("/posts/{id}/like", h.LikePost)
	r.Delete("/posts/{id}/like", h.UnlikePost)
	r.Get("/posts/{id}/comments", h.ListComments)
	r.Post("/posts/{id}/comments", h.AddComment)
	r.Delete("/comments/{id}", h.DeleteComment)

	// Messaging
	r.Get("/conversations", h.ListConversations)
	r.Post("/conversations", h.StartConversation)
	r.Get("/conversations/{id}/messages", h.ListMessages)
	r.With(messageLimit).Post("/conversations/{id}/messages", h.SendMessage)
	r.Patch("/conversations/{id}/read", h.MarkConversationRead)
	r.Get("/groups/{id}/messages", h.ListGroupMessages)
	r.With(messageLimit).Post("/groups/{id}/messages", h.SendGroupMessage)

	// Notifications
	r.Get("/notifications", h.ListNotifications)
	r.Get("/notifications/unread-count", h.UnreadNotificationCount)
	r.Patch("/notifications/read-all", h.MarkAllNotificationsRead)
	r.Patch("/notifications/{id}/read", h.MarkNotificationRead)

	// Platform administration
	r.Patch("/admin/groups/{id}/status", h.SetGroupStatus)
}
