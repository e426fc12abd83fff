// Package handlers exposes the domain services over HTTP. Every handler reads
// the caller from the context set by middleware.Authenticate and answers with
// the utils.Response envelope.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/trailhub-backend/internal/auth"
	"github.com/AnshRaj112/trailhub-backend/internal/realtime"
	"github.com/AnshRaj112/trailhub-backend/internal/services"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

type Handler struct {
	svc      *services.Services
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// New wires the handlers. allowedOrigins restricts browser websocket
// upgrades; requests without an Origin header (native clients) are accepted.
func New(svc *services.Services, hub *realtime.Hub, allowedOrigins []string) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.ToLower(strings.TrimSpace(o))] = struct{}{}
	}
	return &Handler{
		svc: svc,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := strings.ToLower(strings.TrimSpace(r.Header.Get("Origin")))
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

func userID(r *http.Request) string {
	return auth.UserID(r.Context())
}

func param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// Health reports liveness. It is mounted outside authentication.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.Success(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.hub.Router().SessionCount(),
	})
}
