package handlers

import (
	"net/http"

	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

// ListNotifications handles GET /api/notifications?unread=true.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Notifications.List(r.Context(), userID(r), queryBool(r, "unread"), utils.ParsePageParams(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, page)
}

func (h *Handler) UnreadNotificationCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notifications.UnreadCount(r.Context(), userID(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Notifications.MarkRead(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "notification marked as read")
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notifications.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, map[string]int64{"updated": n})
}
