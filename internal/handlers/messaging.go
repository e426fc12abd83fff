package handlers

import (
	"net/http"

	"github.com/AnshRaj112/trailhub-backend/internal/services"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

// StartConversation returns the existing direct conversation with the other
// participant or creates it (201).
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var in services.StartConversationInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	conv, created, err := h.svc.Messaging.GetOrCreateConversation(r.Context(), userID(r), in.ParticipantID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.Success(w, status, conv)
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Messaging.ListConversations(r.Context(), userID(r), utils.ParsePageParams(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, page)
}

// ListMessages handles GET /api/conversations/{id}/messages?before=&limit=.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	cursor, err := utils.ParseCursorParams(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	history, err := h.svc.Messaging.ListMessages(r.Context(), userID(r), param(r, "id"), cursor)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, history)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var in services.SendMessageInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	msg, err := h.svc.Messaging.SendMessage(r.Context(), userID(r), param(r, "id"), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusCreated, msg)
}

func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Messaging.MarkAsRead(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "conversation marked as read")
}

func (h *Handler) ListGroupMessages(w http.ResponseWriter, r *http.Request) {
	cursor, err := utils.ParseCursorParams(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	history, err := h.svc.Messaging.ListGroupMessages(r.Context(), userID(r), param(r, "id"), cursor)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, history)
}

func (h *Handler) SendGroupMessage(w http.ResponseWriter, r *http.Request) {
	var in services.SendMessageInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	msg, err := h.svc.Messaging.SendGroupMessage(r.Context(), userID(r), param(r, "id"), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusCreated, msg)
}
