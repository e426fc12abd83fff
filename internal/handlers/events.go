package handlers

import (
	"net/http"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/services"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in services.CreateEventInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	e, err := h.svc.Events.Create(r.Context(), userID(r), param(r, "id"), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusCreated, e)
}

// ListEvents handles GET /api/groups/{id}/events?status=Upcoming.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	status := models.EventStatus(r.URL.Query().Get("status"))
	page, err := h.svc.Events.ListByGroup(r.Context(), userID(r), param(r, "id"), status, utils.ParsePageParams(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, page)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Events.Get(r.Context(), userID(r), param(r, "id"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, e)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateEventInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	e, err := h.svc.Events.Update(r.Context(), userID(r), param(r, "id"), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, e)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Events.Delete(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "event deleted")
}

// AttendEvent records the caller as going (default) or interested.
func (h *Handler) AttendEvent(w http.ResponseWriter, r *http.Request) {
	var in services.AttendInput
	if err := utils.DecodeJSON(r, &in, true); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	a, err := h.svc.Events.Attend(r.Context(), userID(r), param(r, "id"), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, a)
}

func (h *Handler) UnattendEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Events.Unattend(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "attendance removed")
}

func (h *Handler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Events.ListAttendees(r.Context(), userID(r), param(r, "id"), utils.ParsePageParams(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, page)
}
