package handlers

import (
	"net/http"
	"strings"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/services"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

// CreateGroup handles POST /api/groups. The caller becomes the owner.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var in services.CreateGroupInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	g, err := h.svc.Groups.Create(r.Context(), userID(r), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusCreated, g)
}

// ListGroups handles GET /api/groups?q=&privacy=&page=&limit=.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	q := services.GroupListQuery{
		Query:   strings.TrimSpace(r.URL.Query().Get("q")),
		Privacy: models.GroupPrivacy(strings.ToLower(r.URL.Query().Get("privacy"))),
		Page:    utils.ParsePageParams(r),
	}
	page, err := h.svc.Groups.List(r.Context(), q)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, page)
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Groups.Get(r.Context(), userID(r), param(r, "id"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, g)
}

func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateGroupInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	g, err := h.svc.Groups.Update(r.Context(), userID(r), param(r, "id"), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, g)
}

// DeleteGroup removes the group and everything scoped to it.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Groups.Delete(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "group deleted")
}

type groupStatusRequest struct {
	Status models.GroupStatus `json:"status"`
}

// SetGroupStatus handles PATCH /api/admin/groups/{id}/status for platform admins.
func (h *Handler) SetGroupStatus(w http.ResponseWriter, r *http.Request) {
	var req groupStatusRequest
	if err := utils.DecodeJSON(r, &req, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	g, err := h.svc.Groups.SetStatus(r.Context(), userID(r), param(r, "id"), req.Status)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, g)
}
