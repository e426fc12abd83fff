package handlers

import (
	"net/http"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

func (h *Handler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Members.Join(r.Context(), userID(r), param(r, "id"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, m)
}

type joinRequestBody struct {
	Message string `json:"message"`
}

// RequestToJoin files a pending request. The body is optional.
func (h *Handler) RequestToJoin(w http.ResponseWriter, r *http.Request) {
	var body joinRequestBody
	if err := utils.DecodeJSON(r, &body, true); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	m, err := h.svc.Members.RequestToJoin(r.Context(), userID(r), param(r, "id"), body.Message)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusCreated, m)
}

func (h *Handler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Members.Leave(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "left group")
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Members.ListMembers(r.Context(), userID(r), param(r, "id"), utils.ParsePageParams(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, page)
}

func (h *Handler) ListJoinRequests(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Members.ListRequests(r.Context(), userID(r), param(r, "id"), utils.ParsePageParams(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, page)
}

func (h *Handler) ApproveJoinRequest(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Members.Approve(r.Context(), userID(r), param(r, "id"), param(r, "reqId"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, m)
}

func (h *Handler) DenyJoinRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Members.Deny(r.Context(), userID(r), param(r, "id"), param(r, "reqId")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "join request denied")
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Members.RemoveMember(r.Context(), userID(r), param(r, "id"), param(r, "userId")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "member removed")
}

func (h *Handler) BanMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Members.Ban(r.Context(), userID(r), param(r, "id"), param(r, "userId")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "member banned")
}

type roleRequest struct {
	Role models.MemberRole `json:"role"`
}

func (h *Handler) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := utils.DecodeJSON(r, &req, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	m, err := h.svc.Members.SetRole(r.Context(), userID(r), param(r, "id"), param(r, "userId"), req.Role)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, m)
}
