package handlers

import (
	"net/http"

	"github.com/AnshRaj112/trailhub-backend/internal/services"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in services.CreatePostInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	p, err := h.svc.Posts.Create(r.Context(), userID(r), param(r, "id"), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusCreated, p)
}

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Posts.ListByGroup(r.Context(), userID(r), param(r, "id"), utils.ParsePageParams(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, page)
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var in services.UpdatePostInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	p, err := h.svc.Posts.Update(r.Context(), userID(r), param(r, "id"), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, p)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Posts.Delete(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "post deleted")
}

func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Posts.Like(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "post liked")
}

func (h *Handler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Posts.Unlike(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "like removed")
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var in services.CommentInput
	if err := utils.DecodeJSON(r, &in, false); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	c, err := h.svc.Posts.AddComment(r.Context(), userID(r), param(r, "id"), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusCreated, c)
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Posts.ListComments(r.Context(), userID(r), param(r, "id"), utils.ParsePageParams(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.Success(w, http.StatusOK, page)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Posts.DeleteComment(r.Context(), userID(r), param(r, "id")); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.SuccessMessage(w, http.StatusOK, "comment deleted")
}
