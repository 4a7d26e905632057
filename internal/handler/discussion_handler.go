package handler

import (
	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DiscussionHandler handles discussion lifecycle endpoints
type DiscussionHandler struct {
	discussions *service.DiscussionService
	log         *zap.Logger
}

func NewDiscussionHandler(discussions *service.DiscussionService, log *zap.Logger) *DiscussionHandler {
	return &DiscussionHandler{discussions: discussions, log: log}
}

// Create godoc
// @Summary Create a discussion
// @Description The caller becomes the admin. Returns the discussion including its invite code.
// @Tags Discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateDiscussionRequest true "Create discussion request"
// @Success 201 {object} response.APIResponse{data=model.Discussion}
// @Failure 400 {object} response.APIResponse
// @Router /discussions [post]
func (h *DiscussionHandler) Create(c *gin.Context) {
	var req model.CreateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	d, err := h.discussions.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Created(c, d)
}

// ListMine godoc
// @Summary List the caller's discussions
// @Tags Discussions
// @Produce json
// @Security BearerAuth
// @Param archived query bool false "Archived discussions only"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Success 200 {object} response.APIResponse{data=[]model.Discussion}
// @Router /discussions [get]
func (h *DiscussionHandler) ListMine(c *gin.Context) {
	var req model.DiscussionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	items, err := h.discussions.ListMine(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, items)
}

// ListPublic godoc
// @Summary Browse public discussions
// @Tags Discussions
// @Produce json
// @Security BearerAuth
// @Param q query string false "Title search"
// @Param tag query string false "Tag filter"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Success 200 {object} response.APIResponse{data=[]model.Discussion}
// @Router /discussions/public [get]
func (h *DiscussionHandler) ListPublic(c *gin.Context) {
	var req model.DiscussionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	items, err := h.discussions.ListPublic(c.Request.Context(), req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, items)
}

// Get godoc
// @Summary Get a discussion
// @Description The invite code is only included for current members.
// @Tags Discussions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} response.APIResponse{data=model.DiscussionView}
// @Failure 403 {object} response.APIResponse
// @Failure 404 {object} response.APIResponse
// @Router /discussions/{id} [get]
func (h *DiscussionHandler) Get(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}

	view, err := h.discussions.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, view)
}

// Update godoc
// @Summary Update discussion metadata
// @Description Admin only. Optionally regenerates or replaces the invite code.
// @Tags Discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param body body model.UpdateDiscussionRequest true "Fields to change"
// @Success 200 {object} response.APIResponse{data=model.Discussion}
// @Failure 403 {object} response.APIResponse
// @Failure 409 {object} response.APIResponse
// @Router /discussions/{id} [patch]
func (h *DiscussionHandler) Update(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	var req model.UpdateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	d, err := h.discussions.Update(c.Request.Context(), currentUserID(c), id, req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, d)
}

// Delete godoc
// @Summary Soft-delete a discussion
// @Tags Discussions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} response.APIResponse
// @Failure 403 {object} response.APIResponse
// @Router /discussions/{id} [delete]
func (h *DiscussionHandler) Delete(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	if err := h.discussions.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, nil)
}

// Archive godoc
// @Summary Archive a discussion (read-only, not joinable)
// @Tags Discussions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} response.APIResponse
// @Router /discussions/{id}/archive [post]
func (h *DiscussionHandler) Archive(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	if err := h.discussions.Archive(c.Request.Context(), currentUserID(c), id); err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, nil)
}

// Unarchive godoc
// @Summary Unarchive a discussion
// @Tags Discussions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} response.APIResponse
// @Router /discussions/{id}/unarchive [post]
func (h *DiscussionHandler) Unarchive(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	if err := h.discussions.Unarchive(c.Request.Context(), currentUserID(c), id); err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, nil)
}

// RegenerateInviteCode godoc
// @Summary Replace the invite code
// @Description Empty body generates a random code. A taken code is a conflict and leaves the old code in place.
// @Tags Discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param body body model.RegenerateInviteCodeRequest false "Requested code"
// @Success 200 {object} response.APIResponse{data=model.InviteCodeResponse}
// @Failure 409 {object} response.APIResponse
// @Router /discussions/{id}/invite-code [post]
func (h *DiscussionHandler) RegenerateInviteCode(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	var req model.RegenerateInviteCodeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	code, err := h.discussions.RegenerateInviteCode(c.Request.Context(), currentUserID(c), id, req.InviteCode)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, model.InviteCodeResponse{InviteCode: code})
}
