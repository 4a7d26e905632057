package handler

import (
	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MembershipHandler handles join, leave and member management endpoints
type MembershipHandler struct {
	memberships *service.MembershipService
	log         *zap.Logger
}

func NewMembershipHandler(memberships *service.MembershipService, log *zap.Logger) *MembershipHandler {
	return &MembershipHandler{memberships: memberships, log: log}
}

// JoinByCode godoc
// @Summary Join a discussion with its invite code
// @Description Codes are case-insensitive. Joining again as a member succeeds with joined=false.
// @Tags Membership
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.JoinByCodeRequest true "Invite code"
// @Success 200 {object} response.APIResponse{data=model.JoinResult}
// @Failure 404 {object} response.APIResponse
// @Failure 429 {object} response.APIResponse
// @Router /discussions/join-by-code [post]
func (h *MembershipHandler) JoinByCode(c *gin.Context) {
	var req model.JoinByCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.memberships.JoinByCode(c.Request.Context(), currentUserID(c), req.InviteCode)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, res)
}

// JoinByID godoc
// @Summary Join a public discussion
// @Tags Membership
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} response.APIResponse{data=model.JoinResult}
// @Failure 403 {object} response.APIResponse
// @Failure 409 {object} response.APIResponse
// @Router /discussions/{id}/join [post]
func (h *MembershipHandler) JoinByID(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}

	res, err := h.memberships.JoinByID(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, res)
}

// Leave godoc
// @Summary Leave a discussion
// @Tags Membership
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} response.APIResponse
// @Failure 403 {object} response.APIResponse
// @Router /discussions/{id}/leave [post]
func (h *MembershipHandler) Leave(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	if err := h.memberships.Leave(c.Request.Context(), currentUserID(c), id); err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, nil)
}

// ListMembers godoc
// @Summary List members
// @Tags Membership
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Success 200 {object} response.APIResponse{data=[]model.Membership}
// @Router /discussions/{id}/members [get]
func (h *MembershipHandler) ListMembers(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}

	members, err := h.memberships.ListMembers(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, members)
}

// InviteMembers godoc
// @Summary Add users to a discussion
// @Description Admin or moderator. Users who are already members are skipped.
// @Tags Membership
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param body body model.InviteMembersRequest true "Users to add"
// @Success 200 {object} response.APIResponse{data=model.InviteMembersResponse}
// @Router /discussions/{id}/members [post]
func (h *MembershipHandler) InviteMembers(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	var req model.InviteMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	added, err := h.memberships.InviteMembers(c.Request.Context(), currentUserID(c), id, req.UserIDs)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, model.InviteMembersResponse{Added: added})
}

// UpdateMember godoc
// @Summary Mute, ban, restore or change the role of a member
// @Tags Membership
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param userId path string true "Member user ID"
// @Param body body model.UpdateMemberRequest true "New status and/or role"
// @Success 200 {object} response.APIResponse{data=model.Membership}
// @Router /discussions/{id}/members/{userId} [patch]
func (h *MembershipHandler) UpdateMember(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req model.UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	m, err := h.memberships.UpdateMember(c.Request.Context(), currentUserID(c), id, targetID, req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, m)
}
