package handler

import (
	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageHandler handles the message log endpoints
type MessageHandler struct {
	messages *service.MessageService
	log      *zap.Logger
}

func NewMessageHandler(messages *service.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, log: log}
}

// Send godoc
// @Summary Send a message
// @Description One of content, document_id or attachment_path is required.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param body body model.SendMessageRequest true "Message"
// @Success 201 {object} response.APIResponse{data=model.Message}
// @Failure 400 {object} response.APIResponse
// @Failure 403 {object} response.APIResponse
// @Router /discussions/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), currentUserID(c), id, req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Created(c, msg)
}

// Poll godoc
// @Summary Poll for new messages
// @Description Returns messages with id greater than last_message_id in ascending order, recent joins and the discussion counters. Pass the returned cursor as the next last_message_id.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param last_message_id query int false "Cursor" default(0)
// @Param limit query int false "Max messages (max 500)" default(100)
// @Success 200 {object} response.APIResponse{data=model.PollResponse}
// @Failure 403 {object} response.APIResponse
// @Router /discussions/{id}/messages/recent [get]
func (h *MessageHandler) Poll(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	var req model.PollRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.messages.Poll(c.Request.Context(), currentUserID(c), id, req.LastMessageID, req.Limit)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, resp)
}

// History godoc
// @Summary Page through older messages
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param before query int false "Return messages with id below this (0 = newest)"
// @Param limit query int false "Page size (max 200)" default(50)
// @Success 200 {object} response.APIResponse{data=[]model.Message}
// @Router /discussions/{id}/messages [get]
func (h *MessageHandler) History(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	msgs, err := h.messages.History(c.Request.Context(), currentUserID(c), id, req.Before, req.Limit)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, msgs)
}

// Delete godoc
// @Summary Delete a message
// @Description The author, the admin or a moderator may delete. Counters are not changed.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Discussion ID"
// @Param messageId path int true "Message ID"
// @Success 200 {object} response.APIResponse
// @Router /discussions/{id}/messages/{messageId} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := discussionID(c)
	if !ok {
		return
	}
	messageID, err := parseUintParam(c, "messageId")
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}

	if err := h.messages.DeleteMessage(c.Request.Context(), currentUserID(c), id, messageID); err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, nil)
}
