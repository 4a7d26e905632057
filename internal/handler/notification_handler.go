package handler

import (
	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationHandler serves in-app notifications and push device registration
type NotificationHandler struct {
	notifications *service.NotificationService
	log           *zap.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log}
}

// List godoc
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Unread only"
// @Param limit query int false "Page size (max 100)" default(50)
// @Success 200 {object} response.APIResponse{data=model.NotificationListResponse}
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	var req model.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	items, unread, err := h.notifications.List(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, model.NotificationListResponse{Items: items, UnreadCount: unread})
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} response.APIResponse
// @Failure 404 {object} response.APIResponse
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), currentUserID(c), id); err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, nil)
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.APIResponse
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

// RegisterDevice godoc
// @Summary Register a push notification device
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RegisterDeviceRequest true "FCM token"
// @Success 200 {object} response.APIResponse
// @Router /devices [post]
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.notifications.RegisterDevice(c.Request.Context(), currentUserID(c), req); err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, nil)
}
