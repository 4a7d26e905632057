package handler

import (
	"github.com/academvault/discussions/internal/middleware"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler serves the session endpoints. Sign-in lives in the auth service.
type AuthHandler struct {
	sessions *service.SessionService
	log      *zap.Logger
}

func NewAuthHandler(sessions *service.SessionService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, log: log}
}

// Logout godoc
// @Summary Revoke the current bearer token
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.APIResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.ContextKeyToken)
	if err := h.sessions.Logout(c.Request.Context(), currentUserID(c), token); err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, nil)
}

// GetProfile godoc
// @Summary Get the current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.APIResponse{data=model.User}
// @Router /auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.sessions.Profile(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	response.Success(c, user)
}
