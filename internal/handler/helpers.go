package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/academvault/discussions/internal/middleware"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/pkg/invitecode"
	"github.com/academvault/discussions/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errInvalidID = errors.New("invalid id")

// RegisterValidators adds the custom binding tags used by request DTOs
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return v.RegisterValidation("invitecode", func(fl validator.FieldLevel) bool {
		return invitecode.Validate(invitecode.Normalize(fl.Field().String())) == nil
	})
}

func currentUserID(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.ContextKeyUserID).(uuid.UUID)
}

func currentUserName(c *gin.Context) string {
	return c.GetString(middleware.ContextKeyName)
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, errInvalidID
	}
	return uint(n), nil
}

// discussionID reads :id, writing a 400 when it is malformed
func discussionID(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid discussion id")
		return 0, false
	}
	return id, true
}

func bindError(c *gin.Context, err error) {
	response.BadRequest(c, "invalid request: "+err.Error())
}

// statusFor maps a service error kind to an HTTP status
func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleError writes the envelope for err; internal errors are logged and
// their text is not exposed
func handleError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err))
		_ = c.Error(err)
		response.InternalError(c, "internal server error")
		return
	}
	response.Error(c, status, err.Error())
}
