package handler

import (
	"errors"
	"net/http"

	"requisiciones/internal/middleware"
	"requisiciones/internal/service"
	"requisiciones/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// bindJSON decodes the body. It writes a 400 and returns false on malformed
// JSON; field rules are checked by the services.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, req)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func currentActor(c *gin.Context) (service.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
	}
	return actor, ok
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		verr       *service.ValidationError
		storageErr *service.StorageError
		remoteErr  *service.RemoteError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, response.Validation(http.StatusUnprocessableEntity, verr.Fields))
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrUserExists):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
	case errors.As(err, &remoteErr):
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("remote service rejected request")
		c.JSON(http.StatusBadGateway, response.Error(http.StatusBadGateway, err.Error()))
	case errors.As(err, &storageErr):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("storage unavailable")
		c.JSON(http.StatusServiceUnavailable, response.Error(http.StatusServiceUnavailable, "Storage temporarily unavailable"))
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
	}
}
