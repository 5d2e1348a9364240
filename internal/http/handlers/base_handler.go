// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"boleia/internal/log"
	"boleia/internal/modules/matching"
	"boleia/internal/modules/ride"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts UUIDs and the short alphanumeric IDs older rows carry.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeSearchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, matching.ErrInvalidQuery):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		internalError(c, err)
	}
}

func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		internalError(c, err)
	}
}

func internalError(c *gin.Context, err error) {
	l := log.Ctx(c.Request.Context())
	l.Error().Err(err).Str(log.FieldPath, c.FullPath()).Msg("request failed")
	writeError(c, http.StatusInternalServerError, "internal error")
}
