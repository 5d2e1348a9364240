// README: Single-ride lookup handler.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"boleia/internal/modules/ride"
	"boleia/internal/types"
)

type RideGetter interface {
	Get(ctx context.Context, id types.ID) (*ride.Candidate, error)
}

type RideHandler struct {
	rides RideGetter
}

func NewRideHandler(svc RideGetter) *RideHandler {
	return &RideHandler{rides: svc}
}

func (h *RideHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}
