// README: Driver location handlers (REST fallback to the location socket).
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"petride/internal/http/middleware"
	"petride/internal/modules/location"
	"petride/internal/modules/order"
	"petride/internal/types"
)

type LocationService interface {
	Update(ctx context.Context, driverID int64, p types.Point) (location.Location, error)
	Get(ctx context.Context, driverID int64) (location.Location, error)
}

type DriverObservers interface {
	CanObserveDriver(ctx context.Context, actor order.Actor, driverID int64) (bool, error)
}

type LocationHandler struct {
	locations LocationService
	observers DriverObservers
}

func NewLocationHandler(locations LocationService, observers DriverObservers) *LocationHandler {
	return &LocationHandler{locations: locations, observers: observers}
}

func (h *LocationHandler) Update(c *gin.Context) {
	id, ok := self(c)
	if !ok {
		return
	}
	var p types.Point
	if !bindJSON(c, &p) {
		return
	}
	loc, err := h.locations.Update(c.Request.Context(), id, p)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, loc)
}

func (h *LocationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	allowed, err := h.observers.CanObserveDriver(ctx, middleware.Caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !allowed {
		writeServiceError(c, order.ErrForbidden)
		return
	}
	loc, err := h.locations.Get(ctx, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, loc)
}
