// README: Driver profile handlers: registration, availability, settings, earnings.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"petride/internal/http/middleware"
	"petride/internal/modules/driver"
	"petride/internal/modules/order"
	"petride/internal/types"
)

type DriverService interface {
	Register(ctx context.Context, cmd driver.RegisterCommand) (*driver.Driver, error)
	Get(ctx context.Context, id int64) (*driver.Driver, error)
	SetOnline(ctx context.Context, id int64, online bool, at *types.Point) (*driver.Driver, error)
	UpdateSettings(ctx context.Context, id int64, workRadiusKm *float64) (*driver.Driver, error)
	SetDeviceToken(ctx context.Context, id int64, token string) error
	EarningsSummary(ctx context.Context, id int64, period driver.Period) (driver.Earnings, error)
	Stats(ctx context.Context, id int64) (driver.Stats, error)
}

type DriverHandler struct {
	drivers DriverService
}

func NewDriverHandler(drivers DriverService) *DriverHandler {
	return &DriverHandler{drivers: drivers}
}

// self resolves the caller's driver profile id or answers 404.
func self(c *gin.Context) (int64, bool) {
	actor := middleware.Caller(c)
	if !actor.IsDriver() {
		writeServiceError(c, driver.ErrNotFound)
		return 0, false
	}
	return *actor.DriverID, true
}

type registerDriverReq struct {
	VehicleType  string `json:"vehicle_type"`
	VehiclePlate string `json:"vehicle_plate"`
}

func (h *DriverHandler) Register(c *gin.Context) {
	actor := middleware.Caller(c)
	if actor.Role != order.RoleDriver {
		writeServiceError(c, order.ErrForbidden)
		return
	}
	var req registerDriverReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.drivers.Register(c.Request.Context(), driver.RegisterCommand{
		UserID:       actor.UserID,
		VehicleType:  req.VehicleType,
		VehiclePlate: req.VehiclePlate,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *DriverHandler) Me(c *gin.Context) {
	id, ok := self(c)
	if !ok {
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

type onlineReq struct {
	IsOnline bool         `json:"is_online"`
	Location *types.Point `json:"location"`
}

func (h *DriverHandler) SetOnline(c *gin.Context) {
	id, ok := self(c)
	if !ok {
		return
	}
	var req onlineReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.drivers.SetOnline(c.Request.Context(), id, req.IsOnline, req.Location)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

type settingsReq struct {
	WorkRadiusKm *float64 `json:"work_radius_km"`
}

func (h *DriverHandler) UpdateSettings(c *gin.Context) {
	id, ok := self(c)
	if !ok {
		return
	}
	var req settingsReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.drivers.UpdateSettings(c.Request.Context(), id, req.WorkRadiusKm)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

type deviceTokenReq struct {
	Token string `json:"token"`
}

func (h *DriverHandler) SetDeviceToken(c *gin.Context) {
	id, ok := self(c)
	if !ok {
		return
	}
	var req deviceTokenReq
	if !bindJSON(c, &req) {
		return
	}
	if err := h.drivers.SetDeviceToken(c.Request.Context(), id, req.Token); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DriverHandler) Earnings(c *gin.Context) {
	id, ok := self(c)
	if !ok {
		return
	}
	e, err := h.drivers.EarningsSummary(c.Request.Context(), id, driver.Period(c.Query("period")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, e)
}

func (h *DriverHandler) Stats(c *gin.Context) {
	id, ok := self(c)
	if !ok {
		return
	}
	st, err := h.drivers.Stats(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}
