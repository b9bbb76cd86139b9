// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"petride/internal/infra"
	"petride/internal/maps"
	"petride/internal/modules/chat"
	"petride/internal/modules/driver"
	"petride/internal/modules/location"
	"petride/internal/modules/matching"
	"petride/internal/modules/notification"
	"petride/internal/modules/order"
	"petride/internal/modules/pet"
	"petride/internal/modules/pricing"
	"petride/internal/modules/settings"
	"petride/internal/modules/user"
	"petride/internal/modules/wallet"
	"petride/internal/payment"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// pathID parses a positive int64 path parameter. It writes the 400 itself.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := cast.ToInt64E(c.Param(name))
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, user.ErrBadRequest),
		errors.Is(err, driver.ErrBadRequest),
		errors.Is(err, driver.ErrInvalidRadius),
		errors.Is(err, location.ErrInvalidPoint),
		errors.Is(err, wallet.ErrBadRequest),
		errors.Is(err, chat.ErrBadRequest),
		errors.Is(err, pricing.ErrBadRequest),
		errors.Is(err, settings.ErrBadRequest),
		errors.Is(err, pet.ErrBadRequest),
		errors.Is(err, notification.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, infra.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrForbidden),
		errors.Is(err, matching.ErrForbidden),
		errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, driver.ErrNotFound),
		errors.Is(err, location.ErrNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, pet.ErrNotFound),
		errors.Is(err, notification.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidState),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrInsufficientFunds),
		errors.Is(err, order.ErrUnpaid),
		errors.Is(err, order.ErrAlreadyPaid),
		errors.Is(err, user.ErrConflict),
		errors.Is(err, driver.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, chat.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, payment.ErrUpstream),
		errors.Is(err, maps.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeServiceError maps a domain error onto its HTTP status. Internal errors
// are logged by the caller's middleware and never echoed.
func writeServiceError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		writeError(c, status, "internal error")
		return
	}
	writeError(c, status, err.Error())
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
