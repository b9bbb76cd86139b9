package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"petride/internal/http/middleware"
	"petride/internal/modules/notification"
)

type NotificationService interface {
	List(ctx context.Context, userID int64, limit int) ([]notification.Notification, error)
	Get(ctx context.Context, userID, id int64) (*notification.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (*notification.Notification, error)
}

type NotificationHandler struct {
	inbox NotificationService
}

func NewNotificationHandler(inbox NotificationService) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// List answers newest first; ?limit= caps the page.
func (h *NotificationHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	items, err := h.inbox.List(c.Request.Context(), middleware.Caller(c).UserID, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, items)
}

func (h *NotificationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := h.inbox.Get(c.Request.Context(), middleware.Caller(c).UserID, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, n)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := h.inbox.MarkRead(c.Request.Context(), middleware.Caller(c).UserID, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, n)
}
