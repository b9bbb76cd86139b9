package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"petride/internal/modules/settings"
)

type SettingsStore interface {
	Get(ctx context.Context, key, def string) (string, error)
	Put(ctx context.Context, key, value, description string) (settings.Setting, error)
	List(ctx context.Context) ([]settings.Setting, error)
}

// SettingsHandler is mounted behind RequireRole(admin).
type SettingsHandler struct {
	settings SettingsStore
}

func NewSettingsHandler(s SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: s}
}

func (h *SettingsHandler) List(c *gin.Context) {
	all, err := h.settings.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if all == nil {
		all = []settings.Setting{}
	}
	writeJSON(c, http.StatusOK, all)
}

func (h *SettingsHandler) Get(c *gin.Context) {
	key := c.Param("key")
	v, err := h.settings.Get(c.Request.Context(), key, "")
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"key": key, "value": v})
}

type putSettingReq struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (h *SettingsHandler) Put(c *gin.Context) {
	var req putSettingReq
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.settings.Put(c.Request.Context(), c.Param("key"), req.Value, req.Description)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}
