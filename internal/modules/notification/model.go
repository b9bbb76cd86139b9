// README: Per-user notification inbox; pushes sent to a device are also kept here.
package notification

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("notification not found")
	ErrBadRequest = errors.New("bad request")
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxTitleLen      = 255
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
