// README: Chat messages exchanged between a customer and the driver of one order.
package chat

import (
	"errors"
	"io"
	"time"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrForbidden  = errors.New("forbidden")
	ErrTooLarge   = errors.New("media too large")
)

const (
	maxMessageLen   = 2000
	maxMediaNameLen = 80
)

type Message struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	SenderID   int64     `json:"sender_id"`
	SenderRole string    `json:"role"`
	Message    string    `json:"message,omitempty"`
	MediaURL   string    `json:"media_url,omitempty"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Upload is one media file attached to an order's conversation.
type Upload struct {
	OrderID     int64
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AppendCommand is one inbound chat frame. Either Message or MediaURL must be set.
type AppendCommand struct {
	OrderID    int64
	SenderID   int64
	SenderRole string
	Message    string
	MediaURL   string
}
