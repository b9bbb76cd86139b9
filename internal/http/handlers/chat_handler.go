// README: Chat history, read receipts and media uploads; live messages go over the chat socket.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"petride/internal/http/middleware"
	"petride/internal/modules/chat"
	"petride/internal/modules/order"
)

type ChatService interface {
	History(ctx context.Context, actor order.Actor, orderID int64) ([]chat.Message, error)
	MarkRead(ctx context.Context, actor order.Actor, orderID int64) (int64, error)
	UploadMedia(ctx context.Context, actor order.Actor, up chat.Upload) (string, error)
}

type ChatHandler struct {
	chats ChatService
}

func NewChatHandler(chats ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

func (h *ChatHandler) History(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.chats.History(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, msgs)
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := h.chats.MarkRead(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "marked": n})
}

// UploadMedia accepts a multipart "file" field and answers with the stored URL.
func (h *ChatHandler) UploadMedia(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeServiceError(c, err)
		return
	}
	defer f.Close()

	url, err := h.chats.UploadMedia(c.Request.Context(), middleware.Caller(c), chat.Upload{
		OrderID:     id,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"url": url})
}
