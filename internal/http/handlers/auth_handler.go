// README: Account registration, login and profile lookup.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"petride/internal/http/middleware"
	"petride/internal/modules/user"
)

type UserService interface {
	Register(ctx context.Context, cmd user.RegisterCommand) (*user.User, error)
	Login(ctx context.Context, cmd user.LoginCommand) (string, *user.User, error)
	Get(ctx context.Context, id int64) (*user.User, error)
}

type AuthHandler struct {
	users UserService
}

func NewAuthHandler(users UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

type registerReq struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.Register(c.Request.Context(), user.RegisterCommand{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     user.Role(req.Role),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, u)
}

type loginReq struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if !bindJSON(c, &req) {
		return
	}
	token, u, err := h.users.Login(c.Request.Context(), user.LoginCommand{Login: req.Login, Password: req.Password})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"token": token, "user": u})
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), middleware.Caller(c).UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}
