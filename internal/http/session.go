package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rocket-rental/internal/service"
)

type loginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		_ = c.Error(badRequest(err))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			_ = c.Error(&AppError{Status: http.StatusUnauthorized, Message: "Invalid username or password", Cause: err})
			return
		}
		_ = c.Error(err)
		return
	}

	if err := h.sessions.Start(c, user.ID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"username": user.Username,
		"profile":  service.ProfilePath(user.Username),
	})
}

func (h *Handler) logout(c *gin.Context) {
	h.sessions.Terminate(c)
	c.Status(http.StatusNoContent)
}
