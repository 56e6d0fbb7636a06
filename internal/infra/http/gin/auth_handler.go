package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	authsvc "marketplace/internal/app/services/auth"
)

type AuthHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Me(c *gin.Context)
}

type AuthHandler struct {
	Service *authsvc.Service
	Logger  *slog.Logger
}

func (h AuthHandler) Register(c *gin.Context) {
	var req authsvc.RegisterParams
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	result, err := h.Service.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.Logger, err, "op", "register")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h AuthHandler) Login(c *gin.Context) {
	var req authsvc.LoginParams
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	result, err := h.Service.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.Logger, err, "op", "login")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AuthHandler) Me(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	profile, err := h.Service.Profile(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, h.Logger, err, "op", "me", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, profile)
}

var _ AuthHTTP = AuthHandler{}
