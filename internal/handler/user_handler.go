package handler

import (
	"net/http"

	"github.com/blues/trustfunds/internal/config"
	"github.com/blues/trustfunds/internal/logic"
	"github.com/blues/trustfunds/internal/middleware"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userLogic *logic.UserLogic
	auth      config.AuthConfig
}

func NewUserHandler(userLogic *logic.UserLogic, auth config.AuthConfig) *UserHandler {
	return &UserHandler{userLogic: userLogic, auth: auth}
}

// Register 注册
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userLogic.Register(c.Request.Context(), logic.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "User registered successfully", user)
}

// Login 登录并写入会话 cookie
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	token, user, err := h.userLogic.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, token, int(h.auth.TokenTTL.Seconds()), "/", h.auth.CookieDomain, h.auth.CookieSecure, true)
	SuccessResponse(c, http.StatusOK, "Login successful", user)
}

// Logout 清除会话 cookie，已签发的令牌在过期前仍然有效
func (h *UserHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", h.auth.CookieDomain, h.auth.CookieSecure, true)
	SuccessResponse(c, http.StatusOK, "Logout successful", nil)
}

// Me 当前用户信息
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userLogic.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "User fetched successfully", user)
}
