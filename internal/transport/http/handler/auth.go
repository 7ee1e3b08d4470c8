package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sam-assistant/internal/app"
	"sam-assistant/internal/model"
	"sam-assistant/internal/transport/http/middleware"
	"sam-assistant/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), app.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrRegistrationUnavailable):
			response.Error(c, http.StatusForbidden, err.Error())
		case errors.Is(err, app.ErrInvalidInput),
			errors.Is(err, app.ErrUsernameExists),
			errors.Is(err, app.ErrEmailExists):
			response.Error(c, http.StatusBadRequest, err.Error())
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "register failed")
		}
		return
	}
	response.OK(c, authPayload(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, err.Error())
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "login failed")
		}
		return
	}
	response.OK(c, authPayload(result))
}

func (h *AuthHandler) Me(c *gin.Context) {
	operatorID, ok := middleware.OperatorID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	operator, err := h.authService.Operator(c.Request.Context(), operatorID)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "fetch current operator failed")
		return
	}
	if operator == nil {
		response.Error(c, http.StatusUnauthorized, "operator not found")
		return
	}
	response.OK(c, gin.H{"operator": operatorView(operator)})
}

func authPayload(result *app.AuthResult) gin.H {
	return gin.H{
		"token":    result.Token,
		"operator": operatorView(result.Operator),
	}
}

func operatorView(operator *model.Operator) gin.H {
	return gin.H{
		"id":       operator.ID,
		"username": operator.Username,
		"email":    operator.Email,
	}
}
