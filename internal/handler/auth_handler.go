package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selftracker/internal/model"
	"selftracker/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

type userView struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Preferences model.Preferences `json:"preferences"`
}

func respondSession(c *gin.Context, status int, sess *service.Session) {
	c.JSON(status, envelope(c, gin.H{
		"success":      true,
		"accessToken":  sess.AccessToken,
		"refreshToken": sess.RefreshToken,
		"user": userView{
			ID:          sess.User.ID,
			Name:        sess.User.Name,
			Email:       sess.User.Email,
			Preferences: sess.User.Preferences,
		},
	}))
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "Register", err)
		return
	}
	respondSession(c, http.StatusCreated, sess)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "Login", err)
		return
	}
	respondSession(c, http.StatusOK, sess)
}

// RefreshToken handles POST /api/auth/refresh-token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, h.logger, "RefreshToken", err)
		return
	}
	respondMessage(c, gin.H{
		"accessToken":  sess.AccessToken,
		"refreshToken": sess.RefreshToken,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	u, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "Me", err)
		return
	}
	respondOK(c, http.StatusOK, u)
}

// UpdateDetails handles PUT /api/auth/updatedetails
func (h *AuthHandler) UpdateDetails(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.authService.UpdateDetails(c.Request.Context(), userID, service.DetailsInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeError(c, h.logger, "UpdateDetails", err)
		return
	}
	respondOK(c, http.StatusOK, u)
}

// UpdatePassword handles PUT /api/auth/updatepassword
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.authService.UpdatePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(c, h.logger, "UpdatePassword", err)
		return
	}
	respondSession(c, http.StatusOK, sess)
}

// UpdatePreferences handles PUT /api/auth/preferences
func (h *AuthHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req struct {
		Theme    string `json:"theme"`
		Language string `json:"language"`
	}
	if !bindJSON(c, &req) {
		return
	}

	prefs, err := h.authService.UpdatePreferences(c.Request.Context(), userID, service.PreferencesInput{
		Theme:    req.Theme,
		Language: req.Language,
	})
	if err != nil {
		writeError(c, h.logger, "UpdatePreferences", err)
		return
	}
	respondOK(c, http.StatusOK, prefs)
}

// ForgotPassword handles POST /api/auth/forgotpassword
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}

	token, err := h.authService.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.logger, "ForgotPassword", err)
		return
	}
	// 没有邮件通道，令牌直接返回
	respondMessage(c, gin.H{
		"message":    "Password reset token generated",
		"resetToken": token,
	})
}

// ResetPassword handles PUT /api/auth/resetpassword/:resettoken
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sess, err := h.authService.ResetPassword(c.Request.Context(), c.Param("resettoken"), req.Password)
	if err != nil {
		writeError(c, h.logger, "ResetPassword", err)
		return
	}
	respondSession(c, http.StatusOK, sess)
}

// Logout handles GET /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.authService.Logout(c.Request.Context(), userID); err != nil {
		writeError(c, h.logger, "Logout", err)
		return
	}
	respondMessage(c, gin.H{"message": "User logged out successfully"})
}
