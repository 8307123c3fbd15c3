package handlers

import (
	"errors"
	"net/http"

	"github.com/josh-segal/text-me-assistant/internal/config"
	"github.com/josh-segal/text-me-assistant/internal/services"
	"github.com/josh-segal/text-me-assistant/pkg/logger"
	"github.com/josh-segal/text-me-assistant/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	config *config.Config
	auth   AuthServiceInterface
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, auth AuthServiceInterface) *AuthHandler {
	return &AuthHandler{config: cfg, auth: auth}
}

// Login authenticates the operator and returns a JWT token
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	if err := h.auth.Authenticate(req.Username, req.Password, req.TOTPCode); err != nil {
		if errors.Is(err, services.ErrLoginDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Login is not configured"})
			return
		}
		logger.Warn("Failed login attempt",
			zap.String("username", req.Username),
			zap.String("client_ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.GenerateToken(req.Username, h.config)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	logger.Info("Admin logged in", zap.String("username", req.Username))
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(h.config.JWT.TokenExpiry.Seconds()),
	})
}
