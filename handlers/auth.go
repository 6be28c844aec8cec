package handlers

import (
	"errors"
	"net/http"
	"time"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	sessions  repository.SessionFactory
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(sessions repository.SessionFactory, jwtSecret []byte, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:  sessions,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Use username if provided, otherwise use name
	name := req.Name
	if name == "" && req.Username != "" {
		name = req.Username
	}
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name or username is required"})
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}

	ctx := c.Request.Context()
	sess := h.sessions()
	defer sess.Dispose()

	exists, err := sess.Users().EmailExists(ctx, req.Email)
	if err != nil {
		respondError(c, h.logger, err, "Database error")
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, h.logger, err, "Failed to hash password")
		return
	}

	user := models.User{
		Name:         name,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}
	if err := sess.Users().Create(ctx, &user); err != nil {
		respondError(c, h.logger, err, "Failed to create user")
		return
	}

	traceID := middleware.GetTraceID(ctx)
	h.logger.Info("User registered", zap.String("trace_id", traceID), zap.String("email", req.Email))
	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	sess := h.sessions()
	defer sess.Dispose()

	user, err := sess.Users().FindByEmail(ctx, req.Email)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		respondError(c, h.logger, err, "Database error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.GenerateToken(h.jwtSecret, *user, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, err, "Failed to generate token")
		return
	}

	traceID := middleware.GetTraceID(ctx)
	h.logger.Info("User logged in", zap.String("trace_id", traceID), zap.String("email", req.Email))
	c.JSON(http.StatusOK, models.LoginResponse{
		Token: token,
		User:  *user,
	})
}
