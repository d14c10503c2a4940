package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegistrationPolicy decides who may create an operator account.
type RegistrationPolicy string

const (
	RegistrationOpen   RegistrationPolicy = "open"
	RegistrationFirst  RegistrationPolicy = "first"
	RegistrationClosed RegistrationPolicy = "closed"
)

// Handler serves the operator account endpoints under /auth.
type Handler struct {
	Repo         *Repo
	Tokens       TokenService
	Registration RegistrationPolicy
}

func NewHandler(repo *Repo, tokens TokenService, policy RegistrationPolicy) *Handler {
	if policy == "" {
		policy = RegistrationFirst
	}
	return &Handler{Repo: repo, Tokens: tokens, Registration: policy}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.POST("/change-password", h.Middleware(), h.changePassword)
	rg.POST("/logout", h.Middleware(), h.logout)
}

type registerReq struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type tokenResponse struct {
	User      userView `json:"user"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
}

// registrationAllowed applies the policy. Under RegistrationFirst only an
// empty user table accepts a sign-up; the insert itself re-checks that.
func (h *Handler) registrationAllowed(c *gin.Context) (bool, error) {
	switch h.Registration {
	case RegistrationOpen:
		return true, nil
	case RegistrationClosed:
		return false, nil
	}
	n, err := h.Repo.CountUsers(c.Request.Context())
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (h *Handler) register(c *gin.Context) {
	allowed, err := h.registrationAllowed(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration check failed"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "registration is closed"})
		return
	}

	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	ctx := c.Request.Context()
	if u, _ := h.Repo.GetByEmail(ctx, req.Email); u != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}
	if u, _ := h.Repo.GetByUsername(ctx, req.Username); u != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
		return
	}

	u := User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	created, err := h.createUser(ctx, u)
	if err != nil {
		// lost a race on the unique constraints
		slog.Error("create operator failed", "username", u.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}
	if !created {
		slog.Warn("first-operator registration lost a race", "username", u.Username)
		c.JSON(http.StatusForbidden, gin.H{"error": "registration is closed"})
		return
	}
	slog.Info("operator registered", "user_id", u.ID, "username", u.Username)

	h.respondWithToken(c, http.StatusCreated, &u)
}

func (h *Handler) createUser(ctx context.Context, u User) (bool, error) {
	if h.Registration == RegistrationFirst {
		return h.Repo.CreateFirstUser(ctx, u)
	}
	if err := h.Repo.CreateUser(ctx, u); err != nil {
		return false, err
	}
	return true, nil
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	u, err := h.Repo.GetByEmail(c.Request.Context(), req.Email)
	if err == nil && u != nil {
		err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password))
	}
	if err != nil || u == nil {
		slog.Warn("operator login rejected", "email", strings.ToLower(strings.TrimSpace(req.Email)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.respondWithToken(c, http.StatusOK, u)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, u *User) {
	token, exp, err := h.Tokens.Sign(u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}
	c.JSON(status, tokenResponse{
		User:      userView{ID: u.ID, Username: u.Username, Email: u.Email},
		Token:     token,
		ExpiresAt: exp.UTC().Format(time.RFC3339),
	})
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}

	claims := Operator(c)
	u, err := h.Repo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil || u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
		return
	}
	if err := h.Repo.UpdatePassword(c.Request.Context(), u.ID, string(hash)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update password failed"})
		return
	}
	slog.Info("operator password changed", "user_id", u.ID)
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

func (h *Handler) logout(c *gin.Context) {
	claims := Operator(c)
	if err := h.Repo.BumpTokenVersion(c.Request.Context(), claims.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// bindError turns a binding failure into a short client message, naming the
// first field that failed.
func bindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid json"
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Username":
		return "username must be 3-30 chars"
	case "Email":
		return "invalid email"
	case "Password", "NewPassword":
		return "password must be 8-72 chars"
	case "OldPassword":
		return "current password required"
	default:
		return strings.ToLower(fe.Field()) + " is invalid"
	}
}
