package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guild-portal/backend/internal/models"
	"github.com/guild-portal/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token   string               `json:"token"`
	Account models.AccountPublic `json:"account"`
}

// accountStore is the part of Repository the handler needs.
type accountStore interface {
	Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context) ([]models.AccountPublic, error)
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo        accountStore
	jwt         *JWTService
	adminEmails map[string]struct{}
	logger      *zap.Logger
}

// NewHandler creates an auth handler. Accounts registering with one of
// adminEmails are given the admin role; everyone else is a member.
func NewHandler(repo accountStore, jwt *JWTService, adminEmails []string, logger *zap.Logger) *Handler {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[NormalizeEmail(e)] = struct{}{}
	}
	return &Handler{repo: repo, jwt: jwt, adminEmails: admins, logger: logger}
}

// NormalizeEmail is the stored and compared form of an email address.
// Accounts are unique on it, so case variants are the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) roleFor(email string) models.Role {
	if _, ok := h.adminEmails[NormalizeEmail(email)]; ok {
		return models.RoleAdmin
	}
	return models.RoleMember
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidRequest)
		return
	}
	email := NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		response.BadRequest(c, "name_required")
		return
	}
	if len(req.Password) < MinPasswordLength {
		response.BadRequest(c, "password_too_short")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		response.Internal(c)
		return
	}

	account, err := h.repo.Create(c.Request.Context(), email, hash, name, h.roleFor(email))
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(c, "email_taken")
		return
	}
	if err != nil {
		h.logger.Error("create account", zap.Error(err))
		response.Internal(c)
		return
	}

	if account.Role == models.RoleAdmin {
		h.logger.Info("admin account registered", zap.String("account_id", account.ID.String()), zap.String("email", account.Email))
	}

	token, err := h.jwt.Generate(account.ID, account.Email, account.Role)
	if err != nil {
		h.logger.Error("generate token", zap.Error(err))
		response.Internal(c)
		return
	}

	response.Created(c, TokenResponse{Token: token, Account: account.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidRequest)
		return
	}

	account, err := h.repo.GetByEmail(c.Request.Context(), NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			h.logger.Error("load account", zap.Error(err))
		}
		response.Unauthorized(c, "invalid_credentials")
		return
	}
	if !CheckPassword(req.Password, account.Password) {
		response.Unauthorized(c, "invalid_credentials")
		return
	}

	token, err := h.jwt.Generate(account.ID, account.Email, account.Role)
	if err != nil {
		h.logger.Error("generate token", zap.Error(err))
		response.Internal(c)
		return
	}

	response.OK(c, TokenResponse{Token: token, Account: account.ToPublic()})
}

// List handles GET /accounts (admin only). Returns the roster used to pick eligible voters.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list accounts", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, gin.H{"items": list})
}
