package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/averlane/client-portal/internal/config"
	"github.com/averlane/client-portal/internal/model"
	"github.com/averlane/client-portal/internal/repository"
	"github.com/averlane/client-portal/internal/utils"
)

// OperatorStore is the persistence surface the auth and invitation
// handlers need.  *repository.OperatorRepo satisfies it; tests substitute
// an in-memory fake.
type OperatorStore interface {
	GetByEmail(ctx context.Context, email string) (model.Operator, error)
	GetByID(ctx context.Context, id uint64) (model.Operator, error)
	Delete(ctx context.Context, id uint64) error
}

// AuthHandler bundles dependencies for operator session endpoints.
type AuthHandler struct {
	Cfg       config.Config
	Operators OperatorStore
}

func NewAuthHandler(cfg config.Config, ops OperatorStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Operators: ops}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type operatorPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type authResp struct {
	Operator operatorPart `json:"operator"`
	Token    string       `json:"token"`
	Expires  time.Time    `json:"expires"`
}

// Login: verify credentials and return a signed access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	op, err := h.Operators.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !op.IsActive || !utils.VerifyPassword(op.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, op.ID, op.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		Operator: operatorPart{ID: op.ID, Email: op.Email, Name: op.Name, Role: op.Role},
		Token:    access.Token,
		Expires:  access.Exp,
	})
}

// Me returns the authenticated operator's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	op, err := h.Operators.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "operator not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, operatorPart{ID: op.ID, Email: op.Email, Name: op.Name, Role: op.Role})
}

// DeleteOperator handles DELETE /v1/operators/:id.  The operator's audit
// entries are removed in the same transaction (a deliberate information
// loss kept from the portal's existing behavior).  Operators cannot delete
// their own account.
func (h *AuthHandler) DeleteOperator(c echo.Context) error {
	selfID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if id == selfID {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot delete your own account"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Operators.Delete(ctx, id); err != nil {
		switch err {
		case repository.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "operator not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}
