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

// InvitationStore is the persistence surface for the invitation lifecycle.
// *repository.InvitationRepo satisfies it.
type InvitationStore interface {
	Create(ctx context.Context, email, name string, contactEmail, contactPhone *string, invitedBy uint64, now time.Time) (model.Invitation, error)
	Validate(ctx context.Context, token string, now time.Time) (model.Invitation, error)
	Consume(ctx context.Context, token, name, passwordHash string, now time.Time) (model.Operator, error)
	Cancel(ctx context.Context, id uint64) error
	List(ctx context.Context) ([]model.Invitation, error)
}

// InvitationHandler bundles dependencies for issuing, validating,
// consuming and cancelling operator invitations.  Now is injectable for
// tests and defaults to time.Now.
type InvitationHandler struct {
	Cfg       config.Config
	Invites   InvitationStore
	Operators OperatorStore
	Notify    Notifier
	Now       func() time.Time
}

func NewInvitationHandler(cfg config.Config, invites InvitationStore, ops OperatorStore, notifier Notifier) *InvitationHandler {
	if invites == nil || ops == nil || notifier == nil {
		panic("nil dependency passed to NewInvitationHandler")
	}
	return &InvitationHandler{Cfg: cfg, Invites: invites, Operators: ops, Notify: notifier, Now: time.Now}
}

func (h *InvitationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// ----- DTOs -----

type issueInvitationReq struct {
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
}

type acceptInvitationReq struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type invitationResp struct {
	ID        uint64     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	InvitedBy uint64     `json:"invited_by"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toInvitationResp(inv model.Invitation) invitationResp {
	return invitationResp{
		ID:        inv.ID,
		Email:     inv.Email,
		Name:      inv.Name,
		InvitedBy: inv.InvitedByID,
		ExpiresAt: inv.ExpiresAt,
		UsedAt:    inv.UsedAt,
		CreatedAt: inv.CreatedAt,
	}
}

// invitationError maps lifecycle sentinels onto HTTP responses shared by
// Validate and Accept.
func invitationError(c echo.Context, err error) error {
	switch err {
	case repository.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invitation not found"})
	case repository.ErrInvitationUsed:
		return c.JSON(http.StatusConflict, echo.Map{"error": "invitation already used"})
	case repository.ErrInvitationExpired:
		return c.JSON(http.StatusGone, echo.Map{"error": "invitation expired"})
	case repository.ErrAccountExists:
		return c.JSON(http.StatusConflict, echo.Map{"error": "an account already exists for this email"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invitation lookup failed"})
	}
}

// Issue handles POST /v1/invitations.  At most one unexpired, unused
// invitation may exist per email; the invite email is attempted after the
// record commits and its failure is reported, not fatal.
func (h *InvitationHandler) Issue(c echo.Context) error {
	operatorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req issueInvitationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Invites.Create(ctx, req.Email, req.Name, req.ContactEmail, req.ContactPhone, operatorID, h.now())
	if err != nil {
		switch err {
		case repository.ErrAccountExists:
			return c.JSON(http.StatusConflict, echo.Map{"error": "an account already exists for this email"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "an active invitation already exists for this email"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create invitation failed"})
		}
	}

	inviterName := "the Averlane team"
	if op, err := h.Operators.GetByID(ctx, operatorID); err == nil {
		inviterName = op.Name
	}
	mail := h.Notify.SendInvitation(c.Request().Context(), inv, inviterName)

	return c.JSON(http.StatusCreated, echo.Map{
		"invitation": toInvitationResp(inv),
		"token":      inv.Token, // returned once so the inviter can relay the link manually
		"email_sent": mail.EmailSent,
	})
}

// Validate handles GET /v1/invitations/validate?token=...  It is the
// read-only probe the signup page runs; nothing is consumed.
func (h *InvitationHandler) Validate(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Invites.Validate(ctx, token, h.now())
	if err != nil {
		return invitationError(c, err)
	}

	inviterName := ""
	if op, err := h.Operators.GetByID(ctx, inv.InvitedByID); err == nil {
		inviterName = op.Name
	}
	return c.JSON(http.StatusOK, echo.Map{
		"email":      inv.Email,
		"name":       inv.Name,
		"invited_by": inviterName,
		"expires_at": inv.ExpiresAt,
	})
}

// Accept handles POST /v1/invitations/accept.  Every Validate check is
// re-run inside the consume transaction, so a token that raced another
// accept or expired since the probe is still rejected.  On success the new
// operator gets an access token immediately.
func (h *InvitationHandler) Accept(c echo.Context) error {
	var req acceptInvitationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token/password required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	op, err := h.Invites.Consume(ctx, req.Token, strings.TrimSpace(req.Name), hash, h.now())
	if err != nil {
		return invitationError(c, err)
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, op.ID, op.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusCreated, authResp{
		Operator: operatorPart{ID: op.ID, Email: op.Email, Name: op.Name, Role: op.Role},
		Token:    access.Token,
		Expires:  access.Exp,
	})
}

// Cancel handles DELETE /v1/invitations/:id.  Only unused invitations can
// be cancelled; consumed ones are part of the account-creation record.
func (h *InvitationHandler) Cancel(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Invites.Cancel(ctx, id); err != nil {
		switch err {
		case repository.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invitation not found"})
		case repository.ErrInvitationUsed:
			return c.JSON(http.StatusConflict, echo.Map{"error": "invitation already used"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/invitations for the operator dashboard.
func (h *InvitationHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	invitations, err := h.Invites.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]invitationResp, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toInvitationResp(inv))
	}
	return c.JSON(http.StatusOK, out)
}
