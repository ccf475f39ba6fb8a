package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/averlane/client-portal/internal/model"
	"github.com/averlane/client-portal/internal/notify"
	"github.com/averlane/client-portal/internal/queue"
	"github.com/averlane/client-portal/internal/repository"
	"github.com/averlane/client-portal/internal/stage"
)

// ClientStore is the persistence surface for client records and stage
// transitions.  *repository.ClientRepo satisfies it.
type ClientStore interface {
	Create(ctx context.Context, name, email string, phone *string) (model.Client, error)
	GetByID(ctx context.Context, id uint64) (model.Client, error)
	List(ctx context.Context) ([]model.Client, error)
	Update(ctx context.Context, id uint64, p repository.ClientPatch) (model.Client, error)
	Delete(ctx context.Context, id uint64) error
	UpdateStage(ctx context.Context, clientID uint64, targetStage int, changedBy uint64, note *string) (model.Client, model.StatusHistoryEntry, error)
}

// HistoryStore reads the audit ledger.
type HistoryStore interface {
	ListByClient(ctx context.Context, clientID uint64) ([]model.StatusHistoryEntry, error)
}

// Notifier is the dual-channel dispatcher surface.  *notify.Dispatcher
// satisfies it; tests substitute a recording fake.
type Notifier interface {
	DispatchStatusUpdate(ctx context.Context, cl model.Client, st stage.Stage, note *string) notify.Result
	SendWelcome(ctx context.Context, cl model.Client) notify.Result
	SendInvitation(ctx context.Context, inv model.Invitation, inviterName string) notify.Result
}

// ClientHandler bundles dependencies for client CRUD and stage transitions.
// Publish is optional; when nil no broker event is emitted.
type ClientHandler struct {
	Clients ClientStore
	History HistoryStore
	Notify  Notifier
	Publish func(ctx context.Context, ev queue.StageChangedEvent) error
}

func NewClientHandler(clients ClientStore, history HistoryStore, notifier Notifier, publish func(ctx context.Context, ev queue.StageChangedEvent) error) *ClientHandler {
	if clients == nil || history == nil || notifier == nil {
		panic("nil dependency passed to NewClientHandler")
	}
	return &ClientHandler{Clients: clients, History: history, Notify: notifier, Publish: publish}
}

// ----- DTOs -----

type createClientReq struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// optionalString distinguishes "absent", "null" and "set" in a PATCH body,
// which plain pointer fields cannot: JSON null and a missing key both leave
// a *string nil.
type optionalString struct {
	present bool
	value   *string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.present = true
	if string(b) == "null" {
		o.value = nil
		return nil
	}
	return json.Unmarshal(b, &o.value)
}

type updateClientReq struct {
	Name  *string        `json:"name"`
	Email *string        `json:"email"`
	Phone optionalString `json:"phone"`
}

type updateStageReq struct {
	Stage int     `json:"stage"`
	Note  *string `json:"note"`
}

type clientResp struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"`
	CurrentStage int       `json:"current_stage"`
	StageName    string    `json:"stage_name"`
	Progress     int       `json:"progress"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toClientResp(cl model.Client) clientResp {
	name := ""
	if st, ok := stage.ByID(cl.CurrentStage); ok {
		name = st.Name
	}
	return clientResp{
		ID:           cl.ID,
		Name:         cl.Name,
		Email:        cl.Email,
		Phone:        cl.Phone,
		CurrentStage: cl.CurrentStage,
		StageName:    name,
		Progress:     stage.Progress(cl.CurrentStage),
		CreatedAt:    cl.CreatedAt,
		UpdatedAt:    cl.UpdatedAt,
	}
}

type historyResp struct {
	ID        uint64    `json:"id"`
	ClientID  uint64    `json:"client_id"`
	Stage     int       `json:"stage"`
	StageName string    `json:"stage_name"`
	ChangedBy uint64    `json:"changed_by"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toHistoryResp(e model.StatusHistoryEntry) historyResp {
	name := ""
	if st, ok := stage.ByID(e.Stage); ok {
		name = st.Name
	}
	return historyResp{
		ID:        e.ID,
		ClientID:  e.ClientID,
		Stage:     e.Stage,
		StageName: name,
		ChangedBy: e.ChangedBy,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}

// Stages handles GET /v1/stages and returns the full pipeline catalog.
func (h *ClientHandler) Stages(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"total": stage.Total, "stages": stage.All()})
}

// CreateClient handles POST /v1/clients.  Every client starts at stage 1;
// a welcome email is attempted afterwards and its failure never fails the
// create.
func (h *ClientHandler) CreateClient(c echo.Context) error {
	var req createClientReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cl, err := h.Clients.Create(ctx, req.Name, req.Email, req.Phone)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create client failed"})
	}

	welcome := h.Notify.SendWelcome(c.Request().Context(), cl)

	return c.JSON(http.StatusCreated, echo.Map{
		"client":             toClientResp(cl),
		"welcome_email_sent": welcome.EmailSent,
	})
}

// GetClient handles GET /v1/clients/:id.
func (h *ClientHandler) GetClient(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cl, err := h.Clients.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toClientResp(cl))
}

// ListClients handles GET /v1/clients.
func (h *ClientHandler) ListClients(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	clients, err := h.Clients.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]clientResp, 0, len(clients))
	for _, cl := range clients {
		out = append(out, toClientResp(cl))
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateClient handles PATCH /v1/clients/:id with an optional-field patch:
// absent fields stay untouched, "phone": null clears the phone.
func (h *ClientHandler) UpdateClient(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateClientReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email cannot be empty"})
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	patch := repository.ClientPatch{Name: req.Name, Email: req.Email}
	if req.Phone.present {
		patch.Phone = &req.Phone.value
	}

	cl, err := h.Clients.Update(ctx, id, patch)
	if err != nil {
		switch err {
		case repository.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
		case repository.ErrEmailExists:
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
	}
	return c.JSON(http.StatusOK, toClientResp(cl))
}

// DeleteClient handles DELETE /v1/clients/:id.  History rows go with the
// client.
func (h *ClientHandler) DeleteClient(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Clients.Delete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// GetHistory handles GET /v1/clients/:id/history and returns the audit
// ledger, newest first.
func (h *ClientHandler) GetHistory(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Clients.GetByID(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	entries, err := h.History.ListByClient(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]historyResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryResp(e))
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateStage handles PUT /v1/clients/:id/stage.  The target stage is
// validated against the catalog range only: forward and backward jumps of
// any distance are legal.  Once the stage mutation and its audit entry
// commit, notification and broker failures are reported as data, never as
// a failed request.
func (h *ClientHandler) UpdateStage(c echo.Context) error {
	operatorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateStageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	st, ok := stage.ByID(req.Stage)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "invalid stage: must be between 1 and " + strconv.Itoa(stage.Total),
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Previous stage is captured for the broker event; this read also
	// rejects unknown clients before any mutation.
	before, err := h.Clients.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	cl, entry, err := h.Clients.UpdateStage(ctx, id, req.Stage, operatorID, req.Note)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stage update failed"})
	}

	// The stage change is committed; both channels are attempted and the
	// caller sees each outcome.  The request context (not the expired DB
	// one) bounds the outbound calls.
	notifications := h.Notify.DispatchStatusUpdate(c.Request().Context(), cl, st, req.Note)

	if h.Publish != nil {
		ev := queue.StageChangedEvent{
			ClientID:      cl.ID,
			ClientName:    cl.Name,
			Stage:         cl.CurrentStage,
			StageName:     st.Name,
			PreviousStage: before.CurrentStage,
			ChangedBy:     operatorID,
			Note:          req.Note,
			EmailSent:     notifications.EmailSent,
			SMSSent:       notifications.SMSSent,
			ChangedAt:     entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := h.Publish(c.Request().Context(), ev); err != nil {
			log.Printf("stage: publish event failed for client %d: %v", cl.ID, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"client":        toClientResp(cl),
		"history_entry": toHistoryResp(entry),
		"notifications": notifications,
	})
}
