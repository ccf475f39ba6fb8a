package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/averlane/client-portal/internal/model"
	"github.com/averlane/client-portal/internal/repository"
)

// TrackingStore is the persistence surface for email tracking records.
// *repository.TrackingRepo satisfies it.
type TrackingStore interface {
	Create(ctx context.Context, clientID *uint64, emailType, subject string) (model.TrackingRecord, error)
	RecordOpen(ctx context.Context, trackingID string, now time.Time) error
	List(ctx context.Context, clientID *uint64) ([]model.TrackingRecord, error)
}

// TrackingHandler serves the public open-confirmation pixel and the
// operator-only diagnostics endpoints.  Now is injectable for tests and
// defaults to time.Now.
type TrackingHandler struct {
	Store   TrackingStore
	BaseURL string
	Now     func() time.Time
}

func NewTrackingHandler(store TrackingStore, baseURL string) *TrackingHandler {
	if store == nil {
		panic("nil store passed to NewTrackingHandler")
	}
	return &TrackingHandler{Store: store, BaseURL: baseURL, Now: time.Now}
}

// pixelGIF is a 1x1 transparent GIF.  The bytes are fixed; the endpoint
// returns them for every request, found or not.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, // GIF89a
	0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, // 1x1, global color table
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff, // palette: black, white
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, // transparency on index 0
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, // image descriptor
	0x02, 0x02, 0x44, 0x01, 0x00, // image data
	0x3b, // trailer
}

// Pixel handles GET /track/:id.  The caller is a mail client rendering a
// remote image: it has no error-handling path, so this endpoint always
// answers 200 with the image and cache-disabling headers, whether or not
// the tracking id exists or the ledger update succeeds.  Cosmetic suffixes
// like ".gif" are stripped before lookup.
func (h *TrackingHandler) Pixel(c echo.Context) error {
	id := c.Param("id")
	if i := strings.IndexByte(id, '.'); i >= 0 {
		id = id[:i]
	}

	if id != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := h.Store.RecordOpen(ctx, id, h.now()); err != nil && err != repository.ErrNotFound {
			log.Printf("tracking: record open for %q failed: %v", id, err)
		}
	}

	head := c.Response().Header()
	head.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	head.Set("Pragma", "no-cache")
	head.Set("Expires", "0")
	return c.Blob(http.StatusOK, "image/gif", pixelGIF)
}

func (h *TrackingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// ----- operator diagnostics -----

type trackingResp struct {
	ID            uint64     `json:"id"`
	TrackingID    string     `json:"tracking_id"`
	ClientID      *uint64    `json:"client_id,omitempty"`
	EmailType     string     `json:"email_type"`
	Subject       string     `json:"subject"`
	FirstOpenedAt *time.Time `json:"first_opened_at,omitempty"`
	LastOpenedAt  *time.Time `json:"last_opened_at,omitempty"`
	OpenCount     int        `json:"open_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toTrackingResp(t model.TrackingRecord) trackingResp {
	return trackingResp{
		ID:            t.ID,
		TrackingID:    t.TrackingID,
		ClientID:      t.ClientID,
		EmailType:     t.EmailType,
		Subject:       t.Subject,
		FirstOpenedAt: t.FirstOpenedAt,
		LastOpenedAt:  t.LastOpenedAt,
		OpenCount:     t.OpenCount,
		CreatedAt:     t.CreatedAt,
	}
}

// List handles GET /v1/tracking with an optional client_id filter.
func (h *TrackingHandler) List(c echo.Context) error {
	var clientID *uint64
	if raw := c.QueryParam("client_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client_id"})
		}
		clientID = &n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	records, err := h.Store.List(ctx, clientID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]trackingResp, 0, len(records))
	for _, t := range records {
		out = append(out, toTrackingResp(t))
	}
	return c.JSON(http.StatusOK, out)
}

type createTestTrackingReq struct {
	ClientID *uint64 `json:"client_id"`
	Subject  string  `json:"subject"`
}

// CreateTest handles POST /v1/tracking/test.  It synthesizes a tracking
// record with no associated send attempt and returns the exact URL that
// would register an open, so an operator can verify the pipeline end to
// end.  A request against that URL is indistinguishable from a genuine
// open.
func (h *TrackingHandler) CreateTest(c echo.Context) error {
	var req createTestTrackingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "Tracking test"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Store.Create(ctx, req.ClientID, model.EmailTypeStatusUpdate, subject)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create tracking record failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"record":   toTrackingResp(rec),
		"open_url": h.BaseURL + "/track/" + rec.TrackingID + ".gif",
	})
}
