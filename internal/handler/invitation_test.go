package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/averlane/client-portal/internal/config"
	"github.com/averlane/client-portal/internal/model"
	"github.com/averlane/client-portal/internal/notify"
	"github.com/averlane/client-portal/internal/repository"
)

func testInvitationHandler(ops *fakeOperatorStore, invites *fakeInvitationStore, notifier *fakeNotifier, now func() time.Time) *InvitationHandler {
	h := NewInvitationHandler(config.Config{
		JWTSecret:    "test-secret",
		AccessTTLMin: 15,
		BcryptCost:   4, // bcrypt.MinCost keeps the suite fast
	}, invites, ops, notifier)
	h.Now = now
	return h
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// TestInvitationLifecycle drives issue -> validate -> accept -> re-validate
// through the handlers and checks each HTTP mapping along the way.
func TestInvitationLifecycle(t *testing.T) {
	e := echo.New()
	ops := newFakeOperatorStore()
	inviter := ops.add(model.Operator{Email: "sam@averlane.com", Name: "Sam Admin", Role: model.RoleAdmin, IsActive: true})
	invites := newFakeInvitationStore(ops)
	notifier := &fakeNotifier{result: notify.Result{EmailSent: true}}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h := testInvitationHandler(ops, invites, notifier, fixedClock(now))

	// Issue.
	c, rec := newJSONContext(e, http.MethodPost, `{"email":"new@example.com","name":"New Op"}`)
	c.Set("user_id", float64(inviter.ID))
	if err := h.Issue(c); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var issued struct {
		Invitation invitationResp `json:"invitation"`
		Token      string         `json:"token"`
		EmailSent  bool           `json:"email_sent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &issued); err != nil {
		t.Fatalf("issue body: %v", err)
	}
	if issued.Token == "" || !issued.EmailSent {
		t.Fatalf("issue response = %+v", issued)
	}
	if got := issued.Invitation.ExpiresAt; !got.Equal(now.Add(repository.InviteTTL)) {
		t.Fatalf("expires_at = %v, want now+7d", got)
	}
	if notifier.inviteCalls != 1 || notifier.lastInvite.Token != issued.Token {
		t.Fatalf("invite mail calls=%d token=%q", notifier.inviteCalls, notifier.lastInvite.Token)
	}

	// Duplicate issue while the first is live.
	c, rec = newJSONContext(e, http.MethodPost, `{"email":"new@example.com","name":"New Op"}`)
	c.Set("user_id", float64(inviter.ID))
	if err := h.Issue(c); err != nil {
		t.Fatalf("duplicate issue: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate issue status = %d, want 409", rec.Code)
	}

	// Validate.
	req := httptest.NewRequest(http.MethodGet, "/?token="+issued.Token, nil)
	rec = httptest.NewRecorder()
	if err := h.Validate(e.NewContext(req, rec)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var probe struct {
		Email     string `json:"email"`
		InvitedBy string `json:"invited_by"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &probe); err != nil {
		t.Fatalf("validate body: %v", err)
	}
	if probe.Email != "new@example.com" || probe.InvitedBy != "Sam Admin" {
		t.Fatalf("validate response = %+v", probe)
	}

	// Accept.
	body := fmt.Sprintf(`{"token":%q,"password":"hunter2hunter2"}`, issued.Token)
	c, rec = newJSONContext(e, http.MethodPost, body)
	if err := h.Accept(c); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("accept status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var session authResp
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("accept body: %v", err)
	}
	if session.Token == "" {
		t.Fatal("accept returned no access token")
	}
	if session.Operator.Email != "new@example.com" || session.Operator.Role != model.RoleAdmin {
		t.Fatalf("operator = %+v", session.Operator)
	}
	if session.Operator.Name != "New Op" {
		t.Fatalf("operator name = %q, want invite name fallback", session.Operator.Name)
	}
	if _, err := ops.GetByEmail(nil, "new@example.com"); err != nil {
		t.Fatalf("operator not persisted: %v", err)
	}

	// Second accept on the consumed token.
	c, rec = newJSONContext(e, http.MethodPost, body)
	if err := h.Accept(c); err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("second accept status = %d, want 409", rec.Code)
	}

	// The probe now reports used too.
	req = httptest.NewRequest(http.MethodGet, "/?token="+issued.Token, nil)
	rec = httptest.NewRecorder()
	if err := h.Validate(e.NewContext(req, rec)); err != nil {
		t.Fatalf("re-validate: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-validate status = %d, want 409", rec.Code)
	}
}

// TestInvitationExpiry checks a token past its window maps to 410 on both
// the probe and the consume path.
func TestInvitationExpiry(t *testing.T) {
	e := echo.New()
	ops := newFakeOperatorStore()
	inviter := ops.add(model.Operator{Email: "sam@averlane.com", Name: "Sam Admin", Role: model.RoleAdmin, IsActive: true})
	invites := newFakeInvitationStore(ops)
	issuedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := issuedAt
	h := testInvitationHandler(ops, invites, &fakeNotifier{}, func() time.Time { return clock })

	c, rec := newJSONContext(e, http.MethodPost, `{"email":"late@example.com","name":"Late Op"}`)
	c.Set("user_id", float64(inviter.ID))
	if err := h.Issue(c); err != nil {
		t.Fatalf("issue: %v", err)
	}
	var issued struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &issued); err != nil {
		t.Fatalf("issue body: %v", err)
	}

	// One second past the seven-day window.
	clock = issuedAt.Add(repository.InviteTTL + time.Second)

	req := httptest.NewRequest(http.MethodGet, "/?token="+issued.Token, nil)
	rec = httptest.NewRecorder()
	if err := h.Validate(e.NewContext(req, rec)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rec.Code != http.StatusGone {
		t.Fatalf("validate status = %d, want 410", rec.Code)
	}

	c, rec = newJSONContext(e, http.MethodPost, fmt.Sprintf(`{"token":%q,"password":"hunter2hunter2"}`, issued.Token))
	if err := h.Accept(c); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if rec.Code != http.StatusGone {
		t.Fatalf("accept status = %d, want 410", rec.Code)
	}
	if len(ops.operators) != 1 {
		t.Fatal("operator created from expired invitation")
	}
}

// TestIssueForExistingAccount maps the existing-operator case to 409.
func TestIssueForExistingAccount(t *testing.T) {
	e := echo.New()
	ops := newFakeOperatorStore()
	inviter := ops.add(model.Operator{Email: "sam@averlane.com", Name: "Sam Admin", Role: model.RoleAdmin, IsActive: true})
	h := testInvitationHandler(ops, newFakeInvitationStore(ops), &fakeNotifier{}, fixedClock(time.Now().UTC()))

	c, rec := newJSONContext(e, http.MethodPost, `{"email":"sam@averlane.com","name":"Sam Again"}`)
	c.Set("user_id", float64(inviter.ID))
	if err := h.Issue(c); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

// TestValidateUnknownToken maps a token that was never issued to 404.
func TestValidateUnknownToken(t *testing.T) {
	e := echo.New()
	ops := newFakeOperatorStore()
	h := testInvitationHandler(ops, newFakeInvitationStore(ops), &fakeNotifier{}, fixedClock(time.Now().UTC()))

	req := httptest.NewRequest(http.MethodGet, "/?token=nope", nil)
	rec := httptest.NewRecorder()
	if err := h.Validate(e.NewContext(req, rec)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// TestAcceptRejectsShortPassword enforces the minimum length before any
// store access.
func TestAcceptRejectsShortPassword(t *testing.T) {
	e := echo.New()
	ops := newFakeOperatorStore()
	h := testInvitationHandler(ops, newFakeInvitationStore(ops), &fakeNotifier{}, fixedClock(time.Now().UTC()))

	c, rec := newJSONContext(e, http.MethodPost, `{"token":"tok","password":"short"}`)
	if err := h.Accept(c); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// TestCancelLifecycle: cancelling a pending invitation works once, a
// consumed one is refused.
func TestCancelLifecycle(t *testing.T) {
	e := echo.New()
	ops := newFakeOperatorStore()
	inviter := ops.add(model.Operator{Email: "sam@averlane.com", Name: "Sam Admin", Role: model.RoleAdmin, IsActive: true})
	invites := newFakeInvitationStore(ops)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	h := testInvitationHandler(ops, invites, &fakeNotifier{}, fixedClock(now))

	pending, err := invites.Create(nil, "a@example.com", "A", nil, nil, inviter.ID, now)
	if err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	consumed, err := invites.Create(nil, "b@example.com", "B", nil, nil, inviter.ID, now)
	if err != nil {
		t.Fatalf("seed consumed: %v", err)
	}
	if _, err := invites.Consume(nil, consumed.Token, "", "hash", now); err != nil {
		t.Fatalf("consume seed: %v", err)
	}

	c, rec := newJSONContext(e, http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(pending.ID))
	if err := h.Cancel(c); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel pending status = %d, want 204", rec.Code)
	}

	c, rec = newJSONContext(e, http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(pending.ID))
	if err := h.Cancel(c); err != nil {
		t.Fatalf("cancel again: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cancel again status = %d, want 404", rec.Code)
	}

	c, rec = newJSONContext(e, http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(consumed.ID))
	if err := h.Cancel(c); err != nil {
		t.Fatalf("cancel consumed: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel consumed status = %d, want 409", rec.Code)
	}
}
