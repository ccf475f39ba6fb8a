package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/averlane/client-portal/internal/model"
	"github.com/averlane/client-portal/internal/notify"
	"github.com/averlane/client-portal/internal/repository"
	"github.com/averlane/client-portal/internal/stage"
)

// In-memory fakes for the store and notifier interfaces.  They mirror the
// repository semantics closely enough for handler behavior to be exercised
// without a database.

type fakeClientStore struct {
	clients map[uint64]model.Client
	history []model.StatusHistoryEntry
	nextID  uint64
	now     time.Time
}

func newFakeClientStore() *fakeClientStore {
	return &fakeClientStore{clients: map[uint64]model.Client{}, nextID: 1, now: time.Now().UTC()}
}

func (f *fakeClientStore) add(cl model.Client) model.Client {
	cl.ID = f.nextID
	f.nextID++
	cl.CreatedAt = f.now
	cl.UpdatedAt = f.now
	f.clients[cl.ID] = cl
	return cl
}

func (f *fakeClientStore) Create(_ context.Context, name, email string, phone *string) (model.Client, error) {
	for _, cl := range f.clients {
		if cl.Email == email {
			return model.Client{}, repository.ErrEmailExists
		}
	}
	return f.add(model.Client{Name: name, Email: email, Phone: phone, CurrentStage: 1}), nil
}

func (f *fakeClientStore) GetByID(_ context.Context, id uint64) (model.Client, error) {
	cl, ok := f.clients[id]
	if !ok {
		return model.Client{}, repository.ErrNotFound
	}
	return cl, nil
}

func (f *fakeClientStore) List(_ context.Context) ([]model.Client, error) {
	out := []model.Client{}
	for _, cl := range f.clients {
		out = append(out, cl)
	}
	return out, nil
}

func (f *fakeClientStore) Update(_ context.Context, id uint64, p repository.ClientPatch) (model.Client, error) {
	cl, ok := f.clients[id]
	if !ok {
		return model.Client{}, repository.ErrNotFound
	}
	if p.Name != nil {
		cl.Name = *p.Name
	}
	if p.Email != nil {
		cl.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Phone != nil {
		cl.Phone = *p.Phone
	}
	f.clients[id] = cl
	return cl, nil
}

func (f *fakeClientStore) Delete(_ context.Context, id uint64) error {
	if _, ok := f.clients[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.clients, id)
	kept := f.history[:0]
	for _, e := range f.history {
		if e.ClientID != id {
			kept = append(kept, e)
		}
	}
	f.history = kept
	return nil
}

func (f *fakeClientStore) UpdateStage(_ context.Context, clientID uint64, targetStage int, changedBy uint64, note *string) (model.Client, model.StatusHistoryEntry, error) {
	cl, ok := f.clients[clientID]
	if !ok {
		return model.Client{}, model.StatusHistoryEntry{}, repository.ErrNotFound
	}
	cl.CurrentStage = targetStage
	f.clients[clientID] = cl
	entry := model.StatusHistoryEntry{
		ID:        uint64(len(f.history) + 1),
		ClientID:  clientID,
		Stage:     targetStage,
		ChangedBy: changedBy,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	f.history = append(f.history, entry)
	return cl, entry, nil
}

func (f *fakeClientStore) ListByClient(_ context.Context, clientID uint64) ([]model.StatusHistoryEntry, error) {
	out := []model.StatusHistoryEntry{}
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].ClientID == clientID {
			out = append(out, f.history[i])
		}
	}
	return out, nil
}

// fakeNotifier records dispatch calls and returns a configured result.
type fakeNotifier struct {
	statusCalls  int
	welcomeCalls int
	inviteCalls  int
	lastStage    stage.Stage
	lastInvite   model.Invitation
	result       notify.Result
}

func (f *fakeNotifier) DispatchStatusUpdate(_ context.Context, _ model.Client, st stage.Stage, _ *string) notify.Result {
	f.statusCalls++
	f.lastStage = st
	return f.result
}

func (f *fakeNotifier) SendWelcome(_ context.Context, _ model.Client) notify.Result {
	f.welcomeCalls++
	return f.result
}

func (f *fakeNotifier) SendInvitation(_ context.Context, inv model.Invitation, _ string) notify.Result {
	f.inviteCalls++
	f.lastInvite = inv
	return f.result
}

// fakeTrackingStore applies the idempotent-increment open semantics in
// memory.
type fakeTrackingStore struct {
	records map[string]*model.TrackingRecord
	nextID  uint64
	listErr error
}

func newFakeTrackingStore() *fakeTrackingStore {
	return &fakeTrackingStore{records: map[string]*model.TrackingRecord{}, nextID: 1}
}

func (f *fakeTrackingStore) Create(_ context.Context, clientID *uint64, emailType, subject string) (model.TrackingRecord, error) {
	rec := &model.TrackingRecord{
		ID:         f.nextID,
		TrackingID: fmt.Sprintf("trk%06d", f.nextID),
		ClientID:   clientID,
		EmailType:  emailType,
		Subject:    subject,
		CreatedAt:  time.Now().UTC(),
	}
	f.nextID++
	f.records[rec.TrackingID] = rec
	return *rec, nil
}

func (f *fakeTrackingStore) RecordOpen(_ context.Context, trackingID string, now time.Time) error {
	rec, ok := f.records[trackingID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.OpenCount++
	if rec.FirstOpenedAt == nil {
		first := now
		rec.FirstOpenedAt = &first
	}
	last := now
	rec.LastOpenedAt = &last
	return nil
}

func (f *fakeTrackingStore) List(_ context.Context, clientID *uint64) ([]model.TrackingRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.TrackingRecord{}
	for _, rec := range f.records {
		if clientID == nil || (rec.ClientID != nil && *rec.ClientID == *clientID) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// fakeOperatorStore holds operator accounts keyed by id.
type fakeOperatorStore struct {
	operators map[uint64]model.Operator
	nextID    uint64
}

func newFakeOperatorStore() *fakeOperatorStore {
	return &fakeOperatorStore{operators: map[uint64]model.Operator{}, nextID: 1}
}

func (f *fakeOperatorStore) add(op model.Operator) model.Operator {
	op.ID = f.nextID
	f.nextID++
	f.operators[op.ID] = op
	return op
}

func (f *fakeOperatorStore) GetByEmail(_ context.Context, email string) (model.Operator, error) {
	for _, op := range f.operators {
		if op.Email == email {
			return op, nil
		}
	}
	return model.Operator{}, repository.ErrNotFound
}

func (f *fakeOperatorStore) GetByID(_ context.Context, id uint64) (model.Operator, error) {
	op, ok := f.operators[id]
	if !ok {
		return model.Operator{}, repository.ErrNotFound
	}
	return op, nil
}

func (f *fakeOperatorStore) Delete(_ context.Context, id uint64) error {
	if _, ok := f.operators[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.operators, id)
	return nil
}

// fakeInvitationStore mirrors the repository's lifecycle rules, including
// the consume-time re-checks, so handler tests can run the full round
// trip.
type fakeInvitationStore struct {
	invitations map[string]*model.Invitation
	operators   *fakeOperatorStore
	nextID      uint64
	tokenSeq    int
}

func newFakeInvitationStore(ops *fakeOperatorStore) *fakeInvitationStore {
	return &fakeInvitationStore{invitations: map[string]*model.Invitation{}, operators: ops, nextID: 1}
}

func (f *fakeInvitationStore) Create(_ context.Context, email, name string, contactEmail, contactPhone *string, invitedBy uint64, now time.Time) (model.Invitation, error) {
	for _, op := range f.operators.operators {
		if op.Email == email {
			return model.Invitation{}, repository.ErrAccountExists
		}
	}
	for _, inv := range f.invitations {
		if inv.Email == email && inv.UsedAt == nil && now.Before(inv.ExpiresAt) {
			return model.Invitation{}, repository.ErrConflict
		}
	}
	f.tokenSeq++
	inv := &model.Invitation{
		ID:           f.nextID,
		Email:        email,
		Name:         name,
		Token:        "token-" + strings.Repeat("x", f.tokenSeq),
		ContactEmail: contactEmail,
		ContactPhone: contactPhone,
		InvitedByID:  invitedBy,
		ExpiresAt:    now.Add(repository.InviteTTL),
		CreatedAt:    now,
	}
	f.nextID++
	f.invitations[inv.Token] = inv
	return *inv, nil
}

func (f *fakeInvitationStore) check(inv *model.Invitation, now time.Time) error {
	if inv.UsedAt != nil {
		return repository.ErrInvitationUsed
	}
	if !now.Before(inv.ExpiresAt) {
		return repository.ErrInvitationExpired
	}
	for _, op := range f.operators.operators {
		if op.Email == inv.Email {
			return repository.ErrAccountExists
		}
	}
	return nil
}

func (f *fakeInvitationStore) Validate(_ context.Context, token string, now time.Time) (model.Invitation, error) {
	inv, ok := f.invitations[token]
	if !ok {
		return model.Invitation{}, repository.ErrNotFound
	}
	if err := f.check(inv, now); err != nil {
		return model.Invitation{}, err
	}
	return *inv, nil
}

func (f *fakeInvitationStore) Consume(_ context.Context, token, name, passwordHash string, now time.Time) (model.Operator, error) {
	inv, ok := f.invitations[token]
	if !ok {
		return model.Operator{}, repository.ErrNotFound
	}
	if err := f.check(inv, now); err != nil {
		return model.Operator{}, err
	}
	if name == "" {
		name = inv.Name
	}
	op := f.operators.add(model.Operator{
		Email:        inv.Email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		IsActive:     true,
	})
	used := now
	inv.UsedAt = &used
	return op, nil
}

func (f *fakeInvitationStore) Cancel(_ context.Context, id uint64) error {
	for token, inv := range f.invitations {
		if inv.ID == id {
			if inv.UsedAt != nil {
				return repository.ErrInvitationUsed
			}
			delete(f.invitations, token)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeInvitationStore) List(_ context.Context) ([]model.Invitation, error) {
	out := []model.Invitation{}
	for _, inv := range f.invitations {
		out = append(out, *inv)
	}
	return out, nil
}
