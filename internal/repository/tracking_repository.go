package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/averlane/client-portal/internal/model"
	"github.com/averlane/client-portal/internal/utils"
)

// TrackingRepo persists email tracking records.  A record is written for
// every outbound email before the provider is called; the open-confirmation
// update is a single atomic statement so repeated pixel fetches never race
// a read-modify-write cycle.
type TrackingRepo struct{ DB *sql.DB }

func NewTrackingRepo(db *sql.DB) *TrackingRepo { return &TrackingRepo{DB: db} }

const trackingColumns = "id,tracking_id,client_id,email_type,subject,first_opened_at,last_opened_at,open_count,created_at"

func scanTracking(row interface{ Scan(...any) error }) (model.TrackingRecord, error) {
	var (
		t        model.TrackingRecord
		clientID sql.NullInt64
		first    sql.NullTime
		last     sql.NullTime
	)
	err := row.Scan(&t.ID, &t.TrackingID, &clientID, &t.EmailType, &t.Subject, &first, &last, &t.OpenCount, &t.CreatedAt)
	if clientID.Valid {
		id := uint64(clientID.Int64)
		t.ClientID = &id
	}
	if first.Valid {
		t.FirstOpenedAt = &first.Time
	}
	if last.Valid {
		t.LastOpenedAt = &last.Time
	}
	return t, err
}

// Create inserts a tracking record with a fresh opaque tracking id and
// returns the stored row.  clientID is nil for emails not tied to a client
// (admin invitations).
func (r *TrackingRepo) Create(ctx context.Context, clientID *uint64, emailType, subject string) (model.TrackingRecord, error) {
	trackingID, err := utils.NewOpaqueToken(16) // 32 hex chars
	if err != nil {
		return model.TrackingRecord{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO email_tracking (tracking_id, client_id, email_type, subject, open_count) VALUES (?,?,?,?,0)",
		trackingID, clientID, emailType, subject)
	if err != nil {
		return model.TrackingRecord{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.TrackingRecord{}, err
	}
	t, err := scanTracking(r.DB.QueryRowContext(ctx,
		"SELECT "+trackingColumns+" FROM email_tracking WHERE id=? LIMIT 1", id))
	return t, err
}

// RecordOpen applies one open confirmation: open_count increments, the
// last-open timestamp refreshes, and the first-open timestamp is set only
// when still null.  Safe to call any number of times.  Returns ErrNotFound
// for unknown tracking ids; the pixel handler ignores that.
func (r *TrackingRepo) RecordOpen(ctx context.Context, trackingID string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE email_tracking SET open_count = open_count + 1, first_opened_at = COALESCE(first_opened_at, ?), last_opened_at = ? WHERE tracking_id = ?",
		now, now, trackingID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByTrackingID fetches a record by its opaque tracking id.
func (r *TrackingRepo) GetByTrackingID(ctx context.Context, trackingID string) (model.TrackingRecord, error) {
	t, err := scanTracking(r.DB.QueryRowContext(ctx,
		"SELECT "+trackingColumns+" FROM email_tracking WHERE tracking_id=? LIMIT 1", trackingID))
	if err == sql.ErrNoRows {
		return model.TrackingRecord{}, ErrNotFound
	}
	return t, err
}

// List returns tracking records, optionally filtered by client, newest
// first.  Backs the operator diagnostics endpoint.
func (r *TrackingRepo) List(ctx context.Context, clientID *uint64) ([]model.TrackingRecord, error) {
	q := "SELECT " + trackingColumns + " FROM email_tracking"
	args := []any{}
	if clientID != nil {
		q += " WHERE client_id=?"
		args = append(args, *clientID)
	}
	q += " ORDER BY created_at DESC, id DESC"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TrackingRecord{}
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
