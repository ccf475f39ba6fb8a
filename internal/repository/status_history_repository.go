package repository

import (
	"context"
	"database/sql"

	"github.com/averlane/client-portal/internal/model"
)

// StatusHistoryRepo reads the append-only audit ledger.  Writes happen
// inside ClientRepo.UpdateStage so the stage mutation and its ledger entry
// commit together; nothing updates or deletes individual entries.
type StatusHistoryRepo struct{ DB *sql.DB }

func NewStatusHistoryRepo(db *sql.DB) *StatusHistoryRepo { return &StatusHistoryRepo{DB: db} }

// ListByClient returns a client's history, newest first.
func (r *StatusHistoryRepo) ListByClient(ctx context.Context, clientID uint64) ([]model.StatusHistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,client_id,stage,changed_by,note,created_at FROM status_history WHERE client_id=? ORDER BY created_at DESC, id DESC",
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StatusHistoryEntry{}
	for rows.Next() {
		var (
			e    model.StatusHistoryEntry
			note sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Stage, &e.ChangedBy, &note, &e.CreatedAt); err != nil {
			return nil, err
		}
		if note.Valid {
			e.Note = &note.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
