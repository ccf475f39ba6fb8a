package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/averlane/client-portal/internal/model"
)

// ClientRepo provides persistence for clients and their stage transitions.
type ClientRepo struct{ DB *sql.DB }

func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{DB: db} }

const clientColumns = "id,name,email,phone,current_stage,created_at,updated_at"

func scanClient(row interface{ Scan(...any) error }) (model.Client, error) {
	var (
		cl    model.Client
		phone sql.NullString
	)
	err := row.Scan(&cl.ID, &cl.Name, &cl.Email, &phone, &cl.CurrentStage, &cl.CreatedAt, &cl.UpdatedAt)
	if phone.Valid {
		cl.Phone = &phone.String
	}
	return cl, err
}

// Create inserts a client at stage 1 and returns the stored row.  No code
// path creates a client at any other stage.
func (r *ClientRepo) Create(ctx context.Context, name, email string, phone *string) (model.Client, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO clients (name, email, phone, current_stage) VALUES (?,?,?,1)",
		name, email, phone)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return model.Client{}, ErrEmailExists
		}
		return model.Client{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Client{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a client by id.  Returns ErrNotFound when absent.
func (r *ClientRepo) GetByID(ctx context.Context, id uint64) (model.Client, error) {
	cl, err := scanClient(r.DB.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return model.Client{}, ErrNotFound
	}
	return cl, err
}

// List returns all clients ordered by creation time, newest first.
func (r *ClientRepo) List(ctx context.Context) ([]model.Client, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+clientColumns+" FROM clients ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Client{}
	for rows.Next() {
		cl, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

// ClientPatch carries optional field updates for a client.  A nil field
// means "leave unchanged"; presence is a type-level distinction, not a
// runtime check against a dynamic payload.  Phone uses a double pointer so
// callers can distinguish "unchanged" (nil) from "clear" (*nil).
type ClientPatch struct {
	Name  *string
	Email *string
	Phone **string
}

// Update applies a patch and returns the stored row.  An empty patch is a
// no-op that still verifies the client exists.
func (r *ClientRepo) Update(ctx context.Context, id uint64, p ClientPatch) (model.Client, error) {
	sets := []string{}
	args := []any{}
	if p.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *p.Name)
	}
	if p.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(*p.Email)))
	}
	if p.Phone != nil {
		sets = append(sets, "phone=?")
		args = append(args, *p.Phone)
	}
	if len(sets) > 0 {
		args = append(args, id)
		_, err := r.DB.ExecContext(ctx,
			"UPDATE clients SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "1062") {
				return model.Client{}, ErrEmailExists
			}
			return model.Client{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// Delete removes a client together with its status history.  History rows
// belong to the client, so they go in the same transaction.
func (r *ClientRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM status_history WHERE client_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM clients WHERE id=?", id)
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
	return tx.Commit()
}

// UpdateStage moves a client to targetStage and appends the matching audit
// entry in one transaction, so no reader can observe the new stage without
// its history row or vice versa.  The caller has already validated the
// stage number; this method only guarantees atomicity.  Returns the updated
// client and the new ledger entry.
func (r *ClientRepo) UpdateStage(ctx context.Context, clientID uint64, targetStage int, changedBy uint64, note *string) (model.Client, model.StatusHistoryEntry, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Client{}, model.StatusHistoryEntry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE clients SET current_stage=? WHERE id=?", targetStage, clientID)
	if err != nil {
		return model.Client{}, model.StatusHistoryEntry{}, err
	}
	// RowsAffected is 0 both for a missing client and for a no-op move to
	// the current stage, so existence is checked explicitly.
	if n, err := res.RowsAffected(); err != nil {
		return model.Client{}, model.StatusHistoryEntry{}, err
	} else if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM clients WHERE id=?)", clientID).Scan(&exists); err != nil {
			return model.Client{}, model.StatusHistoryEntry{}, err
		}
		if !exists {
			return model.Client{}, model.StatusHistoryEntry{}, ErrNotFound
		}
	}

	ins, err := tx.ExecContext(ctx,
		"INSERT INTO status_history (client_id, stage, changed_by, note) VALUES (?,?,?,?)",
		clientID, targetStage, changedBy, note)
	if err != nil {
		return model.Client{}, model.StatusHistoryEntry{}, err
	}
	entryID, err := ins.LastInsertId()
	if err != nil {
		return model.Client{}, model.StatusHistoryEntry{}, err
	}

	var entry model.StatusHistoryEntry
	var entryNote sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT id,client_id,stage,changed_by,note,created_at FROM status_history WHERE id=?",
		entryID).Scan(&entry.ID, &entry.ClientID, &entry.Stage, &entry.ChangedBy, &entryNote, &entry.CreatedAt)
	if err != nil {
		return model.Client{}, model.StatusHistoryEntry{}, err
	}
	if entryNote.Valid {
		entry.Note = &entryNote.String
	}

	cl, err := scanClient(tx.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE id=? LIMIT 1", clientID))
	if err != nil {
		return model.Client{}, model.StatusHistoryEntry{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Client{}, model.StatusHistoryEntry{}, err
	}
	return cl, entry, nil
}
