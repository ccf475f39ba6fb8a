package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/averlane/client-portal/internal/model"
)

// OperatorRepo persists portal operator accounts.
type OperatorRepo struct{ DB *sql.DB }

func NewOperatorRepo(db *sql.DB) *OperatorRepo { return &OperatorRepo{DB: db} }

const operatorColumns = "id,email,name,password_hash,role,is_active,created_at,updated_at"

func scanOperator(row interface{ Scan(...any) error }) (model.Operator, error) {
	var op model.Operator
	err := row.Scan(&op.ID, &op.Email, &op.Name, &op.PasswordHash, &op.Role, &op.IsActive, &op.CreatedAt, &op.UpdatedAt)
	return op, err
}

// GetByEmail fetches an operator by normalized email.
func (r *OperatorRepo) GetByEmail(ctx context.Context, email string) (model.Operator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	op, err := scanOperator(r.DB.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE email=? LIMIT 1", email))
	if err == sql.ErrNoRows {
		return model.Operator{}, ErrNotFound
	}
	return op, err
}

// GetByID fetches an operator by id.
func (r *OperatorRepo) GetByID(ctx context.Context, id uint64) (model.Operator, error) {
	op, err := scanOperator(r.DB.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return model.Operator{}, ErrNotFound
	}
	return op, err
}

// EmailExists reports whether an operator account exists for the email.
func (r *OperatorRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM operators WHERE email=?)", email).Scan(&exists)
	return exists, err
}

// Delete removes an operator and that operator's audit entries in one
// transaction.  Removing the history discards who-did-what information for
// those transitions; kept for compatibility with the portal's existing
// behavior rather than because it is the strongest auditability choice.
func (r *OperatorRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM status_history WHERE changed_by=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM operators WHERE id=?", id)
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
