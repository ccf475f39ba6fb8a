package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/averlane/client-portal/internal/model"
	"github.com/averlane/client-portal/internal/utils"
)

// InviteTTL is how long an issued invitation stays consumable.
const InviteTTL = 7 * 24 * time.Hour

// InvitationRepo manages the single-use operator invitation lifecycle.
// Consumption is the one place in the system needing a multi-entity atomic
// write: the operator insert and the used_at stamp commit together or not
// at all.
type InvitationRepo struct{ DB *sql.DB }

func NewInvitationRepo(db *sql.DB) *InvitationRepo { return &InvitationRepo{DB: db} }

const invitationColumns = "id,email,name,token,contact_email,contact_phone,invited_by,expires_at,used_at,created_at"

func scanInvitation(row interface{ Scan(...any) error }) (model.Invitation, error) {
	var (
		inv          model.Invitation
		contactEmail sql.NullString
		contactPhone sql.NullString
		usedAt       sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.Email, &inv.Name, &inv.Token, &contactEmail, &contactPhone,
		&inv.InvitedByID, &inv.ExpiresAt, &usedAt, &inv.CreatedAt)
	if contactEmail.Valid {
		inv.ContactEmail = &contactEmail.String
	}
	if contactPhone.Valid {
		inv.ContactPhone = &contactPhone.String
	}
	if usedAt.Valid {
		inv.UsedAt = &usedAt.Time
	}
	return inv, err
}

// checkState applies the validity rules shared by Validate and Consume.
// Consume re-runs it under a row lock, so a token that passed an earlier
// Validate can still be rejected here.
func checkState(inv model.Invitation, now time.Time) error {
	if inv.Used() {
		return ErrInvitationUsed
	}
	if inv.Expired(now) {
		return ErrInvitationExpired
	}
	return nil
}

// Create issues a new invitation.  It refuses when an operator account
// already exists for the email or another unexpired, unused invitation is
// outstanding.  The token is a fresh 64-char random secret, unrelated to
// any primary key.
func (r *InvitationRepo) Create(ctx context.Context, email, name string, contactEmail, contactPhone *string, invitedBy uint64, now time.Time) (model.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var accountExists bool
	if err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM operators WHERE email=?)", email).Scan(&accountExists); err != nil {
		return model.Invitation{}, err
	}
	if accountExists {
		return model.Invitation{}, ErrAccountExists
	}

	var liveExists bool
	if err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM admin_invitations WHERE email=? AND used_at IS NULL AND expires_at > ?)",
		email, now).Scan(&liveExists); err != nil {
		return model.Invitation{}, err
	}
	if liveExists {
		return model.Invitation{}, ErrConflict
	}

	token, err := utils.NewOpaqueToken(32) // 64 hex chars
	if err != nil {
		return model.Invitation{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO admin_invitations (email, name, token, contact_email, contact_phone, invited_by, expires_at) VALUES (?,?,?,?,?,?,?)",
		email, name, token, contactEmail, contactPhone, invitedBy, now.Add(InviteTTL))
	if err != nil {
		return model.Invitation{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Invitation{}, err
	}
	inv, err := scanInvitation(r.DB.QueryRowContext(ctx,
		"SELECT "+invitationColumns+" FROM admin_invitations WHERE id=? LIMIT 1", id))
	return inv, err
}

// GetByToken fetches an invitation by its secret token.
func (r *InvitationRepo) GetByToken(ctx context.Context, token string) (model.Invitation, error) {
	inv, err := scanInvitation(r.DB.QueryRowContext(ctx,
		"SELECT "+invitationColumns+" FROM admin_invitations WHERE token=? LIMIT 1", token))
	if err == sql.ErrNoRows {
		return model.Invitation{}, ErrNotFound
	}
	return inv, err
}

// Validate is the read-only probe behind the signup page.  It checks the
// token exists, is unused, is unexpired, and that no operator account has
// appeared for the email since issue, without consuming anything.
func (r *InvitationRepo) Validate(ctx context.Context, token string, now time.Time) (model.Invitation, error) {
	inv, err := r.GetByToken(ctx, token)
	if err != nil {
		return model.Invitation{}, err
	}
	if err := checkState(inv, now); err != nil {
		return model.Invitation{}, err
	}
	var accountExists bool
	if err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM operators WHERE email=?)", inv.Email).Scan(&accountExists); err != nil {
		return model.Invitation{}, err
	}
	if accountExists {
		return model.Invitation{}, ErrAccountExists
	}
	return inv, nil
}

// Consume redeems the invitation: it re-runs every Validate check under a
// row lock, creates the operator account, and stamps used_at, all in one
// transaction.  Two concurrent consumes for the same token serialize on
// the lock; the loser sees used_at set and gets ErrInvitationUsed.
func (r *InvitationRepo) Consume(ctx context.Context, token, name, passwordHash string, now time.Time) (model.Operator, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Operator{}, err
	}
	defer func() { _ = tx.Rollback() }()

	inv, err := scanInvitation(tx.QueryRowContext(ctx,
		"SELECT "+invitationColumns+" FROM admin_invitations WHERE token=? LIMIT 1 FOR UPDATE", token))
	if err == sql.ErrNoRows {
		return model.Operator{}, ErrNotFound
	}
	if err != nil {
		return model.Operator{}, err
	}
	if err := checkState(inv, now); err != nil {
		return model.Operator{}, err
	}

	var accountExists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM operators WHERE email=?)", inv.Email).Scan(&accountExists); err != nil {
		return model.Operator{}, err
	}
	if accountExists {
		return model.Operator{}, ErrAccountExists
	}

	if strings.TrimSpace(name) == "" {
		name = inv.Name
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO operators (email, name, password_hash, role, is_active) VALUES (?,?,?,?,1)",
		inv.Email, name, passwordHash, model.RoleAdmin)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return model.Operator{}, ErrAccountExists
		}
		return model.Operator{}, err
	}
	operatorID, err := res.LastInsertId()
	if err != nil {
		return model.Operator{}, err
	}

	upd, err := tx.ExecContext(ctx,
		"UPDATE admin_invitations SET used_at=? WHERE id=? AND used_at IS NULL", now, inv.ID)
	if err != nil {
		return model.Operator{}, err
	}
	if n, err := upd.RowsAffected(); err != nil {
		return model.Operator{}, err
	} else if n == 0 {
		return model.Operator{}, ErrInvitationUsed
	}

	op, err := scanOperator(tx.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE id=? LIMIT 1", operatorID))
	if err != nil {
		return model.Operator{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Operator{}, err
	}
	return op, nil
}

// Cancel deletes an unused invitation outright.  Consumed invitations are
// part of the account-creation record and cannot be cancelled.
func (r *InvitationRepo) Cancel(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM admin_invitations WHERE id=? AND used_at IS NULL", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Nothing deleted: distinguish "consumed" from "absent".
	var exists bool
	if err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM admin_invitations WHERE id=?)", id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrInvitationUsed
	}
	return ErrNotFound
}

// List returns all invitations, newest first.
func (r *InvitationRepo) List(ctx context.Context) ([]model.Invitation, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+invitationColumns+" FROM admin_invitations ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
