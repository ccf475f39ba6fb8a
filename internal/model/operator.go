package model

import "time"

// Operator roles.  Admins manage clients and the pipeline; the CLIENT role
// exists for portal logins with read-only visibility into their own file.
const (
	RoleAdmin  = "ADMIN"
	RoleClient = "CLIENT"
)

// Operator mirrors the 'operators' table.
type Operator struct {
	ID           uint64    // operators.id
	Email        string    // operators.email
	Name         string    // operators.name
	PasswordHash string    // operators.password_hash
	Role         string    // operators.role
	IsActive     bool      // operators.is_active
	CreatedAt    time.Time // operators.created_at
	UpdatedAt    time.Time // operators.updated_at
}
