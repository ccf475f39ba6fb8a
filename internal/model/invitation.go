package model

import "time"

// Invitation is a single-use, time-bounded grant to create one operator
// account for a pre-specified email address.  The token is a random secret
// unrelated to the primary key.  UsedAt transitions from nil to a timestamp
// exactly once, atomically with creation of the operator account.
type Invitation struct {
	ID           uint64     // admin_invitations.id
	Email        string     // admin_invitations.email
	Name         string     // admin_invitations.name
	Token        string     // admin_invitations.token (opaque, unique)
	ContactEmail *string    // admin_invitations.contact_email (nullable)
	ContactPhone *string    // admin_invitations.contact_phone (nullable)
	InvitedByID  uint64     // admin_invitations.invited_by (operator id)
	ExpiresAt    time.Time  // admin_invitations.expires_at
	UsedAt       *time.Time // admin_invitations.used_at (nullable)
	CreatedAt    time.Time  // admin_invitations.created_at
}

// Expired reports whether the invitation's validity window has passed.
func (i Invitation) Expired(now time.Time) bool { return !now.Before(i.ExpiresAt) }

// Used reports whether the invitation has already been consumed.
func (i Invitation) Used() bool { return i.UsedAt != nil }
