// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values let handlers distinguish failure
// scenarios without inspecting driver errors: ErrNotFound maps to 404,
// the conflict family to 409, and ErrInvitationExpired to 410.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert would duplicate a unique email.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when an operation cannot proceed because of
// existing state, such as issuing a second invitation for an email that
// already has a live one.
var ErrConflict = errors.New("conflict")

// ErrInvitationUsed is returned when an invitation has already been
// consumed (or a cancel targets a consumed invitation).
var ErrInvitationUsed = errors.New("invitation already used")

// ErrInvitationExpired is returned when an invitation's validity window
// has passed without it being consumed.
var ErrInvitationExpired = errors.New("invitation expired")

// ErrAccountExists is returned when an operator account already exists for
// the invitation's email, whether it predates the invitation or was
// created through another path after issue.
var ErrAccountExists = errors.New("account already exists for this email")
