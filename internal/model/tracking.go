package model

import "time"

// Email types recorded on tracking rows.
const (
	EmailTypeStatusUpdate    = "status_update"
	EmailTypeWelcome         = "welcome"
	EmailTypeAdminInvitation = "admin_invitation"
)

// TrackingRecord is created synchronously for every outbound email, before
// the provider call completes and regardless of whether it succeeds.  The
// opaque TrackingID is embedded in the message as a pixel URL; each fetch
// of that URL increments OpenCount.  FirstOpenedAt is set at most once,
// LastOpenedAt on every open.
type TrackingRecord struct {
	ID            uint64     // email_tracking.id
	TrackingID    string     // email_tracking.tracking_id (opaque, unique)
	ClientID      *uint64    // email_tracking.client_id (nullable; invitations have no client)
	EmailType     string     // email_tracking.email_type
	Subject       string     // email_tracking.subject
	FirstOpenedAt *time.Time // email_tracking.first_opened_at (nullable)
	LastOpenedAt  *time.Time // email_tracking.last_opened_at (nullable)
	OpenCount     int        // email_tracking.open_count
	CreatedAt     time.Time  // email_tracking.created_at
}
