package model

import "time"

// StatusHistoryEntry is one row of the append-only audit ledger.  Entries
// are immutable once written and record the stage a client was moved to,
// who moved them, and an optional free-form note.  Stage values across a
// client's entries are not monotonic: operators may move a client backward
// and the ledger records that as-is.
type StatusHistoryEntry struct {
	ID        uint64    // status_history.id
	ClientID  uint64    // status_history.client_id
	Stage     int       // status_history.stage (resulting stage)
	ChangedBy uint64    // status_history.changed_by (operator id)
	Note      *string   // status_history.note (nullable)
	CreatedAt time.Time // status_history.created_at
}
