// Package queue defines message payloads exchanged over the message broker.
package queue

// StageChangedEvent is published after a stage transition commits.  It
// carries enough information for downstream consumers to log or trigger
// analytics without querying the primary database.  Notification outcomes
// are included so the ops log shows partial delivery failures.
type StageChangedEvent struct {
	ClientID      uint64  `json:"client_id"`
	ClientName    string  `json:"client_name"`
	Stage         int     `json:"stage"`
	StageName     string  `json:"stage_name"`
	PreviousStage int     `json:"previous_stage"`
	ChangedBy     uint64  `json:"changed_by"`
	Note          *string `json:"note,omitempty"`
	EmailSent     bool    `json:"email_sent"`
	SMSSent       bool    `json:"sms_sent"`
	ChangedAt     string  `json:"changed_at"`
}
