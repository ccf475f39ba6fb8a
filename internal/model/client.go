package model

import "time"

// Client is a person being tracked through the application pipeline.
// CurrentStage is the single source of truth for pipeline position and is
// only ever mutated as a side effect of a validated stage transition.
//
// Fields:
//
//	ID           – primary key identifier.
//	Name         – client's full name.
//	Email        – contact email, unique.
//	Phone        – contact phone (nullable); absence skips the SMS channel.
//	CurrentStage – stage ID in [1, stage.Total]; new clients start at 1.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Client struct {
	ID           uint64    // clients.id
	Name         string    // clients.name
	Email        string    // clients.email
	Phone        *string   // clients.phone (nullable)
	CurrentStage int       // clients.current_stage
	CreatedAt    time.Time // clients.created_at
	UpdatedAt    time.Time // clients.updated_at
}
