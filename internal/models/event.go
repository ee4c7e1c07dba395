package models

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	EventBlock    EventKind = "BLOCK"
	EventClick    EventKind = "CLICK"
	EventDebugger EventKind = "DEBUGGER"
	EventQuestion EventKind = "QUESTION"
	EventResource EventKind = "RESOURCE"
	EventFile     EventKind = "FILE"
	EventZip      EventKind = "ZIP"
)

// Event is one append-only telemetry record. ID is assigned by the database
// at insertion and is the tie-break key when client timestamps coincide;
// the canonical ordering everywhere is (OccurredAt, ID).
type Event struct {
	ID           int64     `json:"id"`
	ExperimentID int64     `json:"experiment_id"`
	UserID       int64     `json:"user_id"`
	OccurredAt   time.Time `json:"occurred_at"`
	Kind         EventKind `json:"kind"`
	Type         string    `json:"type"`
	Event        string    `json:"event"`

	// BLOCK events: full project document plus the raw code marker used for
	// change detection.
	Code    string          `json:"code,omitempty"`
	Project json.RawMessage `json:"project,omitempty"`

	// FILE events carry a named resource blob; ZIP events carry a complete
	// client-packaged archive in Blob with BlobName unset.
	BlobName string `json:"blob_name,omitempty"`
	Blob     []byte `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// EventCount is one row of the per-kind aggregation.
type EventCount struct {
	Kind  EventKind `json:"kind"`
	Type  string    `json:"type"`
	Event string    `json:"event"`
	Count int64     `json:"count"`
}
