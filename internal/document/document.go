// Package document holds the document and collection records that the
// ingestion pipeline mutates.
package document

import (
	"time"
)

// Status is the processing state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReady, StatusFailed:
		return true
	}
	return false
}

// Document is an uploaded file tracked through the ingestion pipeline.
type Document struct {
	ID             string
	OrganizationID string
	CollectionID   string
	Name           string
	ObjectKey      string
	MimeType       string
	Status         Status
	ChunkCount     int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Collection groups documents under one searchable namespace.
type Collection struct {
	ID             string
	OrganizationID string
	Name           string
	// DocumentCount tracks documents in ready state only.
	DocumentCount int
}
