package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Job lifecycle statuses. A job starts in preview, becomes preview_done once
// the watermarked render finishes, and only moves past confirming after the
// usage ledger has been debited.
const (
	StatusPreview     = "preview"
	StatusPreviewDone = "preview_done"
	StatusConfirming  = "confirming"
	StatusQueued      = "queued"
	StatusProcessing  = "processing"
	StatusDone        = "done"
	StatusError       = "error"
	StatusCanceled    = "canceled"
)

type Job struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Status       string
	Pieces       []Piece
	SheetsCount  sql.NullInt64
	ResultURLs   []string
	ArchiveURL   sql.NullString
	ErrorMessage sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Piece is one artwork instance to place on an output sheet. Qty expands
// into that many identical placements at render time.
type Piece struct {
	PrintID  uuid.UUID `json:"print_id"`
	Type     string    `json:"type"`
	Qty      int       `json:"qty"`
	WidthCm  float64   `json:"width_cm"`
	HeightCm float64   `json:"height_cm"`
}

// GeneratedFile records one rendered sheet image uploaded to storage.
type GeneratedFile struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	PageIndex int
	FilePath  string
	PublicURL string
	Preview   bool
	CreatedAt time.Time
}
