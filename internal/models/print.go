package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Allowed artwork slot types on a print.
var SlotTypes = map[string]bool{
	"front": true,
	"back":  true,
	"extra": true,
}

type Print struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	SKU         string
	WidthCm     float64
	HeightCm    float64
	IsComposite bool
	CreatedAt   time.Time
}

// PrintFile is one uploaded artwork file occupying a slot on a print.
type PrintFile struct {
	ID        uuid.UUID
	PrintID   uuid.UUID
	Type      string
	FilePath  string
	PublicURL string
	WidthCm   sql.NullFloat64
	HeightCm  sql.NullFloat64
	CreatedAt time.Time
}
