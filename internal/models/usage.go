package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Plan is the resolved allowance for a user. Exactly one of DailyLimit and
// MonthlyLimit is expected to be set; a daily cap selects a daily usage
// window, otherwise the window is the calendar month.
type Plan struct {
	ID           string
	Name         string
	DailyLimit   sql.NullInt64
	MonthlyLimit sql.NullInt64
	PriceTier    string
}

// UsageRecord is an append-only ledger row. JobID doubles as the idempotency
// key: at most one record may exist per job.
type UsageRecord struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Amount      int
	JobID       uuid.NullUUID
	UsedCredits bool
	CreatedAt   time.Time
}

// CreditPack is a purchased pool of extra units, consumed oldest-first after
// the plan allowance is exhausted.
type CreditPack struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Remaining int
	CreatedAt time.Time
}

// PackDebit is one computed decrement against a credit pack.
type PackDebit struct {
	PackID uuid.UUID
	Amount int
}

// UsageWindow is the allowance window a debit is measured against.
type UsageWindow struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Limit       int
	Used        int
}

// Remaining reports the unconsumed plan allowance in the window.
func (w UsageWindow) Remaining() int {
	if r := w.Limit - w.Used; r > 0 {
		return r
	}
	return 0
}
