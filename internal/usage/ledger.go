// Package usage meters job consumption against plan allowances and credit
// packs.
package usage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"print-wizard-backend/internal/models"
)

// ErrLimitExceeded means the plan window plus all credit packs cannot cover
// the requested amount. Nothing is written when this is returned.
var ErrLimitExceeded = errors.New("usage limit exceeded")

// Store is the persistence surface the ledger needs. ListOpenCreditPacks
// must return packs with remaining > 0 ordered oldest first; ApplyDebit must
// commit the usage row and all pack decrements atomically.
type Store interface {
	GetPlan(userID uuid.UUID) (*models.Plan, error)
	HasUsageForJob(jobID uuid.UUID) (bool, error)
	SumUsage(userID uuid.UUID, from, to time.Time) (int, error)
	ListOpenCreditPacks(userID uuid.UUID) ([]models.CreditPack, error)
	ApplyDebit(record *models.UsageRecord, debits []models.PackDebit) error
}

type Ledger struct {
	store Store
	now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Window resolves the user's current allowance window: daily when the plan
// carries a daily cap, calendar-month otherwise.
func (l *Ledger) Window(userID uuid.UUID) (models.UsageWindow, error) {
	plan, err := l.store.GetPlan(userID)
	if err != nil {
		return models.UsageWindow{}, fmt.Errorf("failed to resolve plan: %w", err)
	}

	now := l.now().UTC()
	var win models.UsageWindow
	if plan.DailyLimit.Valid {
		win.PeriodStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		win.PeriodEnd = win.PeriodStart.AddDate(0, 0, 1)
		win.Limit = int(plan.DailyLimit.Int64)
	} else {
		win.PeriodStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		win.PeriodEnd = win.PeriodStart.AddDate(0, 1, 0)
		win.Limit = int(plan.MonthlyLimit.Int64)
	}

	used, err := l.store.SumUsage(userID, win.PeriodStart, win.PeriodEnd)
	if err != nil {
		return models.UsageWindow{}, fmt.Errorf("failed to sum usage: %w", err)
	}
	win.Used = used
	return win, nil
}

// Debit charges amount units for a job, drawing from the plan window first
// and then from credit packs oldest-first. The call is idempotent on jobID:
// a job that was already charged is a no-op success. On ErrLimitExceeded no
// record is inserted and no pack is touched.
func (l *Ledger) Debit(userID uuid.UUID, amount int, jobID uuid.UUID) error {
	charged, err := l.store.HasUsageForJob(jobID)
	if err != nil {
		return fmt.Errorf("failed to check existing usage: %w", err)
	}
	if charged {
		return nil
	}

	win, err := l.Window(userID)
	if err != nil {
		return err
	}

	record := &models.UsageRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		JobID:     uuid.NullUUID{UUID: jobID, Valid: true},
		CreatedAt: l.now().UTC(),
	}

	if amount <= win.Remaining() {
		return l.store.ApplyDebit(record, nil)
	}

	shortfall := amount - win.Remaining()
	packs, err := l.store.ListOpenCreditPacks(userID)
	if err != nil {
		return fmt.Errorf("failed to load credit packs: %w", err)
	}

	var debits []models.PackDebit
	for _, pack := range packs {
		if shortfall == 0 {
			break
		}
		take := pack.Remaining
		if take > shortfall {
			take = shortfall
		}
		debits = append(debits, models.PackDebit{PackID: pack.ID, Amount: take})
		shortfall -= take
	}

	if shortfall > 0 {
		return fmt.Errorf("%w: %d units short", ErrLimitExceeded, shortfall)
	}

	record.UsedCredits = true
	return l.store.ApplyDebit(record, debits)
}
