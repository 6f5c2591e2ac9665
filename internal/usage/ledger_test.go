package usage

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"print-wizard-backend/internal/models"
)

type memStore struct {
	plan    *models.Plan
	records []*models.UsageRecord
	packs   []models.CreditPack
}

func (s *memStore) GetPlan(userID uuid.UUID) (*models.Plan, error) {
	return s.plan, nil
}

func (s *memStore) HasUsageForJob(jobID uuid.UUID) (bool, error) {
	for _, r := range s.records {
		if r.JobID.Valid && r.JobID.UUID == jobID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) SumUsage(userID uuid.UUID, from, to time.Time) (int, error) {
	total := 0
	for _, r := range s.records {
		if r.UserID == userID && !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
			total += r.Amount
		}
	}
	return total, nil
}

func (s *memStore) ListOpenCreditPacks(userID uuid.UUID) ([]models.CreditPack, error) {
	var open []models.CreditPack
	for _, p := range s.packs {
		if p.UserID == userID && p.Remaining > 0 {
			open = append(open, p)
		}
	}
	return open, nil
}

func (s *memStore) ApplyDebit(record *models.UsageRecord, debits []models.PackDebit) error {
	for _, d := range debits {
		for i := range s.packs {
			if s.packs[i].ID == d.PackID {
				s.packs[i].Remaining -= d.Amount
			}
		}
	}
	s.records = append(s.records, record)
	return nil
}

func monthlyPlan(limit int64) *models.Plan {
	return &models.Plan{ID: "pro", MonthlyLimit: sql.NullInt64{Int64: limit, Valid: true}}
}

func dailyPlan(limit int64) *models.Plan {
	return &models.Plan{ID: "free", DailyLimit: sql.NullInt64{Int64: limit, Valid: true}}
}

func fixedLedger(store Store, at time.Time) *Ledger {
	l := NewLedger(store)
	l.now = func() time.Time { return at }
	return l
}

func TestWindowMonthly(t *testing.T) {
	now := time.Date(2026, 8, 15, 13, 45, 0, 0, time.UTC)
	l := fixedLedger(&memStore{plan: monthlyPlan(10)}, now)

	win, err := l.Window(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), win.PeriodStart)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), win.PeriodEnd)
	assert.Equal(t, 10, win.Limit)
}

func TestWindowDaily(t *testing.T) {
	now := time.Date(2026, 8, 15, 23, 59, 0, 0, time.UTC)
	l := fixedLedger(&memStore{plan: dailyPlan(2)}, now)

	win, err := l.Window(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), win.PeriodStart)
	assert.Equal(t, time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC), win.PeriodEnd)
	assert.Equal(t, 2, win.Limit)
}

func TestWindowSumsOnlyRowsInWindow(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	store := &memStore{
		plan: monthlyPlan(10),
		records: []*models.UsageRecord{
			{UserID: userID, Amount: 3, CreatedAt: now.AddDate(0, 0, -1)},
			{UserID: userID, Amount: 5, CreatedAt: now.AddDate(0, -1, 0)}, // last month
			{UserID: uuid.New(), Amount: 7, CreatedAt: now},               // someone else
		},
	}
	l := fixedLedger(store, now)

	win, err := l.Window(userID)
	require.NoError(t, err)
	assert.Equal(t, 3, win.Used)
}

func TestDebitWithinPlanAllowance(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	store := &memStore{plan: monthlyPlan(10)}
	l := fixedLedger(store, now)

	require.NoError(t, l.Debit(userID, 4, uuid.New()))

	require.Len(t, store.records, 1)
	assert.Equal(t, 4, store.records[0].Amount)
	assert.False(t, store.records[0].UsedCredits)
}

func TestDebitIdempotentPerJob(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	jobID := uuid.New()
	store := &memStore{
		plan:  monthlyPlan(10),
		packs: []models.CreditPack{{ID: uuid.New(), UserID: userID, Remaining: 5}},
	}
	l := fixedLedger(store, now)

	require.NoError(t, l.Debit(userID, 8, jobID))
	require.NoError(t, l.Debit(userID, 8, jobID))

	assert.Len(t, store.records, 1)
	assert.Equal(t, 5, store.packs[0].Remaining)
}

func TestDebitSpillsIntoCreditPack(t *testing.T) {
	// monthly_limit=10, used=8, amount=5, one pack with remaining=10:
	// 2 from the plan window, 3 from the pack.
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	pack := models.CreditPack{ID: uuid.New(), UserID: userID, Remaining: 10, CreatedAt: now.AddDate(0, -2, 0)}
	store := &memStore{
		plan: monthlyPlan(10),
		records: []*models.UsageRecord{
			{UserID: userID, Amount: 8, CreatedAt: now.Add(-time.Hour)},
		},
		packs: []models.CreditPack{pack},
	}
	l := fixedLedger(store, now)

	require.NoError(t, l.Debit(userID, 5, uuid.New()))

	require.Len(t, store.records, 2)
	debited := store.records[1]
	assert.Equal(t, 5, debited.Amount)
	assert.True(t, debited.UsedCredits)
	assert.Equal(t, 7, store.packs[0].Remaining)
}

func TestDebitConsumesPacksOldestFirst(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	older := models.CreditPack{ID: uuid.New(), UserID: userID, Remaining: 2, CreatedAt: now.AddDate(0, -3, 0)}
	newer := models.CreditPack{ID: uuid.New(), UserID: userID, Remaining: 9, CreatedAt: now.AddDate(0, -1, 0)}
	store := &memStore{
		plan:  monthlyPlan(0),
		packs: []models.CreditPack{older, newer},
	}
	l := fixedLedger(store, now)

	require.NoError(t, l.Debit(userID, 3, uuid.New()))

	assert.Equal(t, 0, store.packs[0].Remaining, "older pack drained first")
	assert.Equal(t, 8, store.packs[1].Remaining, "newer pack only covers the rest")
}

func TestDebitNoPartialChargeOnFailure(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	store := &memStore{
		plan: monthlyPlan(2),
		records: []*models.UsageRecord{
			{UserID: userID, Amount: 2, CreatedAt: now.Add(-time.Hour)},
		},
		packs: []models.CreditPack{{ID: uuid.New(), UserID: userID, Remaining: 3}},
	}
	l := fixedLedger(store, now)

	err := l.Debit(userID, 5, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	assert.Len(t, store.records, 1, "no usage record on failure")
	assert.Equal(t, 3, store.packs[0].Remaining, "no pack mutation on failure")
}

func TestDebitZeroLimitPlanUsesOnlyCredits(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	store := &memStore{
		plan:  monthlyPlan(0),
		packs: []models.CreditPack{{ID: uuid.New(), UserID: userID, Remaining: 4}},
	}
	l := fixedLedger(store, now)

	require.NoError(t, l.Debit(userID, 4, uuid.New()))
	assert.Equal(t, 0, store.packs[0].Remaining)
	assert.True(t, store.records[0].UsedCredits)
}
