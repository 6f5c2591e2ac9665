package supabase

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"print-wizard-backend/internal/models"
)

// GetPlan resolves the plan the user's profile is subscribed to. Users
// without a profile row yet are on the free plan.
func (d *DatabaseClient) GetPlan(userID uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	err := d.db.QueryRow(`
		SELECT p.id, p.name, p.daily_limit, p.monthly_limit, p.price_tier
		FROM plans p
		JOIN profiles pr ON pr.plan_id = p.id
		WHERE pr.user_id = $1
	`, userID).Scan(&plan.ID, &plan.Name, &plan.DailyLimit, &plan.MonthlyLimit, &plan.PriceTier)
	if errors.Is(err, sql.ErrNoRows) {
		err = d.db.QueryRow(`
			SELECT id, name, daily_limit, monthly_limit, price_tier
			FROM plans
			WHERE id = 'free'
		`).Scan(&plan.ID, &plan.Name, &plan.DailyLimit, &plan.MonthlyLimit, &plan.PriceTier)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

func (d *DatabaseClient) HasUsageForJob(jobID uuid.UUID) (bool, error) {
	var n int
	err := d.db.QueryRow(`
		SELECT COUNT(*)
		FROM usage
		WHERE job_id = $1
	`, jobID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check job usage: %w", err)
	}
	return n > 0, nil
}

func (d *DatabaseClient) SumUsage(userID uuid.UUID, from, to time.Time) (int, error) {
	var total int
	err := d.db.QueryRow(`
		SELECT COALESCE(SUM(amount), 0)
		FROM usage
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`, userID, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return total, nil
}

// ListOpenCreditPacks returns packs with units left, oldest first. The order
// matters: the ledger drains packs in purchase order.
func (d *DatabaseClient) ListOpenCreditPacks(userID uuid.UUID) ([]models.CreditPack, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, remaining, created_at
		FROM credit_packs
		WHERE user_id = $1 AND remaining > 0
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit packs: %w", err)
	}
	defer rows.Close()

	var packs []models.CreditPack
	for rows.Next() {
		var pack models.CreditPack
		if err := rows.Scan(&pack.ID, &pack.UserID, &pack.Remaining, &pack.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit pack: %w", err)
		}
		packs = append(packs, pack)
	}

	return packs, rows.Err()
}

// ApplyDebit writes the usage record and decrements the charged packs in one
// transaction. A pack update that would drive remaining negative matches no
// row and aborts the whole debit.
func (d *DatabaseClient) ApplyDebit(record *models.UsageRecord, debits []models.PackDebit) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin debit: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO usage (id, user_id, amount, job_id, used_credits)
		VALUES ($1, $2, $3, $4, $5)
	`, record.ID, record.UserID, record.Amount, record.JobID, record.UsedCredits)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	for _, debit := range debits {
		res, err := tx.Exec(`
			UPDATE credit_packs
			SET remaining = remaining - $1
			WHERE id = $2 AND remaining >= $1
		`, debit.Amount, debit.PackID)
		if err != nil {
			return fmt.Errorf("failed to debit credit pack: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read pack debit result: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("credit pack %s has insufficient balance", debit.PackID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit debit: %w", err)
	}
	return nil
}

func (d *DatabaseClient) TotalCredits(userID uuid.UUID) (int, error) {
	var total int
	err := d.db.QueryRow(`
		SELECT COALESCE(SUM(remaining), 0)
		FROM credit_packs
		WHERE user_id = $1
	`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum credits: %w", err)
	}
	return total, nil
}

func (d *DatabaseClient) CreateCreditPack(userID uuid.UUID, units int) error {
	_, err := d.db.Exec(`
		INSERT INTO credit_packs (id, user_id, remaining)
		VALUES ($1, $2, $3)
	`, uuid.New(), userID, units)
	return err
}

// SetProfileCustomer links the billing customer and subscription ids to the
// profile at checkout; the plan follows with the first payment event.
func (d *DatabaseClient) SetProfileCustomer(userID uuid.UUID, customerID, subscriptionID string) error {
	_, err := d.db.Exec(`
		UPDATE profiles
		SET customer_id = $1, subscription_id = $2, updated_at = NOW()
		WHERE user_id = $3
	`, customerID, subscriptionID, userID)
	return err
}

// SetProfilePlan attaches or detaches the subscription a billing event
// reported for the user's profile.
func (d *DatabaseClient) SetProfilePlan(userID uuid.UUID, planID, customerID, subscriptionID string, periodStart, periodEnd time.Time) error {
	_, err := d.db.Exec(`
		UPDATE profiles
		SET plan_id = $1, customer_id = $2, subscription_id = $3,
		    period_start = $4, period_end = $5, updated_at = NOW()
		WHERE user_id = $6
	`, planID, customerID, subscriptionID, periodStart, periodEnd, userID)
	return err
}

func (d *DatabaseClient) ClearProfilePlan(userID uuid.UUID, freePlanID string) error {
	_, err := d.db.Exec(`
		UPDATE profiles
		SET plan_id = $1, subscription_id = NULL,
		    period_start = NULL, period_end = NULL, updated_at = NOW()
		WHERE user_id = $2
	`, freePlanID, userID)
	return err
}
