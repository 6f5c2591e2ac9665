package supabase

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"print-wizard-backend/internal/models"
)

func newMockClient(t *testing.T) (*DatabaseClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &DatabaseClient{db: db}, mock
}

func TestGetJobDecodesPieces(t *testing.T) {
	client, mock := newMockClient(t)

	jobID := uuid.New()
	userID := uuid.New()
	printID := uuid.New()
	pieces, err := json.Marshal([]models.Piece{
		{PrintID: printID, Type: "front", Qty: 2, WidthCm: 30, HeightCm: 40},
	})
	require.NoError(t, err)
	urls, err := json.Marshal([]string{"https://cdn.example/jobs/x/preview/0.png"})
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery("SELECT id, user_id, status, pieces").
		WithArgs(jobID, userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "status", "pieces", "sheets_count",
			"result_urls", "archive_url", "error_message", "created_at", "updated_at",
		}).AddRow(jobID, userID, models.StatusPreviewDone, pieces, nil, urls, nil, nil, now, now))

	job, err := client.GetJob(jobID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreviewDone, job.Status)
	require.Len(t, job.Pieces, 1)
	assert.Equal(t, printID, job.Pieces[0].PrintID)
	assert.Equal(t, 2, job.Pieces[0].Qty)
	assert.Equal(t, []string{"https://cdn.example/jobs/x/preview/0.png"}, job.ResultURLs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimJobStatus(t *testing.T) {
	client, mock := newMockClient(t)
	jobID := uuid.New()

	mock.ExpectExec("UPDATE jobs").
		WithArgs(models.StatusConfirming, jobID, models.StatusPreviewDone).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := client.ClaimJobStatus(jobID, models.StatusPreviewDone, models.StatusConfirming)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim matches no row.
	mock.ExpectExec("UPDATE jobs").
		WithArgs(models.StatusConfirming, jobID, models.StatusPreviewDone).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err = client.ClaimJobStatus(jobID, models.StatusPreviewDone, models.StatusConfirming)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteJobLosesToCancel(t *testing.T) {
	client, mock := newMockClient(t)
	jobID := uuid.New()

	mock.ExpectExec("UPDATE jobs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	done, err := client.CompleteJob(jobID, []string{"u"}, "a")
	require.NoError(t, err)
	assert.False(t, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDebitCommits(t *testing.T) {
	client, mock := newMockClient(t)

	record := &models.UsageRecord{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Amount:      5,
		JobID:       uuid.NullUUID{UUID: uuid.New(), Valid: true},
		UsedCredits: true,
	}
	packID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO usage").
		WithArgs(record.ID, record.UserID, record.Amount, record.JobID, record.UsedCredits).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE credit_packs").
		WithArgs(3, packID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := client.ApplyDebit(record, []models.PackDebit{{PackID: packID, Amount: 3}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDebitRollsBackOnDrainedPack(t *testing.T) {
	client, mock := newMockClient(t)

	record := &models.UsageRecord{ID: uuid.New(), UserID: uuid.New(), Amount: 5}
	packID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO usage").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE credit_packs").
		WithArgs(5, packID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := client.ApplyDebit(record, []models.PackDebit{{PackID: packID, Amount: 5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOpenCreditPacksOldestFirst(t *testing.T) {
	client, mock := newMockClient(t)
	userID := uuid.New()

	older := uuid.New()
	newer := uuid.New()
	mock.ExpectQuery("SELECT id, user_id, remaining").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "remaining", "created_at"}).
			AddRow(older, userID, 4, time.Now().Add(-48*time.Hour)).
			AddRow(newer, userID, 10, time.Now()))

	packs, err := client.ListOpenCreditPacks(userID)
	require.NoError(t, err)
	require.Len(t, packs, 2)
	assert.Equal(t, older, packs[0].ID)
	assert.Equal(t, newer, packs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumUsage(t *testing.T) {
	client, mock := newMockClient(t)
	userID := uuid.New()
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(userID, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(8))

	total, err := client.SumUsage(userID, from, to)
	require.NoError(t, err)
	assert.Equal(t, 8, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
