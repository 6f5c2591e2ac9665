package supabase

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"print-wizard-backend/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) CreateJob(job *models.Job) error {
	piecesJSON, err := json.Marshal(job.Pieces)
	if err != nil {
		return fmt.Errorf("failed to encode pieces: %w", err)
	}

	err = d.db.QueryRow(`
		INSERT INTO jobs (id, user_id, status, pieces)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, job.ID, job.UserID, job.Status, piecesJSON).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (d *DatabaseClient) GetJob(jobID, userID uuid.UUID) (*models.Job, error) {
	return d.scanJob(d.db.QueryRow(`
		SELECT id, user_id, status, pieces, sheets_count, result_urls, archive_url, error_message, created_at, updated_at
		FROM jobs
		WHERE id = $1 AND user_id = $2
	`, jobID, userID))
}

func (d *DatabaseClient) GetJobByID(jobID uuid.UUID) (*models.Job, error) {
	return d.scanJob(d.db.QueryRow(`
		SELECT id, user_id, status, pieces, sheets_count, result_urls, archive_url, error_message, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`, jobID))
}

func (d *DatabaseClient) ListJobs(userID uuid.UUID) ([]models.Job, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, status, pieces, sheets_count, result_urls, archive_url, error_message, created_at, updated_at
		FROM jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := d.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

// ClaimJobStatus moves a job from one status to another only if the row
// still holds the expected status. The row count tells callers whether the
// claim won or a concurrent transition got there first.
func (d *DatabaseClient) ClaimJobStatus(jobID uuid.UUID, from, to string) (bool, error) {
	res, err := d.db.Exec(`
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, jobID, from)
	if err != nil {
		return false, fmt.Errorf("failed to claim job status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n == 1, nil
}

func (d *DatabaseClient) UpdateJobStatus(jobID uuid.UUID, status string) error {
	_, err := d.db.Exec(`
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, jobID)
	return err
}

func (d *DatabaseClient) SetJobSheetsCount(jobID uuid.UUID, count int) error {
	_, err := d.db.Exec(`
		UPDATE jobs
		SET sheets_count = $1, updated_at = NOW()
		WHERE id = $2
	`, count, jobID)
	return err
}

func (d *DatabaseClient) SetJobPreviewResult(jobID uuid.UUID, urls []string) error {
	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("failed to encode result urls: %w", err)
	}

	_, err = d.db.Exec(`
		UPDATE jobs
		SET status = $1, result_urls = $2, updated_at = NOW()
		WHERE id = $3
	`, models.StatusPreviewDone, urlsJSON, jobID)
	return err
}

// CompleteJob marks a processing job done. The update is conditional on the
// job still being in processing so a cancel that landed mid-render sticks.
func (d *DatabaseClient) CompleteJob(jobID uuid.UUID, urls []string, archiveURL string) (bool, error) {
	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return false, fmt.Errorf("failed to encode result urls: %w", err)
	}

	res, err := d.db.Exec(`
		UPDATE jobs
		SET status = $1, result_urls = $2, archive_url = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`, models.StatusDone, urlsJSON, archiveURL, jobID, models.StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to complete job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read completion result: %w", err)
	}
	return n == 1, nil
}

func (d *DatabaseClient) UpdateJobError(jobID uuid.UUID, errorMsg string) error {
	_, err := d.db.Exec(`
		UPDATE jobs
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`, models.StatusError, errorMsg, jobID)
	return err
}

func (d *DatabaseClient) CreateGeneratedFile(file *models.GeneratedFile) error {
	_, err := d.db.Exec(`
		INSERT INTO generated_files (job_id, page_index, file_path, public_url, preview)
		VALUES ($1, $2, $3, $4, $5)
	`, file.JobID, file.PageIndex, file.FilePath, file.PublicURL, file.Preview)
	return err
}

func (d *DatabaseClient) DeleteGeneratedFiles(jobID uuid.UUID, preview bool) error {
	_, err := d.db.Exec(`
		DELETE FROM generated_files
		WHERE job_id = $1 AND preview = $2
	`, jobID, preview)
	return err
}

// GetSlotURL resolves the public artwork URL occupying a slot on a print.
func (d *DatabaseClient) GetSlotURL(printID uuid.UUID, slotType string) (string, error) {
	var url string
	err := d.db.QueryRow(`
		SELECT public_url
		FROM print_files
		WHERE print_id = $1 AND type = $2
	`, printID, slotType).Scan(&url)
	if err != nil {
		return "", fmt.Errorf("failed to get slot url: %w", err)
	}
	return url, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (d *DatabaseClient) scanJob(row scanner) (*models.Job, error) {
	var job models.Job
	var piecesJSON []byte
	var urlsJSON []byte

	err := row.Scan(
		&job.ID, &job.UserID, &job.Status, &piecesJSON,
		&job.SheetsCount, &urlsJSON, &job.ArchiveURL, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if len(piecesJSON) > 0 {
		if err := json.Unmarshal(piecesJSON, &job.Pieces); err != nil {
			return nil, fmt.Errorf("failed to decode pieces: %w", err)
		}
	}
	if len(urlsJSON) > 0 {
		if err := json.Unmarshal(urlsJSON, &job.ResultURLs); err != nil {
			return nil, fmt.Errorf("failed to decode result urls: %w", err)
		}
	}

	return &job, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
