package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"print-wizard-backend/internal/models"
	"print-wizard-backend/internal/queue"
	"print-wizard-backend/internal/render"
	"print-wizard-backend/internal/sheet"
	"print-wizard-backend/internal/usage"
)

const maxJobUnits = 100

// DefaultRenderTimeout bounds one render pass end to end.
const DefaultRenderTimeout = 600 * time.Second

var (
	// ErrAlreadyConfirmed means the job was not in preview_done when confirm
	// claimed it; a double submit, not a server fault.
	ErrAlreadyConfirmed = errors.New("job already confirmed")

	// ErrInvalidStatus means the requested transition is not allowed from
	// the job's current status.
	ErrInvalidStatus = errors.New("operation not allowed in current job status")

	ErrNoUnits      = errors.New("job has no units")
	ErrTooManyUnits = fmt.Errorf("job exceeds the maximum of %d units", maxJobUnits)
)

// JobStore is the persistence surface of the job state machine. ClaimStatus
// performs a conditional update (status moves from -> to only if the row
// still holds from) and reports whether the claim won.
type JobStore interface {
	CreateJob(job *models.Job) error
	GetJob(jobID, userID uuid.UUID) (*models.Job, error)
	GetJobByID(jobID uuid.UUID) (*models.Job, error)
	ClaimJobStatus(jobID uuid.UUID, from, to string) (bool, error)
	UpdateJobStatus(jobID uuid.UUID, status string) error
	SetJobSheetsCount(jobID uuid.UUID, count int) error
	SetJobPreviewResult(jobID uuid.UUID, urls []string) error
	CompleteJob(jobID uuid.UUID, urls []string, archiveURL string) (bool, error)
	UpdateJobError(jobID uuid.UUID, message string) error
}

// Renderer runs one render pass and packages its output.
type Renderer interface {
	Render(ctx context.Context, jobID uuid.UUID, pieces []models.Piece, preview bool) ([]render.Page, error)
	BuildArchive(ctx context.Context, pages []render.Page) ([]byte, error)
}

// Ledger debits confirmed jobs against the owner's allowance.
type Ledger interface {
	Debit(userID uuid.UUID, amount int, jobID uuid.UUID) error
}

// ArchiveStorage uploads the final ZIP next to the rendered sheets.
type ArchiveStorage interface {
	UploadOutput(path string, data []byte, contentType string) (string, error)
}

// Dispatcher hands a render task to the worker pool.
type Dispatcher interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// EventPublisher pushes job lifecycle events to connected clients.
type EventPublisher interface {
	PublishJobEvent(jobID uuid.UUID, event string, payload map[string]interface{}) error
}

// JobService owns the job lifecycle: preview renders are free, confirm
// debits the usage ledger exactly once per job before the final render.
type JobService struct {
	store    JobStore
	renderer Renderer
	ledger   Ledger
	storage  ArchiveStorage
	queue    Dispatcher
	events   EventPublisher
	log      *zap.SugaredLogger

	renderTimeout time.Duration
}

func NewJobService(
	store JobStore,
	renderer Renderer,
	ledger Ledger,
	storage ArchiveStorage,
	dispatcher Dispatcher,
	events EventPublisher,
	log *zap.SugaredLogger,
) *JobService {
	return &JobService{
		store:         store,
		renderer:      renderer,
		ledger:        ledger,
		storage:       storage,
		queue:         dispatcher,
		events:        events,
		log:           log,
		renderTimeout: DefaultRenderTimeout,
	}
}

// Create validates the piece list, persists a new job in preview state and
// schedules the watermarked preview render.
func (s *JobService) Create(ctx context.Context, userID uuid.UUID, pieces []models.Piece) (*models.Job, int, error) {
	total := 0
	for _, p := range pieces {
		if p.Qty > 0 {
			total += p.Qty
		}
	}
	if total <= 0 {
		return nil, 0, ErrNoUnits
	}
	if total > maxJobUnits {
		return nil, 0, ErrTooManyUnits
	}

	job := &models.Job{
		ID:     uuid.New(),
		UserID: userID,
		Status: models.StatusPreview,
		Pieces: pieces,
	}
	if err := s.store.CreateJob(job); err != nil {
		return nil, 0, fmt.Errorf("failed to create job: %w", err)
	}

	s.dispatch(ctx, queue.Task{JobID: job.ID, Preview: true})
	return job, total, nil
}

// Get returns a job owned by the user.
func (s *JobService) Get(jobID, userID uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(jobID, userID)
}

// RunPreview renders the watermarked preview for a job still in preview
// state. No ledger interaction happens here.
func (s *JobService) RunPreview(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.store.GetJobByID(jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status != models.StatusPreview {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, job.Status)
	}

	pages, err := s.render(ctx, job, true)
	if err != nil {
		s.fail(jobID, err)
		return err
	}

	urls := pageURLs(pages)
	if err := s.store.SetJobPreviewResult(jobID, urls); err != nil {
		return fmt.Errorf("failed to store preview result: %w", err)
	}

	s.publish(jobID, "preview_ready", map[string]interface{}{
		"job_id":      jobID.String(),
		"status":      models.StatusPreviewDone,
		"result_urls": urls,
	})
	return nil
}

// Confirm claims a preview_done job, charges the owner one unit per output
// sheet and schedules the final render. The claim is a compare-and-swap so
// concurrent confirmations of the same job cannot both proceed; the debit
// is keyed on the job id so a retried confirmation never double-charges.
func (s *JobService) Confirm(ctx context.Context, jobID, userID uuid.UUID) (int, error) {
	job, err := s.store.GetJob(jobID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load job: %w", err)
	}

	claimed, err := s.store.ClaimJobStatus(jobID, models.StatusPreviewDone, models.StatusConfirming)
	if err != nil {
		return 0, fmt.Errorf("failed to claim job: %w", err)
	}
	if !claimed {
		return 0, ErrAlreadyConfirmed
	}

	sheetsCount, err := countSheets(job.Pieces)
	if err != nil {
		s.fail(jobID, err)
		return 0, err
	}

	if err := s.ledger.Debit(job.UserID, sheetsCount, jobID); err != nil {
		// The job goes back to preview_done so the owner can retry after
		// buying credits; errors here never leave the job half-confirmed.
		if revertErr := s.store.UpdateJobStatus(jobID, models.StatusPreviewDone); revertErr != nil {
			s.log.Errorw("failed to revert job after debit failure", "job_id", jobID, "error", revertErr)
		}
		if errors.Is(err, usage.ErrLimitExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to debit usage: %w", err)
	}

	if err := s.store.SetJobSheetsCount(jobID, sheetsCount); err != nil {
		s.log.Errorw("failed to store sheets count", "job_id", jobID, "error", err)
	}
	if err := s.store.UpdateJobStatus(jobID, models.StatusQueued); err != nil {
		return 0, fmt.Errorf("failed to queue job: %w", err)
	}

	s.dispatch(ctx, queue.Task{JobID: jobID, Preview: false})
	return sheetsCount, nil
}

// Finalize runs the billable render pass for a queued job, assembles the
// ZIP archive and marks the job done. The completing update is conditional
// on the job still being in processing, so an external cancel always wins
// the race; the ledger debit stands either way.
func (s *JobService) Finalize(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.store.GetJobByID(jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	claimed, err := s.store.ClaimJobStatus(jobID, models.StatusQueued, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, job.Status)
	}

	pages, err := s.render(ctx, job, false)
	if err != nil {
		s.fail(jobID, err)
		return err
	}

	archive, err := s.renderer.BuildArchive(ctx, pages)
	if err != nil {
		s.fail(jobID, err)
		return err
	}

	archivePath := fmt.Sprintf("jobs/%s/final/sheets.zip", jobID)
	archiveURL, err := s.storage.UploadOutput(archivePath, archive, "application/zip")
	if err != nil {
		s.fail(jobID, err)
		return err
	}

	urls := pageURLs(pages)
	done, err := s.store.CompleteJob(jobID, urls, archiveURL)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if !done {
		s.log.Infow("job no longer processing, leaving status untouched", "job_id", jobID)
		return nil
	}

	s.publish(jobID, "job_done", map[string]interface{}{
		"job_id":      jobID.String(),
		"status":      models.StatusDone,
		"result_urls": urls,
		"archive_url": archiveURL,
	})
	return nil
}

// Cancel marks a queued or finished job canceled. In-flight renders are not
// interrupted; the conditional completion in Finalize keeps a canceled job
// canceled even if its render finishes afterwards.
func (s *JobService) Cancel(ctx context.Context, jobID, userID uuid.UUID) error {
	job, err := s.store.GetJob(jobID, userID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status != models.StatusQueued && job.Status != models.StatusDone {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, job.Status)
	}

	claimed, err := s.store.ClaimJobStatus(jobID, job.Status, models.StatusCanceled)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: status changed concurrently", ErrInvalidStatus)
	}
	return nil
}

// ProcessTask is the worker entry point for one queued render task.
func (s *JobService) ProcessTask(ctx context.Context, task queue.Task) error {
	if task.Preview {
		return s.RunPreview(ctx, task.JobID)
	}
	return s.Finalize(ctx, task.JobID)
}

func (s *JobService) render(ctx context.Context, job *models.Job, preview bool) ([]render.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, s.renderTimeout)
	defer cancel()
	return s.renderer.Render(ctx, job.ID, job.Pieces, preview)
}

// dispatch hands the task to the queue when one is configured, otherwise
// runs it on a background goroutine in-process.
func (s *JobService) dispatch(ctx context.Context, task queue.Task) {
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, task); err != nil {
			s.log.Errorw("failed to enqueue render task", "job_id", task.JobID, "error", err)
			s.fail(task.JobID, err)
		}
		return
	}

	go func() {
		if err := s.ProcessTask(context.Background(), task); err != nil {
			s.log.Errorw("render task failed", "job_id", task.JobID, "preview", task.Preview, "error", err)
		}
	}()
}

func (s *JobService) fail(jobID uuid.UUID, cause error) {
	if err := s.store.UpdateJobError(jobID, cause.Error()); err != nil {
		s.log.Errorw("failed to record job error", "job_id", jobID, "error", err)
	}
	s.publish(jobID, "job_failed", map[string]interface{}{
		"job_id": jobID.String(),
		"status": models.StatusError,
		"error":  cause.Error(),
	})
}

func (s *JobService) publish(jobID uuid.UUID, event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJobEvent(jobID, event, payload); err != nil {
		s.log.Warnw("failed to publish job event", "job_id", jobID, "event", event, "error", err)
	}
}

// countSheets runs a packing pass over the job's pieces to price the job in
// sheets. Artwork is not needed for counting.
func countSheets(pieces []models.Piece) (int, error) {
	var items []sheet.Item
	for _, p := range pieces {
		w := sheet.CmToPx(p.WidthCm)
		h := sheet.CmToPx(p.HeightCm)
		for i := 0; i < p.Qty; i++ {
			items = append(items, sheet.Item{W: w, H: h, Ref: p.PrintID.String()})
		}
	}

	sheets, err := sheet.Pack(items, sheet.SheetWidthPx, sheet.SheetHeightPx, sheet.SpacingPx)
	if err != nil {
		return 0, err
	}
	return len(sheets), nil
}

func pageURLs(pages []render.Page) []string {
	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = p.URL
	}
	return urls
}
