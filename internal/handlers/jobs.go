package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"print-wizard-backend/internal/middleware"
	"print-wizard-backend/internal/models"
	"print-wizard-backend/internal/services"
	"print-wizard-backend/internal/supabase"
	"print-wizard-backend/internal/usage"
)

type JobsHandler struct {
	jobService *services.JobService
	dbClient   *supabase.DatabaseClient
}

func NewJobsHandler(jobService *services.JobService, dbClient *supabase.DatabaseClient) *JobsHandler {
	return &JobsHandler{
		jobService: jobService,
		dbClient:   dbClient,
	}
}

// CreateJob godoc
// @Summary     Create a layout job
// @Description Creates a job from a list of print pieces and schedules the watermarked preview render. Piece dimensions default to the print's own dimensions when omitted.
// @Tags        jobs
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateJobRequest true "Pieces to lay out"
// @Success     200 {object} models.CreateJobResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /jobs [post]
func (h *JobsHandler) CreateJob(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	pieces, err := h.resolvePieces(userID, req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid pieces", Message: err.Error()})
		return
	}

	job, total, err := h.jobService.Create(c.Request.Context(), userID, pieces)
	if err != nil {
		if errors.Is(err, services.ErrNoUnits) || errors.Is(err, services.ErrTooManyUnits) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create job", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.CreateJobResponse{
		JobID:      job.ID.String(),
		Status:     job.Status,
		TotalUnits: total,
	})
}

// GetJob godoc
// @Summary     Get a job
// @Description Returns the current status and result URLs of a job owned by the caller.
// @Tags        jobs
// @Produce     json
// @Security    Bearer
// @Param       job_id path string true "Job ID"
// @Success     200 {object} models.JobResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /jobs/{job_id} [get]
func (h *JobsHandler) GetJob(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid job id"})
		return
	}

	job, err := h.jobService.Get(jobID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get job", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, jobResponse(job))
}

// ListJobs godoc
// @Summary     List jobs
// @Description Returns the caller's jobs, newest first.
// @Tags        jobs
// @Produce     json
// @Security    Bearer
// @Success     200 {array} models.JobResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /jobs [get]
func (h *JobsHandler) ListJobs(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	jobs, err := h.dbClient.ListJobs(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list jobs", Message: err.Error()})
		return
	}

	responses := make([]models.JobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, jobResponse(&jobs[i]))
	}
	c.JSON(http.StatusOK, responses)
}

// ConfirmJob godoc
// @Summary     Confirm a job
// @Description Confirms a previewed job: charges one unit per output sheet and queues the final render. A job can only be confirmed once.
// @Tags        jobs
// @Produce     json
// @Security    Bearer
// @Param       job_id path string true "Job ID"
// @Success     200 {object} models.ConfirmJobResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Router      /jobs/{job_id}/confirm [post]
func (h *JobsHandler) ConfirmJob(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid job id"})
		return
	}

	sheets, err := h.jobService.Confirm(c.Request.Context(), jobID, userID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "job not found"})
		case errors.Is(err, services.ErrAlreadyConfirmed):
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "job already confirmed"})
		case errors.Is(err, usage.ErrLimitExceeded):
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{Error: "usage limit exceeded", Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to confirm job", Message: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, models.ConfirmJobResponse{
		JobID:       jobID.String(),
		Status:      models.StatusQueued,
		SheetsCount: sheets,
	})
}

// CancelJob godoc
// @Summary     Cancel a job
// @Description Cancels a queued or finished job. Jobs rendering right now cannot be canceled.
// @Tags        jobs
// @Produce     json
// @Security    Bearer
// @Param       job_id path string true "Job ID"
// @Success     200 {object} models.JobResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /jobs/{job_id}/cancel [post]
func (h *JobsHandler) CancelJob(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid job id"})
		return
	}

	if err := h.jobService.Cancel(c.Request.Context(), jobID, userID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "job not found"})
		case errors.Is(err, services.ErrInvalidStatus):
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "job cannot be canceled", Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to cancel job", Message: err.Error()})
		}
		return
	}

	job, err := h.jobService.Get(jobID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get job", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, jobResponse(job))
}

// resolvePieces expands request items into render pieces, defaulting slot
// type and dimensions from the referenced print.
func (h *JobsHandler) resolvePieces(userID uuid.UUID, items []models.JobItemRequest) ([]models.Piece, error) {
	pieces := make([]models.Piece, 0, len(items))
	for _, item := range items {
		printID, err := uuid.Parse(item.PrintID)
		if err != nil {
			return nil, errors.New("invalid print id: " + item.PrintID)
		}

		slotType := item.Type
		if slotType == "" {
			slotType = "front"
		}
		if !models.SlotTypes[slotType] {
			return nil, errors.New("unknown slot type: " + slotType)
		}

		qty := item.Qty
		if qty <= 0 {
			qty = 1
		}

		width, height := item.WidthCm, item.HeightCm
		if width <= 0 || height <= 0 {
			print, err := h.dbClient.GetPrint(printID, userID)
			if err != nil {
				return nil, errors.New("print not found: " + item.PrintID)
			}
			width, height = print.WidthCm, print.HeightCm
		}

		pieces = append(pieces, models.Piece{
			PrintID:  printID,
			Type:     slotType,
			Qty:      qty,
			WidthCm:  width,
			HeightCm: height,
		})
	}
	return pieces, nil
}

func jobResponse(job *models.Job) models.JobResponse {
	resp := models.JobResponse{
		ID:         job.ID.String(),
		Status:     job.Status,
		ResultURLs: job.ResultURLs,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
	if job.SheetsCount.Valid {
		resp.SheetsCount = int(job.SheetsCount.Int64)
	}
	if job.ArchiveURL.Valid {
		resp.ArchiveURL = job.ArchiveURL.String
	}
	if job.ErrorMessage.Valid {
		resp.Error = job.ErrorMessage.String
	}
	return resp
}
