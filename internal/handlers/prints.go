package handlers

import (
	"database/sql"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"print-wizard-backend/internal/middleware"
	"print-wizard-backend/internal/models"
	"print-wizard-backend/internal/supabase"
)

type PrintsHandler struct {
	dbClient      *supabase.DatabaseClient
	storageClient *supabase.StorageClient
}

func NewPrintsHandler(dbClient *supabase.DatabaseClient, storageClient *supabase.StorageClient) *PrintsHandler {
	return &PrintsHandler{
		dbClient:      dbClient,
		storageClient: storageClient,
	}
}

// CreatePrint godoc
// @Summary     Create a print
// @Description Registers a print design with its physical dimensions. Artwork files are uploaded per slot afterwards.
// @Tags        prints
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreatePrintRequest true "Print definition"
// @Success     200 {object} models.PrintResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /prints [post]
func (h *PrintsHandler) CreatePrint(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	var req models.CreatePrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if req.WidthCm <= 0 || req.HeightCm <= 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "width_cm and height_cm must be positive"})
		return
	}

	print := &models.Print{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        req.Name,
		SKU:         req.SKU,
		WidthCm:     req.WidthCm,
		HeightCm:    req.HeightCm,
		IsComposite: req.IsComposite,
	}
	if err := h.dbClient.CreatePrint(print); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create print", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, printResponse(print, nil))
}

// ListPrints godoc
// @Summary     List prints
// @Description Returns the caller's print library, newest first.
// @Tags        prints
// @Produce     json
// @Security    Bearer
// @Success     200 {array} models.PrintResponse
// @Router      /prints [get]
func (h *PrintsHandler) ListPrints(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	prints, err := h.dbClient.ListPrints(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list prints", Message: err.Error()})
		return
	}

	responses := make([]models.PrintResponse, 0, len(prints))
	for i := range prints {
		files, err := h.dbClient.GetPrintFiles(prints[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load print files", Message: err.Error()})
			return
		}
		responses = append(responses, printResponse(&prints[i], files))
	}
	c.JSON(http.StatusOK, responses)
}

// GetPrint godoc
// @Summary     Get a print
// @Description Returns one print with its uploaded artwork slots.
// @Tags        prints
// @Produce     json
// @Security    Bearer
// @Param       print_id path string true "Print ID"
// @Success     200 {object} models.PrintResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /prints/{print_id} [get]
func (h *PrintsHandler) GetPrint(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	printID, err := uuid.Parse(c.Param("print_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid print id"})
		return
	}

	print, err := h.dbClient.GetPrint(printID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "print not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get print", Message: err.Error()})
		return
	}

	files, err := h.dbClient.GetPrintFiles(printID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load print files", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, printResponse(print, files))
}

// UpdatePrint godoc
// @Summary     Update a print
// @Description Updates a print's name, SKU and dimensions. Existing jobs keep the dimensions they were created with.
// @Tags        prints
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       print_id path string true "Print ID"
// @Param       request body models.CreatePrintRequest true "Print definition"
// @Success     200 {object} models.PrintResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /prints/{print_id} [put]
func (h *PrintsHandler) UpdatePrint(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	printID, err := uuid.Parse(c.Param("print_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid print id"})
		return
	}

	var req models.CreatePrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if req.WidthCm <= 0 || req.HeightCm <= 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "width_cm and height_cm must be positive"})
		return
	}

	print, err := h.dbClient.GetPrint(printID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "print not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get print", Message: err.Error()})
		return
	}

	print.Name = req.Name
	print.SKU = req.SKU
	print.WidthCm = req.WidthCm
	print.HeightCm = req.HeightCm
	print.IsComposite = req.IsComposite
	if err := h.dbClient.UpdatePrint(print); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update print", Message: err.Error()})
		return
	}

	files, err := h.dbClient.GetPrintFiles(printID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load print files", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, printResponse(print, files))
}

// DeletePrint godoc
// @Summary     Delete a print
// @Description Deletes a print, its artwork rows and its stored files.
// @Tags        prints
// @Produce     json
// @Security    Bearer
// @Param       print_id path string true "Print ID"
// @Success     200 {object} map[string]string
// @Failure     404 {object} models.ErrorResponse
// @Router      /prints/{print_id} [delete]
func (h *PrintsHandler) DeletePrint(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	printID, err := uuid.Parse(c.Param("print_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid print id"})
		return
	}

	if _, err := h.dbClient.GetPrint(printID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "print not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get print", Message: err.Error()})
		return
	}

	if err := h.storageClient.DeletePrintFiles(printID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete artwork", Message: err.Error()})
		return
	}
	if err := h.dbClient.DeletePrint(printID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete print", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// UploadPrintFile godoc
// @Summary     Upload slot artwork
// @Description Uploads an artwork file into one slot of a print (front, back or extra), replacing any previous file in that slot.
// @Tags        prints
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       print_id path string true "Print ID"
// @Param       type formData string true "Slot type: front, back or extra"
// @Param       file formData file true "Artwork image"
// @Param       width_cm formData number false "Physical width override for this slot"
// @Param       height_cm formData number false "Physical height override for this slot"
// @Success     200 {object} models.UploadPrintFileResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /prints/{print_id}/files [post]
func (h *PrintsHandler) UploadPrintFile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	printID, err := uuid.Parse(c.Param("print_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid print id"})
		return
	}

	slotType := c.PostForm("type")
	if !models.SlotTypes[slotType] {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown slot type: " + slotType})
		return
	}

	if _, err := h.dbClient.GetPrint(printID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "print not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get print", Message: err.Error()})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing file", Message: err.Error()})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to open file", Message: err.Error()})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read file", Message: err.Error()})
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(fileHeader.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	storagePath, publicURL, err := h.storageClient.UploadArtwork(printID, slotType, fileHeader.Filename, data, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to upload artwork", Message: err.Error()})
		return
	}

	file := &models.PrintFile{
		PrintID:   printID,
		Type:      slotType,
		FilePath:  storagePath,
		PublicURL: publicURL,
	}
	// Optional physical-size override for this slot.
	if w, err := strconv.ParseFloat(c.PostForm("width_cm"), 64); err == nil && w > 0 {
		file.WidthCm = sql.NullFloat64{Float64: w, Valid: true}
	}
	if h, err := strconv.ParseFloat(c.PostForm("height_cm"), 64); err == nil && h > 0 {
		file.HeightCm = sql.NullFloat64{Float64: h, Valid: true}
	}
	if err := h.dbClient.UpsertPrintFile(file); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save print file", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.UploadPrintFileResponse{
		PrintID:   printID.String(),
		Type:      slotType,
		FilePath:  storagePath,
		PublicURL: publicURL,
	})
}

func printResponse(print *models.Print, files []models.PrintFile) models.PrintResponse {
	slots := make(map[string]models.SlotResponse, len(files))
	for _, f := range files {
		slot := models.SlotResponse{
			ID:  f.ID.String(),
			URL: f.PublicURL,
		}
		if f.WidthCm.Valid {
			slot.WidthCm = f.WidthCm.Float64
		}
		if f.HeightCm.Valid {
			slot.HeightCm = f.HeightCm.Float64
		}
		slots[f.Type] = slot
	}

	return models.PrintResponse{
		ID:          print.ID.String(),
		Name:        print.Name,
		SKU:         print.SKU,
		WidthCm:     print.WidthCm,
		HeightCm:    print.HeightCm,
		IsComposite: print.IsComposite,
		Slots:       slots,
		CreatedAt:   print.CreatedAt,
	}
}
