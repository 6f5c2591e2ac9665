package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"print-wizard-backend/internal/middleware"
	"print-wizard-backend/internal/models"
	"print-wizard-backend/internal/supabase"
	"print-wizard-backend/internal/usage"
)

type UsageHandler struct {
	ledger   *usage.Ledger
	dbClient *supabase.DatabaseClient
}

func NewUsageHandler(ledger *usage.Ledger, dbClient *supabase.DatabaseClient) *UsageHandler {
	return &UsageHandler{
		ledger:   ledger,
		dbClient: dbClient,
	}
}

// GetUsage godoc
// @Summary     Current usage
// @Description Returns the caller's plan, consumption in the current allowance window and remaining credit pack units.
// @Tags        usage
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.UsageResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /me/usage [get]
func (h *UsageHandler) GetUsage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	plan, err := h.dbClient.GetPlan(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve plan", Message: err.Error()})
		return
	}

	win, err := h.ledger.Window(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve usage window", Message: err.Error()})
		return
	}

	credits, err := h.dbClient.TotalCredits(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to sum credits", Message: err.Error()})
		return
	}

	status := "ok"
	switch {
	case win.Remaining() == 0 && credits == 0:
		status = "limit_reached"
	case win.Limit > 0 && win.Used*100 >= win.Limit*80:
		status = "warning"
	}

	c.JSON(http.StatusOK, models.UsageResponse{
		Plan:      plan.Name,
		Used:      win.Used,
		Limit:     win.Limit,
		Remaining: win.Remaining(),
		Credits:   credits,
		Status:    status,
	})
}
