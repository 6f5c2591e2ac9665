package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"print-wizard-backend/internal/config"
	"print-wizard-backend/internal/models"
	"print-wizard-backend/internal/supabase"
)

type WebhookHandler struct {
	config   *config.Config
	dbClient *supabase.DatabaseClient
	log      *zap.SugaredLogger
}

func NewWebhookHandler(cfg *config.Config, dbClient *supabase.DatabaseClient, log *zap.SugaredLogger) *WebhookHandler {
	return &WebhookHandler{
		config:   cfg,
		dbClient: dbClient,
		log:      log,
	}
}

// HandleBillingWebhook godoc
// @Summary     Billing webhook endpoint
// @Description Receives subscription and credit purchase events from the billing integration. Authenticated with a shared token.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Authorization header string true "Shared webhook token"
// @Success     200 {object} map[string]string "status"
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /webhooks/billing [post]
func (h *WebhookHandler) HandleBillingWebhook(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "missing authorization token"})
		return
	}

	// The header may arrive as "Bearer <token>" or the bare token.
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if h.config.BillingWebhookToken == "" || token != h.config.BillingWebhookToken {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization token"})
		return
	}

	var event models.BillingEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to parse event", Message: err.Error()})
		return
	}

	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id in event"})
		return
	}

	switch event.Type {
	case "checkout_completed":
		err = h.dbClient.SetProfileCustomer(userID, event.CustomerID, event.SubscriptionID)
	case "payment_succeeded", "subscription_updated":
		err = h.dbClient.SetProfilePlan(
			userID, event.PlanID, event.CustomerID, event.SubscriptionID,
			time.Unix(event.PeriodStart, 0).UTC(), time.Unix(event.PeriodEnd, 0).UTC(),
		)
	case "subscription_deleted":
		err = h.dbClient.ClearProfilePlan(userID, "free")
	case "credits_purchased":
		if event.CreditUnits <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "credit_units must be positive"})
			return
		}
		err = h.dbClient.CreateCreditPack(userID, event.CreditUnits)
	default:
		// Unknown event types are acknowledged so the provider stops
		// retrying them.
		h.log.Infow("ignoring billing event", "type", event.Type)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err != nil {
		h.log.Errorw("failed to apply billing event", "type", event.Type, "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to apply event", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
