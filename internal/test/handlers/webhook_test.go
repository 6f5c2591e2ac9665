package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"print-wizard-backend/internal/config"
	"print-wizard-backend/internal/handlers"
)

func webhookRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewWebhookHandler(cfg, nil, zap.NewNop().Sugar())
	router := gin.New()
	router.POST("/webhooks/billing", handler.HandleBillingWebhook)
	return router
}

func postEvent(router *gin.Engine, token, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/webhooks/billing", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBillingWebhook_MissingToken(t *testing.T) {
	router := webhookRouter(&config.Config{BillingWebhookToken: "hook-secret"})

	w := postEvent(router, "", `{"type":"credits_purchased"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBillingWebhook_WrongToken(t *testing.T) {
	router := webhookRouter(&config.Config{BillingWebhookToken: "hook-secret"})

	w := postEvent(router, "Bearer wrong", `{"type":"credits_purchased"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBillingWebhook_NoConfiguredTokenRejectsAll(t *testing.T) {
	router := webhookRouter(&config.Config{})

	w := postEvent(router, "Bearer anything", `{"type":"credits_purchased"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBillingWebhook_InvalidBody(t *testing.T) {
	router := webhookRouter(&config.Config{BillingWebhookToken: "hook-secret"})

	w := postEvent(router, "Bearer hook-secret", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillingWebhook_InvalidUserID(t *testing.T) {
	router := webhookRouter(&config.Config{BillingWebhookToken: "hook-secret"})

	w := postEvent(router, "Bearer hook-secret", `{"type":"credits_purchased","user_id":"nope","credit_units":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillingWebhook_UnknownEventAcknowledged(t *testing.T) {
	router := webhookRouter(&config.Config{BillingWebhookToken: "hook-secret"})

	w := postEvent(router, "Bearer hook-secret", `{"type":"invoice_created","user_id":"5f6c3d1e-7a28-4f4b-9c5d-2b1a0e9f8d7c"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestBillingWebhook_BareTokenAccepted(t *testing.T) {
	router := webhookRouter(&config.Config{BillingWebhookToken: "hook-secret"})

	// Token without the Bearer prefix is accepted too; the unknown event
	// type keeps the nil database out of the code path.
	w := postEvent(router, "hook-secret", `{"type":"ping","user_id":"5f6c3d1e-7a28-4f4b-9c5d-2b1a0e9f8d7c"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
