package models

type CreatePrintRequest struct {
	Name        string  `json:"name" binding:"required"`
	SKU         string  `json:"sku" binding:"required"`
	WidthCm     float64 `json:"width_cm"`
	HeightCm    float64 `json:"height_cm"`
	IsComposite bool    `json:"is_composite"`
}

type CreateJobRequest struct {
	Items []JobItemRequest `json:"items" binding:"required"`
}

type JobItemRequest struct {
	PrintID  string  `json:"print_id" binding:"required"`
	Type     string  `json:"type"`
	Qty      int     `json:"qty"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
}

// BillingEvent is the normalized payload the billing webhook receives after
// the provider-side integration has verified and unwrapped the event.
type BillingEvent struct {
	Type           string `json:"type"`
	UserID         string `json:"user_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	PlanID         string `json:"plan_id,omitempty"`
	PeriodStart    int64  `json:"period_start,omitempty"`
	PeriodEnd      int64  `json:"period_end,omitempty"`
	CreditUnits    int    `json:"credit_units,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
