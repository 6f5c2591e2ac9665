package models

import "time"

type JobResponse struct {
	ID          string    `json:"job_id"`
	Status      string    `json:"status"`
	SheetsCount int       `json:"sheets_count,omitempty"`
	ResultURLs  []string  `json:"result_urls,omitempty"`
	ArchiveURL  string    `json:"archive_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateJobResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	TotalUnits int    `json:"total_units"`
}

type ConfirmJobResponse struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	SheetsCount int    `json:"sheets_count"`
}

type PrintResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	SKU         string                  `json:"sku"`
	WidthCm     float64                 `json:"width_cm"`
	HeightCm    float64                 `json:"height_cm"`
	IsComposite bool                    `json:"is_composite"`
	Slots       map[string]SlotResponse `json:"slots"`
	CreatedAt   time.Time               `json:"created_at"`
}

type SlotResponse struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	WidthCm  float64 `json:"width_cm,omitempty"`
	HeightCm float64 `json:"height_cm,omitempty"`
}

type UploadPrintFileResponse struct {
	PrintID   string `json:"print_id"`
	Type      string `json:"type"`
	FilePath  string `json:"file_path"`
	PublicURL string `json:"public_url"`
}

type UsageResponse struct {
	Plan      string `json:"plan"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Credits   int    `json:"credits"`
	Status    string `json:"status"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
