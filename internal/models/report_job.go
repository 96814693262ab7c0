package models

import "time"

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob tracks one asynchronous observation export.
type ReportJob struct {
	ID            string       `json:"id"`
	ObservationID string       `json:"observation_id"`
	Format        ReportFormat `json:"format"`
	Status        ReportStatus `json:"status"`
	DownloadURL   *string      `json:"download_url,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	CreatedBy     string       `json:"created_by"`
	CreatedAt     time.Time    `json:"created_at"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty"`
	ErrorMessage  *string      `json:"error_message,omitempty"`
}
