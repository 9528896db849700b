package dto

import "github.com/noah-isme/qr-attendance-api/internal/models"

// ScanRequest is posted by the front-desk scanner.
type ScanRequest struct {
	QRData string `json:"qr_data" validate:"required,max=255"`
}

// ScannedStudent describes the outcome of a single scan.
type ScannedStudent struct {
	Name           string             `json:"name"`
	Year           string             `json:"year"`
	Course         string             `json:"course"`
	Status         string             `json:"status"`
	AlreadyScanned bool               `json:"alreadyScanned"`
	Outcome        models.ScanOutcome `json:"outcome"`
}

// ScanResult carries a nil student when the code is unknown.
type ScanResult struct {
	Student *ScannedStudent `json:"student"`
}

// StudentSummary identifies a student without exposing roster metadata.
type StudentSummary struct {
	Name   string `json:"name"`
	Year   string `json:"year"`
	Course string `json:"course"`
}

// LookupResult is returned by the read-only code lookup.
type LookupResult struct {
	Student StudentSummary `json:"student"`
}

// AttendanceLog lists ledger rows joined with their students.
type AttendanceLog struct {
	Attendances []models.AttendanceLogEntry `json:"attendances"`
}

// ExportFormat selects the attendance export renderer.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportRequest describes an attendance export.
type ExportRequest struct {
	Format ExportFormat `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
	From   string       `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string       `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
