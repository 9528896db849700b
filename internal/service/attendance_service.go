package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/export"
)

type scanStudentLookup interface {
	FindByCode(ctx context.Context, code string) (*models.Student, error)
}

type attendanceLedger interface {
	InsertOpen(ctx context.Context, studentID, date, timeIn string) (bool, error)
	CloseOpen(ctx context.Context, studentID, date, timeOut string) (bool, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceLogEntry, error)
}

type reportInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type scanRecorder interface {
	RecordScan(outcome models.ScanOutcome)
}

var exportHeaders = []string{"Name", "Year", "Course", "Date", "Time In", "Time Out"}

// AttendanceService runs the check-in/check-out state machine and exposes the ledger.
type AttendanceService struct {
	students  scanStudentLookup
	ledger    attendanceLedger
	cache     reportInvalidator
	metrics   scanRecorder
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time

	csv  *export.CSVExporter
	pdf  *export.PDFExporter
	xlsx *export.XLSXExporter
}

// NewAttendanceService constructs the attendance service. Dates and times are
// taken from the wall clock in loc.
func NewAttendanceService(students scanStudentLookup, ledger attendanceLedger, cache reportInvalidator, metrics scanRecorder, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{
		students:  students,
		ledger:    ledger,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		location:  loc,
		now:       time.Now,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		xlsx:      export.NewXLSXExporter(),
	}
}

// Scan toggles the student's visit for today. The first scan of the day opens
// a visit, the second closes it and later scans change nothing. Unknown codes
// yield a nil student.
func (s *AttendanceService) Scan(ctx context.Context, req dto.ScanRequest) (*dto.ScanResult, error) {
	req.QRData = strings.TrimSpace(req.QRData)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid scan payload")
	}

	student, err := s.students.FindByCode(ctx, req.QRData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.ScanResult{}, nil
		}
		return nil, internalError(err, "failed to resolve student")
	}

	stamp := s.now().In(s.location)
	date := stamp.Format(models.DateLayout)
	clock := stamp.Format(models.TimeLayout)

	outcome, err := s.transition(ctx, student.ID, date, clock)
	if err != nil {
		return nil, internalError(err, "failed to record attendance")
	}

	if s.metrics != nil {
		s.metrics.RecordScan(outcome)
	}
	if outcome != models.ScanOutcomeAlreadyCheckedOut && s.cache != nil {
		if err := s.cache.Invalidate(ctx, ReportCachePattern); err != nil {
			s.logger.Warn("failed to invalidate report cache", zap.Error(err))
		}
	}
	s.logger.Info("attendance scan",
		zap.String("student_id", student.ID),
		zap.String("date", date),
		zap.String("outcome", string(outcome)),
	)

	result := &dto.ScannedStudent{
		Name:           student.Name,
		Year:           student.Year,
		Course:         student.Course,
		Status:         models.ScanStatusCheckedOut,
		AlreadyScanned: true,
		Outcome:        outcome,
	}
	if outcome == models.ScanOutcomeCheckedIn {
		result.Status = models.ScanStatusCheckedIn
		result.AlreadyScanned = false
	}
	return &dto.ScanResult{Student: result}, nil
}

// transition inserts first and falls back to closing the open row, so two
// concurrent first scans can never create two rows for the same day.
func (s *AttendanceService) transition(ctx context.Context, studentID, date, clock string) (models.ScanOutcome, error) {
	inserted, err := s.ledger.InsertOpen(ctx, studentID, date, clock)
	if err != nil {
		return "", err
	}
	if inserted {
		return models.ScanOutcomeCheckedIn, nil
	}
	closed, err := s.ledger.CloseOpen(ctx, studentID, date, clock)
	if err != nil {
		return "", err
	}
	if closed {
		return models.ScanOutcomeCheckedOut, nil
	}
	return models.ScanOutcomeAlreadyCheckedOut, nil
}

// Lookup resolves a code without touching the ledger.
func (s *AttendanceService) Lookup(ctx context.Context, req dto.ScanRequest) (*dto.LookupResult, error) {
	req.QRData = strings.TrimSpace(req.QRData)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid scan payload")
	}
	student, err := s.students.FindByCode(ctx, req.QRData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Invalid QR Code")
		}
		return nil, internalError(err, "failed to resolve student")
	}
	return &dto.LookupResult{Student: dto.StudentSummary{Name: student.Name, Year: student.Year, Course: student.Course}}, nil
}

// ListScanned returns the attendance log, newest first.
func (s *AttendanceService) ListScanned(ctx context.Context, filter models.AttendanceFilter) (*dto.AttendanceLog, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, validationError(err, "invalid date range")
	}
	// Bounds are ISO dates here, so string order is date order.
	if filter.From != "" && filter.To != "" && filter.From > filter.To {
		return nil, appErrors.WithField(appErrors.ErrValidation, "to", "The to date must be on or after the from date.")
	}
	entries, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list attendances")
	}
	return &dto.AttendanceLog{Attendances: entries}, nil
}

// Export renders the attendance log in the requested format.
func (s *AttendanceService) Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportFile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid export request")
	}
	if req.Format == "" {
		req.Format = dto.ExportFormatCSV
	}

	log, err := s.ListScanned(ctx, models.AttendanceFilter{From: req.From, To: req.To})
	if err != nil {
		return nil, err
	}

	data := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(log.Attendances))}
	for _, entry := range log.Attendances {
		data.Rows = append(data.Rows, map[string]string{
			"Name":     entry.Name,
			"Year":     entry.Year,
			"Course":   entry.Course,
			"Date":     entry.Date,
			"Time In":  deref(entry.TimeIn),
			"Time Out": deref(entry.TimeOut),
		})
	}

	base := "attendance-" + s.now().In(s.location).Format("20060102-150405")
	var (
		payload     []byte
		contentType string
	)
	switch req.Format {
	case dto.ExportFormatPDF:
		payload, err = s.pdf.Render(data, "Attendance Log")
		contentType = "application/pdf"
	case dto.ExportFormatXLSX:
		payload, err = s.xlsx.Render(data, "Attendance")
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		payload, err = s.csv.Render(data)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, internalError(err, fmt.Sprintf("failed to render %s export", req.Format))
	}
	return &dto.ExportFile{Filename: base + "." + string(req.Format), ContentType: contentType, Payload: payload}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
