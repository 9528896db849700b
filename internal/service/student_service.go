package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/qrcode"
	"github.com/noah-isme/qr-attendance-api/pkg/sanitize"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	Code    string `json:"student_id" validate:"required,max=255"`
	Name    string `json:"name" validate:"required,max=255"`
	Course  string `json:"course" validate:"required,max=255"`
	Year    string `json:"year" validate:"required,max=64"`
	Adviser string `json:"adviser" validate:"required,max=255"`
}

// UpdateStudentRequest holds a partial student update. Absent fields keep their value.
type UpdateStudentRequest struct {
	Code    *string `json:"student_id" validate:"omitempty,min=1,max=255"`
	Name    *string `json:"name" validate:"omitempty,min=1,max=255"`
	Course  *string `json:"course" validate:"omitempty,min=1,max=255"`
	Year    *string `json:"year" validate:"omitempty,min=1,max=64"`
	Adviser *string `json:"adviser" validate:"omitempty,min=1,max=255"`
}

// StudentService handles roster use-cases.
type StudentService struct {
	repo      studentRepository
	audit     auditWriter
	cache     reportInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, audit auditWriter, cache reportInvalidator, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns the roster.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	students, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list students")
	}
	return students, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	return student, nil
}

// Create registers a student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, actorID string, meta models.RequestMeta) (*models.Student, error) {
	req = CreateStudentRequest{
		Code:    strings.TrimSpace(req.Code),
		Name:    sanitize.Text(req.Name),
		Course:  sanitize.Text(req.Course),
		Year:    sanitize.Text(req.Year),
		Adviser: sanitize.Text(req.Adviser),
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}

	if err := s.ensureCodeAvailable(ctx, req.Code, ""); err != nil {
		return nil, err
	}

	student := &models.Student{Code: req.Code, Name: req.Name, Course: req.Course, Year: req.Year, Adviser: req.Adviser}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, codeTaken()
		}
		return nil, internalError(err, "failed to create student")
	}

	s.recordAudit(ctx, models.AuditActionStudentCreate, student.ID, nil, student, actorID, meta)
	return student, nil
}

// Update applies a partial update to a student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest, actorID string, meta models.RequestMeta) (*models.Student, error) {
	req.Code = trimPtr(req.Code, strings.TrimSpace)
	req.Name = trimPtr(req.Name, sanitize.Text)
	req.Course = trimPtr(req.Course, sanitize.Text)
	req.Year = trimPtr(req.Year, sanitize.Text)
	req.Adviser = trimPtr(req.Adviser, sanitize.Text)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *student

	if req.Code != nil && *req.Code != student.Code {
		if err := s.ensureCodeAvailable(ctx, *req.Code, id); err != nil {
			return nil, err
		}
		student.Code = *req.Code
	}
	assign(&student.Name, req.Name)
	assign(&student.Course, req.Course)
	assign(&student.Year, req.Year)
	assign(&student.Adviser, req.Adviser)

	if err := s.repo.Update(ctx, student); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, codeTaken()
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to update student")
	}

	if before.Year != student.Year {
		s.invalidateReports(ctx)
	}
	s.recordAudit(ctx, models.AuditActionStudentUpdate, student.ID, &before, student, actorID, meta)
	return student, nil
}

// Delete removes a student together with its attendance history and returns the removed record.
func (s *StudentService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) (*models.Student, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to delete student")
	}
	s.invalidateReports(ctx)
	s.recordAudit(ctx, models.AuditActionStudentDelete, student.ID, student, nil, actorID, meta)
	return student, nil
}

// CheckName warns when the name is already on the roster. It never blocks creation.
func (s *StudentService) CheckName(ctx context.Context, req dto.NameCheckRequest) (*dto.NameCheckResult, error) {
	req.Name = sanitize.Text(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid name check payload")
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, internalError(err, "failed to check student name")
	}
	if exists {
		return &dto.NameCheckResult{Status: dto.NameStatusError, Message: "Name already exist"}, nil
	}
	return &dto.NameCheckResult{Status: dto.NameStatusSuccess, Message: "Name is available"}, nil
}

// QRCode renders the student's card code as a PNG.
func (s *StudentService) QRCode(ctx context.Context, id string, size int) (*dto.ExportFile, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.PNG(student.Code, size)
	if err != nil {
		return nil, internalError(err, "failed to render qr code")
	}
	return &dto.ExportFile{Filename: "qr-" + student.Code + ".png", ContentType: "image/png", Payload: png}, nil
}

func (s *StudentService) ensureCodeAvailable(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return internalError(err, "failed to check student code")
	}
	if exists {
		return codeTaken()
	}
	return nil
}

func (s *StudentService) invalidateReports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ReportCachePattern); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.Error(err))
	}
}

func (s *StudentService) recordAudit(ctx context.Context, action, studentID string, before, after *models.Student, actorID string, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "students",
		ResourceID: &studentID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record student audit log", zap.String("action", action), zap.Error(err))
	}
}

func codeTaken() *appErrors.Error {
	return appErrors.WithField(appErrors.ErrConflict, "student_id", "The student id has already been taken.")
}

func trimPtr(v *string, clean func(string) string) *string {
	if v == nil {
		return nil
	}
	out := clean(*v)
	return &out
}

func assign(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
