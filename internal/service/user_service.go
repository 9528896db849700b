package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListAll(ctx context.Context) ([]models.User, error)
	ListPending(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	SetApproved(ctx context.Context, id string, approved bool) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type avatarLinker interface {
	Remove(path *string)
	URL(ownerID string, path *string) string
}

// UpdateUserRequest is an admin edit of another account.
type UpdateUserRequest struct {
	Name     string          `json:"name" validate:"required,max=255"`
	Username string          `json:"username" validate:"required,max=255"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin staff"`
}

// UserService handles the admin side of account management.
type UserService struct {
	repo          userRepository
	avatars       avatarLinker
	validator     *validator.Validate
	logger        *zap.Logger
	resetPassword string
}

// NewUserService creates an instance of UserService. resetPassword is the
// temporary password assigned by ResetPassword.
func NewUserService(repo userRepository, avatars avatarLinker, validate *validator.Validate, logger *zap.Logger, resetPassword string) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if resetPassword == "" {
		resetPassword = "password123"
	}
	return &UserService{repo: repo, avatars: avatars, validator: validate, logger: logger, resetPassword: resetPassword}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	s.decorate(users)
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListAll returns every account.
func (s *UserService) ListAll(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list users")
	}
	s.decorate(users)
	return users, nil
}

// ListPending returns accounts awaiting approval.
func (s *UserService) ListPending(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list pending users")
	}
	s.decorate(users)
	return users, nil
}

// Approve lets the account log in.
func (s *UserService) Approve(ctx context.Context, id string, actorID string, meta models.RequestMeta) (*dto.MessageResponse, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetApproved(ctx, id, true); err != nil {
		return nil, s.mapWriteErr(err, "failed to approve user")
	}
	s.audit(ctx, models.AuditActionApprove, user.ID, map[string]interface{}{"approved": user.Approved}, map[string]interface{}{"approved": true}, actorID, meta)
	return &dto.MessageResponse{Message: "User approved successfully."}, nil
}

// Reject deletes an account that has not been approved.
func (s *UserService) Reject(ctx context.Context, id string, actorID string, meta models.RequestMeta) (*dto.MessageResponse, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Approved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user is already approved")
	}
	if err := s.remove(ctx, user); err != nil {
		return nil, err
	}
	s.audit(ctx, models.AuditActionReject, user.ID, map[string]interface{}{"username": user.Username}, nil, actorID, meta)
	return &dto.MessageResponse{Message: "User rejected successfully."}, nil
}

// Update edits an account's name, username and role.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update payload")
	}

	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Username != user.Username {
		taken, err := s.repo.ExistsByUsername(ctx, req.Username, id)
		if err != nil {
			return nil, internalError(err, "failed to check username")
		}
		if taken {
			return nil, usernameTaken()
		}
	}

	oldValues := map[string]interface{}{"name": user.Name, "username": user.Username, "role": user.Role}
	user.Name = req.Name
	user.Username = req.Username
	user.Role = req.Role

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, usernameTaken()
		}
		return nil, s.mapWriteErr(err, "failed to update user")
	}

	s.audit(ctx, models.AuditActionUserUpdate, user.ID, oldValues, map[string]interface{}{"name": user.Name, "username": user.Username, "role": user.Role}, actorID, meta)
	s.decorateOne(user)
	return user, nil
}

// ToggleActivation flips the account's active flag.
func (s *UserService) ToggleActivation(ctx context.Context, id string, actorID string, meta models.RequestMeta) (*dto.ToggleActivationResult, error) {
	if id == actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change activation of your own account")
	}
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := !user.Active
	if err := s.repo.SetActive(ctx, id, next); err != nil {
		return nil, s.mapWriteErr(err, "failed to update user status")
	}

	action := models.AuditActionDeactivate
	if next {
		action = models.AuditActionActivate
	}
	s.audit(ctx, action, user.ID, map[string]interface{}{"active": user.Active}, map[string]interface{}{"active": next}, actorID, meta)
	return &dto.ToggleActivationResult{Message: "User status updated successfully.", IsActive: next}, nil
}

// ResetPassword assigns the configured temporary password and ends the user's sessions.
func (s *UserService) ResetPassword(ctx context.Context, id string, actorID string, meta models.RequestMeta) (*dto.ResetPasswordResult, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s.resetPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash), time.Now().UTC()); err != nil {
		return nil, s.mapWriteErr(err, "failed to reset password")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after reset", zap.Error(err))
	}
	s.audit(ctx, models.AuditActionPasswordReset, user.ID, nil, map[string]interface{}{"reset": true}, actorID, meta)
	return &dto.ResetPasswordResult{Message: "Password has been reset", NewPassword: s.resetPassword}, nil
}

// Delete removes an account.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) (*dto.MessageResponse, error) {
	if id == actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot delete your own account")
	}
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.remove(ctx, user); err != nil {
		return nil, err
	}
	s.audit(ctx, models.AuditActionUserDelete, user.ID, map[string]interface{}{"username": user.Username, "role": user.Role}, nil, actorID, meta)
	return &dto.MessageResponse{Message: "User deleted successfully"}, nil
}

func (s *UserService) get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}

func (s *UserService) remove(ctx context.Context, user *models.User) error {
	if err := s.repo.Delete(ctx, user.ID); err != nil {
		return s.mapWriteErr(err, "failed to delete user")
	}
	if s.avatars != nil {
		s.avatars.Remove(user.Avatar)
	}
	return nil
}

func (s *UserService) mapWriteErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return internalError(err, message)
}

func (s *UserService) decorate(users []models.User) {
	for i := range users {
		s.decorateOne(&users[i])
	}
}

func (s *UserService) decorateOne(user *models.User) {
	if s.avatars != nil {
		user.AvatarURL = s.avatars.URL(user.ID, user.Avatar)
	}
}

func (s *UserService) audit(ctx context.Context, action, userID string, before, after map[string]interface{}, actorID string, meta models.RequestMeta) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "users",
		ResourceID: &userID,
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
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}
