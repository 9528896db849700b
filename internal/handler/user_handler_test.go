package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type userServiceMock struct {
	filter  models.UserFilter
	actor   string
	target  string
	deleteE error
}

func (m *userServiceMock) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	m.filter = filter
	return []models.User{{ID: "u2"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *userServiceMock) ListAll(context.Context) ([]models.User, error) {
	return []models.User{{ID: "u1"}, {ID: "u2"}}, nil
}

func (m *userServiceMock) ListPending(context.Context) ([]models.User, error) {
	return []models.User{{ID: "u3"}}, nil
}

func (m *userServiceMock) Approve(_ context.Context, id string, actorID string, _ models.RequestMeta) (*dto.MessageResponse, error) {
	m.target, m.actor = id, actorID
	return &dto.MessageResponse{Message: "User approved successfully."}, nil
}

func (m *userServiceMock) Reject(_ context.Context, id string, actorID string, _ models.RequestMeta) (*dto.MessageResponse, error) {
	m.target, m.actor = id, actorID
	return &dto.MessageResponse{Message: "User rejected successfully."}, nil
}

func (m *userServiceMock) Update(_ context.Context, id string, req service.UpdateUserRequest, _ string, _ models.RequestMeta) (*models.User, error) {
	return &models.User{ID: id, Name: req.Name, Username: req.Username, Role: req.Role}, nil
}

func (m *userServiceMock) ToggleActivation(_ context.Context, id string, _ string, _ models.RequestMeta) (*dto.ToggleActivationResult, error) {
	m.target = id
	return &dto.ToggleActivationResult{Message: "User status updated successfully.", IsActive: false}, nil
}

func (m *userServiceMock) ResetPassword(_ context.Context, id string, _ string, _ models.RequestMeta) (*dto.ResetPasswordResult, error) {
	return &dto.ResetPasswordResult{Message: "Password has been reset", NewPassword: "password123"}, nil
}

func (m *userServiceMock) Delete(_ context.Context, id string, actorID string, _ models.RequestMeta) (*dto.MessageResponse, error) {
	m.target, m.actor = id, actorID
	if m.deleteE != nil {
		return nil, m.deleteE
	}
	return &dto.MessageResponse{Message: "User deleted successfully"}, nil
}

func TestUserHandlerListFilters(t *testing.T) {
	mock := &userServiceMock{}
	handler := NewUserHandler(mock)

	c, w := newGinContext(http.MethodGet, "/admin/users?page=2&page_size=5&role=staff&approved=false&search=mar", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mock.filter.Page)
	assert.Equal(t, 5, mock.filter.PageSize)
	require.NotNil(t, mock.filter.Role)
	assert.Equal(t, models.RoleStaff, *mock.filter.Role)
	require.NotNil(t, mock.filter.Approved)
	assert.False(t, *mock.filter.Approved)
	assert.Equal(t, "mar", mock.filter.Search)
	assert.Contains(t, w.Body.String(), `"pagination":{"page":2,"page_size":5,"total_count":1}`)
}

func TestUserHandlerApproveUsesCaller(t *testing.T) {
	mock := &userServiceMock{}
	handler := NewUserHandler(mock)

	c, w := newGinContext(http.MethodPost, "/admin/approve/u3", nil)
	c.AddParam("id", "u3")
	withClaims(c, "admin-1", models.RoleAdmin)
	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u3", mock.target)
	assert.Equal(t, "admin-1", mock.actor)
	assert.JSONEq(t, `{"message":"User approved successfully."}`, string(decode(t, w).Data))
}

func TestUserHandlerToggleAndReset(t *testing.T) {
	handler := NewUserHandler(&userServiceMock{})

	c, w := newGinContext(http.MethodPut, "/users/u2/toggle-activation", nil)
	c.AddParam("id", "u2")
	handler.ToggleActivation(c)
	assert.JSONEq(t, `{"message":"User status updated successfully.","is_active":false}`, string(decode(t, w).Data))

	c, w = newGinContext(http.MethodPost, "/admin/users/u2/reset-password", nil)
	c.AddParam("id", "u2")
	handler.ResetPassword(c)
	assert.JSONEq(t, `{"message":"Password has been reset","new_password":"password123"}`, string(decode(t, w).Data))
}

func TestUserHandlerUpdateWrapsUser(t *testing.T) {
	handler := NewUserHandler(&userServiceMock{})
	c, w := newGinContext(http.MethodPut, "/admin/users/u2", []byte(`{"name":"Jo","username":"jo","role":"admin"}`))
	c.AddParam("id", "u2")
	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := string(decode(t, w).Data)
	assert.Contains(t, data, `"message":"User updated successfully"`)
	assert.Contains(t, data, `"role":"admin"`)
}

func TestUserHandlerDeleteSelfForbidden(t *testing.T) {
	mock := &userServiceMock{deleteE: appErrors.Clone(appErrors.ErrForbidden, "you cannot delete your own account")}
	handler := NewUserHandler(mock)
	c, w := newGinContext(http.MethodDelete, "/delete-users/admin-1", nil)
	c.AddParam("id", "admin-1")
	withClaims(c, "admin-1", models.RoleAdmin)
	handler.Delete(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type avatarOpenerMock struct {
	path string
}

func (m avatarOpenerMock) Open(token string) (*os.File, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "avatar not found")
	}
	return os.Open(m.path)
}

func TestAvatarHandlerServe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))
	handler := NewAvatarHandler(avatarOpenerMock{path: path})

	c, w := newGinContext(http.MethodGet, "/avatars/good", nil)
	c.AddParam("token", "good")
	handler.Serve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	c, w = newGinContext(http.MethodGet, "/avatars/bad", nil)
	c.AddParam("token", "bad")
	handler.Serve(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	healthy := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	healthy.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"postgres":"ok"}}`, w.Body.String())

	failing := NewMetricsHandler(nil, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	failing.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	c, _ = newGinContext(http.MethodGet, "/metrics", nil)
	failing.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, c.Writer.Status())
}
