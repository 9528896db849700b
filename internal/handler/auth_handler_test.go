package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type authServiceMock struct {
	registered   service.RegisterRequest
	avatarBytes  []byte
	sawAvatar    bool
	loginErr     error
	logoutToken  string
	logoutUserID string
	profileUser  string
	changedFor   string
}

func (m *authServiceMock) Register(_ context.Context, req service.RegisterRequest, avatar io.Reader, _ models.RequestMeta) (*models.User, error) {
	m.registered = req
	if avatar != nil {
		m.sawAvatar = true
		m.avatarBytes, _ = io.ReadAll(avatar)
	}
	return &models.User{ID: "u1", Username: req.Username, Role: req.Role}, nil
}

func (m *authServiceMock) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *authServiceMock) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2"}, nil
}

func (m *authServiceMock) Logout(_ context.Context, refreshToken string, userID string, _ models.RequestMeta) error {
	m.logoutToken, m.logoutUserID = refreshToken, userID
	return nil
}

func (m *authServiceMock) Me(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID, Username: "maria"}, nil
}

func (m *authServiceMock) UpdateProfile(_ context.Context, userID string, req service.UpdateProfileRequest, avatar io.Reader, _ models.RequestMeta) (*models.User, error) {
	m.profileUser = userID
	m.sawAvatar = avatar != nil
	return &models.User{ID: userID, Name: req.Name, Username: req.Username}, nil
}

func (m *authServiceMock) ChangePassword(_ context.Context, userID string, _ models.ChangePasswordRequest, _ models.RequestMeta) error {
	m.changedFor = userID
	return nil
}

func multipartContext(t *testing.T, method, path string, fields map[string]string, avatar []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if avatar != nil {
		part, err := writer.CreateFormFile("avatar", "me.png")
		require.NoError(t, err)
		_, err = part.Write(avatar)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	c, w := newGinContext(method, path, body.Bytes())
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	return c, w
}

func registrationFields() map[string]string {
	return map[string]string{
		"name":                  "Maria Santos",
		"username":              "maria",
		"password":              "secret123",
		"password_confirmation": "secret123",
		"role":                  "staff",
	}
}

func TestAuthHandlerRegisterWithoutAvatar(t *testing.T) {
	mock := &authServiceMock{}
	handler := NewAuthHandler(mock)

	c, w := multipartContext(t, http.MethodPost, "/register", registrationFields(), nil)
	handler.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, mock.sawAvatar)
	assert.Equal(t, "maria", mock.registered.Username)
	assert.Equal(t, models.RoleStaff, mock.registered.Role)
	assert.Contains(t, string(decode(t, w).Data), pendingApprovalMessage)
}

func TestAuthHandlerRegisterWithAvatar(t *testing.T) {
	mock := &authServiceMock{}
	handler := NewAuthHandler(mock)

	c, w := multipartContext(t, http.MethodPost, "/register", registrationFields(), []byte("fake-image"))
	handler.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mock.sawAvatar)
	assert.Equal(t, []byte("fake-image"), mock.avatarBytes)
}

func TestAuthHandlerLoginFieldError(t *testing.T) {
	mock := &authServiceMock{loginErr: appErrors.WithField(appErrors.ErrInvalidCredentials, "username", "Username does not exist.")}
	handler := NewAuthHandler(mock)

	c, w := newGinContext(http.MethodPost, "/login", []byte(`{"username":"ghost","password":"x"}`))
	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Username does not exist.", env.Error.Fields["username"])
}

func TestAuthHandlerLogout(t *testing.T) {
	mock := &authServiceMock{}
	handler := NewAuthHandler(mock)

	c, _ := newGinContext(http.MethodPost, "/logout", []byte(`{"refresh_token":"r1"}`))
	withClaims(c, "u1", models.RoleStaff)
	handler.Logout(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "r1", mock.logoutToken)
	assert.Equal(t, "u1", mock.logoutUserID)

	c, w := newGinContext(http.MethodPost, "/logout", []byte(`{}`))
	withClaims(c, "u1", models.RoleStaff)
	handler.Logout(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerRequiresClaims(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{})
	c, w := newGinContext(http.MethodGet, "/profile", nil)
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerProfileUpdates(t *testing.T) {
	mock := &authServiceMock{}
	handler := NewAuthHandler(mock)

	c, w := multipartContext(t, http.MethodPost, "/profile", map[string]string{"name": "Maria", "username": "maria"}, nil)
	withClaims(c, "u1", models.RoleStaff)
	handler.UpdateProfile(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", mock.profileUser)
	assert.False(t, mock.sawAvatar)

	body := []byte(`{"current_password":"old-secret","password":"new-secret","password_confirmation":"new-secret"}`)
	c, _ = newGinContext(http.MethodPut, "/profile", body)
	withClaims(c, "u1", models.RoleStaff)
	handler.ChangePassword(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "u1", mock.changedFor)
}
