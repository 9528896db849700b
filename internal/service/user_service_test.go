package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

func newUserFixture(t *testing.T) (*UserService, *fakeUserStore, *fakeAvatars) {
	t.Helper()
	store := newFakeUserStore()
	avatars := newFakeAvatars()
	store.seed(t, models.User{ID: "admin", Name: "Admin", Username: "admin", Role: models.RoleAdmin, Approved: true, Active: true}, "secret123")
	pic := "avatars/pending/p.png"
	store.seed(t, models.User{ID: "pending", Name: "Pending", Username: "pending", Role: models.RoleStaff, Avatar: &pic, Active: true}, "secret123")
	store.seed(t, models.User{ID: "staff", Name: "Staff", Username: "staff", Role: models.RoleStaff, Approved: true, Active: true}, "secret123")
	return NewUserService(store, avatars, NewValidator(), zap.NewNop(), ""), store, avatars
}

func TestListPendingDecoratesAvatar(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	users, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "pending", users[0].ID)
	assert.Equal(t, "/avatars/signed-pending", users[0].AvatarURL)
}

func TestApproveAndReject(t *testing.T) {
	svc, store, avatars := newUserFixture(t)
	ctx := context.Background()

	_, err := svc.Reject(ctx, "staff", "admin", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)

	msg, err := svc.Reject(ctx, "pending", "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "User rejected successfully.", msg.Message)
	assert.NotContains(t, store.users, "pending")
	assert.Equal(t, []string{"avatars/pending/p.png"}, avatars.removed)

	_, err = svc.Approve(ctx, "pending", "admin", models.RequestMeta{})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestApproveFlipsFlag(t *testing.T) {
	svc, store, _ := newUserFixture(t)

	_, err := svc.Approve(context.Background(), "pending", "admin", models.RequestMeta{IP: "10.0.0.9"})
	require.NoError(t, err)
	assert.True(t, store.users["pending"].Approved)
	last := store.auditLogs[len(store.auditLogs)-1]
	assert.Equal(t, models.AuditActionApprove, last.Action)
	assert.Equal(t, "10.0.0.9", last.IPAddress)
}

func TestToggleActivation(t *testing.T) {
	svc, store, _ := newUserFixture(t)

	res, err := svc.ToggleActivation(context.Background(), "staff", "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.False(t, res.IsActive)
	assert.False(t, store.users["staff"].Active)

	res, err = svc.ToggleActivation(context.Background(), "staff", "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, res.IsActive)

	_, err = svc.ToggleActivation(context.Background(), "admin", "admin", models.RequestMeta{})
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestResetPassword(t *testing.T) {
	svc, store, _ := newUserFixture(t)

	res, err := svc.ResetPassword(context.Background(), "staff", "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "password123", res.NewPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.users["staff"].PasswordHash), []byte("password123")))
	assert.Equal(t, []string{"staff"}, store.revoked)
}

func TestUpdateUser(t *testing.T) {
	svc, store, _ := newUserFixture(t)

	_, err := svc.Update(context.Background(), "staff", UpdateUserRequest{Name: "S", Username: "admin", Role: models.RoleStaff}, "admin", models.RequestMeta{})
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)

	_, err = svc.Update(context.Background(), "staff", UpdateUserRequest{Name: "S", Username: "s", Role: "owner"}, "admin", models.RequestMeta{})
	assert.Contains(t, appErrors.FromError(err).Fields, "role")

	user, err := svc.Update(context.Background(), "staff", UpdateUserRequest{Name: "Senior", Username: "senior", Role: models.RoleAdmin}, "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, "senior", store.users["staff"].Username)
}

func TestDeleteUser(t *testing.T) {
	svc, store, _ := newUserFixture(t)

	_, err := svc.Delete(context.Background(), "admin", "admin", models.RequestMeta{})
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	_, err = svc.Delete(context.Background(), "missing", "admin", models.RequestMeta{})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	msg, err := svc.Delete(context.Background(), "staff", "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "User deleted successfully", msg.Message)
	assert.NotContains(t, store.users, "staff")
}

func TestListPagination(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, users, 3)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 3, pagination.TotalCount)
}
