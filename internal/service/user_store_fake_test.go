package service

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

type fakeUserStore struct {
	users     map[string]*models.User
	tokens    map[string]*models.RefreshToken
	auditLogs []*models.AuditLog
	revoked   []string
	createErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User), tokens: make(map[string]*models.RefreshToken)}
}

func (f *fakeUserStore) seed(t *testing.T, u models.User, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u.PasswordHash = string(hash)
	f.users[u.ID] = &u
	return &u
}

func (f *fakeUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	for _, u := range f.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	all, _ := f.ListAll(ctx)
	return all, len(all), nil
}

func (f *fakeUserStore) ListAll(ctx context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeUserStore) ListPending(ctx context.Context) ([]models.User, error) {
	all, _ := f.ListAll(ctx)
	out := make([]models.User, 0)
	for _, u := range all {
		if !u.Approved {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	copy := *user
	f.users[user.ID] = &copy
	return nil
}

func (f *fakeUserStore) Update(ctx context.Context, user *models.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	f.users[user.ID] = &copy
	return nil
}

func (f *fakeUserStore) SetApproved(ctx context.Context, id string, approved bool) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Approved = approved
	return nil
}

func (f *fakeUserStore) SetActive(ctx context.Context, id string, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = active
	return nil
}

func (f *fakeUserStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if u, ok := f.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUserStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	f.revoked = append(f.revoked, userID)
	for _, t := range f.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (f *fakeUserStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	copy := *token
	f.tokens[token.Token] = &copy
	return nil
}

func (f *fakeUserStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := f.tokens[token]; ok {
		copy := *t
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, t := range f.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (f *fakeUserStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.auditLogs = append(f.auditLogs, log)
	return nil
}

type fakeAvatars struct {
	stored  map[string]string
	removed []string
	err     error
}

func newFakeAvatars() *fakeAvatars {
	return &fakeAvatars{stored: make(map[string]string)}
}

func (f *fakeAvatars) Store(ctx context.Context, ownerID string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	raw, _ := io.ReadAll(r)
	path := "avatars/" + ownerID + "/" + string(raw) + ".png"
	f.stored[path] = ownerID
	return path, nil
}

func (f *fakeAvatars) Remove(path *string) {
	if path != nil {
		f.removed = append(f.removed, *path)
	}
}

func (f *fakeAvatars) URL(ownerID string, path *string) string {
	if path == nil {
		return ""
	}
	return "/avatars/signed-" + ownerID
}
