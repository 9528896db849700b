package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/storage"
)

type fileStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type urlSigner interface {
	Generate(ownerID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (ownerID, relPath string, expiresAt time.Time, err error)
}

// AvatarService stores profile pictures and hands out signed links to them.
type AvatarService struct {
	store    fileStore
	signer   urlSigner
	maxBytes int64
	baseURL  string
	logger   *zap.Logger
}

// NewAvatarService constructs the avatar service. baseURL is the public path
// that serves tokens, for example "/api/avatars".
func NewAvatarService(store fileStore, signer urlSigner, maxBytes int64, baseURL string, logger *zap.Logger) *AvatarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = 5074 * 1024
	}
	return &AvatarService{store: store, signer: signer, maxBytes: maxBytes, baseURL: baseURL, logger: logger}
}

// Store resizes the upload and saves it under the owner's directory.
func (s *AvatarService) Store(ctx context.Context, ownerID string, r io.Reader) (string, error) {
	png, err := storage.ProcessAvatar(r, s.maxBytes)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAvatarTooLarge):
			return "", appErrors.WithField(appErrors.ErrValidation, "avatar", fmt.Sprintf("The avatar may not be greater than %d kilobytes.", s.maxBytes/1024))
		case errors.Is(err, storage.ErrAvatarFormat):
			return "", appErrors.WithField(appErrors.ErrValidation, "avatar", "The avatar must be an image.")
		}
		return "", internalError(err, "failed to process avatar")
	}
	path, err := s.store.Save(fmt.Sprintf("avatars/%s/%s.png", ownerID, uuid.NewString()), png)
	if err != nil {
		return "", internalError(err, "failed to store avatar")
	}
	return path, nil
}

// Remove deletes a previously stored avatar. Failures are logged only.
func (s *AvatarService) Remove(path *string) {
	if path == nil || *path == "" {
		return
	}
	if err := s.store.Delete(*path); err != nil {
		s.logger.Warn("failed to delete avatar", zap.String("path", *path), zap.Error(err))
	}
}

// URL returns a signed link for the avatar or an empty string when none is set.
func (s *AvatarService) URL(ownerID string, path *string) string {
	if s == nil || path == nil || *path == "" {
		return ""
	}
	token, _, err := s.signer.Generate(ownerID, *path)
	if err != nil {
		s.logger.Warn("failed to sign avatar url", zap.String("owner_id", ownerID), zap.Error(err))
		return ""
	}
	return s.baseURL + "/" + token
}

// Open resolves a signed token to the stored avatar file.
func (s *AvatarService) Open(token string) (*os.File, error) {
	_, path, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "avatar not found")
	}
	file, err := s.store.Open(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "avatar not found")
	}
	return file, nil
}
