package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

// formAvatar opens the optional "avatar" upload. The returned reader is nil
// when no file was sent, and the closer is always safe to call.
func formAvatar(c *gin.Context) (io.Reader, func(), error) {
	header, err := c.FormFile("avatar")
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return nil, func() {}, nil
		}
		return nil, func() {}, appErrors.WithField(appErrors.ErrValidation, "avatar", "The avatar failed to upload.")
	}
	file, err := header.Open()
	if err != nil {
		return nil, func() {}, appErrors.WithField(appErrors.ErrValidation, "avatar", "The avatar failed to upload.")
	}
	return file, func() { _ = file.Close() }, nil
}
