package handler

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

type avatarOpener interface {
	Open(token string) (*os.File, error)
}

// AvatarHandler streams stored avatars behind signed URLs.
type AvatarHandler struct {
	avatars avatarOpener
}

// NewAvatarHandler constructs AvatarHandler.
func NewAvatarHandler(avatars avatarOpener) *AvatarHandler {
	return &AvatarHandler{avatars: avatars}
}

// Serve godoc
// @Summary Fetch an avatar image
// @Tags Profile
// @Produce png
// @Param token path string true "Signed avatar token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /avatars/{token} [get]
func (h *AvatarHandler) Serve(c *gin.Context) {
	file, err := h.avatars.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size(), "image/png", file, nil)
}
