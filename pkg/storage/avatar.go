package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
)

// AvatarSize is the square edge, in pixels, of stored avatars.
const AvatarSize = 256

// ErrAvatarTooLarge is returned when an upload exceeds the configured limit.
var ErrAvatarTooLarge = errors.New("avatar exceeds size limit")

// ErrAvatarFormat is returned when the upload is not a decodable image.
var ErrAvatarFormat = errors.New("avatar must be a jpeg, png or gif image")

// ProcessAvatar decodes an uploaded image, fills it to a square thumbnail and
// re-encodes it as PNG. Reads at most maxBytes+1 bytes from r.
func ProcessAvatar(r io.Reader, maxBytes int64) ([]byte, error) {
	limited := io.LimitReader(r, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, ErrAvatarTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrAvatarFormat
	}

	thumb := imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}
