// Package qrcode renders student codes as scannable PNG images.
package qrcode

import (
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

// PNG encodes content with medium error correction. Sizes outside
// [MinSize, MaxSize] fall back to DefaultSize.
func PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content required")
	}
	if size < MinSize || size > MaxSize {
		size = DefaultSize
	}
	png, err := goqrcode.Encode(content, goqrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
