// Package media shrinks images before they are attached to a message.
package media

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/matheus3301/chatline/internal/api"
)

// JPEGQuality is the quality uploads are re-encoded at.
const JPEGQuality = 85

// Prepare decodes the image at path, applies its EXIF orientation, fits it
// within maxDim x maxDim and re-encodes it as JPEG. Images already small
// enough keep their size. A non-positive maxDim disables resizing.
func Prepare(path string, maxDim int) (*api.Upload, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	b := img.Bounds()
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".jpg"
	return &api.Upload{Filename: name, ContentType: "image/jpeg", Data: buf.Bytes()}, nil
}
