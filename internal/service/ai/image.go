package ai

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"

	"github.com/atomchat/atom/backend/internal/model/chat"
)

var (
	// ErrUnsupportedImage is returned for uploads that are not JPEG or PNG.
	ErrUnsupportedImage = errors.New("unsupported image type: only jpeg and png are accepted")
	// ErrImageTooLarge is returned when the declared dimensions exceed the pixel budget.
	ErrImageTooLarge = errors.New("image dimensions too large")
)

const (
	jpegQuality = 85

	// DefaultMaxImagePixels bounds the decoded size of an upload (40 MP).
	DefaultMaxImagePixels = 40_000_000
)

// ImageLimits bounds uploads. MaxSide <= 0 disables downscaling; MaxPixels <= 0
// means DefaultMaxImagePixels.
type ImageLimits struct {
	MaxSide   int
	MaxPixels int
}

// PrepareImage validates an upload and downscales it so its longest side does
// not exceed limits.MaxSide. Images already within bounds are returned untouched.
// The pixel budget is checked from the header, before anything is decoded.
func PrepareImage(data []byte, limits ImageLimits) (chat.Image, error) {
	if len(data) == 0 {
		return chat.Image{}, ErrUnsupportedImage
	}

	mimeType := http.DetectContentType(data)
	if mimeType != "image/jpeg" && mimeType != "image/png" {
		return chat.Image{}, fmt.Errorf("%w (got %s)", ErrUnsupportedImage, mimeType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return chat.Image{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	maxPixels := int64(limits.MaxPixels)
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return chat.Image{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	maxSide := limits.MaxSide
	if maxSide <= 0 || (cfg.Width <= maxSide && cfg.Height <= maxSide) {
		return chat.Image{Data: data, MIMEType: mimeType}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return chat.Image{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	resized := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return chat.Image{}, fmt.Errorf("failed to re-encode image: %w", err)
	}

	return chat.Image{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

// dataURI renders an image as an inline data URI for model requests.
func dataURI(img chat.Image) string {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(img.Data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
