// Package preprocess turns uploaded image bytes into the model's input tensor.
package preprocess

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"wastesort/internal/errs"
)

// MaxPixels bounds the decoded image size.
const MaxPixels = 64 << 20

var dataURL = regexp.MustCompile(`^data:.*?;base64,`)

var b64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeBase64 decodes an image payload, accepting an optional data-URL prefix.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(dataURL.ReplaceAllString(strings.TrimSpace(s), ""))
	if s == "" {
		return nil, errs.New(errs.ImageDecodeError, "imageBase64 is required")
	}
	var lastErr error
	for _, enc := range b64Encodings {
		b, err := enc.DecodeString(s)
		if err != nil {
			lastErr = err
			continue
		}
		if len(b) == 0 {
			break
		}
		return b, nil
	}
	if lastErr == nil {
		return nil, errs.New(errs.ImageDecodeError, "decoded image buffer is empty")
	}
	return nil, errs.Wrap(errs.ImageDecodeError, "decode base64 image", lastErr)
}

// Decode decodes any registered image format. mimeHint is used only to
// make errors more helpful.
func Decode(b []byte, mimeHint string) (image.Image, string, error) {
	if len(b) == 0 {
		return nil, "", errs.New(errs.ImageDecodeError, "image is empty")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, "", errs.Wrap(errs.ImageDecodeError, describe(mimeHint), err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, errs.New(errs.ImageDecodeError, fmt.Sprintf("image has invalid size %dx%d", cfg.Width, cfg.Height))
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, format, errs.New(errs.ImageDecodeError, fmt.Sprintf("image is too large: %dx%d", cfg.Width, cfg.Height))
	}
	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, format, errs.Wrap(errs.ImageDecodeError, describe(mimeHint), err)
	}
	return img, format, nil
}

func describe(mime string) string {
	if mime == "" {
		return "decode image"
	}
	return "decode image (" + mime + ")"
}
