package service

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	thumbnailMaxSide = 320
	thumbnailQuality = 80
)

var (
	ErrImageRequired = errors.New("image is required")
	ErrImageTooLarge = errors.New("image exceeds size limit")
	ErrImageInvalid  = errors.New("image could not be decoded")
)

type processedImage struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
	Thumbnail   []byte
}

// DecodeBase64Image accepts raw base64 or a data URI (data:image/jpeg;base64,...).
func DecodeBase64Image(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrImageRequired
	}
	if strings.HasPrefix(raw, "data:") {
		if idx := strings.Index(raw, ","); idx >= 0 {
			raw = raw[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64: %v", ErrImageInvalid, err)
	}
	return data, nil
}

// processImage validates the upload, reads its dimensions and renders a JPEG thumbnail.
func processImage(data []byte, maxBytes int64) (*processedImage, error) {
	if len(data) == 0 {
		return nil, ErrImageRequired
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageInvalid, err)
	}

	bounds := src.Bounds()
	out := &processedImage{
		Data:        data,
		ContentType: "image/" + format,
		Ext:         "." + format,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}
	if format == "jpeg" {
		out.Ext = ".jpg"
	}

	thumb, err := renderThumbnail(src)
	if err != nil {
		return nil, err
	}
	out.Thumbnail = thumb
	return out, nil
}

func renderThumbnail(src image.Image) ([]byte, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrImageInvalid)
	}

	tw, th := w, h
	if w > thumbnailMaxSide || h > thumbnailMaxSide {
		if w >= h {
			tw = thumbnailMaxSide
			th = max(1, h*thumbnailMaxSide/w)
		} else {
			th = thumbnailMaxSide
			tw = max(1, w*thumbnailMaxSide/h)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
