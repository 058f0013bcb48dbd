package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	// decoders registered for enforcement
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/consogab/server/internal/apperr"
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type Limits struct {
	MaxBytes  int64
	MaxPixels int // max width or height
}

type Image struct {
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Service enforces the image-upload policy before anything reaches
// storage: allowlisted content type, size cap, decodable payload, pixel
// bounds. A thumbnail is uploaded next to the original.
type Service struct {
	store  Uploader
	limits Limits
}

func NewService(store Uploader, limits Limits) *Service {
	return &Service{store: store, limits: limits}
}

func (s *Service) UploadImage(ctx context.Context, userID, filename, contentType string, data []byte) (*Image, error) {
	if userID == "" {
		return nil, fmt.Errorf("upload image: %w", apperr.ErrUnauthorized)
	}
	if !allowedTypes[contentType] {
		return nil, fmt.Errorf("upload image: type %q not allowed: %w", contentType, apperr.ErrBadRequest)
	}
	if int64(len(data)) > s.limits.MaxBytes {
		return nil, fmt.Errorf("upload image: %d bytes over limit: %w", len(data), apperr.ErrBadRequest)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("upload image: not a decodable image: %w", apperr.ErrBadRequest)
	}
	bounds := img.Bounds()
	if bounds.Dx() > s.limits.MaxPixels || bounds.Dy() > s.limits.MaxPixels {
		return nil, fmt.Errorf("upload image: %dx%d over pixel bounds: %w", bounds.Dx(), bounds.Dy(), apperr.ErrBadRequest)
	}

	key := userID + "/" + uuid.NewString() + "_" + filename
	u, err := s.store.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}

	out := &Image{
		URL:         u,
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
	if thumb, err := thumbnail(img); err == nil {
		thumbKey := key + "_thumb.jpg"
		if tu, err := s.store.Upload(ctx, thumbKey, "image/jpeg", thumb); err == nil {
			out.ThumbnailURL = tu
		}
	}
	return out, nil
}

func thumbnail(img image.Image) ([]byte, error) {
	t := imaging.Resize(img, 320, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, t, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
