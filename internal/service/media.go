package service

import (
	"context"
	"errors"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/storage"
)

// Upload is an image received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// Media validates uploads and writes them to the blob store.
type Media struct {
	store    storage.Store
	maxBytes int64
}

func NewMedia(store storage.Store, maxBytes int64) *Media {
	return &Media{store: store, maxBytes: maxBytes}
}

// Check validates up without storing it.
func (m *Media) Check(up *Upload) (string, error) {
	contentType, err := storage.ValidateImage(up.Data, m.maxBytes)
	switch {
	case err == nil:
		return contentType, nil
	case errors.Is(err, storage.ErrEmptyUpload):
		return "", models.NewValidationError("The submitted file is empty.")
	case errors.Is(err, storage.ErrTooLarge):
		return "", models.NewValidationError("The submitted image is too large.")
	default:
		return "", models.NewValidationError("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
}

// Save validates up and stores it under key. owner labels the upload metric.
func (m *Media) Save(ctx context.Context, owner, key string, up *Upload) error {
	contentType, err := m.Check(up)
	if err != nil {
		return err
	}
	if err := m.store.Put(ctx, key, contentType, up.Data); err != nil {
		return models.NewInternalError(err)
	}
	observability.ImageUploadBytes.WithLabelValues(owner).Observe(float64(len(up.Data)))
	return nil
}

// Discard removes a stored key that no row ended up referencing.
func (m *Media) Discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := m.store.Delete(ctx, key); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to remove orphaned upload", "key", key, "error", err)
	}
}

// URL resolves a stored key for clients. Empty keys stay empty.
func (m *Media) URL(key string) string {
	if key == "" {
		return ""
	}
	return m.store.URL(key)
}
