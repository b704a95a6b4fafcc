// Package storage keeps uploaded post and profile images on local disk or in
// an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"
	"path"
	"strings"

	"agora/internal/config"

	_ "golang.org/x/image/webp" // register WebP decoder
)

var (
	ErrEmptyUpload  = errors.New("no file uploaded")
	ErrTooLarge     = errors.New("file too large")
	ErrInvalidImage = errors.New("upload a valid image. The file you uploaded was either not an image or a corrupted image")
)

// Store saves and removes objects addressed by key.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	// URL is the public location of key.
	URL(key string) string
}

// PostImageKey is where a post's image lives: post/{id}/{filename}.
func PostImageKey(postID uint, filename string) string {
	return fmt.Sprintf("post/%d/%s", postID, cleanFilename(filename))
}

// UserImageKey is where a profile image lives: user/{id}/{filename}.
func UserImageKey(userID uint, filename string) string {
	return fmt.Sprintf("user/%d/%s", userID, cleanFilename(filename))
}

func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

var allowedFormats = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ValidateImage checks size and decodes the header of data. It returns the
// content type derived from the actual bytes.
func ValidateImage(data []byte, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w (max %dMB)", ErrTooLarge, maxBytes/(1024*1024))
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return "", ErrInvalidImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrInvalidImage
	}
	contentType, ok := allowedFormats[format]
	if !ok {
		return "", ErrInvalidImage
	}
	return contentType, nil
}

// New builds the Store selected by MEDIA_BACKEND.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.MediaBackend {
	case "s3":
		return NewS3Store(ctx, S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKeyID,
			SecretKey:    cfg.S3SecretAccessKey,
			UsePathStyle: cfg.S3UsePathStyle,
			PublicURL:    cfg.MediaBaseURL,
		})
	default:
		return NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)
	}
}
