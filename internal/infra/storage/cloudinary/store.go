package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"autoparc/internal/app/policies"
)

// Store uploads listing images to Cloudinary. Object keys become public ids
// under Folder, without their extension.
type Store struct {
	client *cld.Cloudinary
	folder string
	logger *slog.Logger
}

func New(cloudinaryURL, folder string, logger *slog.Logger) (*Store, error) {
	client, err := cld.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	client.Config.URL.Secure = true
	return &Store{client: client, folder: strings.Trim(folder, "/"), logger: logger}, nil
}

func (s *Store) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errors.New("cloudinary: reader is required")
	}
	overwrite := false
	resp, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		PublicID:     s.publicID(key),
		ResourceType: "image",
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary: upload: %w", err)
	}
	if msg := resp.Error.Message; msg != "" {
		if isRejection(msg) {
			return "", fmt.Errorf("cloudinary: %s: %w", msg, policies.ErrStorageRejected)
		}
		return "", fmt.Errorf("cloudinary: upload: %s", msg)
	}
	if s.logger != nil {
		s.logger.Info("cloudinary upload completed", "public_id", resp.PublicID, "bytes", resp.Bytes)
	}
	return resp.SecureURL, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	resp, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: s.publicID(key), ResourceType: "image"})
	if err != nil {
		return fmt.Errorf("cloudinary: destroy: %w", err)
	}
	if msg := resp.Error.Message; msg != "" {
		return fmt.Errorf("cloudinary: destroy: %s", msg)
	}
	return nil
}

func (s *Store) publicID(key string) string {
	key = strings.Trim(strings.TrimSpace(key), "/")
	key = strings.TrimSuffix(key, path.Ext(key))
	if s.folder == "" {
		return key
	}
	return s.folder + "/" + key
}

func isRejection(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "not allowed") ||
		strings.Contains(msg, "file size too large") ||
		strings.Contains(msg, "invalid image file")
}

var _ policies.ObjectStore = (*Store)(nil)
