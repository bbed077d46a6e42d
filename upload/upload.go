package upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"

	"waterlog/models"
)

// Store keeps uploaded photos. Delete is used to discard the photo of a
// submission that was rejected.
type Store interface {
	Save(ctx context.Context, filename string, data []byte, contentType string) (*models.StoredFile, error)
	Delete(ctx context.Context, key string) error
}

// imageExtensions are the only extensions stored; uploads are served from
// the API origin, so nothing that a browser would render as a page is kept.
var imageExtensions = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
}

// objectName builds a unique timestamp-based name with the image extension
// of filename.
func objectName(now time.Time, filename string) (string, error) {
	ext, ok := imageExtensions[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", fmt.Errorf("refusing to store %q: not an image file name", filename)
	}
	return fmt.Sprintf("%d%s", now.UnixNano(), ext), nil
}

// LocalStore writes files under a directory served statically at URLPrefix.
type LocalStore struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/"), now: time.Now}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Save(_ context.Context, filename string, data []byte, _ string) (*models.StoredFile, error) {
	name, err := objectName(s.now(), filename)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	return &models.StoredFile{Key: name, URL: path.Join(s.urlPrefix, name)}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	// Keys are bare file names; anything else would escape the upload dir.
	if key == "" || filepath.Base(key) != key {
		return fmt.Errorf("invalid upload key %q", key)
	}
	if err := os.Remove(filepath.Join(s.dir, key)); err != nil {
		return fmt.Errorf("failed to delete upload %s: %w", key, err)
	}
	log.Infof("Deleted upload %s", key)
	return nil
}
