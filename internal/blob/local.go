package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps assets under a base directory and serves them from a
// static file route. Used for development and tests.
type LocalStore struct {
	baseDir string
	baseURL string
}

func NewLocal(baseDir, baseURL string) *LocalStore {
	return &LocalStore{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (l *LocalStore) Upload(_ context.Context, key, localPath, _ string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open asset: %w", err)
	}
	defer src.Close()

	path := filepath.Join(l.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy asset: %w", err)
	}
	return l.baseURL + "/" + key, nil
}

func (l *LocalStore) Delete(_ context.Context, publicURL string) error {
	u, err := url.Parse(publicURL)
	if err != nil {
		return fmt.Errorf("parse asset url: %w", err)
	}
	base, err := url.Parse(l.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	key := strings.TrimPrefix(u.Path, base.Path)
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return fmt.Errorf("no object key in url %q", publicURL)
	}
	if err := os.Remove(filepath.Join(l.baseDir, filepath.FromSlash(key))); err != nil {
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}
