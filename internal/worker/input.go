package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// renderFrameEdge matches the renderer's output frame. Remote inputs are
// normalized to this square so odd-sized avatars encode cleanly.
const renderFrameEdge = 512

// resolveInput turns the job's input reference into a local image path:
// remote URLs are downloaded and normalized, local paths are used as-is, and
// an empty reference falls back to the configured placeholder. The returned
// cleanup removes any temporary file.
func (w *Worker) resolveInput(ctx context.Context, ref string) (string, func(), error) {
	noop := func() {}
	switch {
	case ref == "":
		if w.cfg.PlaceholderInput == "" {
			return "", noop, fmt.Errorf("no input reference and no placeholder configured")
		}
		return w.cfg.PlaceholderInput, noop, nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		path, err := w.fetchInput(ctx, ref)
		if err != nil {
			return "", noop, err
		}
		return path, func() { _ = os.Remove(path) }, nil
	default:
		if _, err := os.Stat(ref); err != nil {
			return "", noop, fmt.Errorf("local input: %w", err)
		}
		return ref, noop, nil
	}
}

func (w *Worker) fetchInput(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download input: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("download input: status %d", resp.StatusCode)
	}

	limit := w.cfg.MaxInputBytes
	if limit == 0 {
		limit = 25 * 1024 * 1024
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if int64(len(body)) > limit {
		return "", fmt.Errorf("input too large (>%d bytes)", limit)
	}

	img, err := imaging.Decode(bytes.NewReader(body), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode input: %w", err)
	}
	img = imaging.Fill(img, renderFrameEdge, renderFrameEdge, imaging.Center, imaging.Lanczos)

	f, err := os.CreateTemp(w.cfg.RenderDir, "input-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp input: %w", err)
	}
	path := f.Name()
	_ = f.Close()
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save normalized input: %w", err)
	}
	return filepath.Clean(path), nil
}
