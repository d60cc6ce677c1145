// Package renderer turns a source image into a short video clip.
package renderer

import (
	"context"
	"time"
)

// Renderer produces a local video file from a local input image. A
// descriptive error is returned when the rendering toolchain is unavailable
// and no fallback is configured.
type Renderer interface {
	Render(ctx context.Context, inputPath, outDir string, duration time.Duration) (string, error)
}
