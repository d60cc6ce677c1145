package renderer

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

const (
	frameSize = "512x512"
	fps       = 25
	// zoom increment per frame; ends around 1.2x on a 4 second clip.
	zoomStep = 0.002
)

// FFmpeg renders a slow-zoom animation from a single still image. When the
// ffmpeg binary is missing it falls back to copying a configured placeholder
// video, so local development works without the toolchain installed.
type FFmpeg struct {
	bin      string
	fallback string
}

func NewFFmpeg(bin, fallbackVideo string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin, fallback: fallbackVideo}
}

func (f *FFmpeg) Render(ctx context.Context, inputPath, outDir string, duration time.Duration) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input file not found: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outFile := filepath.Join(outDir, fmt.Sprintf("clip-%d.mp4", time.Now().UnixNano()))

	if _, err := exec.LookPath(f.bin); err != nil {
		if f.fallback != "" {
			if err := copyFile(f.fallback, outFile); err != nil {
				return "", fmt.Errorf("copy fallback video: %w", err)
			}
			return outFile, nil
		}
		return "", fmt.Errorf("%s not available and no fallback video configured", f.bin)
	}

	seconds := int(duration.Round(time.Second) / time.Second)
	if seconds <= 0 {
		seconds = 4
	}
	frames := seconds * fps

	args := []string{
		"-y",
		"-loop", "1",
		"-i", inputPath,
		"-filter_complex", fmt.Sprintf("zoompan=z='zoom+%g':d=%d:s=%s,format=yuv420p", zoomStep, frames, frameSize),
		"-c:v", "libx264",
		"-t", strconv.Itoa(seconds),
		"-r", strconv.Itoa(fps),
		"-pix_fmt", "yuv420p",
		outFile,
	}

	cmd := exec.CommandContext(ctx, f.bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		// Remove the partial file so failed renders leave nothing behind.
		_ = os.Remove(outFile)
		return "", fmt.Errorf("%s: %w: %s", f.bin, err, tail(out, 512))
	}
	return outFile, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
