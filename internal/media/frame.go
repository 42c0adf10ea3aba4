package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "image/png"

	"media-embedder/internal/logging"
	"media-embedder/internal/metrics"
)

// FrameExtractor decodes a representative frame from a media prefix.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, chunk []byte) (image.Image, error)
}

// FFmpegExtractor extracts the first video frame by piping a temporary copy
// of the chunk through ffmpeg.
type FFmpegExtractor struct {
	ffmpegPath string
	tempDir    string
}

// NewFFmpegExtractor creates an extractor. ffmpegPath defaults to "ffmpeg"
// on PATH; tempDir defaults to os.TempDir().
func NewFFmpegExtractor(ffmpegPath, tempDir string) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if tempDir != "" {
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			logging.Warn("FFmpegExtractor: failed to create temp dir %s: %v", tempDir, err)
			tempDir = ""
		}
	}
	return &FFmpegExtractor{
		ffmpegPath: ffmpegPath,
		tempDir:    tempDir,
	}
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpegExtractor) Available() bool {
	_, err := exec.LookPath(f.ffmpegPath)
	return err == nil
}

// ExtractFrame decodes the first frame of chunk.
func (f *FFmpegExtractor) ExtractFrame(ctx context.Context, chunk []byte) (img image.Image, err error) {
	start := time.Now()
	defer func() {
		metrics.DecodeDuration.Observe(time.Since(start).Seconds())
		metrics.DecodeTotal.WithLabelValues(decodeStatus(err)).Inc()
	}()

	if len(chunk) == 0 {
		return nil, &DecodeError{Reason: "empty input"}
	}

	path, release, err := f.stage(chunk)
	if err != nil {
		return nil, &DecodeError{Reason: "staging input", Err: err}
	}
	defer release()

	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-v", "error",
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &DecodeError{Reason: "canceled", Err: ctxErr}
		}
		return nil, &DecodeError{Reason: ffmpegReason(stderr.String()), Err: err}
	}
	if stdout.Len() == 0 {
		return nil, &DecodeError{Reason: "ffmpeg produced no frame"}
	}

	logging.Debug("FFmpeg frame output size: %d bytes from %d input bytes", stdout.Len(), len(chunk))

	img, _, err = image.Decode(&stdout)
	if err != nil {
		return nil, &RasterError{Reason: "reading frame", Err: err}
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &RasterError{Reason: fmt.Sprintf("frame has zero dimensions %dx%d", b.Dx(), b.Dy())}
	}
	return img, nil
}

// stage writes chunk to a temp file. The returned release func removes it
// and must be called exactly once.
func (f *FFmpegExtractor) stage(chunk []byte) (string, func(), error) {
	tmp, err := os.CreateTemp(f.tempDir, "embed-*.part")
	if err != nil {
		return "", nil, err
	}
	metrics.DecodeResourcesOpen.Inc()

	release := func() {
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("failed to remove decode temp file %s: %v", tmp.Name(), err)
		}
		metrics.DecodeResourcesOpen.Dec()
	}

	if _, err := tmp.Write(chunk); err != nil {
		_ = tmp.Close()
		release()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		release()
		return "", nil, err
	}
	return tmp.Name(), release, nil
}

// ffmpegReason returns the last non-empty stderr line.
func ffmpegReason(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "ffmpeg failed"
}

func decodeStatus(err error) string {
	var rasterErr *RasterError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &rasterErr):
		return "raster_error"
	default:
		return "decode_error"
	}
}
