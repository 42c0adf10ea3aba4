package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"
	"strings"
	"time"

	_ "image/jpeg"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"media-embedder/internal/logging"
	"media-embedder/internal/metrics"
)

// Thumbnail output formats.
const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

const (
	// DefaultThumbnailSize is the longest edge of a generated thumbnail.
	DefaultThumbnailSize = 200
	// DefaultQuality is the lossy encoder quality.
	DefaultQuality = 80
)

// Thumbnail is an encoded poster image.
type Thumbnail struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// DataURI returns the thumbnail as a base64 data URI.
func (t *Thumbnail) DataURI() string {
	return "data:" + t.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(t.Data)
}

// ThumbnailOptions configures a ThumbnailGenerator.
type ThumbnailOptions struct {
	Size    int
	Format  string
	Quality int
}

// ThumbnailGenerator scales frames to posters. It is safe for concurrent use.
type ThumbnailGenerator struct {
	size    int
	format  string
	quality int
}

// NewThumbnailGenerator creates a generator. Unknown formats fall back to
// JPEG, as does WebP when libvips is not available.
func NewThumbnailGenerator(opts ThumbnailOptions) *ThumbnailGenerator {
	if opts.Size <= 0 {
		opts.Size = DefaultThumbnailSize
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}

	format := strings.ToLower(opts.Format)
	switch format {
	case FormatJPEG, "":
		format = FormatJPEG
	case FormatWebP:
		if !IsVipsAvailable() {
			logging.Warn("ThumbnailGenerator: webp requested but libvips is not initialized, using jpeg")
			format = FormatJPEG
		}
	default:
		logging.Warn("ThumbnailGenerator: unknown format %q, using jpeg", opts.Format)
		format = FormatJPEG
	}

	logging.Debug("ThumbnailGenerator: size %d, format %s, quality %d", opts.Size, format, opts.Quality)
	return &ThumbnailGenerator{
		size:    opts.Size,
		format:  format,
		quality: opts.Quality,
	}
}

// Size returns the target longest edge.
func (g *ThumbnailGenerator) Size() int {
	return g.size
}

// Format returns the output format in use.
func (g *ThumbnailGenerator) Format() string {
	return g.format
}

// Generate scales frame so its longest edge equals the target size and
// encodes it. Identical input yields identical output.
func (g *ThumbnailGenerator) Generate(frame image.Image) (*Thumbnail, error) {
	if frame == nil {
		return nil, &RasterError{Reason: "nil frame"}
	}
	b := frame.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &RasterError{Reason: fmt.Sprintf("frame has zero dimensions %dx%d", b.Dx(), b.Dy())}
	}

	start := time.Now()
	dstW, dstH := FitDimensions(b.Dx(), b.Dy(), g.size)
	steps := HalvingSteps(b.Dx(), b.Dy(), dstW, dstH)
	metrics.ThumbnailHalvingPasses.Observe(float64(len(steps)))

	var current image.Image = imaging.Clone(frame)
	for _, step := range steps {
		dst := image.NewNRGBA(image.Rect(0, 0, step.X, step.Y))
		draw.BiLinear.Scale(dst, dst.Bounds(), current, current.Bounds(), draw.Src, nil)
		current = dst
	}

	data, mimeType, err := g.encode(current)
	if err != nil {
		return nil, &RasterError{Reason: "encoding thumbnail", Err: err}
	}

	metrics.ThumbnailGenerationDuration.WithLabelValues(g.format).Observe(time.Since(start).Seconds())
	logging.Debug("Thumbnail %dx%d -> %dx%d in %d passes (%d bytes %s)",
		b.Dx(), b.Dy(), dstW, dstH, len(steps), len(data), g.format)

	return &Thumbnail{
		Data:     data,
		MIMEType: mimeType,
		Width:    dstW,
		Height:   dstH,
	}, nil
}

func (g *ThumbnailGenerator) encode(img image.Image) ([]byte, string, error) {
	if g.format == FormatWebP {
		data, err := exportWebP(img, g.quality)
		if err == nil {
			return data, "image/webp", nil
		}
		logging.Warn("WebP export failed, falling back to jpeg: %v", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(g.quality)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/jpeg", nil
}

// FitDimensions returns the size of a w×h rectangle scaled so that its
// longer edge equals target. The shorter edge is rounded and at least 1.
func FitDimensions(w, h, target int) (int, int) {
	if w <= 0 || h <= 0 || target <= 0 {
		return 0, 0
	}
	if w >= h {
		short := int(math.Round(float64(h) * float64(target) / float64(w)))
		return target, max(short, 1)
	}
	short := int(math.Round(float64(w) * float64(target) / float64(h)))
	return max(short, 1), target
}

// HalvingSteps returns the intermediate sizes used to scale w×h down to
// dstW×dstH. Each step halves both edges, clamped to the destination. A
// source that is not larger than the destination on both edges is scaled
// in a single step; a source equal to the destination needs none.
func HalvingSteps(w, h, dstW, dstH int) []image.Point {
	var steps []image.Point
	for w != dstW || h != dstH {
		if w <= dstW || h <= dstH {
			steps = append(steps, image.Pt(dstW, dstH))
			break
		}
		w = max(w/2, dstW)
		h = max(h/2, dstH)
		steps = append(steps, image.Pt(w, h))
	}
	return steps
}

// DecodeThumbnailConfig returns the dimensions and MIME type of an encoded
// thumbnail without decoding its pixels.
func DecodeThumbnailConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to read thumbnail header: %w", err)
	}
	return cfg, "image/" + format, nil
}
