package embedder

import (
	"errors"
	"fmt"

	"media-embedder/internal/fetcher"
	"media-embedder/internal/media"
)

// ApplyError reports that the link could not be replaced.
type ApplyError struct {
	URL string
	Err error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s: %v", e.URL, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// FailureReason classifies an Embed error for logs and metrics.
func FailureReason(err error) string {
	var (
		transportErr *fetcher.TransportError
		networkErr   *fetcher.NetworkError
		decodeErr    *media.DecodeError
		rasterErr    *media.RasterError
		applyErr     *ApplyError
	)
	switch {
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &networkErr):
		return "network"
	case errors.As(err, &rasterErr):
		return "raster"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &applyErr):
		return "apply"
	default:
		return "other"
	}
}
