package streaming

import (
	"context"
	"errors"
	"net/http"
	"time"

	"media-embedder/internal/logging"
)

var (
	// ErrWriteTimeout indicates the client did not accept a chunk within
	// ChunkTimeout.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the request context ended before the body
	// was fully sent.
	ErrClientGone = errors.New("client disconnected")
)

// Config configures how response bodies are sent
type Config struct {
	// ChunkSize is the number of bytes written per deadline window.
	ChunkSize int
	// ChunkTimeout bounds how long a single chunk may take to write.
	ChunkTimeout time.Duration
}

// DefaultConfig returns the settings used for rewritten pages and thumbnails
func DefaultConfig() Config {
	return Config{
		ChunkSize:    64 * 1024,
		ChunkTimeout: 30 * time.Second,
	}
}

// Send writes body to w in chunks, extending the connection's write
// deadline before each one and flushing after it. It returns the number of
// bytes written. Writers that do not support deadlines are written to
// without one.
func Send(ctx context.Context, w http.ResponseWriter, body []byte, config Config) (int64, error) {
	if config.ChunkSize <= 0 {
		config.ChunkSize = len(body)
	}

	rc := http.NewResponseController(w)
	deadlines := config.ChunkTimeout > 0
	defer func() {
		if deadlines {
			_ = rc.SetWriteDeadline(time.Time{})
		}
	}()

	start := time.Now()
	var written int64
	for len(body) > 0 {
		if ctx.Err() != nil {
			return written, ErrClientGone
		}

		if deadlines {
			if err := rc.SetWriteDeadline(time.Now().Add(config.ChunkTimeout)); err != nil {
				if !errors.Is(err, http.ErrNotSupported) {
					return written, err
				}
				deadlines = false
			}
		}

		n := min(config.ChunkSize, len(body))
		m, err := w.Write(body[:n])
		written += int64(m)
		if err != nil {
			if isTimeout(err) {
				logging.Warn("client stalled after %d bytes in %v", written, time.Since(start))
				return written, ErrWriteTimeout
			}
			return written, err
		}
		body = body[n:]

		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return written, err
		}
	}

	logging.Debug("sent %d bytes in %v", written, time.Since(start))
	return written, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout())
}
