package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"media-embedder/internal/logging"
	"media-embedder/internal/metrics"
)

// RetryConfig configures retry behavior for document I/O
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns defaults suited to NFS mounts
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isStale reports whether err is a stale file handle error (ESTALE).
func isStale(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// retry runs op until it succeeds, fails with a non-stale error, or
// MaxRetries is exhausted. Backoff doubles up to MaxBackoff.
func retry(operation, path string, config RetryConfig, op func() error) error {
	start := time.Now()
	defer func() {
		metrics.FilesystemRetryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	backoff := config.InitialBackoff
	var err error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err = op(); err == nil {
			if attempt > 0 {
				logging.Info("%s of %s succeeded on retry %d", operation, path, attempt)
			}
			return nil
		}
		if !isStale(err) {
			return err
		}

		metrics.FilesystemStaleErrors.WithLabelValues(operation).Inc()
		if attempt < config.MaxRetries {
			logging.Debug("stale file handle on %s of %s, retrying in %v (attempt %d/%d)",
				operation, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)
			backoff = min(backoff*2, config.MaxBackoff)
		}
	}

	logging.Warn("%s of %s failed after %d retries: %v", operation, path, config.MaxRetries, err)
	metrics.FilesystemRetryFailures.WithLabelValues(operation).Inc()
	return err
}

// OpenWithRetry performs os.Open, retrying stale file handle errors.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var f *os.File
	err := retry("open", path, config, func() error {
		var err error
		f, err = os.Open(path)
		return err
	})
	return f, err
}

// StatWithRetry performs os.Stat, retrying stale file handle errors.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := retry("stat", path, config, func() error {
		var err error
		info, err = os.Stat(path)
		return err
	})
	return info, err
}

// WriteFileAtomic writes data to a temporary file beside path and renames
// it into place, so readers never observe a partially written document.
// The write is retried on stale file handle errors.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, config RetryConfig) error {
	return retry("write", path, config, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
		if err != nil {
			return err
		}
		name := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			_ = os.Remove(name)
			return err
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(name)
			return err
		}
		if err := os.Chmod(name, perm); err != nil {
			_ = os.Remove(name)
			return err
		}
		if err := os.Rename(name, path); err != nil {
			_ = os.Remove(name)
			return err
		}
		return nil
	})
}
