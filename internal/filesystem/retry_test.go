package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-embedder/internal/metrics"
)

func fastConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestIsStale(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"estale", syscall.ESTALE, true},
		{"wrapped estale", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"enoent", syscall.ENOENT, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStale(tt.err); got != tt.want {
				t.Errorf("isStale(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryRecoversFromStaleHandle(t *testing.T) {
	calls := 0
	err := retry("test-recover", "/doc.html", fastConfig(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("read: %w", syscall.ESTALE)
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("retry() = %v after %d calls, want success on the third", err, calls)
	}
	if got := testutil.ToFloat64(metrics.FilesystemStaleErrors.WithLabelValues("test-recover")); got != 2 {
		t.Errorf("stale errors = %v, want 2", got)
	}
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := retry("test-give-up", "/doc.html", fastConfig(), func() error {
		calls++
		return syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) || calls != 3 {
		t.Errorf("retry() = %v after %d calls, want ESTALE after 3", err, calls)
	}
	if got := testutil.ToFloat64(metrics.FilesystemRetryFailures.WithLabelValues("test-give-up")); got != 1 {
		t.Errorf("retry failures = %v, want 1", got)
	}
}

func TestRetryDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	_ = retry("test-other", "/doc.html", fastConfig(), func() error {
		calls++
		return os.ErrPermission
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestOpenAndStatWithRetry(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	if err := os.WriteFile(path, []byte("<p>hi</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	_ = f.Close()

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil || info.Size() != 9 {
		t.Errorf("StatWithRetry() = %v, %v", info, err)
	}

	if _, err := OpenWithRetry(filepath.Join(dir, "missing.html"), DefaultRetryConfig()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.html")

	for _, body := range []string{"first", "second"} {
		if err := WriteFileAtomic(path, []byte(body), 0o640, DefaultRetryConfig()); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil || string(got) != body {
			t.Errorf("content = %q, %v; want %q", got, err, body)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Errorf("mode = %v, want 0640", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, temporary file left behind", len(entries))
	}

	if err := WriteFileAtomic(filepath.Join(dir, "nope", "out.html"), []byte("x"), 0o644, DefaultRetryConfig()); err == nil {
		t.Error("expected error for missing directory")
	}
}
