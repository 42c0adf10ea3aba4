package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

// run executes embedctl with args against a throwaway database directory.
func run(t *testing.T, dbDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_DIR", dbDir)
	t.Setenv("CACHE_DIR", t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"embedctl"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		return exit.ExitCode()
	}
	return -1
}

func TestVolumeCommand(t *testing.T) {
	dbDir := t.TempDir()

	out, err := run(t, dbDir, "volume")
	if err != nil {
		t.Fatalf("volume error = %v", err)
	}
	if strings.TrimSpace(out) != "1" {
		t.Errorf("default volume = %q, want 1", out)
	}

	if _, err := run(t, dbDir, "volume", "0.3"); err != nil {
		t.Fatalf("volume 0.3 error = %v", err)
	}

	out, err = run(t, dbDir, "volume")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "0.3" {
		t.Errorf("stored volume = %q, want 0.3", out)
	}
}

func TestVolumeCommandRejectsBadValues(t *testing.T) {
	for _, arg := range []string{"2", "-1", "loud"} {
		_, err := run(t, t.TempDir(), "--no-cache", "volume", arg)
		if exitCode(err) != 2 {
			t.Errorf("volume %s: error = %v, want exit code 2", arg, err)
		}
	}
}

func TestEmbedCommandWritesFiles(t *testing.T) {
	src := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	in := filepath.Join(src, "thread.html")
	html := `<html><body><p>see <a href="https://example.com/clip.webm">this</a></p></body></html>`
	if err := os.WriteFile(in, []byte(html), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, t.TempDir(), "--no-cache", "embed", "--out", outDir, in)
	if err != nil {
		t.Fatalf("embed error = %v", err)
	}
	if !strings.Contains(out, "1 files, 0 players embedded") {
		t.Errorf("summary = %q", out)
	}

	got, err := os.ReadFile(filepath.Join(outDir, "thread.html"))
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !strings.Contains(string(got), `href="https://example.com/clip.webm"`) {
		t.Errorf("link on a host outside the allow-list should be kept: %s", got)
	}
}

func TestEmbedCommandErrors(t *testing.T) {
	_, err := run(t, t.TempDir(), "--no-cache", "embed")
	if exitCode(err) != 2 {
		t.Errorf("embed without files: error = %v", err)
	}

	_, err = run(t, t.TempDir(), "--no-cache", "embed", "--out", t.TempDir(), filepath.Join(t.TempDir(), "missing.html"))
	if err == nil {
		t.Error("missing input file should fail")
	}
}

func TestProbeRejectsDisallowedURL(t *testing.T) {
	_, err := run(t, t.TempDir(), "--no-cache", "probe", "https://example.com/clip.webm")
	if exitCode(err) != 2 {
		t.Errorf("probe error = %v, want exit code 2", err)
	}

	_, err = run(t, t.TempDir(), "--no-cache", "probe")
	if exitCode(err) != 2 {
		t.Errorf("probe without URL: error = %v", err)
	}
}
