package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"media-embedder/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is left for ffmpeg children and libvips buffers.
const DefaultMemoryRatio = 0.75

// Limit sources reported in ConfigResult.Source.
const (
	SourceGOMEMLIMIT   = "GOMEMLIMIT"
	SourceMemoryLimit  = "MEMORY_LIMIT"
	SourceUnconfigured = "none"
)

// ConfigResult describes the memory limit chosen at startup.
type ConfigResult struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// resolve computes the limit from the environment without applying it.
func resolve(getenv func(string) string) (ConfigResult, error) {
	if v := getenv("GOMEMLIMIT"); v != "" {
		return ConfigResult{Source: SourceGOMEMLIMIT}, nil
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		return ConfigResult{Source: SourceUnconfigured}, nil
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		return ConfigResult{Source: SourceUnconfigured}, fmt.Errorf("invalid MEMORY_LIMIT %q", raw)
	}

	res := ConfigResult{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: limit,
		Ratio:          DefaultMemoryRatio,
	}
	var ratioErr error
	if r := getenv("MEMORY_RATIO"); r != "" {
		parsed, err := strconv.ParseFloat(r, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			ratioErr = fmt.Errorf("invalid MEMORY_RATIO %q, using %.2f", r, DefaultMemoryRatio)
		} else {
			res.Ratio = parsed
		}
	}
	res.GoMemLimit = int64(float64(limit) * res.Ratio)
	return res, ratioErr
}

// ConfigureFromEnv sets the Go soft memory limit from MEMORY_LIMIT (bytes,
// usually from the Kubernetes Downward API) scaled by MEMORY_RATIO. An
// explicit GOMEMLIMIT is left alone. Call it before significant allocation.
func ConfigureFromEnv() ConfigResult {
	res, err := resolve(os.Getenv)
	if err != nil {
		logging.Warn("Memory configuration: %v", err)
	}

	switch res.Source {
	case SourceGOMEMLIMIT:
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			res.Configured = true
			res.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", os.Getenv("GOMEMLIMIT"))
	case SourceMemoryLimit:
		debug.SetMemoryLimit(res.GoMemLimit)
		logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
			formatBytes(res.GoMemLimit), res.Ratio*100, formatBytes(res.ContainerLimit))
	default:
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT not configured")
	}
	return res
}

// formatBytes renders b with a binary unit suffix.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
