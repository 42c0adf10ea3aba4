package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"media-embedder/internal/fetcher"
	"media-embedder/internal/logging"
	"media-embedder/internal/media"
	"media-embedder/internal/mediatypes"
)

// Config holds all application configuration
type Config struct {
	ConfigFile      string
	CacheDir        string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	LogStaticFiles  bool
	LogHealthChecks bool
	MetricsEnabled  bool

	SmallBudget            int64
	LargeBudget            int64
	FetchTimeout           time.Duration
	UserAgent              string
	EscalateOnNetworkError bool
	AllowedHosts           []string

	FFmpegPath            string
	ThumbnailSize         int
	ThumbnailFormat       string
	ThumbnailQuality      int
	ThumbnailCacheVersion int
	CacheQuotaBytes       int64

	// Derived paths
	DatabasePath string
	DecodeDir    string
}

// Budget returns the configured fetch budget pair.
func (c *Config) Budget() fetcher.Budget {
	return fetcher.Budget{Small: c.SmallBudget, Large: c.LargeBudget}
}

// fileConfig is the optional YAML overlay. Unset fields keep their defaults;
// environment variables still take precedence.
type fileConfig struct {
	CacheDir    string `yaml:"cache_dir"`
	DatabaseDir string `yaml:"database_dir"`
	Port        string `yaml:"port"`
	MetricsPort string `yaml:"metrics_port"`

	Fetch struct {
		SmallBudget            int64  `yaml:"small_budget"`
		LargeBudget            int64  `yaml:"large_budget"`
		Timeout                string `yaml:"timeout"`
		UserAgent              string `yaml:"user_agent"`
		EscalateOnNetworkError *bool  `yaml:"escalate_on_network_error"`
	} `yaml:"fetch"`

	AllowedHosts []string `yaml:"allowed_hosts"`

	Thumbnail struct {
		Size         int    `yaml:"size"`
		Format       string `yaml:"format"`
		Quality      int    `yaml:"quality"`
		CacheVersion int    `yaml:"cache_version"`
	} `yaml:"thumbnail"`

	FFmpegPath      string `yaml:"ffmpeg_path"`
	CacheQuotaBytes int64  `yaml:"cache_quota_bytes"`
}

// defaultConfig returns the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		CacheDir:               "/cache",
		DatabaseDir:            "/database",
		Port:                   "8080",
		MetricsPort:            "9090",
		LogHealthChecks:        true,
		MetricsEnabled:         true,
		SmallBudget:            fetcher.DefaultSmallBudget,
		LargeBudget:            fetcher.DefaultLargeBudget,
		FetchTimeout:           30 * time.Second,
		UserAgent:              fetcher.DefaultUserAgent,
		EscalateOnNetworkError: true,
		AllowedHosts:           append([]string(nil), mediatypes.DefaultHosts...),
		FFmpegPath:             "ffmpeg",
		ThumbnailSize:          media.DefaultThumbnailSize,
		ThumbnailFormat:        media.FormatJPEG,
		ThumbnailQuality:       media.DefaultQuality,
		ThumbnailCacheVersion:  1,
	}
}

// applyFile overlays the YAML file at path onto c.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.CacheDir, fc.CacheDir)
	setString(&c.DatabaseDir, fc.DatabaseDir)
	setString(&c.Port, fc.Port)
	setString(&c.MetricsPort, fc.MetricsPort)
	setString(&c.UserAgent, fc.Fetch.UserAgent)
	setString(&c.FFmpegPath, fc.FFmpegPath)
	setString(&c.ThumbnailFormat, fc.Thumbnail.Format)

	if fc.Fetch.SmallBudget > 0 {
		c.SmallBudget = fc.Fetch.SmallBudget
	}
	if fc.Fetch.LargeBudget > 0 {
		c.LargeBudget = fc.Fetch.LargeBudget
	}
	if fc.Fetch.Timeout != "" {
		d, err := time.ParseDuration(fc.Fetch.Timeout)
		if err != nil {
			return fmt.Errorf("invalid fetch.timeout %q: %w", fc.Fetch.Timeout, err)
		}
		c.FetchTimeout = d
	}
	if fc.Fetch.EscalateOnNetworkError != nil {
		c.EscalateOnNetworkError = *fc.Fetch.EscalateOnNetworkError
	}
	if len(fc.AllowedHosts) > 0 {
		c.AllowedHosts = fc.AllowedHosts
	}
	if fc.Thumbnail.Size > 0 {
		c.ThumbnailSize = fc.Thumbnail.Size
	}
	if fc.Thumbnail.Quality > 0 {
		c.ThumbnailQuality = fc.Thumbnail.Quality
	}
	if fc.Thumbnail.CacheVersion > 0 {
		c.ThumbnailCacheVersion = fc.Thumbnail.CacheVersion
	}
	if fc.CacheQuotaBytes > 0 {
		c.CacheQuotaBytes = fc.CacheQuotaBytes
	}
	return nil
}

// applyEnv overlays environment variables onto c.
func (c *Config) applyEnv() {
	c.CacheDir = getEnv("CACHE_DIR", c.CacheDir)
	c.DatabaseDir = getEnv("DATABASE_DIR", c.DatabaseDir)
	c.Port = getEnv("PORT", c.Port)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.LogStaticFiles = getEnvBool("LOG_STATIC_FILES", c.LogStaticFiles)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)

	c.SmallBudget = getEnvInt64("SMALL_BUDGET", c.SmallBudget)
	c.LargeBudget = getEnvInt64("LARGE_BUDGET", c.LargeBudget)
	c.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", c.FetchTimeout)
	c.UserAgent = getEnv("USER_AGENT", c.UserAgent)
	c.EscalateOnNetworkError = getEnvBool("ESCALATE_ON_NETWORK_ERROR", c.EscalateOnNetworkError)
	if hosts := os.Getenv("ALLOWED_HOSTS"); hosts != "" {
		c.AllowedHosts = splitList(hosts)
	}

	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.ThumbnailSize = int(getEnvInt64("THUMBNAIL_SIZE", int64(c.ThumbnailSize)))
	c.ThumbnailFormat = strings.ToLower(getEnv("THUMBNAIL_FORMAT", c.ThumbnailFormat))
	c.ThumbnailQuality = int(getEnvInt64("THUMBNAIL_QUALITY", int64(c.ThumbnailQuality)))
	c.ThumbnailCacheVersion = int(getEnvInt64("THUMBNAIL_CACHE_VERSION", int64(c.ThumbnailCacheVersion)))
	c.CacheQuotaBytes = getEnvInt64("CACHE_QUOTA_BYTES", c.CacheQuotaBytes)
}

// validate checks cross-field constraints and fills derived paths.
func (c *Config) validate() error {
	var errs []error

	if err := c.Budget().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ThumbnailSize <= 0 {
		errs = append(errs, fmt.Errorf("THUMBNAIL_SIZE must be positive, got %d", c.ThumbnailSize))
	}
	if c.ThumbnailFormat != media.FormatJPEG && c.ThumbnailFormat != media.FormatWebP {
		errs = append(errs, fmt.Errorf("THUMBNAIL_FORMAT must be jpeg or webp, got %q", c.ThumbnailFormat))
	}
	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		errs = append(errs, fmt.Errorf("THUMBNAIL_QUALITY must be 1-100, got %d", c.ThumbnailQuality))
	}
	if c.ThumbnailCacheVersion < 1 {
		errs = append(errs, fmt.Errorf("THUMBNAIL_CACHE_VERSION must be at least 1, got %d", c.ThumbnailCacheVersion))
	}
	if c.CacheQuotaBytes < 0 {
		errs = append(errs, fmt.Errorf("CACHE_QUOTA_BYTES must not be negative, got %d", c.CacheQuotaBytes))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT must be positive, got %v", c.FetchTimeout))
	}
	if len(c.AllowedHosts) == 0 {
		errs = append(errs, errors.New("ALLOWED_HOSTS must name at least one host"))
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if _, ok := logging.ParseLevel(level); !ok {
			logging.Warn("Unknown LOG_LEVEL %q, using %s", level, logging.GetLevel())
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.DatabasePath = filepath.Join(c.DatabaseDir, "cache.db")
	c.DecodeDir = filepath.Join(c.CacheDir, "decode")
	return nil
}

// ResolveConfig builds a Config from defaults, the optional YAML file and
// the environment, in increasing precedence. It does not touch the
// filesystem beyond reading configFile.
func ResolveConfig(configFile string) (*Config, error) {
	c := defaultConfig()
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if err := c.applyFile(configFile); err != nil {
			return nil, err
		}
		c.ConfigFile = configFile
	}
	c.applyEnv()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
