// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [ResolveConfig] merges, in increasing precedence, built-in defaults, an
// optional YAML file (CONFIG_FILE or an explicit path) and environment
// variables. [LoadConfig] additionally prints the banner, logs every value
// and prepares the cache and database directories.
//
//   - CACHE_DIR: decode scratch space (default: /cache)
//   - DATABASE_DIR: cache database directory (default: /database)
//   - PORT / METRICS_PORT / METRICS_ENABLED: HTTP listeners (8080 / 9090 / true)
//   - SMALL_BUDGET / LARGE_BUDGET: fetch ceilings in bytes (153600 / 614400)
//   - FETCH_TIMEOUT: whole-request timeout (default: 30s)
//   - USER_AGENT: User-Agent sent with ranged requests
//   - ESCALATE_ON_NETWORK_ERROR: retry with the large budget after a
//     connection failure (default: true)
//   - ALLOWED_HOSTS: comma-separated host globs
//   - FFMPEG_PATH: ffmpeg binary (default: ffmpeg)
//   - THUMBNAIL_SIZE / THUMBNAIL_FORMAT / THUMBNAIL_QUALITY: 200 / jpeg / 80
//   - THUMBNAIL_CACHE_VERSION: bump to orphan cached thumbnails (default: 1)
//   - CACHE_QUOTA_BYTES: total cache size limit, 0 for none
//   - LOG_LEVEL, LOG_STATIC_FILES, LOG_HEALTH_CHECKS
//
// The YAML file uses the same settings in nested form:
//
//	fetch:
//	  small_budget: 153600
//	  large_budget: 614400
//	  timeout: 30s
//	allowed_hosts: [files.catbox.moe]
//	thumbnail:
//	  size: 200
//	  format: webp
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
