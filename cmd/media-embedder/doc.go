// Package main provides the entry point for the media embedder server.
//
// The server accepts HTML pages or fragments on POST /api/embed and returns
// them with every link to an allowed video host replaced by a minimized
// inline player: a poster thumbnail, the container title when the file
// carries one, and the shared playback volume.
//
// # Application Lifecycle
//
//  1. Memory: GOMEMLIMIT from MEMORY_LIMIT (see internal/memory)
//  2. Configuration: defaults, optional YAML file, environment
//  3. Cache: SQLite database in WAL mode; the thumbnail format version is
//     recorded so a bump orphans old posters
//  4. Pipeline: ranged fetcher, ffmpeg frame extractor, thumbnail generator
//     (libvips when THUMBNAIL_FORMAT=webp)
//  5. HTTP: API on PORT, Prometheus on METRICS_PORT
//  6. Graceful shutdown on SIGINT/SIGTERM
//
// # Background Services
//
//   - Metrics collector: cache entry counts and database file sizes
//   - Memory monitor: heap usage gauge, forced GC when critical
//
// Each posted page is processed independently: one goroutine per candidate
// link, with results cached by URL for later requests.
package main
