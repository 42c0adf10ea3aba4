package startup

import (
	"context"
	"fmt"
	"time"

	"media-embedder/internal/database"
	"media-embedder/internal/embedder"
	"media-embedder/internal/fetcher"
	"media-embedder/internal/logging"
	"media-embedder/internal/media"
	"media-embedder/internal/mediatypes"
	"media-embedder/internal/metrics"
)

// OpenCache opens the cache database at config.DatabasePath and records the
// thumbnail format version in use.
func OpenCache(ctx context.Context, config *Config) (*database.Database, error) {
	start := time.Now()
	db, err := database.New(ctx, config.DatabasePath, database.Options{QuotaBytes: config.CacheQuotaBytes})
	if err != nil {
		return nil, err
	}

	prev, err := db.RecordThumbnailVersion(ctx, config.ThumbnailCacheVersion)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to record thumbnail cache version: %w", err)
	}
	LogDatabaseInit(time.Since(start), config.DatabasePath, prev, config.ThumbnailCacheVersion)
	return db, nil
}

// InitThumbnails starts libvips when WebP output is requested. It returns
// a cleanup function that is safe to call when vips was never started.
func InitThumbnails(config *Config) func() {
	if config.ThumbnailFormat != media.FormatWebP {
		return func() {}
	}
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, thumbnails fall back to jpeg: %v", err)
		return func() {}
	}
	return media.ShutdownVips
}

// Pipeline builds the embedding pipeline over store from config.
func Pipeline(config *Config, store database.Store) (embedder.Options, *mediatypes.AllowList) {
	LogDecoderInit(config.FFmpegPath)

	thumbs := media.NewThumbnailGenerator(media.ThumbnailOptions{
		Size:    config.ThumbnailSize,
		Format:  config.ThumbnailFormat,
		Quality: config.ThumbnailQuality,
	})
	LogThumbnailInit(thumbs.Size(), config.ThumbnailFormat, thumbs.Format())

	f := fetcher.New(fetcher.Options{
		Timeout:   config.FetchTimeout,
		UserAgent: config.UserAgent,
		Budget:    config.Budget(),
		Observer:  metrics.NewFetchObserver(),
	})

	opts := embedder.Options{
		Store:      store,
		Namespaces: database.NewNamespaces(config.ThumbnailCacheVersion),
		Fetcher:    f,
		Budget:     config.Budget(),
		Extractor:  media.NewFFmpegExtractor(config.FFmpegPath, config.DecodeDir),
		Thumbnails: thumbs,
		Policy:     embedder.Policy{EscalateOnNetworkError: config.EscalateOnNetworkError},
	}
	return opts, mediatypes.NewAllowList(config.AllowedHosts)
}
