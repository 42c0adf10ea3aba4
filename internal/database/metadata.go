package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"media-embedder/internal/logging"
)

const (
	metaThumbnailVersion = "thumbnail_version"
	metaOpenedAt         = "last_opened_at"
)

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_metadata", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err = d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return "", sql.ErrNoRows
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_metadata", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// RecordThumbnailVersion stores the thumbnail namespace version in use and
// returns the previously recorded one (0 when none).
func (d *Database) RecordThumbnailVersion(ctx context.Context, version int) (int, error) {
	prev := 0
	value, err := d.GetMetadata(ctx, metaThumbnailVersion)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, err
	default:
		if prev, err = strconv.Atoi(value); err != nil {
			logging.Warn("Ignoring malformed %s metadata %q", metaThumbnailVersion, value)
			prev = 0
		}
	}

	if prev != version {
		if prev != 0 {
			logging.Info("Thumbnail cache version changed %d -> %d; entries under %s@%d are orphaned",
				prev, version, NamespaceThumbnail, prev)
		}
		if err := d.SetMetadata(ctx, metaThumbnailVersion, strconv.Itoa(version)); err != nil {
			return prev, err
		}
	}

	if err := d.SetMetadata(ctx, metaOpenedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return prev, err
	}
	return prev, nil
}
