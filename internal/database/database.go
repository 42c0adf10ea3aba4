package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"media-embedder/internal/logging"
	"media-embedder/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the SQLite-backed cache store.
type Database struct {
	db         *sql.DB
	dbPath     string
	quotaBytes int64
	mu         sync.RWMutex
}

// Options configures a Database.
type Options struct {
	// QuotaBytes caps the total size of stored values. Zero means unlimited.
	QuotaBytes int64
}

// New opens (creating if needed) the cache database at dbPath.
// The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string, opts Options) (*Database, error) {
	logging.Info("Cache database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors under concurrent embeds
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:         db,
		dbPath:     dbPath,
		quotaBytes: opts.QuotaBytes,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Cache database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		version INTEGER NOT NULL,
		value BLOB NOT NULL,
		size INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_cache_entries_ns ON cache_entries(namespace, version);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Get returns the value stored under key in namespace ns.
func (d *Database) Get(ctx context.Context, ns Namespace, key string) ([]byte, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("cache_get", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value []byte
	err = d.db.QueryRowContext(ctx,
		"SELECT value FROM cache_entries WHERE key = ?",
		PhysicalKey(ns, key),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Op: "get", Namespace: ns, Err: err}
	}
	return value, true, nil
}

// Set stores value under key in namespace ns, replacing any previous value.
func (d *Database) Set(ctx context.Context, ns Namespace, key string, value []byte) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("cache_set", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	physical := PhysicalKey(ns, key)

	if d.quotaBytes > 0 {
		var used int64
		err = d.db.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(size), 0) FROM cache_entries WHERE key != ?",
			physical,
		).Scan(&used)
		if err != nil {
			return &StorageError{Op: "set", Namespace: ns, Err: err}
		}
		if used+int64(len(value)) > d.quotaBytes {
			err = ErrQuotaExceeded
			return &StorageError{Op: "set", Namespace: ns, Err: err}
		}
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, namespace, version, value, size)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			size = excluded.size,
			updated_at = strftime('%s', 'now')
	`, physical, ns.Name, ns.Version, value, len(value))
	if err != nil {
		if isDiskFull(err) {
			err = errors.Join(ErrQuotaExceeded, err)
		}
		return &StorageError{Op: "set", Namespace: ns, Err: err}
	}
	return nil
}

// Stats returns entry counts and value sizes grouped by namespace version.
func (d *Database) Stats(ctx context.Context) ([]metrics.NamespaceStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("cache_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT namespace, version, COUNT(*), COALESCE(SUM(size), 0)
		FROM cache_entries
		GROUP BY namespace, version
		ORDER BY namespace, version
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.NamespaceStats
	for rows.Next() {
		var s metrics.NamespaceStats
		if err = rows.Scan(&s.Namespace, &s.Version, &s.Entries, &s.Bytes); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	err = rows.Err()
	return out, err
}

// GetStats implements metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	stats, err := d.Stats(context.Background())
	if err != nil {
		logging.Warn("Failed to collect cache stats: %v", err)
		return metrics.Stats{}
	}
	return metrics.Stats{Namespaces: stats}
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

func isDiskFull(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrFull
	}
	return false
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file %s is read-only (mode %v), cache writes will fail", path, info.Mode())
		}
	}

	return nil
}
