package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"asset-catalog/internal/logging"
	"asset-catalog/internal/metrics"
)

// Default timeout for single-row catalog operations
const defaultTimeout = 5 * time.Second

// Catalog is the persistent store of asset records, volumes, and scan-job
// bookkeeping. It is the single source of truth: every mutation from the
// scanner or the thumbnail daemon goes through one of its methods, each
// scoped to a single transaction per logical action.
type Catalog struct {
	db     *sql.DB
	dbPath string
}

// Tx wraps a database transaction together with its start time, so
// overlapping writers each time their own transaction.
type Tx struct {
	*sql.Tx
	start time.Time
}

// Open opens (creating if necessary) the catalog database at dbPath.
// The parent directory must already exist and be writable.
func Open(ctx context.Context, dbPath string) (*Catalog, error) {
	logging.Info("Catalog path: %s", dbPath)

	// WAL mode plus busy_timeout keeps concurrent volume scans from
	// tripping over "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{db: db, dbPath: dbPath}

	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog initialized successfully at %s", dbPath)
	return c, nil
}

// OpenMemory opens a private in-memory catalog. Used by the startup smoke
// test and by tests.
func OpenMemory(ctx context.Context) (*Catalog, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory catalog: %w", err)
	}
	// Every new connection to :memory: is a fresh empty database; a single
	// connection keeps the schema and the data together.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db, dbPath: ":memory:"}
	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close in-memory catalog after init failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize in-memory catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS volumes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL DEFAULT 'local',
		mount_path TEXT NOT NULL,
		is_readonly INTEGER NOT NULL DEFAULT 0,
		is_disabled INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'online',
		last_indexed_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		volume_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		filename TEXT NOT NULL,
		folder_path TEXT NOT NULL,
		format TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		file_mtime INTEGER NOT NULL,
		partial_hash TEXT NOT NULL,
		full_hash TEXT,
		archive_path TEXT NOT NULL DEFAULT '',
		archive_member TEXT NOT NULL DEFAULT '',
		index_status TEXT NOT NULL DEFAULT 'indexed',
		last_seen_at INTEGER NOT NULL,
		missing_since INTEGER,
		thumb_storage TEXT,
		thumb_path TEXT,
		thumb_rendered_at INTEGER,
		thumb_source_mtime INTEGER,
		force_rerender INTEGER NOT NULL DEFAULT 0,
		is_duplicate INTEGER NOT NULL DEFAULT 0,
		duplicate_of_id INTEGER,
		FOREIGN KEY (volume_id) REFERENCES volumes(id)
	);

	-- (volume_id, relative_path) is unique among non-duplicate rows; archive
	-- members carry a synthesized relative_path so they participate too.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_assets_volume_path
		ON assets(volume_id, relative_path) WHERE is_duplicate = 0;
	CREATE INDEX IF NOT EXISTS idx_assets_partial_hash ON assets(partial_hash);
	CREATE INDEX IF NOT EXISTS idx_assets_folder ON assets(volume_id, folder_path);
	CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(index_status);
	CREATE INDEX IF NOT EXISTS idx_assets_thumb ON assets(thumb_rendered_at);

	-- Full-text search over filename and path, maintained by triggers so the
	-- FTS index can never desynchronize from the row it mirrors.
	CREATE VIRTUAL TABLE IF NOT EXISTS assets_fts USING fts5(
		filename,
		relative_path,
		content='assets',
		content_rowid='id',
		tokenize='trigram'
	);

	CREATE TRIGGER IF NOT EXISTS assets_ai AFTER INSERT ON assets BEGIN
		INSERT INTO assets_fts(rowid, filename, relative_path)
		VALUES (new.id, new.filename, new.relative_path);
	END;

	CREATE TRIGGER IF NOT EXISTS assets_ad AFTER DELETE ON assets BEGIN
		INSERT INTO assets_fts(assets_fts, rowid, filename, relative_path)
		VALUES('delete', old.id, old.filename, old.relative_path);
	END;

	CREATE TRIGGER IF NOT EXISTS assets_au AFTER UPDATE ON assets BEGIN
		INSERT INTO assets_fts(assets_fts, rowid, filename, relative_path)
		VALUES('delete', old.id, old.filename, old.relative_path);
		INSERT INTO assets_fts(rowid, filename, relative_path)
		VALUES (new.id, new.filename, new.relative_path);
	END;

	CREATE TABLE IF NOT EXISTS scan_jobs (
		id TEXT PRIMARY KEY,
		volume_id INTEGER NOT NULL,
		job_type TEXT NOT NULL,
		target_path TEXT NOT NULL,
		status TEXT NOT NULL,
		phase TEXT NOT NULL,
		progress_current INTEGER NOT NULL DEFAULT 0,
		progress_total INTEGER NOT NULL DEFAULT 0,
		items_processed INTEGER NOT NULL DEFAULT 0,
		items_skipped INTEGER NOT NULL DEFAULT 0,
		items_failed INTEGER NOT NULL DEFAULT 0,
		items_missing INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		completed_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_scan_jobs_volume ON scan_jobs(volume_id, started_at);

	CREATE TABLE IF NOT EXISTS job_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		error_type TEXT NOT NULL,
		error_message TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (job_id) REFERENCES scan_jobs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_job_errors_job ON job_errors(job_id);
	`

	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the filesystem path of the backing database.
func (c *Catalog) Path() string {
	return c.dbPath
}

// Begin starts a transaction scoped to one logical action. The caller is
// responsible for calling End when done. No transaction may be held open
// across an I/O-bound operation such as a file read or a render.
func (c *Catalog) Begin() (*Tx, error) {
	start := time.Now()

	// Background context: transaction lifetime is managed by End, and a
	// deferred cancel here would kill the transaction on return.
	tx, err := c.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, start: start}, nil
}

// End commits or rolls back a transaction depending on err.
func (c *Catalog) End(tx *Tx, err error) error {
	duration := time.Since(tx.start).Seconds()

	if err != nil {
		metrics.CatalogTxDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.CatalogTxDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// Vacuum optimizes the database.
func (c *Catalog) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = c.db.ExecContext(ctx, "VACUUM")
	return err
}

// RebuildFTS rebuilds the full-text search index from the assets table.
func (c *Catalog) RebuildFTS() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("rebuild_fts", start, err) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = c.db.ExecContext(ctx, "INSERT INTO assets_fts(assets_fts) VALUES('rebuild')")
	return err
}

// UpdateDBMetrics exports connection-pool gauges.
func (c *Catalog) UpdateDBMetrics() {
	stats := c.db.Stats()
	metrics.CatalogConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records catalog query metrics.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CatalogQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.CatalogQueryDuration.WithLabelValues(operation).Observe(duration)
}
