package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Catalog metrics
var (
	CatalogQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_catalog_db_queries_total",
			Help: "Total number of catalog database queries",
		},
		[]string{"operation", "status"},
	)

	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_catalog_db_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	CatalogTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_catalog_db_transaction_duration_seconds",
			Help:    "Catalog transaction duration in seconds by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	CatalogConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_catalog_db_connections_open",
			Help: "Number of open catalog database connections",
		},
	)

	CatalogRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_catalog_db_rows_affected",
			Help:    "Rows affected per catalog write operation",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)
)

// Scanner metrics
var (
	ScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_catalog_scans_total",
			Help: "Total number of scan jobs started",
		},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_catalog_scan_duration_seconds",
			Help:    "Duration of completed scan jobs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	ScanActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_catalog_scan_actions_total",
			Help: "Scan state-machine actions by outcome",
		},
		[]string{"action"},
	)

	ScanErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_catalog_scan_errors_total",
			Help: "File-level scan errors by error type",
		},
		[]string{"type"},
	)

	ScanFilesHashed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_catalog_scan_files_hashed_total",
			Help: "Files whose partial hash was computed during scans",
		},
	)

	ScanFullHashesComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_catalog_scan_full_hashes_total",
			Help: "Full-file hashes computed for collision verification",
		},
	)

	ScansRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_catalog_scans_running",
			Help: "Number of scan jobs currently running",
		},
	)
)

// Thumbnail daemon metrics
var (
	RenderQueuePending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asset_catalog_render_queue_pending",
			Help: "Assets pending render per lane",
		},
		[]string{"lane"},
	)

	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_catalog_renders_total",
			Help: "Thumbnail render attempts by lane and status",
		},
		[]string{"lane", "status"},
	)

	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_catalog_render_duration_seconds",
			Help:    "Thumbnail render duration in seconds per lane",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"lane"},
	)

	RenderBackendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_catalog_render_backend_attempts_total",
			Help: "Render attempts per backend and outcome",
		},
		[]string{"backend", "status"},
	)

	RenderTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_catalog_render_timeouts_total",
			Help: "Renders abandoned at the per-item timeout, per lane",
		},
		[]string{"lane"},
	)

	DaemonCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_catalog_daemon_cycles_total",
			Help: "Thumbnail daemon poll cycles completed",
		},
	)

	DaemonState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_catalog_daemon_state",
			Help: "Thumbnail daemon state (0=idle 1=polling 2=dispatching 3=rendering 4=updating)",
		},
	)
)

// Catalog content gauges, refreshed by the Collector.
var (
	AssetsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asset_catalog_assets_total",
			Help: "Total catalog assets by kind",
		},
		[]string{"kind"},
	)

	AssetsMissing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_catalog_assets_missing",
			Help: "Assets currently flagged missing",
		},
	)

	AssetsDuplicate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_catalog_assets_duplicate",
			Help: "Assets flagged as duplicates of another row",
		},
	)

	ThumbnailsRendered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_catalog_thumbnails_rendered",
			Help: "Assets with an up-to-date rendered thumbnail",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_catalog_watcher_events_total",
			Help: "Filesystem watcher events by type",
		},
		[]string{"type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_catalog_watcher_errors_total",
			Help: "Filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_catalog_watcher_directories",
			Help: "Directories currently registered with the watcher",
		},
	)
)
