package metrics

// InitializeMetrics pre-populates the expected label combinations so every
// metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Catalog query operations ---
	for _, op := range []string{
		"get_asset_by_path", "get_asset", "find_by_partial_hash",
		"insert_asset", "update_asset_metadata", "repoint_asset",
		"touch_asset_seen", "set_asset_full_hash", "mark_missing",
		"update_asset_thumbnail", "set_force_rerender", "pending_thumbnails",
		"upsert_volume", "set_volume_status", "touch_volume_indexed",
		"disable_volume", "delete_volume",
		"create_scan_job", "update_scan_job_progress", "finish_scan_job",
		"cancel_scan_job", "record_job_error",
		"search", "rebuild_fts", "vacuum",
	} {
		CatalogQueryTotal.WithLabelValues(op, "success")
		CatalogQueryTotal.WithLabelValues(op, "error")
		CatalogQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		CatalogTxDuration.WithLabelValues(outcome)
	}

	// --- Scan state-machine actions ---
	for _, action := range []string{"new", "update", "moved", "duplicate", "unchanged", "skip", "error"} {
		ScanActionsTotal.WithLabelValues(action)
	}

	for _, errType := range []string{"traversal", "unsupported", "validation", "io", "catalog"} {
		ScanErrorsTotal.WithLabelValues(errType)
	}

	// --- Render lanes and backends ---
	for _, lane := range []string{"fast", "slow"} {
		RenderQueuePending.WithLabelValues(lane)
		RenderDuration.WithLabelValues(lane)
		RenderTimeouts.WithLabelValues(lane)
		for _, status := range []string{"success", "failure"} {
			RendersTotal.WithLabelValues(lane, status)
		}
	}

	for _, backend := range []string{"vips", "cover", "mesh", "placeholder"} {
		RenderBackendAttempts.WithLabelValues(backend, "success")
		RenderBackendAttempts.WithLabelValues(backend, "failure")
	}

	// --- Content gauges ---
	for _, kind := range []string{"document", "model"} {
		AssetsTotal.WithLabelValues(kind)
	}

	// --- Watcher events ---
	for _, t := range []string{"create", "write", "remove", "rename", "chmod", "other"} {
		WatcherEventsTotal.WithLabelValues(t)
	}
}
