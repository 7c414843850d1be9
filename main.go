package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/config"
	"asset-catalog/internal/daemon"
	"asset-catalog/internal/logging"
	"asset-catalog/internal/metrics"
	"asset-catalog/internal/scanner"
	"asset-catalog/internal/server"
	"asset-catalog/internal/thumbnail"
	"asset-catalog/internal/volume"
	"asset-catalog/internal/watch"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Verify every prepared statement class against a throwaway database
	// before touching the real one.
	if err := catalog.SmokeTest(ctx); err != nil {
		logging.Fatal("Catalog smoke test failed: %v", err)
	}

	dbStart := time.Now()
	cat, err := catalog.Open(ctx, cfg.CatalogPath)
	if err != nil {
		logging.Fatal("Failed to open catalog: %v", err)
	}
	defer cat.Close()
	logging.Info("Catalog opened in %v: %s", time.Since(dbStart).Round(time.Millisecond), cfg.CatalogPath)

	volumes, sources, err := registerVolumes(ctx, cat, cfg)
	if err != nil {
		logging.Fatal("Volume setup failed: %v", err)
	}
	defer func() {
		for _, src := range sources {
			src.Close()
		}
	}()

	metrics.InitializeMetrics()
	collector := metrics.NewCollector(&catalogStats{ctx: ctx, cat: cat}, 30*time.Second)
	collector.Start()
	defer collector.Stop()

	if err := thumbnail.InitVips(); err != nil {
		logging.Warn("libvips unavailable, document previews degrade to fallbacks: %v", err)
	}
	defer thumbnail.ShutdownVips()

	store, err := thumbnail.NewStore(cfg.PreviewDir)
	if err != nil {
		logging.Fatal("Failed to initialize thumbnail store: %v", err)
	}
	chain := thumbnail.NewChain(
		&thumbnail.VipsRenderer{},
		&thumbnail.CoverRenderer{},
		&thumbnail.MeshRenderer{Command: cfg.ModelRendererCmd},
		&thumbnail.PlaceholderRenderer{},
	)

	d := daemon.New(cat, chain, store, daemon.NewVolumeLocator(volumes, sources), daemon.Config{
		PollInterval:  cfg.ThumbPollInterval,
		SizeThreshold: cfg.ThumbSizeThreshold,
		FastWorkers:   cfg.FastWorkers,
		SlowWorkers:   cfg.SlowWorkers,
		FastTimeout:   cfg.FastTimeout,
		SlowTimeout:   cfg.SlowTimeout,
	})
	d.Start(ctx)

	runner := &scanRunner{
		ctx:     ctx,
		cat:     cat,
		scanner: scanner.New(cat),
		volumes: volumes,
		sources: sources,
		policy:  catalog.DuplicatePolicy(cfg.DuplicatePolicy),
		running: make(map[int64]bool),
	}

	// Initial pass over every volume, then periodic full rescans.
	go runner.scanAll()
	go runner.periodic(cfg.ScanInterval)

	var watcher *watch.Watcher
	if cfg.WatchEnabled {
		watcher = watch.New(5*time.Second, func(volumeID int64) {
			runner.scanVolumeID(volumeID)
		})
		vols := make([]*catalog.Volume, 0, len(volumes))
		for _, v := range volumes {
			vols = append(vols, v)
		}
		go watcher.Watch(vols)
	}

	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsHandler()}
	go func() {
		logging.Info("Metrics server listening on :%s", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	h := server.New(cat, d, runner.start)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(cancel, srv, metricsSrv, d, watcher)

	logging.Info("API server listening on :%s (startup took %v)", cfg.Port, time.Since(startTime).Round(time.Millisecond))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

// registerVolumes upserts the configured volumes into the catalog and opens
// a source for each enabled one. A volume whose source cannot be opened is
// marked offline instead of failing startup.
func registerVolumes(ctx context.Context, cat *catalog.Catalog, cfg *config.Config) (map[int64]*catalog.Volume, map[int64]volume.Source, error) {
	volumes := make(map[int64]*catalog.Volume)
	sources := make(map[int64]volume.Source)

	for _, vc := range cfg.Volumes {
		v := &catalog.Volume{
			Label:     vc.Label,
			Type:      catalog.VolumeType(vc.Type),
			MountPath: vc.MountPath,
			ReadOnly:  vc.ReadOnly,
			Disabled:  vc.Disabled,
			Status:    catalog.VolumeOffline,
		}
		if err := cat.UpsertVolume(v); err != nil {
			return nil, nil, fmt.Errorf("register volume %q: %w", vc.Label, err)
		}
		if vc.Disabled {
			logging.Info("Volume %q registered (disabled)", vc.Label)
			continue
		}
		volumes[v.ID] = v

		src, err := volume.OpenSource(v, volume.SFTPConfig{
			Host:     vc.Host,
			Port:     vc.Port,
			User:     vc.User,
			Password: vc.Password,
			Timeout:  vc.DialTimeout,
		})
		if err != nil {
			logging.Error("Volume %q: cannot open source, marking offline: %v", vc.Label, err)
			cat.SetVolumeStatus(v.ID, catalog.VolumeError)
			continue
		}
		sources[v.ID] = src
		cat.SetVolumeStatus(v.ID, catalog.VolumeOnline)
		logging.Info("Volume %q online (%s, %s)", vc.Label, v.Type, v.MountPath)
	}
	return volumes, sources, nil
}

// scanRunner serializes scans per volume and fans them out from the API,
// the watcher, and the periodic ticker.
type scanRunner struct {
	ctx     context.Context
	cat     *catalog.Catalog
	scanner *scanner.Scanner
	volumes map[int64]*catalog.Volume
	sources map[int64]volume.Source
	policy  catalog.DuplicatePolicy

	mu      sync.Mutex
	running map[int64]bool
}

// start is the server.ScanStarter implementation. The scan itself runs in
// the background; the caller gets the job id for polling.
func (r *scanRunner) start(label, path string, recursive, force bool, policy catalog.DuplicatePolicy) (string, error) {
	var vol *catalog.Volume
	for _, v := range r.volumes {
		if v.Label == label {
			vol = v
			break
		}
	}
	if vol == nil {
		return "", fmt.Errorf("unknown or disabled volume %q", label)
	}
	src, ok := r.sources[vol.ID]
	if !ok {
		return "", fmt.Errorf("volume %q has no open source", label)
	}
	if policy == "" {
		policy = r.policy
	}

	r.mu.Lock()
	if r.running[vol.ID] {
		r.mu.Unlock()
		return "", fmt.Errorf("scan already running for volume %q", label)
	}
	r.running[vol.ID] = true
	r.mu.Unlock()

	jobCh := make(chan string, 1)
	go func() {
		defer r.release(vol.ID)
		_, err := r.scanner.Scan(r.ctx, &scanner.Request{
			Volume:    vol,
			Source:    src,
			Path:      path,
			Recursive: recursive,
			Force:     force,
			Policy:    policy,
			OnStart:   func(jobID string) { jobCh <- jobID },
		})
		if err != nil {
			logging.Error("Scan of volume %q failed: %v", label, err)
		}
	}()

	select {
	case jobID := <-jobCh:
		return jobID, nil
	case <-time.After(10 * time.Second):
		return "", fmt.Errorf("scan of volume %q failed to start", label)
	}
}

func (r *scanRunner) release(volumeID int64) {
	r.mu.Lock()
	delete(r.running, volumeID)
	r.mu.Unlock()
}

func (r *scanRunner) scanVolumeID(volumeID int64) {
	vol, ok := r.volumes[volumeID]
	if !ok {
		return
	}
	src, ok := r.sources[volumeID]
	if !ok {
		return
	}

	r.mu.Lock()
	if r.running[volumeID] {
		r.mu.Unlock()
		return
	}
	r.running[volumeID] = true
	r.mu.Unlock()
	defer r.release(volumeID)

	if _, err := r.scanner.Scan(r.ctx, &scanner.Request{
		Volume:    vol,
		Source:    src,
		Recursive: true,
		Policy:    r.policy,
	}); err != nil {
		logging.Error("Scan of volume %q failed: %v", vol.Label, err)
	}
}

func (r *scanRunner) scanAll() {
	for id := range r.sources {
		r.scanVolumeID(id)
	}
}

func (r *scanRunner) periodic(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.scanAll()
		case <-r.ctx.Done():
			return
		}
	}
}

// catalogStats adapts the catalog to the metrics collector.
type catalogStats struct {
	ctx context.Context
	cat *catalog.Catalog
}

func (s *catalogStats) GetStats() metrics.Stats {
	stats, err := s.cat.CalculateStats(s.ctx)
	if err != nil {
		logging.Debug("Stats collection failed: %v", err)
		return metrics.Stats{}
	}
	return metrics.Stats{
		TotalDocuments: stats.TotalDocuments,
		TotalModels:    stats.TotalModels,
		TotalMissing:   stats.TotalMissing,
		TotalDuplicate: stats.TotalDuplicate,
		RenderedThumbs: stats.RenderedThumbs,
	}
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func handleShutdown(cancel context.CancelFunc, srv, metricsSrv *http.Server, d *daemon.Daemon, watcher *watch.Watcher) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("Shutdown initiated (%s)", sig)
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if watcher != nil {
		logging.Info("Stopping watcher")
		watcher.Stop()
	}

	logging.Info("Stopping thumbnail daemon")
	d.Stop()

	logging.Info("Shutting down HTTP servers")
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logging.Warn("Metrics server shutdown error: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}

	logging.Info("Shutdown complete")
}
