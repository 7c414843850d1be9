package daemon

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/logging"
	"asset-catalog/internal/metrics"
	"asset-catalog/internal/thumbnail"
	"asset-catalog/internal/workers"
)

// Daemon states, exported through the state gauge.
const (
	stateIdle = iota
	statePolling
	stateDispatching
	stateRendering
	stateUpdating
)

// Lane labels.
const (
	LaneFast = "fast"
	LaneSlow = "slow"
)

// DefaultSizeThreshold partitions assets between the fast and slow lanes.
// Files at or above it go to the slow lane.
const DefaultSizeThreshold = 30 * 1024 * 1024

// Config tunes the render daemon. Zero values pick defaults.
type Config struct {
	PollInterval  time.Duration
	SizeThreshold int64
	FastWorkers   int
	SlowWorkers   int
	FastTimeout   time.Duration
	SlowTimeout   time.Duration
	// BatchLimit caps how many pending assets one cycle picks up.
	BatchLimit int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PollInterval <= 0 {
		out.PollInterval = 30 * time.Second
	}
	if out.SizeThreshold <= 0 {
		out.SizeThreshold = DefaultSizeThreshold
	}
	if out.FastWorkers <= 0 {
		out.FastWorkers = workers.ForIO("FAST_WORKERS", 8)
	}
	if out.SlowWorkers <= 0 {
		out.SlowWorkers = workers.ForCPU("SLOW_WORKERS", 2)
	}
	if out.FastTimeout <= 0 {
		out.FastTimeout = 30 * time.Second
	}
	if out.SlowTimeout <= 0 {
		out.SlowTimeout = 5 * time.Minute
	}
	if out.BatchLimit <= 0 {
		out.BatchLimit = 500
	}
	return out
}

// Renderer is what the daemon needs from the render chain.
type Renderer interface {
	Render(ctx context.Context, req *thumbnail.Request) (image.Image, error)
}

// Store is what the daemon needs from the thumbnail store.
type Store interface {
	Write(assetID int64, kind catalog.AssetKind, img image.Image) (storage, relPath string, err error)
	Size() (int, int)
}

// Locator stages an asset's content onto the local filesystem for
// rendering. cleanup is never nil.
type Locator func(ctx context.Context, a *catalog.Asset) (localPath string, cleanup func(), err error)

// Progress is a point-in-time view of the daemon's queues.
type Progress struct {
	PendingFast   int64 `json:"pendingFast"`
	PendingSlow   int64 `json:"pendingSlow"`
	RenderedTotal int64 `json:"renderedTotal"`
	FailedTotal   int64 `json:"failedTotal"`
	Cycles        int64 `json:"cycles"`
}

// Daemon polls the catalog for assets needing thumbnails and renders them
// through two fixed worker pools split by file size, so one large model
// render never blocks a batch of small documents.
type Daemon struct {
	cat    *catalog.Catalog
	chain  Renderer
	store  Store
	locate Locator
	cfg    Config

	pendingFast int64
	pendingSlow int64
	rendered    int64
	failed      int64
	cycles      int64

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func New(cat *catalog.Catalog, chain Renderer, store Store, locate Locator, cfg Config) *Daemon {
	return &Daemon{
		cat:      cat,
		chain:    chain,
		store:    store,
		locate:   locate,
		cfg:      cfg.withDefaults(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the poll loop. Stop shuts it down.
func (d *Daemon) Start(ctx context.Context) {
	logging.Info("Thumbnail daemon: poll %v, threshold %d bytes, fast %d workers (%v timeout), slow %d workers (%v timeout)",
		d.cfg.PollInterval, d.cfg.SizeThreshold,
		d.cfg.FastWorkers, d.cfg.FastTimeout,
		d.cfg.SlowWorkers, d.cfg.SlowTimeout)
	go d.loop(ctx)
}

func (d *Daemon) loop(ctx context.Context) {
	defer close(d.doneChan)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	// First cycle immediately so restarts resume pending work without
	// waiting a full interval.
	d.RunCycle(ctx)
	for {
		select {
		case <-ticker.C:
			d.RunCycle(ctx)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop shuts the daemon down after the in-flight cycle completes.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
	<-d.doneChan
	logging.Info("Thumbnail daemon stopped")
}

// RunCycle performs one poll-dispatch-render pass. Assets that fail or time
// out keep their stale thumbnail columns and are picked up again next cycle.
func (d *Daemon) RunCycle(ctx context.Context) {
	metrics.DaemonState.Set(statePolling)
	defer metrics.DaemonState.Set(stateIdle)

	pending, err := d.cat.PendingThumbnails(ctx, d.cfg.BatchLimit)
	if err != nil {
		logging.Error("Thumbnail daemon: poll: %v", err)
		return
	}
	atomic.AddInt64(&d.cycles, 1)
	metrics.DaemonCycles.Inc()
	if len(pending) == 0 {
		d.setPending(0, 0)
		return
	}

	metrics.DaemonState.Set(stateDispatching)
	var fast, slow []*catalog.Asset
	for _, a := range pending {
		if a.FileSize >= d.cfg.SizeThreshold {
			slow = append(slow, a)
		} else {
			fast = append(fast, a)
		}
	}
	d.setPending(int64(len(fast)), int64(len(slow)))
	logging.Info("Thumbnail daemon: %d pending (%d fast, %d slow)", len(pending), len(fast), len(slow))

	metrics.DaemonState.Set(stateRendering)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.runLane(ctx, LaneFast, fast, d.cfg.FastWorkers, d.cfg.FastTimeout, &d.pendingFast)
	}()
	go func() {
		defer wg.Done()
		d.runLane(ctx, LaneSlow, slow, d.cfg.SlowWorkers, d.cfg.SlowTimeout, &d.pendingSlow)
	}()
	wg.Wait()
}

func (d *Daemon) runLane(ctx context.Context, lane string, assets []*catalog.Asset, numWorkers int, timeout time.Duration, pending *int64) {
	if len(assets) == 0 {
		return
	}
	jobs := make(chan *catalog.Asset)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				d.renderOne(ctx, lane, timeout, a)
				atomic.AddInt64(pending, -1)
				metrics.RenderQueuePending.WithLabelValues(lane).Set(float64(atomic.LoadInt64(pending)))
			}
		}()
	}
	for _, a := range assets {
		select {
		case jobs <- a:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case <-d.stopChan:
			close(jobs)
			wg.Wait()
			return
		}
	}
	close(jobs)
	wg.Wait()
}

func (d *Daemon) renderOne(ctx context.Context, lane string, timeout time.Duration, a *catalog.Asset) {
	start := time.Now()
	defer func() { metrics.RenderDuration.WithLabelValues(lane).Observe(time.Since(start).Seconds()) }()

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	local, cleanup, err := d.locate(rctx, a)
	if err != nil {
		d.fail(lane, a, err)
		return
	}
	defer cleanup()

	w, h := d.store.Size()
	img, err := d.chain.Render(rctx, &thumbnail.Request{
		SourcePath: local,
		Kind:       a.Kind,
		Format:     a.Format,
		Width:      w,
		Height:     h,
	})
	if err != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) {
			metrics.RenderTimeouts.WithLabelValues(lane).Inc()
			logging.Warn("Render timeout (%s lane, %v) for asset %d %s", lane, timeout, a.ID, a.RelativePath)
		}
		d.fail(lane, a, err)
		return
	}

	metrics.DaemonState.Set(stateUpdating)
	storage, relPath, err := d.store.Write(a.ID, a.Kind, img)
	if err != nil {
		d.fail(lane, a, err)
		return
	}

	// One transaction touches every thumbnail column. A thumbnail on disk
	// that the catalog does not know about is re-rendered next cycle,
	// never half-recorded.
	if err := d.cat.UpdateAssetThumbnail(a.ID, storage, relPath, time.Now(), a.FileMtime); err != nil {
		d.fail(lane, a, err)
		return
	}

	atomic.AddInt64(&d.rendered, 1)
	metrics.RendersTotal.WithLabelValues(lane, "success").Inc()
	logging.Debug("Rendered thumbnail for asset %d (%s) in %v", a.ID, a.RelativePath, time.Since(start).Round(time.Millisecond))
}

func (d *Daemon) fail(lane string, a *catalog.Asset, err error) {
	atomic.AddInt64(&d.failed, 1)
	metrics.RendersTotal.WithLabelValues(lane, "failure").Inc()
	logging.Warn("Render failed (%s lane) for asset %d %s: %v", lane, a.ID, a.RelativePath, err)
}

func (d *Daemon) setPending(fast, slow int64) {
	atomic.StoreInt64(&d.pendingFast, fast)
	atomic.StoreInt64(&d.pendingSlow, slow)
	metrics.RenderQueuePending.WithLabelValues(LaneFast).Set(float64(fast))
	metrics.RenderQueuePending.WithLabelValues(LaneSlow).Set(float64(slow))
}

// RequestRerender flags an asset for re-rendering on the next cycle even if
// its thumbnail looks current. force=false withdraws a pending request.
func (d *Daemon) RequestRerender(assetID int64, force bool) error {
	return d.cat.SetForceRerender(assetID, force)
}

// Progress reports queue depths and lifetime counters.
func (d *Daemon) Progress() Progress {
	return Progress{
		PendingFast:   atomic.LoadInt64(&d.pendingFast),
		PendingSlow:   atomic.LoadInt64(&d.pendingSlow),
		RenderedTotal: atomic.LoadInt64(&d.rendered),
		FailedTotal:   atomic.LoadInt64(&d.failed),
		Cycles:        atomic.LoadInt64(&d.cycles),
	}
}
