package daemon

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/thumbnail"
)

type fakeRenderer struct {
	mu       sync.Mutex
	lanes    map[string]int // format -> render count
	failOn   map[string]bool
	block    chan struct{} // when set, Render waits on it for matching formats
	blockFmt string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{lanes: map[string]int{}, failOn: map[string]bool{}}
}

func (r *fakeRenderer) Render(ctx context.Context, req *thumbnail.Request) (image.Image, error) {
	if r.block != nil && req.Format == r.blockFmt {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[req.Format] {
		return nil, errors.New("render backend unavailable")
	}
	r.lanes[req.Format]++
	return image.NewRGBA(image.Rect(0, 0, req.Width, req.Height)), nil
}

func (r *fakeRenderer) count(format string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lanes[format]
}

type fakeStore struct {
	mu      sync.Mutex
	written []int64
	failAll bool
}

func (s *fakeStore) Write(assetID int64, kind catalog.AssetKind, img image.Image) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return "", "", errors.New("disk full")
	}
	s.written = append(s.written, assetID)
	sub := "documents"
	if kind == catalog.KindModel {
		sub = "models"
	}
	return "local", fmt.Sprintf("%s/%d.jpg", sub, assetID), nil
}

func (s *fakeStore) Size() (int, int) { return 200, 200 }

func passLocator(ctx context.Context, a *catalog.Asset) (string, func(), error) {
	return "/tmp/" + a.Filename, func() {}, nil
}

func setupDaemon(t *testing.T, chain Renderer, store Store, cfg Config) (*Daemon, *catalog.Catalog, *catalog.Volume) {
	t.Helper()
	cat, err := catalog.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	v := &catalog.Volume{Label: "lib", Type: catalog.VolumeLocal, MountPath: t.TempDir()}
	if err := cat.UpsertVolume(v); err != nil {
		t.Fatalf("UpsertVolume: %v", err)
	}
	return New(cat, chain, store, passLocator, cfg), cat, v
}

func insertPending(t *testing.T, cat *catalog.Catalog, volumeID int64, relPath, format string, kind catalog.AssetKind, size int64) *catalog.Asset {
	t.Helper()
	a := &catalog.Asset{
		VolumeID:     volumeID,
		Kind:         kind,
		RelativePath: relPath,
		Filename:     relPath,
		Format:       format,
		FileSize:     size,
		FileMtime:    time.Now().Add(-time.Hour),
		PartialHash:  "hash-" + relPath,
		LastSeenAt:   time.Now(),
	}
	if err := cat.InsertAsset(a); err != nil {
		t.Fatalf("InsertAsset(%s): %v", relPath, err)
	}
	return a
}

func TestRunCycleRendersPending(t *testing.T) {
	chain := newFakeRenderer()
	store := &fakeStore{}
	d, cat, v := setupDaemon(t, chain, store, Config{SizeThreshold: 1 << 20, FastWorkers: 2, SlowWorkers: 1})
	ctx := context.Background()

	small := insertPending(t, cat, v.ID, "a.pdf", "pdf", catalog.KindDocument, 100)
	big := insertPending(t, cat, v.ID, "b.stl", "stl", catalog.KindModel, 2<<20)

	d.RunCycle(ctx)

	for _, a := range []*catalog.Asset{small, big} {
		got, err := cat.GetAsset(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		if got.ThumbRenderedAt == nil || got.ThumbSourceMtime == nil {
			t.Errorf("asset %d: thumbnail columns not written: %+v", a.ID, got)
		}
		if got.ThumbStorage != "local" || got.ThumbPath == "" {
			t.Errorf("asset %d: storage location not written: %+v", a.ID, got)
		}
		if got.ThumbnailStale() {
			t.Errorf("asset %d still stale after render", a.ID)
		}
	}

	// A second cycle finds nothing to do.
	d.RunCycle(ctx)
	if n := chain.count("pdf"); n != 1 {
		t.Errorf("pdf rendered %d times, want 1", n)
	}

	p := d.Progress()
	if p.RenderedTotal != 2 || p.FailedTotal != 0 || p.Cycles != 2 {
		t.Errorf("progress = %+v", p)
	}
}

func TestRunCycleFailureLeavesRowPending(t *testing.T) {
	chain := newFakeRenderer()
	chain.failOn["pdf"] = true
	store := &fakeStore{}
	d, cat, v := setupDaemon(t, chain, store, Config{FastWorkers: 1, SlowWorkers: 1})
	ctx := context.Background()

	a := insertPending(t, cat, v.ID, "bad.pdf", "pdf", catalog.KindDocument, 100)

	d.RunCycle(ctx)

	got, _ := cat.GetAsset(ctx, a.ID)
	if got.ThumbRenderedAt != nil || got.ThumbPath != "" {
		t.Errorf("failed render wrote thumbnail columns: %+v", got)
	}

	pending, err := cat.PendingThumbnails(ctx, 10)
	if err != nil {
		t.Fatalf("PendingThumbnails: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Errorf("failed asset should stay queued, pending=%d", len(pending))
	}

	// Backend recovery picks it up on the next cycle.
	chain.failOn["pdf"] = false
	d.RunCycle(ctx)
	got, _ = cat.GetAsset(ctx, a.ID)
	if got.ThumbRenderedAt == nil {
		t.Error("recovered asset not rendered on the next cycle")
	}

	p := d.Progress()
	if p.FailedTotal != 1 || p.RenderedTotal != 1 {
		t.Errorf("progress = %+v", p)
	}
}

func TestRunCycleStoreFailureLeavesRowUntouched(t *testing.T) {
	chain := newFakeRenderer()
	store := &fakeStore{failAll: true}
	d, cat, v := setupDaemon(t, chain, store, Config{FastWorkers: 1, SlowWorkers: 1})
	ctx := context.Background()

	a := insertPending(t, cat, v.ID, "a.pdf", "pdf", catalog.KindDocument, 100)
	d.RunCycle(ctx)

	got, _ := cat.GetAsset(ctx, a.ID)
	if got.ThumbRenderedAt != nil {
		t.Errorf("store failure still recorded a render: %+v", got)
	}
	if p := d.Progress(); p.FailedTotal != 1 {
		t.Errorf("progress = %+v", p)
	}
}

func TestSlowLaneDoesNotBlockFastLane(t *testing.T) {
	chain := newFakeRenderer()
	chain.block = make(chan struct{})
	chain.blockFmt = "stl"
	store := &fakeStore{}
	d, cat, v := setupDaemon(t, chain, store, Config{
		SizeThreshold: 1 << 20,
		FastWorkers:   2,
		SlowWorkers:   1,
		SlowTimeout:   5 * time.Second,
	})
	ctx := context.Background()

	fast := insertPending(t, cat, v.ID, "quick.pdf", "pdf", catalog.KindDocument, 100)
	insertPending(t, cat, v.ID, "huge.stl", "stl", catalog.KindModel, 2<<20)

	done := make(chan struct{})
	go func() {
		d.RunCycle(ctx)
		close(done)
	}()

	// The fast-lane asset completes while the slow lane is stuck.
	deadline := time.After(3 * time.Second)
	for {
		got, err := cat.GetAsset(ctx, fast.ID)
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		if got.ThumbRenderedAt != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("fast lane blocked behind the slow lane")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(chain.block)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("cycle did not finish after unblocking the slow lane")
	}
}

func TestRenderTimeoutCountsAsFailure(t *testing.T) {
	chain := newFakeRenderer()
	chain.block = make(chan struct{}) // never closed; render waits out the timeout
	chain.blockFmt = "pdf"
	store := &fakeStore{}
	d, cat, v := setupDaemon(t, chain, store, Config{
		FastWorkers: 1,
		SlowWorkers: 1,
		FastTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	a := insertPending(t, cat, v.ID, "stuck.pdf", "pdf", catalog.KindDocument, 100)
	d.RunCycle(ctx)

	got, _ := cat.GetAsset(ctx, a.ID)
	if got.ThumbRenderedAt != nil {
		t.Errorf("timed-out render wrote thumbnail columns: %+v", got)
	}
	if p := d.Progress(); p.FailedTotal != 1 {
		t.Errorf("progress = %+v", p)
	}
}

func TestRequestRerender(t *testing.T) {
	chain := newFakeRenderer()
	store := &fakeStore{}
	d, cat, v := setupDaemon(t, chain, store, Config{FastWorkers: 1, SlowWorkers: 1})
	ctx := context.Background()

	a := insertPending(t, cat, v.ID, "a.pdf", "pdf", catalog.KindDocument, 100)
	d.RunCycle(ctx)
	if n := chain.count("pdf"); n != 1 {
		t.Fatalf("initial render count = %d", n)
	}

	if err := d.RequestRerender(a.ID, true); err != nil {
		t.Fatalf("RequestRerender: %v", err)
	}
	d.RunCycle(ctx)
	if n := chain.count("pdf"); n != 2 {
		t.Errorf("rerender count = %d, want 2", n)
	}

	// The rerender clears the flag; a third cycle is a no-op.
	d.RunCycle(ctx)
	if n := chain.count("pdf"); n != 2 {
		t.Errorf("post-rerender count = %d, want 2", n)
	}

	// A request can be withdrawn before the next cycle picks it up.
	if err := d.RequestRerender(a.ID, true); err != nil {
		t.Fatalf("RequestRerender: %v", err)
	}
	if err := d.RequestRerender(a.ID, false); err != nil {
		t.Fatalf("RequestRerender (withdraw): %v", err)
	}
	d.RunCycle(ctx)
	if n := chain.count("pdf"); n != 2 {
		t.Errorf("withdrawn request still rendered, count = %d", n)
	}
}

func TestStartStop(t *testing.T) {
	chain := newFakeRenderer()
	store := &fakeStore{}
	d, cat, v := setupDaemon(t, chain, store, Config{
		PollInterval: 10 * time.Millisecond,
		FastWorkers:  1,
		SlowWorkers:  1,
	})
	ctx := context.Background()

	a := insertPending(t, cat, v.ID, "a.pdf", "pdf", catalog.KindDocument, 100)

	d.Start(ctx)

	deadline := time.After(3 * time.Second)
	for {
		got, err := cat.GetAsset(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		if got.ThumbRenderedAt != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("daemon never rendered the pending asset")
		case <-time.After(10 * time.Millisecond):
		}
	}

	d.Stop()
	// Stop is idempotent.
	d.Stop()
}
