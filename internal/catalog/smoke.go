package catalog

import (
	"context"
	"fmt"
	"time"
)

// SmokeTest creates a throwaway in-memory catalog and drives every statement
// class against it. Run at startup: a parameter-binding or schema mismatch
// fails here, before any real scan writes a row.
func SmokeTest(ctx context.Context) error {
	c, err := OpenMemory(ctx)
	if err != nil {
		return fmt.Errorf("smoke test: %w", err)
	}
	defer c.Close()

	now := time.Now()

	vol := &Volume{Label: "smoke", Type: VolumeLocal, MountPath: "/smoke"}
	if err := c.UpsertVolume(vol); err != nil {
		return fmt.Errorf("smoke test: upsert volume: %w", err)
	}
	if _, err := c.GetVolumeByLabel(ctx, "smoke"); err != nil {
		return fmt.Errorf("smoke test: get volume: %w", err)
	}

	asset := &Asset{
		VolumeID:     vol.ID,
		Kind:         KindModel,
		RelativePath: "a/b.stl",
		Filename:     "b.stl",
		FolderPath:   "a",
		Format:       "stl",
		FileSize:     42,
		FileMtime:    now,
		PartialHash:  "smoke-partial",
		LastSeenAt:   now,
	}
	if err := c.InsertAsset(asset); err != nil {
		return fmt.Errorf("smoke test: insert asset: %w", err)
	}
	if _, err := c.GetAssetByPath(ctx, vol.ID, "a/b.stl"); err != nil {
		return fmt.Errorf("smoke test: get asset by path: %w", err)
	}
	if _, err := c.FindByPartialHash(ctx, "smoke-partial"); err != nil {
		return fmt.Errorf("smoke test: find by partial hash: %w", err)
	}
	if err := c.UpdateAssetMetadata(asset); err != nil {
		return fmt.Errorf("smoke test: update asset: %w", err)
	}
	if err := c.RepointAsset(asset.ID, "c/b.stl", "b.stl", "c", "", "", now, now, 42); err != nil {
		return fmt.Errorf("smoke test: repoint asset: %w", err)
	}
	if err := c.TouchAssetSeen(asset.ID, now); err != nil {
		return fmt.Errorf("smoke test: touch asset: %w", err)
	}
	if err := c.SetAssetFullHash(asset.ID, "smoke-full"); err != nil {
		return fmt.Errorf("smoke test: set full hash: %w", err)
	}
	if err := c.UpdateAssetThumbnail(asset.ID, "local", "models/x.jpg", now, now); err != nil {
		return fmt.Errorf("smoke test: update thumbnail: %w", err)
	}
	if err := c.SetForceRerender(asset.ID, true); err != nil {
		return fmt.Errorf("smoke test: force rerender: %w", err)
	}
	if _, err := c.PendingThumbnails(ctx, 10); err != nil {
		return fmt.Errorf("smoke test: pending thumbnails: %w", err)
	}
	if _, err := c.MarkMissing(vol.ID, "", now.Add(time.Hour), now); err != nil {
		return fmt.Errorf("smoke test: mark missing: %w", err)
	}
	if _, err := c.Search(ctx, "b.stl", "", 5); err != nil {
		return fmt.Errorf("smoke test: search: %w", err)
	}
	if _, err := c.CalculateStats(ctx); err != nil {
		return fmt.Errorf("smoke test: stats: %w", err)
	}

	job, err := c.CreateScanJob(vol.ID, "scan", "/smoke")
	if err != nil {
		return fmt.Errorf("smoke test: create job: %w", err)
	}
	job.Phase = PhaseApplying
	if err := c.UpdateScanJobProgress(job); err != nil {
		return fmt.Errorf("smoke test: update job: %w", err)
	}
	if err := c.RecordJobError(job.ID, "a/b.stl", "io", "smoke"); err != nil {
		return fmt.Errorf("smoke test: record job error: %w", err)
	}
	if _, err := c.IsJobCancelled(ctx, job.ID); err != nil {
		return fmt.Errorf("smoke test: job cancelled check: %w", err)
	}
	if err := c.FinishScanJob(job, JobCompleted); err != nil {
		return fmt.Errorf("smoke test: finish job: %w", err)
	}

	return nil
}
