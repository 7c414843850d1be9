package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"asset-catalog/internal/metrics"
)

const assetColumns = `id, volume_id, kind, relative_path, filename, folder_path, format,
	file_size, file_mtime, partial_hash, COALESCE(full_hash, ''),
	archive_path, archive_member, index_status, last_seen_at, missing_since,
	COALESCE(thumb_storage, ''), COALESCE(thumb_path, ''),
	thumb_rendered_at, thumb_source_mtime, force_rerender,
	is_duplicate, duplicate_of_id`

func scanAsset(row interface{ Scan(...any) error }) (*Asset, error) {
	var a Asset
	var mtime, lastSeen int64
	var missingSince, renderedAt, sourceMtime sql.NullInt64
	var dupOf sql.NullInt64

	err := row.Scan(
		&a.ID, &a.VolumeID, &a.Kind, &a.RelativePath, &a.Filename, &a.FolderPath, &a.Format,
		&a.FileSize, &mtime, &a.PartialHash, &a.FullHash,
		&a.ArchivePath, &a.ArchiveMember, &a.IndexStatus, &lastSeen, &missingSince,
		&a.ThumbStorage, &a.ThumbPath,
		&renderedAt, &sourceMtime, &a.ForceRerender,
		&a.IsDuplicate, &dupOf,
	)
	if err != nil {
		return nil, err
	}

	a.FileMtime = time.Unix(mtime, 0)
	a.LastSeenAt = time.Unix(lastSeen, 0)
	if missingSince.Valid {
		t := time.Unix(missingSince.Int64, 0)
		a.MissingSince = &t
	}
	if renderedAt.Valid {
		t := time.Unix(renderedAt.Int64, 0)
		a.ThumbRenderedAt = &t
	}
	if sourceMtime.Valid {
		t := time.Unix(sourceMtime.Int64, 0)
		a.ThumbSourceMtime = &t
	}
	if dupOf.Valid {
		v := dupOf.Int64
		a.DuplicateOfID = &v
	}
	return &a, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// GetAssetByPath returns the row at (volumeID, relativePath), or nil when
// no such row exists. Duplicate-flagged rows are returned too; without that,
// every warn-policy rescan would insert a fresh duplicate row at the same
// path.
func (c *Catalog) GetAssetByPath(ctx context.Context, volumeID int64, relativePath string) (*Asset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_asset_by_path", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + assetColumns + ` FROM assets
		WHERE volume_id = ? AND relative_path = ?
		ORDER BY is_duplicate ASC, id ASC LIMIT 1`

	a, scanErr := scanAsset(c.db.QueryRowContext(ctx, query, volumeID, relativePath))
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, nil
	}
	err = scanErr
	return a, err
}

// GetAsset returns the row with the given id, or nil when no such row
// exists.
func (c *Catalog) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_asset", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = ?`
	a, scanErr := scanAsset(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, nil
	}
	err = scanErr
	return a, err
}

// FindByPartialHash returns all non-duplicate rows sharing the partial hash,
// most recently seen first. The caller disambiguates and verifies.
func (c *Catalog) FindByPartialHash(ctx context.Context, partialHash string) ([]*Asset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_by_partial_hash", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT ` + assetColumns + ` FROM assets
		WHERE partial_hash = ? AND is_duplicate = 0
		ORDER BY last_seen_at DESC, id ASC`

	rows, qErr := c.db.QueryContext(ctx, query, partialHash)
	if qErr != nil {
		err = qErr
		return nil, err
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		a, sErr := scanAsset(rows)
		if sErr != nil {
			err = sErr
			return nil, err
		}
		assets = append(assets, a)
	}
	err = rows.Err()
	return assets, err
}

// InsertAsset inserts a complete new row in its own transaction and fills in
// the generated id.
func (c *Catalog) InsertAsset(a *Asset) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_asset", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}

	res, execErr := tx.Exec(`
		INSERT INTO assets (volume_id, kind, relative_path, filename, folder_path, format,
			file_size, file_mtime, partial_hash, full_hash, archive_path, archive_member,
			index_status, last_seen_at, is_duplicate, duplicate_of_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.VolumeID, a.Kind, a.RelativePath, a.Filename, a.FolderPath, a.Format,
		a.FileSize, a.FileMtime.Unix(), a.PartialHash, nullString(a.FullHash),
		a.ArchivePath, a.ArchiveMember,
		StatusIndexed, a.LastSeenAt.Unix(), a.IsDuplicate, nullInt64(a.DuplicateOfID),
	)
	if execErr != nil {
		err = c.End(tx, execErr)
		return err
	}

	id, idErr := res.LastInsertId()
	if idErr != nil {
		err = c.End(tx, idErr)
		return err
	}

	if err = c.End(tx, nil); err != nil {
		return err
	}

	a.ID = id
	a.IndexStatus = StatusIndexed
	metrics.CatalogRowsAffected.WithLabelValues("insert_asset").Observe(1)
	return nil
}

// UpdateAssetMetadata rewrites the content columns of an existing row after
// an UPDATE action. folder_path is always recomputed by the caller and
// written here so it can never go stale relative to relative_path.
func (c *Catalog) UpdateAssetMetadata(a *Asset) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_asset_metadata", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}

	_, execErr := tx.Exec(`
		UPDATE assets SET
			filename = ?, folder_path = ?, format = ?,
			file_size = ?, file_mtime = ?, partial_hash = ?, full_hash = ?,
			index_status = ?, last_seen_at = ?, missing_since = NULL,
			is_duplicate = ?, duplicate_of_id = ?
		WHERE id = ?`,
		a.Filename, a.FolderPath, a.Format,
		a.FileSize, a.FileMtime.Unix(), a.PartialHash, nullString(a.FullHash),
		StatusIndexed, a.LastSeenAt.Unix(),
		a.IsDuplicate, nullInt64(a.DuplicateOfID), a.ID,
	)
	err = c.End(tx, execErr)
	if err == nil {
		metrics.CatalogRowsAffected.WithLabelValues("update_asset").Observe(1)
	}
	return err
}

// RepointAsset rewrites the path fields of an existing row after a MOVED
// action, preserving row identity. All path-derived columns move together,
// including the archive columns: a file can move between loose storage and a
// container in either direction.
func (c *Catalog) RepointAsset(id int64, relativePath, filename, folderPath, archivePath, archiveMember string, mtime, seenAt time.Time, size int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("repoint_asset", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}

	_, execErr := tx.Exec(`
		UPDATE assets SET
			relative_path = ?, filename = ?, folder_path = ?,
			archive_path = ?, archive_member = ?,
			file_size = ?, file_mtime = ?,
			index_status = ?, last_seen_at = ?, missing_since = NULL
		WHERE id = ?`,
		relativePath, filename, folderPath,
		archivePath, archiveMember,
		size, mtime.Unix(),
		StatusIndexed, seenAt.Unix(), id,
	)
	err = c.End(tx, execErr)
	if err == nil {
		metrics.CatalogRowsAffected.WithLabelValues("repoint_asset").Observe(1)
	}
	return err
}

// TouchAssetSeen updates only last_seen_at (and restores a missing row).
// UNCHANGED is a true no-op on the row body.
func (c *Catalog) TouchAssetSeen(id int64, seenAt time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("touch_asset_seen", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}

	_, execErr := tx.Exec(`
		UPDATE assets SET last_seen_at = ?, index_status = ?, missing_since = NULL
		WHERE id = ?`,
		seenAt.Unix(), StatusIndexed, id,
	)
	err = c.End(tx, execErr)
	return err
}

// SetAssetFullHash records a full-hash computation so later collisions can be
// verified without re-reading the file.
func (c *Catalog) SetAssetFullHash(id int64, fullHash string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_asset_full_hash", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}
	_, execErr := tx.Exec(`UPDATE assets SET full_hash = ? WHERE id = ?`, fullHash, id)
	err = c.End(tx, execErr)
	return err
}

// MarkMissing flags every indexed row under the volume (optionally limited to
// a path prefix) not seen since cutoff as missing. Duplicate rows follow
// their own paths like any other row. Returns the number of rows flagged.
func (c *Catalog) MarkMissing(volumeID int64, pathPrefix string, cutoff time.Time, now time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_missing", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE assets SET index_status = ?, missing_since = ?
		WHERE volume_id = ? AND index_status = ? AND last_seen_at < ?`
	args := []any{StatusMissing, now.Unix(), volumeID, StatusIndexed, cutoff.Unix()}

	if pathPrefix != "" {
		query += ` AND (relative_path = ? OR relative_path LIKE ?)`
		args = append(args, pathPrefix, pathPrefix+"/%")
	}

	res, execErr := tx.Exec(query, args...)
	if execErr != nil {
		err = c.End(tx, execErr)
		return 0, err
	}

	affected, raErr := res.RowsAffected()
	if raErr != nil {
		err = c.End(tx, raErr)
		return 0, err
	}

	if err = c.End(tx, nil); err != nil {
		return 0, err
	}

	if affected > 0 {
		metrics.CatalogRowsAffected.WithLabelValues("mark_missing").Observe(float64(affected))
	}
	return affected, nil
}

// CountAssets returns the number of non-duplicate rows for a volume
// (volumeID <= 0 counts the whole catalog).
func (c *Catalog) CountAssets(ctx context.Context, volumeID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	var err error
	if volumeID > 0 {
		err = c.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM assets WHERE volume_id = ? AND is_duplicate = 0`, volumeID).Scan(&n)
	} else {
		err = c.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM assets WHERE is_duplicate = 0`).Scan(&n)
	}
	return n, err
}

// UpdateAssetThumbnail writes all four thumbnail columns (plus the
// force_rerender reset) in one transaction. A partial thumbnail update is
// indistinguishable from "never rendered" downstream, so the columns only
// ever move together.
func (c *Catalog) UpdateAssetThumbnail(id int64, storage, path string, renderedAt, sourceMtime time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_asset_thumbnail", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}

	_, execErr := tx.Exec(`
		UPDATE assets SET
			thumb_storage = ?, thumb_path = ?,
			thumb_rendered_at = ?, thumb_source_mtime = ?,
			force_rerender = 0
		WHERE id = ?`,
		storage, path, renderedAt.Unix(), sourceMtime.Unix(), id,
	)
	err = c.End(tx, execErr)
	if err == nil {
		metrics.CatalogRowsAffected.WithLabelValues("update_thumbnail").Observe(1)
	}
	return err
}

// SetForceRerender flags an asset so the next daemon cycle re-renders it
// even when the existing thumbnail looks fresh.
func (c *Catalog) SetForceRerender(id int64, force bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_force_rerender", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}
	_, execErr := tx.Exec(`UPDATE assets SET force_rerender = ? WHERE id = ?`, force, id)
	err = c.End(tx, execErr)
	return err
}

// PendingThumbnails returns indexed, non-archive-member rows whose thumbnail
// is absent, stale against the current file mtime, or force-flagged.
func (c *Catalog) PendingThumbnails(ctx context.Context, limit int) ([]*Asset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("pending_thumbnails", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := `SELECT ` + assetColumns + ` FROM assets
		WHERE index_status = ? AND is_duplicate = 0 AND archive_member = ''
		  AND (thumb_rendered_at IS NULL
		       OR thumb_source_mtime IS NULL
		       OR thumb_source_mtime != file_mtime
		       OR force_rerender = 1)
		ORDER BY id ASC
		LIMIT ?`

	rows, qErr := c.db.QueryContext(ctx, query, StatusIndexed, limit)
	if qErr != nil {
		err = qErr
		return nil, err
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		a, sErr := scanAsset(rows)
		if sErr != nil {
			err = sErr
			return nil, err
		}
		assets = append(assets, a)
	}
	err = rows.Err()
	return assets, err
}

// CalculateStats computes catalog totals for the metrics collector.
func (c *Catalog) CalculateStats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var s Stats
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN index_status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN is_duplicate = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN thumb_rendered_at IS NOT NULL THEN 1 ELSE 0 END)
		FROM assets`,
		KindDocument, KindModel, StatusMissing,
	).Scan(&s.TotalAssets, &nullSum{&s.TotalDocuments}, &nullSum{&s.TotalModels},
		&nullSum{&s.TotalMissing}, &nullSum{&s.TotalDuplicate}, &nullSum{&s.RenderedThumbs})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to calculate catalog stats: %w", err)
	}
	return s, nil
}

// nullSum scans a SUM() that is NULL on an empty table as zero.
type nullSum struct{ v *int64 }

func (n *nullSum) Scan(src any) error {
	if src == nil {
		*n.v = 0
		return nil
	}
	switch t := src.(type) {
	case int64:
		*n.v = t
	case float64:
		*n.v = int64(t)
	default:
		return fmt.Errorf("unexpected sum type %T", src)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
