package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrVolumeInUse is returned when deleting a volume that assets still
// reference. Volumes with assets are soft-disabled instead.
var ErrVolumeInUse = errors.New("volume is referenced by assets; disable it instead")

func scanVolume(row interface{ Scan(...any) error }) (*Volume, error) {
	var v Volume
	var lastIndexed sql.NullInt64

	err := row.Scan(&v.ID, &v.Label, &v.Type, &v.MountPath, &v.ReadOnly, &v.Disabled, &v.Status, &lastIndexed)
	if err != nil {
		return nil, err
	}
	if lastIndexed.Valid {
		t := time.Unix(lastIndexed.Int64, 0)
		v.LastIndexedAt = &t
	}
	return &v, nil
}

const volumeColumns = `id, label, type, mount_path, is_readonly, is_disabled, status, last_indexed_at`

// UpsertVolume creates the volume if its label is new, otherwise refreshes
// mount path, type, and read-only flag, and fills in the row id either way.
func (c *Catalog) UpsertVolume(v *Volume) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_volume", start, err) }()

	if v.Status == "" {
		v.Status = VolumeOnline
	}

	tx, err := c.Begin()
	if err != nil {
		return err
	}

	_, execErr := tx.Exec(`
		INSERT INTO volumes (label, type, mount_path, is_readonly, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			type = excluded.type,
			mount_path = excluded.mount_path,
			is_readonly = excluded.is_readonly`,
		v.Label, v.Type, v.MountPath, v.ReadOnly, v.Status,
	)
	if execErr != nil {
		err = c.End(tx, execErr)
		return err
	}

	var id int64
	if qErr := tx.QueryRow(`SELECT id FROM volumes WHERE label = ?`, v.Label).Scan(&id); qErr != nil {
		err = c.End(tx, qErr)
		return err
	}

	if err = c.End(tx, nil); err != nil {
		return err
	}
	v.ID = id
	return nil
}

// GetVolume returns the volume with the given id.
func (c *Catalog) GetVolume(ctx context.Context, id int64) (*Volume, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return scanVolume(c.db.QueryRowContext(ctx,
		`SELECT `+volumeColumns+` FROM volumes WHERE id = ?`, id))
}

// GetVolumeByLabel returns the volume with the given label, or nil.
func (c *Catalog) GetVolumeByLabel(ctx context.Context, label string) (*Volume, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	v, err := scanVolume(c.db.QueryRowContext(ctx,
		`SELECT `+volumeColumns+` FROM volumes WHERE label = ?`, label))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// ListVolumes returns all volumes, enabled first.
func (c *Catalog) ListVolumes(ctx context.Context) ([]*Volume, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx,
		`SELECT `+volumeColumns+` FROM volumes ORDER BY is_disabled ASC, label ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var volumes []*Volume
	for rows.Next() {
		v, sErr := scanVolume(rows)
		if sErr != nil {
			return nil, sErr
		}
		volumes = append(volumes, v)
	}
	return volumes, rows.Err()
}

// SetVolumeStatus records a volume's reachability state.
func (c *Catalog) SetVolumeStatus(id int64, status VolumeStatus) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_volume_status", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}
	_, execErr := tx.Exec(`UPDATE volumes SET status = ? WHERE id = ?`, status, id)
	err = c.End(tx, execErr)
	return err
}

// TouchVolumeIndexed records a completed scan against the volume.
func (c *Catalog) TouchVolumeIndexed(id int64, at time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("touch_volume_indexed", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}
	_, execErr := tx.Exec(`UPDATE volumes SET last_indexed_at = ?, status = ? WHERE id = ?`,
		at.Unix(), VolumeOnline, id)
	err = c.End(tx, execErr)
	return err
}

// DisableVolume soft-disables a volume so scans stop touching it while its
// assets remain browsable.
func (c *Catalog) DisableVolume(id int64, disabled bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("disable_volume", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}
	_, execErr := tx.Exec(`UPDATE volumes SET is_disabled = ? WHERE id = ?`, disabled, id)
	err = c.End(tx, execErr)
	return err
}

// DeleteVolume removes a volume row. It refuses while any asset references
// the volume: callers get ErrVolumeInUse and should soft-disable instead.
func (c *Catalog) DeleteVolume(id int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_volume", start, err) }()

	tx, err := c.Begin()
	if err != nil {
		return err
	}

	var refs int64
	if qErr := tx.QueryRow(`SELECT COUNT(*) FROM assets WHERE volume_id = ?`, id).Scan(&refs); qErr != nil {
		err = c.End(tx, qErr)
		return err
	}
	if refs > 0 {
		err = c.End(tx, fmt.Errorf("%w: %d assets", ErrVolumeInUse, refs))
		return err
	}

	_, execErr := tx.Exec(`DELETE FROM volumes WHERE id = ?`, id)
	err = c.End(tx, execErr)
	return err
}
