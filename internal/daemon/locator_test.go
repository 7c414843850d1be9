package daemon

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"testing"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/volume"
)

// endlessFile never hits EOF, standing in for a remote read that hangs or
// a file far larger than the render deadline allows.
type endlessFile struct{}

func (endlessFile) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	return len(p), nil
}

func (endlessFile) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (endlessFile) ReadAt(p []byte, off int64) (int, error)      { return 0, io.EOF }
func (endlessFile) Close() error                                 { return nil }

type endlessSource struct{}

func (endlessSource) Stat(path string) (fs.FileInfo, error)      { return nil, fs.ErrNotExist }
func (endlessSource) Open(path string) (volume.File, error)      { return endlessFile{}, nil }
func (endlessSource) Walk(root string, fn volume.WalkFunc) error { return nil }
func (endlessSource) Close() error                               { return nil }

func TestLocatorStagingStopsOnCancel(t *testing.T) {
	vol := &catalog.Volume{ID: 1, Label: "remote", Type: catalog.VolumeSFTP, MountPath: "/srv/data"}
	loc := NewVolumeLocator(
		map[int64]*catalog.Volume{1: vol},
		map[int64]volume.Source{1: endlessSource{}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, cleanup, err := loc(ctx, &catalog.Asset{ID: 7, VolumeID: 1, RelativePath: "big.pdf"})
	if err == nil {
		cleanup()
		t.Fatal("staging an endless stream with a cancelled context succeeded")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLocatorDeclinesArchiveMembers(t *testing.T) {
	vol := &catalog.Volume{ID: 1, Label: "local", Type: catalog.VolumeLocal, MountPath: "/mnt/data"}
	loc := NewVolumeLocator(
		map[int64]*catalog.Volume{1: vol},
		map[int64]volume.Source{1: volume.NewLocalSource()},
	)

	a := &catalog.Asset{
		ID: 3, VolumeID: 1,
		RelativePath:  "comics.zip::page1.png",
		ArchivePath:   "comics.zip",
		ArchiveMember: "page1.png",
	}
	if _, _, err := loc(context.Background(), a); err == nil {
		t.Error("archive member was handed to a renderer")
	}
}
