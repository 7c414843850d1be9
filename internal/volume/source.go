package volume

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"asset-catalog/internal/catalog"
)

// File is what a Source hands back for reading. Hashing needs seeking and
// archive walking needs ReaderAt, so both capabilities are required.
type File interface {
	io.Reader
	io.Seeker
	io.ReaderAt
	io.Closer
}

// WalkFunc is called once per regular file, in lexical order. Directories
// are never reported. Returning an error stops the walk.
type WalkFunc func(absPath string, info fs.FileInfo) error

// Source abstracts a volume's filesystem so the scanner and the thumbnail
// daemon do not care whether files live on a local disk or behind SFTP.
type Source interface {
	Stat(path string) (fs.FileInfo, error)
	Open(path string) (File, error)
	Walk(root string, fn WalkFunc) error
	Close() error
}

// LocalSource serves a volume mounted on the local filesystem.
type LocalSource struct{}

func NewLocalSource() *LocalSource {
	return &LocalSource{}
}

func (s *LocalSource) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (s *LocalSource) Open(path string) (File, error) {
	return os.Open(path)
}

func (s *LocalSource) Walk(root string, fn WalkFunc) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree. Skip it rather than abort the scan.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(p, info)
	})
}

func (s *LocalSource) Close() error {
	return nil
}

// WalkShallow reports only the regular files directly under root, for
// non-recursive scans.
func WalkShallow(src Source, root string, fn WalkFunc) error {
	type entry struct {
		path string
		info fs.FileInfo
	}
	var entries []entry
	switch s := src.(type) {
	case *LocalSource:
		dirents, err := os.ReadDir(root)
		if err != nil {
			return err
		}
		for _, d := range dirents {
			if d.IsDir() || !d.Type().IsRegular() {
				continue
			}
			info, err := d.Info()
			if err != nil {
				continue
			}
			entries = append(entries, entry{filepath.Join(root, d.Name()), info})
		}
	case *SFTPSource:
		infos, err := s.client.ReadDir(root)
		if err != nil {
			return err
		}
		for _, info := range infos {
			if info.IsDir() || !info.Mode().IsRegular() {
				continue
			}
			entries = append(entries, entry{root + "/" + info.Name(), info})
		}
	default:
		return fmt.Errorf("shallow walk not supported for %T", src)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })
	for _, e := range entries {
		if err := fn(e.path, e.info); err != nil {
			return err
		}
	}
	return nil
}

// OpenSource builds the right Source implementation for a volume.
func OpenSource(v *catalog.Volume, cfg SFTPConfig) (Source, error) {
	switch v.Type {
	case catalog.VolumeLocal:
		return NewLocalSource(), nil
	case catalog.VolumeSFTP:
		return NewSFTPSource(cfg)
	default:
		return nil, fmt.Errorf("unknown volume type %q", v.Type)
	}
}
