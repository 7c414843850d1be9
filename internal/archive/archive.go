package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/nwaples/rardecode/v2"
)

// Separator joins an archive's own relative path to a member path inside
// the catalog, e.g. "books/pack.zip::manual.pdf".
const Separator = "::"

// Member describes one regular file inside an archive.
type Member struct {
	// Path is the member's path inside the archive, slash-separated.
	Path    string
	Size    int64
	ModTime time.Time
}

// MemberFunc receives each archive member together with a reader over its
// uncompressed content. The reader is only valid for the duration of the
// call. Returning an error stops the walk.
type MemberFunc func(m Member, r io.Reader) error

// IsArchive reports whether a filename looks like a container the catalog
// indexes into.
func IsArchive(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".zip", ".rar":
		return true
	}
	return false
}

// MemberPath builds the catalog relative_path for an archive member.
func MemberPath(archiveRelPath, memberPath string) string {
	return archiveRelPath + Separator + memberPath
}

// SplitMemberPath breaks a catalog relative_path back into archive path and
// member path. ok is false for plain file paths.
func SplitMemberPath(relativePath string) (archivePath, memberPath string, ok bool) {
	i := strings.Index(relativePath, Separator)
	if i < 0 {
		return "", "", false
	}
	return relativePath[:i], relativePath[i+len(Separator):], true
}

// Walk enumerates the members of an archive, dispatching on extension.
// ZIP needs random access; RAR is consumed as a stream from offset zero.
func Walk(name string, r io.ReadSeeker, ra io.ReaderAt, size int64, fn MemberFunc) error {
	switch strings.ToLower(path.Ext(name)) {
	case ".zip":
		return WalkZip(ra, size, fn)
	case ".rar":
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return WalkRar(r, fn)
	}
	return fmt.Errorf("not an archive: %s", name)
}

// WalkZip enumerates the regular files of a zip archive in directory order.
func WalkZip(ra io.ReaderAt, size int64, fn MemberFunc) error {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip member %s: %w", f.Name, err)
		}
		m := Member{
			Path:    path.Clean(strings.ReplaceAll(f.Name, "\\", "/")),
			Size:    int64(f.UncompressedSize64),
			ModTime: f.Modified,
		}
		err = fn(m, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// WalkRar enumerates the regular files of a rar archive in stream order.
func WalkRar(r io.Reader, fn MemberFunc) error {
	rr, err := rardecode.NewReader(r)
	if err != nil {
		return fmt.Errorf("open rar: %w", err)
	}
	for {
		hdr, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read rar header: %w", err)
		}
		if hdr.IsDir {
			continue
		}
		m := Member{
			Path:    path.Clean(strings.ReplaceAll(hdr.Name, "\\", "/")),
			Size:    hdr.UnPackedSize,
			ModTime: hdr.ModificationTime,
		}
		if err := fn(m, rr); err != nil {
			return err
		}
	}
}
