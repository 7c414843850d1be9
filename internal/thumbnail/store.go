package thumbnail

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/logging"

	"github.com/disintegration/imaging"
)

// StorageLocal is the storage backend tag written into the catalog for
// thumbnails kept on the daemon's local preview directory.
const StorageLocal = "local"

// Store persists rendered thumbnails under a preview directory, split by
// asset kind.
type Store struct {
	previewDir string
	width      int
	height     int
}

func NewStore(previewDir string) (*Store, error) {
	s := &Store{previewDir: previewDir, width: 200, height: 200}
	for _, sub := range []string{"documents", "models"} {
		if err := os.MkdirAll(filepath.Join(previewDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("create preview dir: %w", err)
		}
	}
	return s, nil
}

// Size returns the target thumbnail dimensions.
func (s *Store) Size() (int, int) {
	return s.width, s.height
}

// Write fits the image into the thumbnail box and writes it as JPEG under
// the kind's subdirectory, via temp file and rename so readers never see a
// partial thumbnail. Returns the storage tag and the path relative to the
// preview directory, which is what the catalog records.
func (s *Store) Write(assetID int64, kind catalog.AssetKind, img image.Image) (storage, relPath string, err error) {
	thumb := imaging.Fit(img, s.width, s.height, imaging.Lanczos)

	sub := "documents"
	if kind == catalog.KindModel {
		sub = "models"
	}
	relPath = filepath.Join(sub, fmt.Sprintf("%d.jpg", assetID))
	absPath := filepath.Join(s.previewDir, relPath)

	tmp, err := os.CreateTemp(filepath.Dir(absPath), ".thumb-*.jpg")
	if err != nil {
		return "", "", fmt.Errorf("create temp thumbnail: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, thumb, &jpeg.Options{Quality: 80}); err != nil {
		tmp.Close()
		return "", "", fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), absPath); err != nil {
		return "", "", fmt.Errorf("publish thumbnail: %w", err)
	}

	logging.Debug("Thumbnail written: %s", absPath)
	return StorageLocal, relPath, nil
}

// Remove deletes a stored thumbnail, ignoring files already gone.
func (s *Store) Remove(relPath string) error {
	err := os.Remove(filepath.Join(s.previewDir, relPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
