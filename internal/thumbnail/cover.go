package thumbnail

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"path"
	"sort"
	"strings"

	"asset-catalog/internal/logging"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// CoverRenderer extracts a cover image from zip-packaged document formats.
// CBZ uses the first page in reading order; EPUB uses the first embedded
// image, which is the cover in the overwhelming majority of real files.
type CoverRenderer struct{}

func (r *CoverRenderer) Name() string { return "cover" }

func (r *CoverRenderer) CanRender(req *Request) bool {
	switch req.Format {
	case "cbz", "epub":
		return true
	}
	return false
}

func (r *CoverRenderer) Render(ctx context.Context, req *Request) (image.Image, error) {
	zr, err := zip.OpenReader(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer zr.Close()

	var candidates []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isImageName(f.Name) {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no images inside %s", path.Base(req.SourcePath))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })

	for _, f := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		img, derr := imaging.Decode(rc, imaging.AutoOrientation(true))
		rc.Close()
		if derr != nil {
			logging.Debug("Cover candidate %s undecodable: %v", f.Name, derr)
			continue
		}
		return img, nil
	}
	return nil, fmt.Errorf("no decodable cover image in %s", path.Base(req.SourcePath))
}

func isImageName(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}
