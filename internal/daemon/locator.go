package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/logging"
	"asset-catalog/internal/volume"
)

// NewVolumeLocator builds a Locator over the configured volume sources.
// Local volumes render in place; remote ones are staged into a scratch file
// first, removed after the render. Archive members are not renderable
// directly and are declined here.
func NewVolumeLocator(volumes map[int64]*catalog.Volume, sources map[int64]volume.Source) Locator {
	noop := func() {}
	return func(ctx context.Context, a *catalog.Asset) (string, func(), error) {
		if a.IsArchiveMember() {
			return "", noop, fmt.Errorf("asset %d is an archive member", a.ID)
		}
		vol, ok := volumes[a.VolumeID]
		if !ok {
			return "", noop, fmt.Errorf("asset %d references unknown volume %d", a.ID, a.VolumeID)
		}
		src, ok := sources[a.VolumeID]
		if !ok {
			return "", noop, fmt.Errorf("volume %d has no open source", a.VolumeID)
		}

		abs, err := volume.Absolute(vol, a.RelativePath)
		if err != nil {
			return "", noop, err
		}
		if _, isLocal := src.(*volume.LocalSource); isLocal {
			return abs, noop, nil
		}

		// Remote volume: stage into a temp file the renderers can open.
		remote, err := src.Open(abs)
		if err != nil {
			return "", noop, err
		}
		defer remote.Close()

		tmp, err := os.CreateTemp("", "render-*"+path.Ext(a.RelativePath))
		if err != nil {
			return "", noop, err
		}
		if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: remote}); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", noop, fmt.Errorf("stage remote asset %d: %w", a.ID, err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return "", noop, err
		}
		logging.Debug("Staged remote asset %d to %s", a.ID, tmp.Name())
		name := tmp.Name()
		return name, func() { os.Remove(name) }, nil
	}
}

// ctxReader stops a staging copy once the render deadline passes. SFTP
// reads block in chunks, so checking between chunks bounds the overrun to
// one chunk instead of the whole file.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
