package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/logging"
)

// MeshRenderer shells out to an external model renderer that takes a model
// file and writes a PNG to stdout. The command is operator-configured; when
// unset the renderer declines everything and the chain falls through to the
// placeholder.
type MeshRenderer struct {
	Command string
}

func (r *MeshRenderer) Name() string { return "mesh" }

func (r *MeshRenderer) CanRender(req *Request) bool {
	return r.Command != "" && req.Kind == catalog.KindModel
}

func (r *MeshRenderer) Render(ctx context.Context, req *Request) (image.Image, error) {
	bin, err := exec.LookPath(r.Command)
	if err != nil {
		return nil, fmt.Errorf("model renderer not found: %w", err)
	}
	logging.Debug("Rendering model %s via %s", req.SourcePath, bin)

	cmd := exec.CommandContext(ctx, bin,
		"--width", strconv.Itoa(req.Width),
		"--height", strconv.Itoa(req.Height),
		"--output", "-",
		req.SourcePath,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("model renderer failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("model renderer produced no output for %s", req.SourcePath)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode renderer output: %w", err)
	}
	return img, nil
}
