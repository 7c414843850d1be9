package thumbnail

import (
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"path"
	"strings"
)

// PlaceholderRenderer is the terminal fallback. It always succeeds, drawing
// a flat tile whose color is derived from the format so all assets of one
// type look alike. Deterministic, so re-renders are byte-stable.
type PlaceholderRenderer struct{}

func (r *PlaceholderRenderer) Name() string { return "placeholder" }

func (r *PlaceholderRenderer) CanRender(req *Request) bool { return true }

func (r *PlaceholderRenderer) Render(ctx context.Context, req *Request) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := req.Width, req.Height
	if w <= 0 {
		w = 200
	}
	if h <= 0 {
		h = 200
	}

	bg := formatColor(req.Format)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	// A darker band along the bottom hints at the extension strip real
	// renderers would draw text into.
	band := image.Rect(0, h*4/5, w, h)
	dark := color.RGBA{bg.R / 2, bg.G / 2, bg.B / 2, 255}
	draw.Draw(img, band, &image.Uniform{dark}, image.Point{}, draw.Src)

	return img, nil
}

func formatColor(format string) color.RGBA {
	f := fnv.New32a()
	f.Write([]byte(strings.ToLower(strings.TrimPrefix(path.Ext(format), "."))))
	f.Write([]byte(format))
	v := f.Sum32()
	// Keep channels away from extremes so the band stays visible.
	return color.RGBA{
		R: 64 + uint8(v&0x7F),
		G: 64 + uint8((v>>8)&0x7F),
		B: 64 + uint8((v>>16)&0x7F),
		A: 255,
	}
}
