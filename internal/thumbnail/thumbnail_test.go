package thumbnail

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"asset-catalog/internal/catalog"
)

type stubRenderer struct {
	name    string
	accepts bool
	err     error
	calls   int
}

func (r *stubRenderer) Name() string                { return r.name }
func (r *stubRenderer) CanRender(req *Request) bool { return r.accepts }

func (r *stubRenderer) Render(ctx context.Context, req *Request) (image.Image, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

func TestChainFirstSuccessWins(t *testing.T) {
	first := &stubRenderer{name: "first", accepts: true}
	second := &stubRenderer{name: "second", accepts: true}
	chain := NewChain(first, second)

	img, err := chain.Render(context.Background(), &Request{Format: "pdf"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img == nil {
		t.Fatal("no image returned")
	}
	if first.calls != 1 || second.calls != 0 {
		t.Errorf("calls: first=%d second=%d", first.calls, second.calls)
	}
}

func TestChainFallsThroughFailures(t *testing.T) {
	first := &stubRenderer{name: "first", accepts: true, err: errors.New("boom")}
	skipped := &stubRenderer{name: "skipped", accepts: false}
	last := &stubRenderer{name: "last", accepts: true}
	chain := NewChain(first, skipped, last)

	_, err := chain.Render(context.Background(), &Request{Format: "pdf"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if first.calls != 1 || skipped.calls != 0 || last.calls != 1 {
		t.Errorf("calls: first=%d skipped=%d last=%d", first.calls, skipped.calls, last.calls)
	}
}

func TestChainExhaustedReturnsChainError(t *testing.T) {
	a := &stubRenderer{name: "a", accepts: true, err: errors.New("a failed")}
	b := &stubRenderer{name: "b", accepts: true, err: errors.New("b failed")}
	chain := NewChain(a, b)

	_, err := chain.Render(context.Background(), &Request{Format: "pdf"})
	if err == nil {
		t.Fatal("expected an error from an exhausted chain")
	}
	var cerr *ChainError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type %T, want *ChainError", err)
	}
	if len(cerr.Attempts) != 2 || cerr.Attempts[0] != "a" || cerr.Attempts[1] != "b" {
		t.Errorf("attempts = %v", cerr.Attempts)
	}
}

func TestChainNoRendererAccepts(t *testing.T) {
	chain := NewChain(&stubRenderer{name: "picky", accepts: false})

	_, err := chain.Render(context.Background(), &Request{Format: "xyz", SourcePath: "f.xyz"})
	if err == nil {
		t.Fatal("expected an error when nothing accepts the request")
	}
	var cerr *ChainError
	if errors.As(err, &cerr) {
		t.Error("declined request should not produce a ChainError")
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &stubRenderer{name: "r", accepts: true}
	chain := NewChain(r)

	_, err := chain.Render(ctx, &Request{Format: "pdf"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if r.calls != 0 {
		t.Error("renderer was invoked after cancellation")
	}
}

func TestPlaceholderAlwaysRenders(t *testing.T) {
	r := &PlaceholderRenderer{}
	ctx := context.Background()

	if !r.CanRender(&Request{Format: "anything"}) {
		t.Fatal("placeholder declined a request")
	}

	img, err := r.Render(ctx, &Request{Format: "stl", Width: 200, Height: 200})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("bounds = %v", b)
	}

	// No requested size falls back to the default tile.
	img, err = r.Render(ctx, &Request{Format: "stl"})
	if err != nil {
		t.Fatalf("Render (default size): %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("default bounds = %v", b)
	}
}

func TestPlaceholderDeterministicPerFormat(t *testing.T) {
	r := &PlaceholderRenderer{}
	ctx := context.Background()

	first, _ := r.Render(ctx, &Request{Format: "pdf", Width: 8, Height: 8})
	second, _ := r.Render(ctx, &Request{Format: "pdf", Width: 8, Height: 8})
	other, _ := r.Render(ctx, &Request{Format: "stl", Width: 8, Height: 8})

	at := func(img image.Image) (uint32, uint32, uint32) {
		r, g, b, _ := img.At(1, 1).RGBA()
		return r, g, b
	}
	r1, g1, b1 := at(first)
	r2, g2, b2 := at(second)
	if r1 != r2 || g1 != g2 || b1 != b2 {
		t.Error("same format produced different colors")
	}
	r3, g3, b3 := at(other)
	if r1 == r3 && g1 == g3 && b1 == b3 {
		t.Error("distinct formats produced the same color")
	}
}

func TestStoreWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	w, h := s.Size()
	if w != 200 || h != 200 {
		t.Errorf("size = %dx%d", w, h)
	}

	// A large source image is fit into the thumbnail box.
	src := image.NewRGBA(image.Rect(0, 0, 800, 400))
	storage, relPath, err := s.Write(42, catalog.KindDocument, src)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if storage != StorageLocal {
		t.Errorf("storage = %q", storage)
	}
	if relPath != filepath.Join("documents", "42.jpg") {
		t.Errorf("relPath = %q", relPath)
	}

	f, err := os.Open(filepath.Join(dir, relPath))
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("thumbnail is not a decodable JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() > 200 || b.Dy() > 200 {
		t.Errorf("thumbnail exceeds the box: %v", b)
	}

	// Models land under their own subdirectory.
	_, relPath, err = s.Write(7, catalog.KindModel, src)
	if err != nil {
		t.Fatalf("Write (model): %v", err)
	}
	if relPath != filepath.Join("models", "7.jpg") {
		t.Errorf("model relPath = %q", relPath)
	}
}

func TestStoreWriteOverwrites(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	if _, _, err := s.Write(1, catalog.KindDocument, src); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, _, err := s.Write(1, catalog.KindDocument, src); err != nil {
		t.Fatalf("rewrite over existing thumbnail: %v", err)
	}

	// No stray temp files survive a write.
	entries, err := os.ReadDir(filepath.Join(dir, "documents"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("leftover files: %v", names)
	}
}

func TestStoreRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	_, relPath, err := s.Write(9, catalog.KindDocument, src)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := s.Remove(relPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, relPath)); !os.IsNotExist(err) {
		t.Error("thumbnail still present after Remove")
	}

	// Removing twice is not an error.
	if err := s.Remove(relPath); err != nil {
		t.Errorf("Remove (absent): %v", err)
	}
}
