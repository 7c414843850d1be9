package formats

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"asset-catalog/internal/catalog"
)

// ValidationError lists companion files a composite asset references but
// that are missing next to it. The file is rejected and the error recorded
// against the scan job.
type ValidationError struct {
	Path    string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing companion files: %s", e.Path, strings.Join(e.Missing, ", "))
}

// UnsupportedFormatError marks a file whose extension no registered format
// claims.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s", e.Path)
}

// ExistsFunc reports whether a sibling file exists. The scanner binds it to
// the volume Source so validators work the same on local and SFTP volumes.
type ExistsFunc func(name string) bool

// ValidateFunc inspects a file's content and surroundings. content is the
// full file body for formats that need parsing, nil otherwise.
type ValidateFunc func(relPath string, content []byte, exists ExistsFunc) error

// Format describes one cataloged file type.
type Format struct {
	ID         string
	Kind       catalog.AssetKind
	Extensions []string
	MimeType   string
	// NeedsContent asks the scanner to read the file body before calling
	// Validate.
	NeedsContent bool
	Validate     ValidateFunc
}

var registry = map[string]*Format{}

func register(f *Format) {
	for _, ext := range f.Extensions {
		registry[ext] = f
	}
}

func init() {
	register(&Format{ID: "pdf", Kind: catalog.KindDocument, Extensions: []string{".pdf"}, MimeType: "application/pdf"})
	register(&Format{ID: "epub", Kind: catalog.KindDocument, Extensions: []string{".epub"}, MimeType: "application/epub+zip"})
	register(&Format{ID: "djvu", Kind: catalog.KindDocument, Extensions: []string{".djvu"}, MimeType: "image/vnd.djvu"})
	register(&Format{ID: "cbz", Kind: catalog.KindDocument, Extensions: []string{".cbz"}, MimeType: "application/vnd.comicbook+zip"})

	register(&Format{ID: "stl", Kind: catalog.KindModel, Extensions: []string{".stl"}, MimeType: "model/stl"})
	register(&Format{ID: "3mf", Kind: catalog.KindModel, Extensions: []string{".3mf"}, MimeType: "model/3mf"})
	register(&Format{ID: "step", Kind: catalog.KindModel, Extensions: []string{".step", ".stp"}, MimeType: "model/step"})
	register(&Format{
		ID: "obj", Kind: catalog.KindModel, Extensions: []string{".obj"}, MimeType: "model/obj",
		NeedsContent: true, Validate: validateOBJ,
	})
	register(&Format{
		ID: "gltf", Kind: catalog.KindModel, Extensions: []string{".gltf"}, MimeType: "model/gltf+json",
		NeedsContent: true, Validate: validateGLTF,
	})
	register(&Format{ID: "glb", Kind: catalog.KindModel, Extensions: []string{".glb"}, MimeType: "model/gltf-binary"})
}

// Lookup resolves a filename to its registered format by extension.
func Lookup(name string) (*Format, bool) {
	f, ok := registry[strings.ToLower(path.Ext(name))]
	return f, ok
}

// Supported reports whether the catalog indexes this filename at all.
func Supported(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Extensions returns every registered extension, sorted, for banners and
// tests.
func Extensions() []string {
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
