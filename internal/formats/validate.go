package formats

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path"
	"strings"
)

// validateOBJ checks that every mtllib directive in a wavefront OBJ file
// names a material file that exists next to the model.
func validateOBJ(relPath string, content []byte, exists ExistsFunc) error {
	var missing []string
	seen := map[string]bool{}
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "mtllib ") {
			continue
		}
		// mtllib permits several space separated library names.
		for _, name := range strings.Fields(line)[1:] {
			if seen[name] {
				continue
			}
			seen[name] = true
			if !companionExists(relPath, name, exists) {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Path: relPath, Missing: missing}
	}
	return nil
}

// gltfDoc is the slice of the glTF JSON schema the validator cares about:
// external buffer and image references.
type gltfDoc struct {
	Buffers []struct {
		URI string `json:"uri"`
	} `json:"buffers"`
	Images []struct {
		URI string `json:"uri"`
	} `json:"images"`
}

// validateGLTF checks that every external buffer and image a glTF scene
// references exists next to it. data: URIs are embedded and always fine.
func validateGLTF(relPath string, content []byte, exists ExistsFunc) error {
	var doc gltfDoc
	if err := json.Unmarshal(content, &doc); err != nil {
		return &ValidationError{Path: relPath, Missing: []string{"(unparseable scene description)"}}
	}
	var missing []string
	check := func(uri string) {
		if uri == "" || strings.HasPrefix(uri, "data:") {
			return
		}
		if !companionExists(relPath, uri, exists) {
			missing = append(missing, uri)
		}
	}
	for _, b := range doc.Buffers {
		check(b.URI)
	}
	for _, img := range doc.Images {
		check(img.URI)
	}
	if len(missing) > 0 {
		return &ValidationError{Path: relPath, Missing: missing}
	}
	return nil
}

func companionExists(relPath, name string, exists ExistsFunc) bool {
	if exists == nil {
		return true
	}
	return exists(path.Join(path.Dir(relPath), name))
}
