package scanner

import (
	"errors"

	"asset-catalog/internal/formats"
	"asset-catalog/internal/volume"
)

// Error type labels recorded against scan jobs. File-level errors never
// abort a scan.
const (
	ErrTypeTraversal   = "traversal"
	ErrTypeUnsupported = "unsupported"
	ErrTypeValidation  = "validation"
	ErrTypeIO          = "io"
	ErrTypeCatalog     = "catalog"
)

// classifyError maps a file-level failure onto its job error type label.
func classifyError(err error) string {
	var traversal *volume.PathTraversalError
	if errors.As(err, &traversal) {
		return ErrTypeTraversal
	}
	var unsupported *formats.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		return ErrTypeUnsupported
	}
	var validation *formats.ValidationError
	if errors.As(err, &validation) {
		return ErrTypeValidation
	}
	return ErrTypeIO
}
