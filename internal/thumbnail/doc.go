// Package thumbnail renders asset previews through an ordered fallback
// chain of backends (libvips for documents, zip cover extraction, an
// external model renderer, and an infallible placeholder) and stores the
// results as JPEG files in a preview directory.
package thumbnail
