// Package watch monitors local volume mounts with fsnotify and triggers
// debounced volume rescans when their trees change.
package watch
