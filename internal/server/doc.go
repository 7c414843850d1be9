// Package server exposes the HTTP API: volume and job inspection, scan
// triggering, full-text search, stats, and thumbnail rerender requests.
package server
