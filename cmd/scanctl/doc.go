// Command scanctl runs a one-off scan of a local volume against the
// catalog and prints the per-action counts as JSON. Intended for cron jobs
// and operator repair runs (-force) while the main service is stopped.
//
// Like the main service it opens the catalog's FTS5 schema, so it must be
// built with the driver's fts5 tag:
//
//	go build -tags 'fts5' ./cmd/scanctl
package main
