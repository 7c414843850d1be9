// Command asset-catalog runs the indexing service: the HTTP API, the
// volume scanner, the filesystem watcher, and the tiered thumbnail
// rendering daemon, all sharing one SQLite catalog.
//
// # Build Requirements
//
// The binary requires CGO for SQLite and libvips:
//
//   - SQLite: FTS5 full-text search support (github.com/mattn/go-sqlite3)
//   - libvips: document and image rasterization (github.com/davidbyttow/govips)
//
// Build tags:
//
//	go build -tags 'fts5' -o asset-catalog .
//
// Without the fts5 tag the driver omits the FTS5 module and the startup
// smoke test fails with "no such module: fts5".
package main
