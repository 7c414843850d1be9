// Package catalog provides the SQLite-backed store of asset records, volumes,
// and scan-job bookkeeping for the asset catalog service.
//
// It handles storage and retrieval of:
//   - Asset metadata (documents and 3D models, including archive members)
//   - Volume registration and reachability state
//   - Scan jobs, per-file job errors, and progress counters
//   - Thumbnail bookkeeping columns
//   - Full-text search indexing over filenames and paths
//
// Every mutating operation runs in a transaction scoped to one logical
// action; the FTS index is maintained by triggers so it commits or rolls
// back together with the row it mirrors. The database uses WAL mode so
// concurrent volume scans and the thumbnail daemon can interleave safely.
//
// # Build Requirements
//
// The schema uses an FTS5 virtual table, which github.com/mattn/go-sqlite3
// only compiles in under the fts5 build tag. Binaries and tests must be
// built with it or opening a catalog fails with "no such module: fts5":
//
//	go build -tags 'fts5' ./...
//	go test -tags 'fts5' ./...
package catalog
