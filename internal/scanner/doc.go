// Package scanner walks volumes and archives, classifies every discovered
// file against the catalog as new, updated, moved, duplicate, unchanged,
// skipped, or errored, and applies the result transactionally. Hashing runs
// in parallel; classification and writes run in traversal order. Duplicate
// handling is policy driven, with merge as the default so relocated files
// repoint their existing rows instead of multiplying catalog entries.
package scanner
